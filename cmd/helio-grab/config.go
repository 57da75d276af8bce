// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/heliopack/go-helio/helio"
)

// Config drives one acquisition run. Defaults match the public archives;
// a YAML file overrides them.
type Config struct {
	// OutputDir receives solar.dat and timestamp.txt.
	OutputDir string `yaml:"output_dir"`
	// DebugImages enables per-channel grayscale PNG dumps under DebugDir.
	DebugImages bool   `yaml:"debug_images"`
	DebugDir    string `yaml:"debug_dir"`
	// TimeoutSec is the per-request HTTP timeout.
	TimeoutSec int `yaml:"timeout_sec"`

	JSOC struct {
		BaseURL string `yaml:"base_url"`
		Series  string `yaml:"series"`
	} `yaml:"jsoc"`

	Helioviewer struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"helioviewer"`

	// Channels overrides the per-channel scaling policy.
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig overrides the scaling policy of one channel.
type ChannelConfig struct {
	Label string `yaml:"label"`
	// Scale is "auto" (observed min/max) or "fixed" (use Min/Max).
	Scale string  `yaml:"scale"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	// Resample is "lanczos" or "cubic".
	Resample string `yaml:"resample"`
	Flip     *bool  `yaml:"flip"`
}

func defaultConfig() *Config {
	c := &Config{
		OutputDir:   ".",
		DebugImages: true,
		DebugDir:    "debug_images",
		TimeoutSec:  60,
	}
	return c
}

// loadConfig returns defaults overlaid with the YAML file at path, if any.
func loadConfig(path string) (*Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.TimeoutSec <= 0 {
		return nil, fmt.Errorf("%s: timeout_sec must be positive", path)
	}
	return c, nil
}

// policies merges the channel overrides over helio.DefaultPolicies.
func (c *Config) policies() (map[helio.Channel]helio.ScalingPolicy, error) {
	out := make(map[helio.Channel]helio.ScalingPolicy, len(helio.DefaultPolicies))
	for ch, p := range helio.DefaultPolicies {
		out[ch] = p
	}
	for _, cc := range c.Channels {
		ch := helio.Channel(cc.Label)
		p, ok := out[ch]
		if !ok {
			return nil, fmt.Errorf("unknown channel %q", cc.Label)
		}
		switch cc.Scale {
		case "":
			// Keep the default policy's range.
		case "auto":
			p.Fixed = false
		case "fixed":
			if cc.Max <= cc.Min {
				return nil, fmt.Errorf("channel %q: fixed scale needs min < max", cc.Label)
			}
			p.Fixed = true
			p.Min = cc.Min
			p.Max = cc.Max
		default:
			return nil, fmt.Errorf("channel %q: unknown scale %q", cc.Label, cc.Scale)
		}
		switch cc.Resample {
		case "":
			// Keep the default kernel.
		case "lanczos":
			p.Kernel = helio.Lanczos
		case "cubic":
			p.Kernel = helio.CatmullRom
		default:
			return nil, fmt.Errorf("channel %q: unknown resample %q", cc.Label, cc.Resample)
		}
		if cc.Flip != nil {
			p.FlipHorizontal = *cc.Flip
		}
		out[ch] = p
	}
	return out, nil
}

// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliopack/go-helio/helio"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, 60, cfg.TimeoutSec)
	assert.True(t, cfg.DebugImages)

	p, err := cfg.policies()
	require.NoError(t, err)
	assert.Len(t, p, helio.NumChannels)
	hmi := p[helio.Magnetogram]
	assert.True(t, hmi.Fixed)
	assert.Equal(t, float64(-1500), hmi.Min)
	assert.True(t, hmi.FlipHorizontal)
	assert.False(t, p[helio.AIA171].Fixed)
}

func TestLoadConfigOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: /srv/solar
timeout_sec: 30
channels:
  - label: "171"
    scale: fixed
    min: 0
    max: 5000
    resample: cubic
  - label: HMI
    resample: cubic
`), 0644))
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/solar", cfg.OutputDir)

	p, err := cfg.policies()
	require.NoError(t, err)
	aia := p[helio.AIA171]
	assert.True(t, aia.Fixed)
	assert.Equal(t, float64(5000), aia.Max)
	assert.Equal(t, helio.CatmullRom, aia.Kernel)
	// A partial override keeps the rest of the default policy.
	hmi := p[helio.Magnetogram]
	assert.Equal(t, helio.CatmullRom, hmi.Kernel)
	assert.True(t, hmi.Fixed)
	assert.True(t, hmi.FlipHorizontal)
}

func TestLoadConfigRejects(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown_field.yaml": "outpuut_dir: x",
		"bad_timeout.yaml":   "timeout_sec: -1",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		_, err := loadConfig(path)
		assert.Error(t, err, name)
	}
}

func TestPoliciesRejects(t *testing.T) {
	for _, cc := range []ChannelConfig{
		{Label: "999"},
		{Label: "171", Scale: "sideways"},
		{Label: "171", Scale: "fixed", Min: 1, Max: 1},
		{Label: "171", Scale: "fixed", Min: 100, Max: -100},
		{Label: "171", Resample: "nearest"},
	} {
		cfg := defaultConfig()
		cfg.Channels = []ChannelConfig{cc}
		_, err := cfg.policies()
		assert.Error(t, err, "%+v", cc)
	}
}

// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// helio-grab acquires one six-channel solar imagery set and packs it into
// solar.dat.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maruel/interrupt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/heliopack/go-helio/container"
	"github.com/heliopack/go-helio/helio"
	"github.com/heliopack/go-helio/heliotest"
)

func mainImpl() error {
	configPath := flag.String("config", "", "YAML config file")
	outDir := flag.String("out", "", "output directory, overrides the config")
	fake := flag.Bool("fake", false, "use a synthetic source instead of the archives")
	every := flag.Duration("every", 0, "rerun at this interval instead of exiting")
	logFile := flag.String("logfile", "", "append logs to this rotated file instead of stderr")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *logFile != "" {
		log.Logger = log.Output(&lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
		})
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	policies, err := cfg.policies()
	if err != nil {
		return err
	}

	var src helio.Source
	if *fake {
		src = heliotest.New(512)
	} else {
		src = newArchiveSource(cfg)
	}

	interrupt.HandleCtrlC()

	for {
		if err := runOnce(cfg, src, policies); err != nil {
			if *every == 0 {
				return err
			}
			// Periodic mode keeps going; the previous artifact stays in
			// place untouched.
			log.Error().Err(err).Msg("run failed")
		}
		if *every == 0 {
			return nil
		}
		select {
		case <-interrupt.Channel:
			return nil
		case <-time.After(*every):
		}
	}
}

func runOnce(cfg *Config, src helio.Source, policies map[helio.Channel]helio.ScalingPolicy) error {
	start := time.Now()
	set, stats, err := helio.Grab(context.Background(), src, policies)
	if err != nil {
		return err
	}
	for ch, cherr := range stats.Failures {
		log.Warn().Str("channel", string(ch)).Err(cherr).Msg("channel degraded to black frame")
	}

	if cfg.DebugImages {
		dir := cfg.DebugDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.OutputDir, dir)
		}
		for _, f := range set.Frames {
			if f.Fallback {
				continue
			}
			if p, err := f.WritePNG(dir); err != nil {
				log.Warn().Str("channel", string(f.Channel)).Err(err).Msg("debug PNG failed")
			} else {
				log.Debug().Str("path", p).Msg("debug PNG written")
			}
		}
	}

	a, b, err := container.Build(set.Planes())
	if err != nil {
		return err
	}
	datPath := filepath.Join(cfg.OutputDir, "solar.dat")
	if err := container.WriteFile(datPath, set.Ref, a, b); err != nil {
		return err
	}
	if err := container.WriteTimestamp(filepath.Join(cfg.OutputDir, "timestamp.txt"), set.Ref); err != nil {
		return err
	}
	fi, err := os.Stat(datPath)
	if err != nil {
		return err
	}

	printSummary(set, fi.Size())
	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("acquired", stats.Acquired).
		Int("fallbacks", stats.Fallbacks).
		Str("path", datPath).
		Msg("run complete")
	return nil
}

func printSummary(set *helio.Set, size int64) {
	div := strings.Repeat("=", 60)
	fmt.Println(div)
	fmt.Println("TIMESTAMP SUMMARY")
	fmt.Println(div)
	fmt.Printf("Current time: %s UTC\n", time.Now().UTC().Format(container.TimeLayout))
	fmt.Println(div)
	for _, f := range set.Frames {
		if f.Fallback {
			fmt.Printf("%5s: missing, substituted black frame\n", f.Channel)
			continue
		}
		delta := f.Time.Sub(set.Ref).Minutes()
		fmt.Printf("%5s: %s UTC (delta %+.1f min)\n", f.Channel, f.Time.Format(container.TimeLayout), delta)
	}
	fmt.Println(div)
	fmt.Printf("Container: %s bytes (%.2f MB)\n", comma(size), float64(size)/1024/1024)
	fmt.Println(div)
}

// comma formats n with thousands separators.
func comma(n int64) string {
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nhelio-grab: %s.\n", err)
		os.Exit(1)
	}
}

// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/heliopack/go-helio/helio"
	"github.com/heliopack/go-helio/helioviewer"
	"github.com/heliopack/go-helio/jsoc"
)

// archiveSource is the production helio.Source: magnetograms from JSOC,
// AIA channels from Helioviewer.
type archiveSource struct {
	jsoc *jsoc.Client
	hv   *helioviewer.Client
}

func newArchiveSource(cfg *Config) *archiveSource {
	hc := &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}
	return &archiveSource{
		jsoc: &jsoc.Client{
			BaseURL: cfg.JSOC.BaseURL,
			Series:  cfg.JSOC.Series,
			HTTP:    hc,
		},
		hv: &helioviewer.Client{
			BaseURL: cfg.Helioviewer.BaseURL,
			HTTP:    hc,
		},
	}
}

func (s *archiveSource) Reference(ctx context.Context) (*helio.Grid, time.Time, error) {
	return s.jsoc.LatestMagnetogram(ctx)
}

func (s *archiveSource) Channel(ctx context.Context, ch helio.Channel, ref time.Time) (*helio.Grid, time.Time, error) {
	return s.hv.Image(ctx, ch, ref)
}

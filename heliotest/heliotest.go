// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package heliotest implements a fake helio.Source.
package heliotest

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/heliopack/go-helio/helio"
)

// SourceFake is a deterministic in-memory helio.Source. The zero value
// serves a synthetic radial-gradient disk on every channel at time Ref;
// individual channels can be overridden or failed.
type SourceFake struct {
	mu sync.Mutex

	// Ref is the reference observation time. Defaults to a fixed instant so
	// tests are reproducible.
	Ref time.Time

	// RefErr, when set, fails the reference acquisition.
	RefErr error

	// Grids overrides the grid served for a channel.
	Grids map[helio.Channel]*helio.Grid

	// Errs fails the acquisition of specific auxiliary channels.
	Errs map[helio.Channel]error

	// Delays adds a per-channel delay before answering, to exercise
	// completion-order independence.
	Delays map[helio.Channel]time.Duration

	// Calls records every channel asked for, in call order.
	Calls []helio.Channel
}

var defaultRef = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// New returns a fake serving size x size synthetic disks on all channels.
func New(size int) *SourceFake {
	s := &SourceFake{Ref: defaultRef, Grids: map[helio.Channel]*helio.Grid{}}
	for _, ch := range helio.Order {
		s.Grids[ch] = Disk(size)
	}
	return s
}

// Disk returns a size x size grid holding a radial gradient, bright at the
// center. Min and max are distinct so normalization never degenerates.
func Disk(size int) *helio.Grid {
	g := helio.NewGrid(size, size)
	c := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-c, float64(y)-c)
			g.Set(x, y, 1000-d)
		}
	}
	return g
}

func (s *SourceFake) Reference(ctx context.Context) (*helio.Grid, time.Time, error) {
	s.record(helio.Magnetogram)
	if s.RefErr != nil {
		return nil, time.Time{}, s.RefErr
	}
	ref := s.Ref
	if ref.IsZero() {
		ref = defaultRef
	}
	return s.grid(helio.Magnetogram), ref, nil
}

func (s *SourceFake) Channel(ctx context.Context, ch helio.Channel, ref time.Time) (*helio.Grid, time.Time, error) {
	s.record(ch)
	if d := s.Delays[ch]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, time.Time{}, ctx.Err()
		}
	}
	if err := s.Errs[ch]; err != nil {
		return nil, time.Time{}, err
	}
	// Each channel reports a slightly different sensor time, like the real
	// archives do.
	return s.grid(ch), ref.Add(time.Minute), nil
}

func (s *SourceFake) grid(ch helio.Channel) *helio.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g := s.Grids[ch]; g != nil {
		return g
	}
	return Disk(64)
}

func (s *SourceFake) record(ch helio.Channel) {
	s.mu.Lock()
	s.Calls = append(s.Calls, ch)
	s.mu.Unlock()
}

// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package helio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Source acquires raw imagery. It is the boundary to the remote archives
// and can be mocked; see heliotest.
type Source interface {
	// Reference fetches the most recent magnetogram. The returned time is
	// the actual observation time, which anchors every auxiliary query.
	Reference(ctx context.Context) (*Grid, time.Time, error)

	// Channel fetches the auxiliary channel closest to the reference time.
	// The returned time is the actual observation time of the image served,
	// which may differ from ref by a few minutes.
	Channel(ctx context.Context, ch Channel, ref time.Time) (*Grid, time.Time, error)
}

// Stats summarizes one acquisition run.
type Stats struct {
	Acquired  int               // Channels with real data, reference included.
	Fallbacks int               // Channels degraded to an all-zero frame.
	Failures  map[Channel]error // Why each degraded channel failed.
}

// result is what one auxiliary worker reports back.
type result struct {
	ch    Channel
	frame *Frame
	err   error
}

// Grab produces the complete ordered six-channel set.
//
// The reference channel is acquired and normalized synchronously; any
// failure there aborts the run since there is nothing to time the other
// channels against. The five auxiliary channels are then fetched
// concurrently, one worker each. A failed auxiliary channel only degrades
// itself: it is replaced by a zero frame stamped with the reference time.
// Final ordering is by Order, never by completion order.
func Grab(ctx context.Context, src Source, policies map[Channel]ScalingPolicy) (*Set, *Stats, error) {
	grid, ref, err := src.Reference(ctx)
	if err != nil {
		return nil, nil, &FetchError{Channel: Magnetogram, Err: err}
	}
	img, err := Normalize(grid, policies[Magnetogram])
	if err != nil {
		return nil, nil, &FetchError{Channel: Magnetogram, Err: err}
	}
	frames := map[Channel]*Frame{
		Magnetogram: NewFrame(Magnetogram, ref, img),
	}

	results := make(chan result, len(Auxiliary))
	var wg sync.WaitGroup
	for _, ch := range Auxiliary {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			results <- grabChannel(ctx, src, ch, ref, policies[ch])
		}(ch)
	}
	wg.Wait()
	close(results)

	stats := &Stats{Failures: map[Channel]error{}}
	for r := range results {
		if r.err != nil {
			stats.Failures[r.ch] = r.err
			continue
		}
		frames[r.ch] = r.frame
	}

	set := &Set{Ref: ref.UTC()}
	for i, ch := range Order {
		if f, ok := frames[ch]; ok {
			set.Frames[i] = f
			stats.Acquired++
		} else {
			set.Frames[i] = NewFallback(ch, ref)
			stats.Fallbacks++
		}
	}
	return set, stats, nil
}

func grabChannel(ctx context.Context, src Source, ch Channel, ref time.Time, p ScalingPolicy) result {
	grid, at, err := src.Channel(ctx, ch, ref)
	if err != nil {
		return result{ch: ch, err: &FetchError{Channel: ch, Err: err}}
	}
	img, err := Normalize(grid, p)
	if err != nil {
		return result{ch: ch, err: &FetchError{Channel: ch, Err: fmt.Errorf("normalize: %w", err)}}
	}
	return result{ch: ch, frame: NewFrame(ch, at, img)}
}

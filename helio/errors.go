// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package helio

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGrid is returned by Normalize for a nil, zero-size or
	// inconsistently sized grid.
	ErrEmptyGrid = errors.New("helio: empty grid")

	// ErrFlatImage is returned by Normalize when the scaling range is
	// degenerate (vmax == vmin). A flat image cannot be range-scaled and is
	// treated as a failed acquisition.
	ErrFlatImage = errors.New("helio: flat image, degenerate scaling range")
)

// FetchError reports a failed acquisition for one channel. For auxiliary
// channels it degrades that channel to a fallback frame; for the reference
// channel it is fatal to the run.
type FetchError struct {
	Channel Channel
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("helio: channel %s: %s", e.Channel, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

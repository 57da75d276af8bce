// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package helio turns near-real-time solar imagery into a fixed set of
// 8 bit 2048x2048 channel frames.
//
// Six channels are produced per run: five SDO/AIA extreme-UV/UV
// wavelengths and the SDO/HMI line-of-sight magnetogram. The magnetogram
// is the reference channel: its observation time anchors the query time of
// every other channel and a run cannot proceed without it.
//
// References:
// SDO/AIA instrument page:
//   https://sdo.gsfc.nasa.gov/mission/instruments.php
// JSOC data series documentation (hmi.m_720s_nrt):
//   http://jsoc.stanford.edu/ajax/lookdata.html
// Helioviewer API:
//   https://api.helioviewer.org/docs/v2/
package helio

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"
)

// TargetSize is the width and height every frame is normalized to.
const TargetSize = 2048

// Channel identifies one imaging channel. AIA channels are named after
// their wavelength in ångströms.
type Channel string

// All the acquired channels.
const (
	AIA131      Channel = "131"
	AIA171      Channel = "171"
	AIA193      Channel = "193"
	AIA304      Channel = "304"
	AIA1700     Channel = "1700"
	Magnetogram Channel = "HMI"
)

// Order is the canonical channel order of a frame set. It is a contract
// with the container layout: the first three channels form the first RGB
// composite, the last three the second. Do not reorder.
var Order = [6]Channel{AIA131, AIA171, AIA193, AIA304, AIA1700, Magnetogram}

// Auxiliary lists the channels fetched relative to the reference
// observation, in Order.
var Auxiliary = [5]Channel{AIA131, AIA171, AIA193, AIA304, AIA1700}

// NumChannels is len(Order).
const NumChannels = 6

// Grid is a raw scientific image as handed over by an archive client:
// row-major float64 samples, native resolution, native dynamic range.
// Samples may be NaN or infinite; Normalize scrubs them.
type Grid struct {
	Pix  []float64
	W, H int
}

// NewGrid returns a zeroed w x h grid.
func NewGrid(w, h int) *Grid {
	return &Grid{Pix: make([]float64, w*h), W: w, H: h}
}

// At returns the sample at (x, y). No bounds check.
func (g *Grid) At(x, y int) float64 {
	return g.Pix[y*g.W+x]
}

// Set sets the sample at (x, y). No bounds check.
func (g *Grid) Set(x, y int, v float64) {
	g.Pix[y*g.W+x] = v
}

// Frame is one normalized channel: an 8 bit grayscale image of exactly
// TargetSize x TargetSize pixels.
type Frame struct {
	*image.Gray
	Channel  Channel
	Time     time.Time // Actual observation time, UTC. May differ from the requested time.
	Fallback bool      // True when acquisition failed and the frame is all zero.
}

// NewFrame wraps a normalized grayscale image.
func NewFrame(ch Channel, t time.Time, img *image.Gray) *Frame {
	return &Frame{Gray: img, Channel: ch, Time: t.UTC()}
}

// NewFallback returns the all-zero substitute frame for a channel whose
// acquisition failed, stamped with the reference time.
func NewFallback(ch Channel, ref time.Time) *Frame {
	return &Frame{
		Gray:     image.NewGray(image.Rect(0, 0, TargetSize, TargetSize)),
		Channel:  ch,
		Time:     ref.UTC(),
		Fallback: true,
	}
}

// Set is the complete ordered six-channel result of one acquisition run.
type Set struct {
	Ref    time.Time // Reference (magnetogram) observation time, UTC.
	Frames [NumChannels]*Frame
}

// Planes returns the six grayscale planes in Order.
func (s *Set) Planes() []*image.Gray {
	out := make([]*image.Gray, NumChannels)
	for i, f := range s.Frames {
		out[i] = f.Gray
	}
	return out
}

// WritePNG writes the frame as a grayscale PNG named
// <LABEL>_<YYYYMMDD_HHMMSS>.png under dir and returns the path. Purely
// diagnostic; nothing downstream reads these.
func (f *Frame) WritePNG(dir string) (string, error) {
	name := fmt.Sprintf("%s_%s.png", f.Channel, f.Time.Format("20060102_150405"))
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := writeGrayPNG(p, f.Gray); err != nil {
		return "", err
	}
	return p, nil
}

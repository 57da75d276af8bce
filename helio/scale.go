// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package helio

import (
	"image"
	"math"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
)

// Kernel selects the resampling filter used to bring a frame to
// TargetSize.
type Kernel int

const (
	// Lanczos is a 3-lobed Lanczos filter.
	Lanczos Kernel = iota
	// CatmullRom is a cubic spline filter.
	CatmullRom
)

// ScalingPolicy tells Normalize how to map a channel's raw samples to
// 8 bit.
//
// The magnetogram uses a fixed calibrated range (±1500 gauss) so the same
// field strength always maps to the same gray level. AIA channels stretch
// to the observed per-image min/max instead, trading frame-to-frame
// consistency for perceptual contrast.
type ScalingPolicy struct {
	// Fixed selects a calibrated Min/Max range. When false the range is the
	// observed min/max of the image and Min/Max are ignored.
	Fixed    bool
	Min, Max float64
	Kernel   Kernel
	// FlipHorizontal mirrors the frame left-right after resizing. Corrects
	// the HMI sensor orientation.
	FlipHorizontal bool
}

// DefaultPolicies is the per-channel scaling configuration.
var DefaultPolicies = map[Channel]ScalingPolicy{
	AIA131:      {Kernel: Lanczos},
	AIA171:      {Kernel: Lanczos},
	AIA193:      {Kernel: Lanczos},
	AIA304:      {Kernel: Lanczos},
	AIA1700:     {Kernel: Lanczos},
	Magnetogram: {Fixed: true, Min: -1500, Max: 1500, Kernel: Lanczos, FlipHorizontal: true},
}

// Normalize maps a raw grid to an 8 bit grayscale image of exactly
// TargetSize x TargetSize.
//
// Non-finite samples are zeroed before the range is computed; an infinity
// left in place would swallow the whole dynamic range. Scaling is
// clamp((x-vmin)/(vmax-vmin), 0, 1) * 255 with a truncating cast. The
// truncation is part of the output contract: downstream consumers compare
// containers bit for bit.
func Normalize(g *Grid, p ScalingPolicy) (*image.Gray, error) {
	if g == nil || g.W <= 0 || g.H <= 0 || len(g.Pix) != g.W*g.H {
		return nil, ErrEmptyGrid
	}
	buf := make([]float64, len(g.Pix))
	for i, v := range g.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		buf[i] = v
	}

	vmin, vmax := p.Min, p.Max
	if !p.Fixed {
		vmin = floats.Min(buf)
		vmax = floats.Max(buf)
	}
	if vmax == vmin {
		return nil, ErrFlatImage
	}

	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	span := vmax - vmin
	for i, v := range buf {
		t := (v - vmin) / span
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		img.Pix[i] = uint8(t * 255)
	}

	img = resample(img, p.Kernel)
	if p.FlipHorizontal {
		flipHorizontal(img)
	}
	return img, nil
}

// resample brings img to TargetSize x TargetSize. A grid already at target
// size passes through untouched.
func resample(img *image.Gray, k Kernel) *image.Gray {
	b := img.Bounds()
	if b.Dx() == TargetSize && b.Dy() == TargetSize {
		return img
	}
	var out *image.Gray
	switch k {
	case CatmullRom:
		out = image.NewGray(image.Rect(0, 0, TargetSize, TargetSize))
		xdraw.CatmullRom.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	default:
		out = toGray(resize.Resize(TargetSize, TargetSize, img, resize.Lanczos3))
	}
	return cropToTarget(out)
}

// cropToTarget crops from the origin when a resampler overshoots the
// target by a fencepost row or column.
func cropToTarget(img *image.Gray) *image.Gray {
	b := img.Bounds()
	if b.Dx() == TargetSize && b.Dy() == TargetSize {
		return img
	}
	w, h := b.Dx(), b.Dy()
	if w > TargetSize {
		w = TargetSize
	}
	if h > TargetSize {
		h = TargetSize
	}
	out := image.NewGray(image.Rect(0, 0, TargetSize, TargetSize))
	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], img.Pix[y*img.Stride:y*img.Stride+w])
	}
	return out
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

func flipHorizontal(img *image.Gray) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x := 0; x < w/2; x++ {
			row[x], row[w-1-x] = row[w-1-x], row[x]
		}
	}
}

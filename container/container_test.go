// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package container

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// gradient returns a w x h plane with distinct, position-dependent
// samples.
func gradient(w, h int, seed uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)*7 + seed
	}
	return img
}

func TestComposeInterleaves(t *testing.T) {
	r := gradient(4, 3, 1)
	g := gradient(4, 3, 2)
	b := gradient(4, 3, 3)
	c, err := Compose(r, g, b)
	if err != nil {
		t.Fatal(err)
	}
	if c.W != 4 || c.H != 3 || len(c.Pix) != 4*3*3 {
		t.Fatalf("%d x %d, %d bytes", c.W, c.H, len(c.Pix))
	}
	for i := 0; i < 4*3; i++ {
		if c.Pix[3*i] != r.Pix[i] || c.Pix[3*i+1] != g.Pix[i] || c.Pix[3*i+2] != b.Pix[i] {
			t.Fatalf("pixel %d interleaved wrong", i)
		}
	}
}

func TestComposeMismatch(t *testing.T) {
	if _, err := Compose(gradient(4, 4, 0), gradient(4, 3, 0), gradient(4, 4, 0)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatal(err)
	}
}

func TestPlaneRoundTrip(t *testing.T) {
	r := gradient(8, 8, 10)
	g := gradient(8, 8, 20)
	b := gradient(8, 8, 30)
	c, err := Compose(r, g, b)
	if err != nil {
		t.Fatal(err)
	}
	for n, want := range [][]byte{r.Pix, g.Pix, b.Pix} {
		if got := c.Plane(n); !bytes.Equal(got, want) {
			t.Fatalf("plane %d does not round-trip", n)
		}
	}
}

func TestWriteLayout(t *testing.T) {
	a, _ := Compose(gradient(4, 3, 1), gradient(4, 3, 2), gradient(4, 3, 3))
	b, _ := Compose(gradient(4, 3, 4), gradient(4, 3, 5), gradient(4, 3, 6))
	buf := &bytes.Buffer{}
	if err := Write(buf, testTime, a, b); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	if want := 1 + 19 + 2*(4+4*3*3); len(raw) != want {
		t.Fatalf("%d bytes, want %d", len(raw), want)
	}
	if raw[0] != 2 {
		t.Fatalf("version byte %d", raw[0])
	}
	if got := string(raw[1:20]); got != "2024-01-01 12:00:00" {
		t.Fatalf("timestamp %q", got)
	}
	// Little-endian uint16 dimensions.
	if raw[20] != 4 || raw[21] != 0 || raw[22] != 3 || raw[23] != 0 {
		t.Fatalf("dims %v", raw[20:24])
	}
	if !bytes.Equal(raw[24:24+36], a.Pix) {
		t.Fatal("first image payload")
	}
}

func TestReadRoundTrip(t *testing.T) {
	a, _ := Compose(gradient(6, 5, 1), gradient(6, 5, 2), gradient(6, 5, 3))
	b, _ := Compose(gradient(6, 5, 4), gradient(6, 5, 5), gradient(6, 5, 6))
	buf := &bytes.Buffer{}
	if err := Write(buf, testTime, a, b); err != nil {
		t.Fatal(err)
	}
	f, err := Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if f.Version != Version {
		t.Fatal(f.Version)
	}
	if !f.Time.Equal(testTime) {
		t.Fatal(f.Time)
	}
	for i, c := range []*Composite{a, b} {
		got := f.Images[i]
		if got.W != c.W || got.H != c.H || !bytes.Equal(got.Pix, c.Pix) {
			t.Fatalf("image %d does not round-trip", i)
		}
	}
}

func TestReadBadVersion(t *testing.T) {
	if _, err := Read(strings.NewReader("\x03garbage")); err == nil {
		t.Fatal("version 3 accepted")
	}
}

func TestBuildPartition(t *testing.T) {
	// Only the last plane carries data: both composites must be zero
	// except the second one's third channel.
	planes := make([]*image.Gray, 6)
	for i := range planes {
		planes[i] = image.NewGray(image.Rect(0, 0, 8, 8))
	}
	for i := range planes[5].Pix {
		planes[5].Pix[i] = 0xaa
	}
	a, b, err := Build(planes)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range a.Pix {
		if v != 0 {
			t.Fatal("first composite not zero")
		}
	}
	for n := 0; n < 3; n++ {
		plane := b.Plane(n)
		for i, v := range plane {
			if n == 2 && v != 0xaa {
				t.Fatalf("plane 2 sample %d: %d", i, v)
			}
			if n != 2 && v != 0 {
				t.Fatalf("plane %d sample %d: %d", n, i, v)
			}
		}
	}
}

func TestBuildWantsSix(t *testing.T) {
	if _, _, err := Build(make([]*image.Gray, 5)); err == nil {
		t.Fatal("5 planes accepted")
	}
}

func TestCanonicalSize(t *testing.T) {
	// Full-resolution artifact: 1 + 19 + 2*(4 + 2048*2048*3) bytes.
	mk := func() *Composite {
		return &Composite{W: 2048, H: 2048, Pix: make([]byte, 2048*2048*3)}
	}
	buf := &bytes.Buffer{}
	buf.Grow(26 << 20)
	if err := Write(buf, testTime, mk(), mk()); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 25165852 {
		t.Fatal(buf.Len())
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solar.dat")
	a, _ := Compose(gradient(4, 4, 1), gradient(4, 4, 2), gradient(4, 4, 3))
	b, _ := Compose(gradient(4, 4, 4), gradient(4, 4, 5), gradient(4, 4, 6))
	for i := 0; i < 2; i++ { // Second pass overwrites.
		if err := WriteFile(path, testTime, a, b); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ReadFile(path); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("%d entries, temp file left behind", len(entries))
	}
}

func TestWriteTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timestamp.txt")
	if err := WriteTimestamp(path, testTime); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2024-01-01 12:00:00" {
		t.Fatalf("%q", data)
	}
}

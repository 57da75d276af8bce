// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package container reads and writes the solar.dat binary container.
//
// Layout, little-endian, no padding:
//
//	offset 0   version        1 byte, constant 2
//	offset 1   timestamp      19 ASCII bytes "YYYY-MM-DD HH:MM:SS", UTC,
//	                          no terminator, no timezone suffix
//	offset 20  width0         uint16
//	offset 22  height0        uint16
//	offset 24  image0         width0*height0*3 bytes, interleaved RGB,
//	                          row-major
//	...        width1, height1, image1 idem
//
// The two RGB images are composites of three 8 bit channel planes each.
// The byte stream is a contract: consumers compare containers bit for
// bit, so any change here needs a version bump.
package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Version is the current container format version.
const Version = 2

// TimeLayout formats the timestamp header and the companion timestamp
// file.
const TimeLayout = "2006-01-02 15:04:05"

// timeLen is len of a TimeLayout-formatted timestamp.
const timeLen = 19

// ErrDimensionMismatch reports composite planes of unequal size. It means
// the normalizer broke its fixed-resolution contract, so it is fatal.
var ErrDimensionMismatch = errors.New("container: planes differ in size")

// Composite is one interleaved RGB image.
type Composite struct {
	W, H int
	Pix  []byte // 3*W*H bytes, R,G,B per pixel, row-major.
}

// Compose interleaves three 8 bit planes into one RGB composite. Byte
// 3*i+c of the output is sample i of plane c.
func Compose(r, g, b *image.Gray) (*Composite, error) {
	w, h := r.Bounds().Dx(), r.Bounds().Dy()
	if g.Bounds().Dx() != w || g.Bounds().Dy() != h ||
		b.Bounds().Dx() != w || b.Bounds().Dy() != h {
		return nil, ErrDimensionMismatch
	}
	c := &Composite{W: w, H: h, Pix: make([]byte, 3*w*h)}
	for _, p := range []struct {
		img *image.Gray
		off int
	}{{r, 0}, {g, 1}, {b, 2}} {
		i := p.off
		for y := 0; y < h; y++ {
			row := p.img.Pix[y*p.img.Stride : y*p.img.Stride+w]
			for _, v := range row {
				c.Pix[i] = v
				i += 3
			}
		}
	}
	return c, nil
}

// Plane de-interleaves one channel (0, 1 or 2) back out of the composite.
func (c *Composite) Plane(n int) []byte {
	out := make([]byte, c.W*c.H)
	for i := range out {
		out[i] = c.Pix[3*i+n]
	}
	return out
}

// Build partitions the six ordered channel planes into the two composites
// of the container: planes 0-2 and planes 3-5.
func Build(planes []*image.Gray) (*Composite, *Composite, error) {
	if len(planes) != 6 {
		return nil, nil, fmt.Errorf("container: want 6 planes, got %d", len(planes))
	}
	a, err := Compose(planes[0], planes[1], planes[2])
	if err != nil {
		return nil, nil, err
	}
	b, err := Compose(planes[3], planes[4], planes[5])
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// Write serializes the container.
func Write(w io.Writer, ts time.Time, a, b *Composite) error {
	bw := bufio.NewWriter(w)
	if err := bw.WriteByte(Version); err != nil {
		return err
	}
	if _, err := bw.WriteString(ts.UTC().Format(TimeLayout)); err != nil {
		return err
	}
	for _, c := range []*Composite{a, b} {
		if err := binary.Write(bw, binary.LittleEndian, uint16(c.W)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(c.H)); err != nil {
			return err
		}
		if _, err := bw.Write(c.Pix); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the container to path atomically: the bytes land in a
// temporary file in the same directory which is then renamed over path, so
// a reader never observes a partial artifact.
func WriteFile(path string, ts time.Time, a, b *Composite) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()
	if err = Write(f, ts, a, b); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteTimestamp writes the companion timestamp file, overwriting any
// previous one.
func WriteTimestamp(path string, ts time.Time) error {
	return os.WriteFile(path, []byte(ts.UTC().Format(TimeLayout)), 0644)
}

// File is a parsed container.
type File struct {
	Version byte
	Time    time.Time
	Images  [2]*Composite
}

// Read parses a container. It is the exact inverse of Write.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	f := &File{}
	var err error
	if f.Version, err = br.ReadByte(); err != nil {
		return nil, err
	}
	if f.Version != Version {
		return nil, fmt.Errorf("container: unsupported version %d", f.Version)
	}
	var tsb [timeLen]byte
	if _, err = io.ReadFull(br, tsb[:]); err != nil {
		return nil, err
	}
	if f.Time, err = time.ParseInLocation(TimeLayout, string(tsb[:]), time.UTC); err != nil {
		return nil, fmt.Errorf("container: bad timestamp: %w", err)
	}
	for i := range f.Images {
		var w, h uint16
		if err = binary.Read(br, binary.LittleEndian, &w); err != nil {
			return nil, err
		}
		if err = binary.Read(br, binary.LittleEndian, &h); err != nil {
			return nil, err
		}
		c := &Composite{W: int(w), H: int(h), Pix: make([]byte, 3*int(w)*int(h))}
		if _, err = io.ReadFull(br, c.Pix); err != nil {
			return nil, err
		}
		f.Images[i] = c
	}
	return f, nil
}

// ReadFile parses the container at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package jsoc queries the Stanford JSOC archive for near-real-time HMI
// magnetograms.
//
// References:
// jsoc_info web API:
//   http://jsoc.stanford.edu/ajax/RecordSetHelp.html
// hmi.m_720s_nrt series:
//   http://jsoc.stanford.edu/ajax/lookdata.html
package jsoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/heliopack/go-helio/helio"
)

const (
	// DefaultBaseURL is the public JSOC endpoint.
	DefaultBaseURL = "http://jsoc.stanford.edu"

	// DefaultSeries is the 720s near-real-time line-of-sight magnetogram
	// series.
	DefaultSeries = "hmi.m_720s_nrt"

	// window is how far back to look for the latest record. NRT records
	// can lag by a few hours; a day is comfortably enough.
	window = 24 * time.Hour
)

// Client talks to a JSOC instance. The zero value uses DefaultBaseURL,
// DefaultSeries and http.DefaultClient.
type Client struct {
	BaseURL string
	Series  string
	HTTP    *http.Client
}

// rs_list response. Only the parts we consume.
type rsList struct {
	Status   int `json:"status"`
	Count    int `json:"count"`
	Keywords []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"keywords"`
	Segments []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"segments"`
}

// LatestMagnetogram queries the trailing 24 h of the series, downloads the
// most recent magnetogram segment and decodes it. The returned time is the
// record's T_REC observation time.
func (c *Client) LatestMagnetogram(ctx context.Context) (*helio.Grid, time.Time, error) {
	now := time.Now().UTC()
	list, err := c.list(ctx, now.Add(-window), now)
	if err != nil {
		return nil, time.Time{}, err
	}
	trec, seg, err := latestRecord(list)
	if err != nil {
		return nil, time.Time{}, err
	}
	at, err := ParseTRec(trec)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("jsoc: bad T_REC %q: %w", trec, err)
	}
	grid, err := c.fetchFITS(ctx, seg)
	if err != nil {
		return nil, time.Time{}, err
	}
	return grid, at, nil
}

func (c *Client) list(ctx context.Context, from, to time.Time) (*rsList, error) {
	const tai = "2006.01.02_15:04:05_TAI"
	ds := fmt.Sprintf("%s[%s-%s]", c.series(), from.Format(tai), to.Format(tai))
	q := url.Values{
		"op":  {"rs_list"},
		"ds":  {ds},
		"key": {"T_REC"},
		"seg": {"magnetogram"},
	}
	u := c.baseURL() + "/cgi-bin/ajax/jsoc_info?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("jsoc: query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jsoc: query: HTTP %s", resp.Status)
	}
	list := &rsList{}
	if err := json.NewDecoder(resp.Body).Decode(list); err != nil {
		return nil, fmt.Errorf("jsoc: query: %w", err)
	}
	if list.Status != 0 {
		return nil, fmt.Errorf("jsoc: query status %d", list.Status)
	}
	return list, nil
}

// latestRecord picks the last (most recent) record of the response.
func latestRecord(list *rsList) (trec, segment string, err error) {
	for _, k := range list.Keywords {
		if k.Name == "T_REC" && len(k.Values) > 0 {
			trec = k.Values[len(k.Values)-1]
		}
	}
	for _, s := range list.Segments {
		if s.Name == "magnetogram" && len(s.Values) > 0 {
			segment = s.Values[len(s.Values)-1]
		}
	}
	if trec == "" || segment == "" {
		return "", "", fmt.Errorf("jsoc: no records in window")
	}
	return trec, segment, nil
}

// ParseTRec parses a JSOC T_REC value such as
// "2024.01.01_11:48:00_TAI", with or without fractional seconds. The
// result is UTC; the few dozen seconds of TAI-UTC offset are irrelevant at
// the cadence of this series.
func ParseTRec(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "_TAI")
	var err error
	for _, layout := range []string{"2006.01.02_15:04:05.999", "2006.01.02_15:04:05"} {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// fetchFITS downloads a segment path and decodes the first image HDU
// carrying data.
func (c *Client) fetchFITS(ctx context.Context, segment string) (*helio.Grid, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+segment, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("jsoc: fetch %s: %w", segment, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jsoc: fetch %s: HTTP %s", segment, resp.Status)
	}
	return DecodeFITS(resp.Body)
}

// DecodeFITS reads the first non-empty 2D image HDU into a grid. BSCALE
// and BZERO are applied when present: HMI stores gauss as scaled
// integers.
func DecodeFITS(r io.Reader) (*helio.Grid, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("jsoc: fits: %w", err)
	}
	f, err := fitsio.Open(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("jsoc: fits: %w", err)
	}
	defer f.Close()
	for _, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		hdr := img.Header()
		axes := hdr.Axes()
		if len(axes) != 2 || axes[0] <= 0 || axes[1] <= 0 {
			continue
		}
		return readImage(img, axes[0], axes[1])
	}
	return nil, fmt.Errorf("jsoc: fits: no 2D image HDU")
}

func readImage(img fitsio.Image, w, h int) (*helio.Grid, error) {
	hdr := img.Header()
	// fitsio resizes the destination slice in place, so it must be
	// allocated to the full sample count up front.
	var pix []float64
	switch hdr.Bitpix() {
	case 8:
		raw := make([]int8, w*h)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		pix = toFloat64(raw)
	case 16:
		raw := make([]int16, w*h)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		pix = toFloat64(raw)
	case 32:
		raw := make([]int32, w*h)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		pix = toFloat64(raw)
	case 64:
		raw := make([]int64, w*h)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		pix = toFloat64(raw)
	case -32:
		raw := make([]float32, w*h)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		pix = toFloat64(raw)
	case -64:
		pix = make([]float64, w*h)
		if err := img.Read(&pix); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("jsoc: fits: unsupported BITPIX %d", hdr.Bitpix())
	}
	if len(pix) != w*h {
		return nil, fmt.Errorf("jsoc: fits: %d samples for %dx%d image", len(pix), w, h)
	}
	grid := &helio.Grid{Pix: pix, W: w, H: h}
	applyScaling(hdr, grid)
	return grid, nil
}

func toFloat64[T int8 | int16 | int32 | int64 | float32](raw []T) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out
}

// applyScaling applies BSCALE/BZERO if the header carries them.
func applyScaling(hdr *fitsio.Header, g *helio.Grid) {
	scale, hasScale := cardFloat(hdr, "BSCALE")
	zero, hasZero := cardFloat(hdr, "BZERO")
	if !hasScale && !hasZero {
		return
	}
	if !hasScale {
		scale = 1
	}
	for i, v := range g.Pix {
		g.Pix[i] = v*scale + zero
	}
}

func cardFloat(hdr *fitsio.Header, name string) (float64, bool) {
	card := hdr.Get(name)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) series() string {
	if c.Series != "" {
		return c.Series
	}
	return DefaultSeries
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package helioviewer fetches AIA imagery from the Helioviewer API.
//
// The archive is asked for the image closest to a requested instant; the
// answer carries the actual observation time, which can be off by a few
// minutes at the lower cadences.
//
// Reference: https://api.helioviewer.org/docs/v2/
package helioviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/heliopack/go-helio/helio"
)

// DefaultBaseURL is the public Helioviewer endpoint.
const DefaultBaseURL = "https://api.helioviewer.org"

// SourceIDs maps AIA channels to Helioviewer data source identifiers.
var SourceIDs = map[helio.Channel]int{
	helio.AIA131:  9,
	helio.AIA171:  10,
	helio.AIA193:  11,
	helio.AIA304:  13,
	helio.AIA1700: 16,
}

// Client talks to a Helioviewer instance. The zero value uses
// DefaultBaseURL and http.DefaultClient.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// closestImage is the getClosestImage response. Only the parts we consume.
type closestImage struct {
	ID   json.Number `json:"id"`
	Date string      `json:"date"` // "2024-01-01 12:00:00"
}

// Image fetches the channel image closest to ts and decodes it to a
// grayscale grid with samples in [0, 255]. The returned time is the actual
// observation time reported by the archive.
func (c *Client) Image(ctx context.Context, ch helio.Channel, ts time.Time) (*helio.Grid, time.Time, error) {
	id, ok := SourceIDs[ch]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("helioviewer: no source id for channel %s", ch)
	}
	meta, err := c.closest(ctx, id, ts)
	if err != nil {
		return nil, time.Time{}, err
	}
	at, err := time.ParseInLocation("2006-01-02 15:04:05", meta.Date, time.UTC)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("helioviewer: bad date %q: %w", meta.Date, err)
	}
	grid, err := c.download(ctx, meta.ID.String())
	if err != nil {
		return nil, time.Time{}, err
	}
	return grid, at, nil
}

func (c *Client) closest(ctx context.Context, sourceID int, ts time.Time) (*closestImage, error) {
	q := url.Values{
		"date":     {ts.UTC().Format("2006-01-02T15:04:05Z")},
		"sourceId": {strconv.Itoa(sourceID)},
	}
	u := c.baseURL() + "/v2/getClosestImage/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("helioviewer: closest image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helioviewer: closest image: HTTP %s", resp.Status)
	}
	meta := &closestImage{}
	if err := json.NewDecoder(resp.Body).Decode(meta); err != nil {
		return nil, fmt.Errorf("helioviewer: closest image: %w", err)
	}
	if meta.ID.String() == "" {
		return nil, fmt.Errorf("helioviewer: closest image: empty id")
	}
	return meta, nil
}

func (c *Client) download(ctx context.Context, id string) (*helio.Grid, error) {
	q := url.Values{
		"id":    {id},
		"scale": {"1"},
	}
	u := c.baseURL() + "/v2/downloadImage/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("helioviewer: download %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helioviewer: download %s: HTTP %s", id, resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("helioviewer: download %s: %w", id, err)
	}
	return ToGrid(img), nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// ToGrid converts a decoded image to a grayscale sample grid. Color inputs
// are reduced with the standard luma weights.
func ToGrid(img image.Image) *helio.Grid {
	b := img.Bounds()
	g := helio.NewGrid(b.Dx(), b.Dy())
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
			for x, v := range row {
				g.Set(x, y, float64(v))
			}
		}
		return g
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// 16 bit premultiplied channels; same weights as color.GrayModel.
			lum := (19595*r + 38470*gg + 7471*bb + 1<<15) >> 24
			g.Set(x, y, float64(lum))
		}
	}
	return g
}

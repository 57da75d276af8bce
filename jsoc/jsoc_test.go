// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package jsoc

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTRec(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want time.Time
	}{
		{"2024.01.01_11:48:00_TAI", time.Date(2024, 1, 1, 11, 48, 0, 0, time.UTC)},
		{"2024.01.01_11:48:00.500_TAI", time.Date(2024, 1, 1, 11, 48, 0, 500e6, time.UTC)},
		{"2024.01.01_11:48:00", time.Date(2024, 1, 1, 11, 48, 0, 0, time.UTC)},
	} {
		got, err := ParseTRec(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, got.Equal(tc.want), "%s: got %s", tc.in, got)
	}
	_, err := ParseTRec("garbage")
	assert.Error(t, err)
}

// card renders one 80-byte FITS header card.
func card(name, value string) string {
	return fmt.Sprintf("%-80s", fmt.Sprintf("%-8s= %20s", name, value))
}

// testFITS builds a minimal primary-HDU FITS file: 2x2 int16 with
// BSCALE/BZERO, the same shape JSOC serves magnetograms in.
func testFITS(t *testing.T) []byte {
	t.Helper()
	var hdr strings.Builder
	hdr.WriteString(card("SIMPLE", "T"))
	hdr.WriteString(card("BITPIX", "16"))
	hdr.WriteString(card("NAXIS", "2"))
	hdr.WriteString(card("NAXIS1", "2"))
	hdr.WriteString(card("NAXIS2", "2"))
	hdr.WriteString(card("BSCALE", "0.1"))
	hdr.WriteString(card("BZERO", "5.0"))
	hdr.WriteString(fmt.Sprintf("%-80s", "END"))

	buf := &bytes.Buffer{}
	buf.WriteString(hdr.String())
	buf.WriteString(strings.Repeat(" ", 2880-hdr.Len()))
	require.NoError(t, binary.Write(buf, binary.BigEndian, []int16{10, 20, -10, 0}))
	buf.Write(make([]byte, 2880-8))
	return buf.Bytes()
}

func TestDecodeFITS(t *testing.T) {
	grid, err := DecodeFITS(bytes.NewReader(testFITS(t)))
	require.NoError(t, err)
	assert.Equal(t, 2, grid.W)
	assert.Equal(t, 2, grid.H)
	// Raw values scaled by BSCALE/BZERO.
	assert.Equal(t, []float64{6, 7, 4, 5}, grid.Pix)
}

func TestDecodeFITSFloat(t *testing.T) {
	var hdr strings.Builder
	hdr.WriteString(card("SIMPLE", "T"))
	hdr.WriteString(card("BITPIX", "-32"))
	hdr.WriteString(card("NAXIS", "2"))
	hdr.WriteString(card("NAXIS1", "2"))
	hdr.WriteString(card("NAXIS2", "2"))
	hdr.WriteString(fmt.Sprintf("%-80s", "END"))

	buf := &bytes.Buffer{}
	buf.WriteString(hdr.String())
	buf.WriteString(strings.Repeat(" ", 2880-hdr.Len()))
	require.NoError(t, binary.Write(buf, binary.BigEndian, []float32{1.5, 2.5, -1, 0}))
	buf.Write(make([]byte, 2880-16))

	grid, err := DecodeFITS(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, -1, 0}, grid.Pix)
}

func TestLatestMagnetogram(t *testing.T) {
	fits := testFITS(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/ajax/jsoc_info":
			q := r.URL.Query()
			assert.Equal(t, "rs_list", q.Get("op"))
			assert.Equal(t, "T_REC", q.Get("key"))
			assert.Equal(t, "magnetogram", q.Get("seg"))
			ds := q.Get("ds")
			assert.True(t, strings.HasPrefix(ds, "hmi.m_720s_nrt["), ds)
			assert.True(t, strings.HasSuffix(ds, "_TAI]"), ds)
			fmt.Fprint(w, `{
				"status": 0,
				"count": 2,
				"keywords": [{"name": "T_REC", "values": ["2024.01.01_11:36:00_TAI", "2024.01.01_11:48:00_TAI"]}],
				"segments": [{"name": "magnetogram", "values": ["/SUM1/old/magnetogram.fits", "/SUM1/new/magnetogram.fits"]}]
			}`)
		case "/SUM1/new/magnetogram.fits":
			w.Write(fits)
		default:
			t.Errorf("unexpected request %s", r.URL)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	grid, at, err := c.LatestMagnetogram(context.Background())
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2024, 1, 1, 11, 48, 0, 0, time.UTC)), "at %s", at)
	assert.Equal(t, []float64{6, 7, 4, 5}, grid.Pix)
}

func TestLatestMagnetogramEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 0, "count": 0, "keywords": [], "segments": []}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	_, _, err := c.LatestMagnetogram(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no records")
}

func TestLatestMagnetogramStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 1}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	_, _, err := c.LatestMagnetogram(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 1")
}

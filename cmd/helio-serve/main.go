// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// helio-serve serves the helio-grab output directory over HTTP and
// streams freshly written composites to connected browsers.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maruel/interrupt"
	"github.com/maruel/serve-dir/loghttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"

	"github.com/heliopack/go-helio/container"
)

const containerName = "solar.dat"

// server holds the most recent container, re-encoded for the browser.
type server struct {
	cond   sync.Cond
	seq    int      // Bumped on every new container.
	frames [][]byte // "I"-prefixed base64 PNG per composite, then one "M"-prefixed metadata frame.
}

func newServer() *server {
	return &server{cond: *sync.NewCond(&sync.Mutex{})}
}

// metadata is the "M" frame payload.
type metadata struct {
	Time    time.Time `json:"time"`
	Version byte      `json:"version"`
}

// set swaps in a new container and wakes every stream.
func (s *server) set(f *container.File) error {
	frames := make([][]byte, 0, len(f.Images)+1)
	for _, c := range f.Images {
		buf := &bytes.Buffer{}
		// Frame I is for Image.
		buf.WriteByte('I')
		enc := base64.NewEncoder(base64.StdEncoding, buf)
		if err := png.Encode(enc, compositeImage(c)); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		frames = append(frames, buf.Bytes())
	}
	buf := &bytes.Buffer{}
	// Frame M is for Metadata.
	buf.WriteByte('M')
	if err := json.NewEncoder(buf).Encode(&metadata{Time: f.Time, Version: f.Version}); err != nil {
		return err
	}
	frames = append(frames, buf.Bytes())

	s.cond.L.Lock()
	s.frames = frames
	s.seq++
	s.cond.L.Unlock()
	s.cond.Broadcast()
	return nil
}

// stream pushes the current composites to one websocket client, then
// blocks for updates.
func (s *server) stream(ws *websocket.Conn) {
	defer ws.Close()
	sent := -1
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	for !interrupt.IsSet() {
		for sent == s.seq || s.seq == 0 {
			s.cond.Wait()
			if interrupt.IsSet() {
				return
			}
		}
		sent = s.seq
		frames := s.frames
		s.cond.L.Unlock()
		// Do the actual I/O without the lock.
		var err error
		for _, f := range frames {
			if _, err = ws.Write(f); err != nil {
				break
			}
		}
		s.cond.L.Lock()
		if err != nil {
			log.Debug().Err(err).Msg("websocket closed")
			return
		}
	}
}

// compositeImage expands interleaved RGB to an image the png encoder
// accepts.
func compositeImage(c *container.Composite) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.W, c.H))
	for i := 0; i < c.W*c.H; i++ {
		img.Pix[4*i+0] = c.Pix[3*i+0]
		img.Pix[4*i+1] = c.Pix[3*i+1]
		img.Pix[4*i+2] = c.Pix[3*i+2]
		img.Pix[4*i+3] = 0xff
	}
	return img
}

const rootHTML = `<html>
<head>
<title>helio-serve</title>
<script>
var ws = new WebSocket("ws://" + location.host + "/stream");
ws.onmessage = function(e) {
	e.data.slice(0, 1).text().then(function(kind) {
		if (kind != "I") { return; }
		e.data.slice(1).text().then(function(b64) {
			document.getElementById("composite").src = "data:image/png;base64," + b64;
		});
	});
};
</script>
</head>
<body>
<img id="composite" style="width: 512px; height: auto;"></img>
<p><a href="/data/">browse raw artifacts</a></p>
</body>
</html>`

func (s *server) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, rootHTML)
}

func mainImpl() error {
	port := flag.Int("port", 8010, "http port to listen on")
	root := flag.String("root", ".", "directory holding solar.dat")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	interrupt.HandleCtrlC()

	s := newServer()
	path := filepath.Join(*root, containerName)
	if f, err := container.ReadFile(path); err == nil {
		if err := s.set(f); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("existing container unreadable")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.root)
	mux.Handle("/stream", websocket.Handler(s.stream))
	mux.Handle("/data/", http.StripPrefix("/data/", http.FileServer(http.Dir(*root))))

	go func() {
		log.Info().Int("port", *port).Msg("listening")
		err := http.ListenAndServe(fmt.Sprintf(":%d", *port), &loghttp.Handler{Handler: mux})
		log.Error().Err(err).Msg("server stopped")
	}()
	go func() {
		<-interrupt.Channel
		s.cond.Broadcast()
	}()

	return watchContainer(path, s)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nhelio-serve: %s.\n", err)
		os.Exit(1)
	}
}

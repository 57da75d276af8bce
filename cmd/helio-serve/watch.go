// Copyright 2025 The go-helio Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"path/filepath"

	"github.com/maruel/interrupt"
	"github.com/rs/zerolog/log"
	fsnotify "gopkg.in/fsnotify.v1"

	"github.com/heliopack/go-helio/container"
)

// watchContainer reloads the container whenever helio-grab renames a new
// one into place. The directory is watched, not the file: the atomic
// rename replaces the inode.
func watchContainer(path string, s *server) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	for {
		select {
		case <-interrupt.Channel:
			return nil
		case err = <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if filepath.Base(ev.Name) != containerName {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			f, err := container.ReadFile(path)
			if err != nil {
				// A partial read can only happen if the writer is not using
				// atomic renames; log and wait for the next event.
				log.Warn().Err(err).Msg("container unreadable")
				continue
			}
			if err := s.set(f); err != nil {
				return err
			}
			log.Info().Time("observed", f.Time).Msg("new container")
		}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for routerchat.
package storage

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// STORAGE WATCHER
// =============================================================================

// Watcher notifies a callback when the conversation collection file is
// rewritten by another process. This is notification only: the callback is
// expected to reload via LoadConversations, and no merging is attempted
// (last writer wins at blob granularity).
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching the store's base directory. onChange runs on
// the watcher goroutine each time the collection file is written, created,
// or renamed into place.
func NewWatcher(store *ConversationStore, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: atomic writes replace the file
	// by rename, which drops a per-file watch.
	if err := fw.Add(store.BaseDir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		done:    make(chan struct{}),
	}

	target := filepath.Base(store.ConversationsPath())
	go w.loop(target, onChange)

	return w, nil
}

// loop dispatches filesystem events until Close.
func (w *Watcher) loop(target string, onChange func()) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("STORAGE: watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

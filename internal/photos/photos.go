// Package photos resolves contestant identities to display assets.
package photos

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Map holds the identity→asset mapping loaded from a JSON file, plus the
// default asset used when an identity has no dedicated photo. The mapping
// is purely presentational and never affects ranking or merging.
type Map struct {
	path        string
	basePath    string
	defaultFile string
	log         *zap.Logger

	mu     sync.RWMutex
	assets map[string]string
}

// New builds a Map and loads the mapping file when path is non-empty. A
// missing or malformed file is not fatal: resolution degrades to the
// default asset.
func New(path, basePath, defaultFile string, log *zap.Logger) *Map {
	m := &Map{
		path:        path,
		basePath:    basePath,
		defaultFile: defaultFile,
		log:         log,
		assets:      map[string]string{},
	}
	if path != "" {
		if err := m.Reload(); err != nil {
			log.Warn("photo map load failed", zap.String("path", path), zap.Error(err))
		}
	}
	return m
}

// Resolve looks up the entry's id, then its display name. Unmatched
// identities get the default asset; with no base path and no default the
// reference is empty.
func (m *Map) Resolve(id, name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := id
	if key == "" {
		key = name
	}
	cand := m.assets[key]
	if cand == "" {
		cand = m.assets[name]
	}
	if cand == "" {
		cand = m.assets[id]
	}
	if cand != "" {
		if m.basePath != "" {
			return filepath.Join(m.basePath, cand)
		}
		return cand
	}
	if m.basePath != "" && m.defaultFile != "" {
		return filepath.Join(m.basePath, m.defaultFile)
	}
	return m.defaultFile
}

// Reload re-reads the mapping file, replacing the mapping atomically.
func (m *Map) Reload() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	assets := map[string]string{}
	if err := json.Unmarshal(raw, &assets); err != nil {
		return err
	}
	m.mu.Lock()
	m.assets = assets
	m.mu.Unlock()
	return nil
}

// Watch reloads the mapping whenever the file changes on disk, until ctx
// is cancelled. Editors replace files rather than writing in place, so the
// watch covers the parent directory and filters on the file name.
func (m *Map) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return err
	}
	target := filepath.Clean(m.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := m.Reload(); err != nil {
				m.log.Warn("photo map reload failed", zap.Error(err))
				continue
			}
			m.log.Info("photo map reloaded", zap.String("path", m.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("photo map watcher", zap.Error(err))
		}
	}
}

// Package tempfiles tracks per-tab temporary files such as thread snapshots.
package tempfiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// Registry maps tabs to the temp files created for them.
type Registry struct {
	dir   string
	mu    sync.Mutex
	paths map[schema.TabID][]string
}

// New returns a registry rooted at dir.
func New(dir string) *Registry {
	return &Registry{dir: dir, paths: make(map[schema.TabID][]string)}
}

// Dir returns the directory temp files are written to.
func (r *Registry) Dir() string {
	return r.dir
}

// Write stores data in a new temp file owned by tabID and returns its path.
func (r *Registry) Write(tabID schema.TabID, pattern string, data []byte) (string, error) {
	if err := schema.ValidateTabID(tabID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", err
	}
	if pattern == "" {
		pattern = "tab-*"
	}
	file, err := os.CreateTemp(r.dir, pattern)
	if err != nil {
		return "", err
	}
	path := file.Name()
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	r.mu.Lock()
	r.paths[tabID] = append(r.paths[tabID], path)
	r.mu.Unlock()
	return path, nil
}

// Paths returns the temp files currently registered for tabID.
func (r *Registry) Paths(tabID schema.TabID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paths[tabID]))
	copy(out, r.paths[tabID])
	return out
}

// Cleanup deletes every temp file of tabID. Deletion failures are logged and
// do not stop the remaining deletions. Calling it again is a no-op.
func (r *Registry) Cleanup(ctx context.Context, tabID schema.TabID) error {
	r.mu.Lock()
	paths := r.paths[tabID]
	delete(r.paths, tabID)
	r.mu.Unlock()

	log := pslog.Ctx(ctx).With("tab", tabID)
	var errs []error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("tempfiles remove failed", "path", path, "err", err)
			errs = append(errs, fmt.Errorf("remove %s: %w", filepath.Base(path), err))
			continue
		}
		log.Trace("tempfiles removed", "path", path)
	}
	return errors.Join(errs...)
}

// CleanupAll removes every registered temp file.
func (r *Registry) CleanupAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]schema.TabID, 0, len(r.paths))
	for id := range r.paths {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	var errs []error
	for _, id := range ids {
		if err := r.Cleanup(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

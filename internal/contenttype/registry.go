package contenttype

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/entitylist/entitylist/internal/metrics"
)

// Registry holds the current catalogue and swaps it when the backing file
// changes. Readers always see a complete catalogue.
type Registry struct {
	mu      sync.RWMutex
	path    string
	catalog *Catalog
	logger  *slog.Logger
}

// NewRegistry loads path. An empty path yields a registry with an empty
// catalogue that never reloads.
func NewRegistry(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{path: path, catalog: Empty(), logger: logger}
	if path == "" {
		return r, nil
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStaticRegistry wraps a fixed catalogue.
func NewStaticRegistry(c *Catalog) *Registry {
	if c == nil {
		c = Empty()
	}
	return &Registry{catalog: c, logger: slog.Default()}
}

// Current returns the active catalogue.
func (r *Registry) Current() *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}

func (r *Registry) Get(id string) (ContentType, bool) {
	return r.Current().Get(id)
}

func (r *Registry) DisplayField(contentTypeID string) (string, bool) {
	return r.Current().DisplayField(contentTypeID)
}

func (r *Registry) HasField(contentTypeID, fieldID string) bool {
	return r.Current().HasField(contentTypeID, fieldID)
}

// Reload re-reads the file. On error the previous catalogue stays active.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}
	c, err := Load(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.catalog = c
	r.mu.Unlock()
	return nil
}

// Watch reloads the catalogue whenever its file is written, created or
// renamed into place, until ctx is done. The parent directory is watched so
// editors that replace the file atomically are picked up.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create content types watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if err := r.Reload(); err != nil {
				metrics.ContentTypeReloadsTotal.WithLabelValues("error").Inc()
				r.logger.Warn("content types reload failed; keeping previous catalogue", "path", r.path, "err", err)
				continue
			}
			metrics.ContentTypeReloadsTotal.WithLabelValues("success").Inc()
			r.logger.Info("content types reloaded", "path", r.path, "content_types", r.Current().Len())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("content types watcher error", "err", err)
		}
	}
}

// Package controller composes the persisted view, the loader and the
// selection behind the operations a list surface calls.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/loader"
	"github.com/entitylist/entitylist/internal/metrics"
	"github.com/entitylist/entitylist/internal/persist"
	"github.com/entitylist/entitylist/internal/selection"
	"github.com/entitylist/entitylist/internal/view"
)

var ErrEmptySelection = errors.New("no entities selected")

// BulkActor applies an action such as publish or archive to a selection.
type BulkActor interface {
	Apply(ctx context.Context, action string, selected []entity.Entity) error
}

// State is a snapshot of the list.
type State struct {
	Entities []entity.Entity `json:"items"`
	Total    int             `json:"total"`
	HasMore  bool            `json:"hasMore"`
	Page     int             `json:"page"`
	PerPage  int             `json:"perPage"`
	Err      error           `json:"-"`
	Loading  bool            `json:"loading"`
	View     view.View       `json:"view"`
}

type Controller struct {
	persistor *persist.Persistor
	loader    *loader.Loader
	selection *selection.Engine
	logger    *slog.Logger
	baseCtx   context.Context

	mu       sync.Mutex
	entities []entity.Entity
	total    int
	hasMore  bool
	page     int
	err      error
	loading  bool
}

type Option func(*Controller)

func WithSelection(e *selection.Engine) Option {
	return func(c *Controller) {
		if e != nil {
			c.selection = e
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseContext sets the context debounced commits load with.
func WithBaseContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

func New(p *persist.Persistor, l *loader.Loader, opts ...Option) *Controller {
	c := &Controller{
		persistor: p,
		loader:    l,
		selection: selection.New(),
		logger:    slog.Default(),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Persistor() *persist.Persistor {
	return c.persistor
}

func (c *Controller) Selection() *selection.Engine {
	return c.selection
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Entities: append([]entity.Entity(nil), c.entities...),
		Total:    c.total,
		HasMore:  c.hasMore,
		Page:     c.page,
		PerPage:  c.loader.Paginator().PerPage(),
		Err:      c.err,
		Loading:  c.loading,
		View:     c.persistor.Read(),
	}
}

// UpdateEntities reloads the first page for the current view. A rejected
// query resets the filters and content type to their defaults and is fetched
// once more.
func (c *Controller) UpdateEntities(ctx context.Context) error {
	return c.reload(ctx, c.persistor.Read(), loader.Options{Reset: true})
}

// GoToPage loads a zero-based page for the current view.
func (c *Controller) GoToPage(ctx context.Context, page int) error {
	if page < 0 {
		page = 0
	}
	return c.reload(ctx, c.persistor.Read(), loader.Options{Reset: true, Page: page})
}

// LoadMore appends the next page.
func (c *Controller) LoadMore(ctx context.Context) error {
	v := c.persistor.Read()
	c.setLoading(true)
	resp, err := c.loader.Load(ctx, loader.Options{More: true, Search: v})
	if resp.Stale {
		return nil
	}
	if err != nil {
		c.fail(resp.Token, err)
		return fmt.Errorf("load more: %w", err)
	}
	c.publish(resp, true)
	return nil
}

// Commit reloads after a view change. It matches search.CommitFunc.
func (c *Controller) Commit(v view.View) {
	if err := c.reload(c.baseCtx, v, loader.Options{Reset: true}); err != nil {
		c.logger.Warn("commit view failed", "entity_type", c.loader.EntityType(), "err", err)
	}
}

// RunBulkAction hands the selection to actor, then clears it and reloads.
func (c *Controller) RunBulkAction(ctx context.Context, action string, actor BulkActor) error {
	selected := c.selection.Selected()
	if len(selected) == 0 {
		return ErrEmptySelection
	}
	if err := actor.Apply(ctx, action, selected); err != nil {
		metrics.BulkActionsTotal.WithLabelValues(action, "error").Inc()
		return fmt.Errorf("bulk action %q: %w", action, err)
	}
	metrics.BulkActionsTotal.WithLabelValues(action, "success").Inc()
	c.logger.Info("bulk action applied", "action", action, "entities", len(selected))
	c.selection.Clear()
	return c.UpdateEntities(ctx)
}

func (c *Controller) reload(ctx context.Context, v view.View, opts loader.Options) error {
	opts.Search = v
	c.setLoading(true)
	resp, err := c.loader.Load(ctx, opts)
	if resp.Stale {
		return nil
	}
	if err != nil && entity.Classify(err) == entity.KindQueryRejected {
		c.logger.Warn("query rejected; resetting filters",
			"entity_type", c.loader.EntityType(), "filters", len(v.SearchFilters), "content_type", v.ContentTypeID, "err", err)
		defaults := c.persistor.Defaults()
		v.SearchFilters = defaults.SearchFilters
		v.ContentTypeID = defaults.ContentTypeID
		c.persistor.Save(v)
		opts.Search = v
		resp, err = c.loader.Load(ctx, opts)
		if resp.Stale {
			return nil
		}
	}
	if err != nil {
		c.fail(resp.Token, err)
		return fmt.Errorf("load entities: %w", err)
	}
	c.publish(resp, false)
	return nil
}

// publish writes a load result into the list state unless a later load has
// started since. The check and the write share c.mu, so results land in the
// order their loads started.
func (c *Controller) publish(resp loader.Response, appendData bool) {
	c.mu.Lock()
	if !c.loader.IsLatest(resp.Token) {
		c.mu.Unlock()
		c.logger.Debug("dropping superseded load result", "entity_type", c.loader.EntityType(), "token", resp.Token)
		return
	}
	if appendData {
		c.entities = append(c.entities, resp.Data...)
	} else {
		c.entities = resp.Data
	}
	c.total = resp.Total
	c.hasMore = resp.HasMore
	c.page = resp.Page
	c.err = nil
	c.loading = false
	entities := append([]entity.Entity(nil), c.entities...)
	// selection is reconciled under c.mu so it follows the same order
	c.selection.SetEntities(entities)
	c.mu.Unlock()
}

func (c *Controller) setLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

func (c *Controller) fail(token uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loader.IsLatest(token) {
		return
	}
	c.err = err
	c.loading = false
}

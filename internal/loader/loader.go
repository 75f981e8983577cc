// Package loader drives paginated fetches against a collection with
// last-write-wins ordering and batch shrinking on oversized responses.
package loader

import (
	"context"
	"log/slog"
	"math/bits"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/metrics"
	"github.com/entitylist/entitylist/internal/paginate"
	"github.com/entitylist/entitylist/internal/query"
	"github.com/entitylist/entitylist/internal/view"
)

const (
	DefaultPageSize    = 40
	DefaultMinPageSize = 1

	// DisplayFieldOrder orders by the display field of the selected content type.
	DisplayFieldOrder = "displayField"

	ParamSkip        = "skip"
	ParamLimit       = "limit"
	ParamOrder       = "order"
	ParamContentType = "content_type"
	ParamQuery       = "query"
	ParamFileExists  = "fields.file[exists]"
)

// ContentTypes resolves content type fields for ordering.
type ContentTypes interface {
	DisplayField(contentTypeID string) (string, bool)
	HasField(contentTypeID, fieldID string) bool
}

// Options controls one Load call. Page selects a zero-based page and only
// applies together with Reset.
type Options struct {
	Reset    bool
	More     bool
	Retry    bool
	Search   view.View
	PageSize int
	Page     int
}

// Response is the outcome of a Load call. A stale response carries no data and
// must be ignored by the caller. Token identifies the call; callers that
// publish the result later check it with IsLatest under their own lock.
type Response struct {
	Data    []entity.Entity
	HasMore bool
	Total   int
	Page    int
	Stale   bool
	Token   uint64
}

type Loader struct {
	fetch           entity.FetchFunc
	entityType      string
	defaultPageSize int
	minPageSize     int
	contentTypes    ContentTypes
	logger          *slog.Logger
	metrics         metrics.Recorder

	token     atomic.Uint64
	paginator *paginate.Paginator

	mu   sync.Mutex
	err  error
	seen map[string]struct{}
}

type Option func(*Loader)

func WithEntityType(entityType string) Option {
	return func(l *Loader) {
		l.entityType = entityType
	}
}

func WithPageSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.defaultPageSize = n
		}
	}
}

func WithMinPageSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.minPageSize = n
		}
	}
}

func WithContentTypes(ct ContentTypes) Option {
	return func(l *Loader) {
		l.contentTypes = ct
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(l *Loader) {
		if r != nil {
			l.metrics = r
		}
	}
}

func New(fetch entity.FetchFunc, opts ...Option) *Loader {
	l := &Loader{
		fetch:           fetch,
		entityType:      entity.TypeEntry,
		defaultPageSize: DefaultPageSize,
		minPageSize:     DefaultMinPageSize,
		logger:          slog.Default(),
		metrics:         metrics.Prometheus{},
		seen:            make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.minPageSize > l.defaultPageSize {
		l.minPageSize = l.defaultPageSize
	}
	l.paginator = paginate.New(l.defaultPageSize)
	return l
}

func (l *Loader) Paginator() *paginate.Paginator {
	return l.paginator
}

func (l *Loader) EntityType() string {
	return l.entityType
}

// Err returns the error of the last failed load, cleared by the next success.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// IsLatest reports whether no Load call started after the one that returned
// token.
func (l *Loader) IsLatest(token uint64) bool {
	return l.token.Load() == token
}

// Reset forgets seen ids, the stored error and the pagination state.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.err = nil
	l.seen = make(map[string]struct{})
	l.mu.Unlock()
	l.paginator.SetTotal(0)
	l.paginator.SetPage(0)
	l.paginator.SetPerPage(l.defaultPageSize)
}

// Load fetches one batch. Only the most recently started call may publish a
// result; earlier calls that finish later return a stale response and a nil
// error. Oversized responses are retried with a halved batch, at most
// ceil(log2(batch)) times, without surfacing the intermediate errors.
func (l *Loader) Load(ctx context.Context, opts Options) (Response, error) {
	token := l.token.Add(1)
	maxRetries := retryLimit(l.batchSize(opts))

	for attempt := 0; ; attempt++ {
		batch, advanced := l.prepare(opts)
		params := l.params(opts.Search, batch)

		start := time.Now()
		coll, err := l.fetch(ctx, params)
		l.metrics.Fetch(l.entityType, time.Since(start))

		if l.token.Load() != token {
			return l.stale(token), nil
		}

		if err == nil {
			resp, ok := l.succeed(token, coll)
			if !ok {
				return l.stale(token), nil
			}
			return resp, nil
		}

		if advanced {
			l.paginator.Prev()
		}
		kind := entity.Classify(err)
		if kind == entity.KindOversized && batch > l.minPageSize && attempt < maxRetries {
			next := max(batch/2, l.minPageSize)
			l.metrics.Retry(l.entityType)
			l.logger.Info("response too big; retrying with smaller batch",
				"entity_type", l.entityType, "batch_size", batch, "next_batch_size", next)
			if opts.Reset && opts.Page > 0 {
				// keep the offset of a page jump when the page shrinks
				opts.Page = opts.Page * batch / next
			}
			opts.Retry = true
			opts.PageSize = next
			continue
		}

		l.mu.Lock()
		if l.token.Load() != token {
			l.mu.Unlock()
			return l.stale(token), nil
		}
		l.err = err
		l.mu.Unlock()
		l.metrics.Load(l.entityType, kind.String())
		l.logger.Warn("load failed", "entity_type", l.entityType, "kind", kind.String(), "err", err)
		return Response{Token: token}, err
	}
}

func (l *Loader) stale(token uint64) Response {
	l.metrics.Stale(l.entityType)
	l.logger.Debug("discarding stale load", "entity_type", l.entityType, "token", token)
	return Response{Stale: true, Token: token}
}

// prepare applies the reset, paging and batch size options to the paginator
// and returns the batch size and whether the page advanced.
func (l *Loader) prepare(opts Options) (int, bool) {
	if opts.Reset {
		l.paginator.SetTotal(0)
		l.paginator.SetPage(opts.Page)
		if !opts.Retry {
			l.paginator.SetPerPage(l.defaultPageSize)
		}
		l.mu.Lock()
		l.seen = make(map[string]struct{})
		l.mu.Unlock()
	}
	advanced := false
	if opts.More {
		l.paginator.Next()
		advanced = true
	}
	batch := l.batchSize(opts)
	if opts.PageSize > 0 && opts.PageSize < l.paginator.PerPage() {
		l.paginator.SetPerPage(opts.PageSize)
	}
	return batch, advanced
}

func (l *Loader) batchSize(opts Options) int {
	if opts.PageSize > 0 {
		return opts.PageSize
	}
	if opts.Reset && !opts.Retry {
		return l.defaultPageSize
	}
	return l.paginator.PerPage()
}

// succeed publishes a fetched batch into the loader state. The token is
// checked under l.mu so a newer call that already published is never
// overwritten; it reports false when the call went stale.
func (l *Loader) succeed(token uint64, coll entity.Collection) (Response, bool) {
	l.mu.Lock()
	if l.token.Load() != token {
		l.mu.Unlock()
		return Response{}, false
	}
	data := make([]entity.Entity, 0, len(coll.Items))
	for _, item := range coll.Items {
		if item.IsAsset() && !item.HasFile() {
			continue
		}
		id := item.ID()
		if id != "" {
			if _, dup := l.seen[id]; dup {
				continue
			}
			l.seen[id] = struct{}{}
		}
		data = append(data, item)
	}
	l.err = nil
	l.paginator.SetTotal(coll.Total)
	resp := Response{
		Data:    data,
		HasMore: !l.paginator.IsAtLast(),
		Total:   coll.Total,
		Page:    l.paginator.Page(),
		Token:   token,
	}
	l.mu.Unlock()

	l.metrics.Load(l.entityType, "success")
	return resp, true
}

// params builds the fetch parameters for the current page.
func (l *Loader) params(search view.View, batch int) query.Params {
	params := query.Format(query.FromView(search.SearchFilters))
	params[ParamSkip] = l.paginator.Offset()
	params[ParamLimit] = batch
	if order := l.orderParam(search); order != "" {
		params[ParamOrder] = order
	}
	if ct := strings.TrimSpace(search.ContentTypeID); ct != "" {
		params[ParamContentType] = ct
	}
	if text := strings.TrimSpace(search.SearchText); text != "" {
		params[ParamQuery] = text
	}
	if l.entityType == entity.TypeAsset {
		params[ParamFileExists] = true
	}
	return params
}

// orderParam maps the view order onto the collection order syntax:
// content type fields become fields.<id>, everything else sys.<id>, and a
// leading "-" marks descending order.
func (l *Loader) orderParam(search view.View) string {
	fieldID := strings.TrimSpace(search.Order.FieldID)
	if fieldID == "" {
		return ""
	}
	var key string
	switch {
	case strings.HasPrefix(fieldID, "fields.") || strings.HasPrefix(fieldID, "sys."):
		key = fieldID
	case fieldID == DisplayFieldOrder:
		if l.contentTypes == nil {
			return ""
		}
		displayField, ok := l.contentTypes.DisplayField(search.ContentTypeID)
		if !ok {
			return ""
		}
		key = "fields." + displayField
	case l.contentTypes != nil && search.ContentTypeID != "" && l.contentTypes.HasField(search.ContentTypeID, fieldID):
		key = "fields." + fieldID
	default:
		key = "sys." + fieldID
	}
	if search.Order.Direction == view.Descending {
		return "-" + key
	}
	return key
}

// retryLimit is ceil(log2(n)), the number of halvings that take n down to 1.
func retryLimit(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

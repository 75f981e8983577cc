// Package search owns the editing side of a list view: debounced text input,
// filter pills and filter suggestions.
package search

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/entitylist/entitylist/internal/contenttype"
	"github.com/entitylist/entitylist/internal/view"
)

const DefaultDebounce = time.Second

var ErrFilterIndex = errors.New("filter index out of range")

// ViewStore reads and writes the persisted view. *persist.Persistor satisfies it.
type ViewStore interface {
	Read(overrides ...view.Partial) view.View
	Save(v view.View)
	Defaults() view.View
}

// CommitFunc receives the full view whenever a change should trigger a fetch.
type CommitFunc func(view.View)

// Catalogs provides the current content type catalogue.
type Catalogs interface {
	Current() *contenttype.Catalog
}

// State is a snapshot for rendering.
type State struct {
	SearchText       string        `json:"searchText"`
	ContentTypeID    string        `json:"contentTypeId,omitempty"`
	Filters          []view.Filter `json:"filters"`
	Suggestions      []Suggestion  `json:"suggestions"`
	IsSuggestionOpen bool          `json:"isSuggestionOpen"`
	IsTyping         bool          `json:"isTyping"`
}

type Context struct {
	mu              sync.Mutex
	store           ViewStore
	commit          CommitFunc
	catalogs        Catalogs
	withAssets      bool
	withMetadata    bool
	clock           Clock
	delay           time.Duration
	logger          *slog.Logger
	searchDebounce  *Debouncer
	filterDebounce  *Debouncer
	isTyping        bool
	suggestionsOpen bool
}

type Option func(*Context)

func WithContentTypes(c Catalogs) Option {
	return func(s *Context) {
		s.catalogs = c
	}
}

func WithAssets(enabled bool) Option {
	return func(s *Context) {
		s.withAssets = enabled
	}
}

func WithMetadata(enabled bool) Option {
	return func(s *Context) {
		s.withMetadata = enabled
	}
}

func WithClock(c Clock) Option {
	return func(s *Context) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithDebounce(d time.Duration) Option {
	return func(s *Context) {
		if d > 0 {
			s.delay = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Context) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(store ViewStore, commit CommitFunc, opts ...Option) *Context {
	s := &Context{
		store:  store,
		commit: commit,
		clock:  RealClock,
		delay:  DefaultDebounce,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.commit == nil {
		s.commit = func(view.View) {}
	}
	s.searchDebounce = NewDebouncer(s.clock, s.delay)
	s.filterDebounce = NewDebouncer(s.clock, s.delay)
	return s
}

// State recomputes the snapshot, suggestions included, from the stored view.
func (s *Context) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.store.Read()
	return State{
		SearchText:       v.SearchText,
		ContentTypeID:    v.ContentTypeID,
		Filters:          append([]view.Filter{}, v.SearchFilters...),
		Suggestions:      Suggest(v.SearchText, v.ContentTypeID, s.catalog(), s.withAssets, s.withMetadata),
		IsSuggestionOpen: s.suggestionsOpen,
		IsTyping:         s.isTyping,
	}
}

// SetSearchText saves the text right away and commits once typing pauses.
func (s *Context) SetSearchText(text string) {
	text = strings.TrimSpace(text)
	s.mu.Lock()
	v := s.store.Read()
	if v.SearchText == text {
		s.mu.Unlock()
		return
	}
	v.SearchText = text
	s.store.Save(v)
	s.isTyping = true
	if text != "" {
		s.suggestionsOpen = true
	}
	s.mu.Unlock()

	s.searchDebounce.Schedule(func() {
		s.mu.Lock()
		s.isTyping = false
		s.mu.Unlock()
		s.commitCurrent()
	})
}

// SetFilterValue edits a pill value; the commit is debounced separately from
// the search text.
func (s *Context) SetFilterValue(index int, value string) error {
	s.mu.Lock()
	v := s.store.Read()
	if index < 0 || index >= len(v.SearchFilters) {
		s.mu.Unlock()
		return ErrFilterIndex
	}
	v.SearchFilters[index].Value = value
	s.store.Save(v)
	s.mu.Unlock()

	s.filterDebounce.Schedule(s.commitCurrent)
	return nil
}

func (s *Context) SetFilterOperator(index int, operator string) error {
	s.mu.Lock()
	v := s.store.Read()
	if index < 0 || index >= len(v.SearchFilters) {
		s.mu.Unlock()
		return ErrFilterIndex
	}
	v.SearchFilters[index].Operator = strings.TrimSpace(operator)
	s.store.Save(v)
	s.mu.Unlock()

	s.commit(v)
	return nil
}

func (s *Context) RemoveFilter(index int) error {
	s.mu.Lock()
	v := s.store.Read()
	if index < 0 || index >= len(v.SearchFilters) {
		s.mu.Unlock()
		return ErrFilterIndex
	}
	filters := make([]view.Filter, 0, len(v.SearchFilters)-1)
	filters = append(filters, v.SearchFilters[:index]...)
	filters = append(filters, v.SearchFilters[index+1:]...)
	v.SearchFilters = filters
	s.store.Save(v)
	s.mu.Unlock()

	s.commit(v)
	return nil
}

// SetContentType switches the content type. Field filters the new type does
// not declare are dropped, and an order on such a field falls back to the
// default order.
func (s *Context) SetContentType(id string) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	v := s.store.Read()
	if v.ContentTypeID == id {
		s.mu.Unlock()
		return
	}
	catalog := s.catalog()
	previous := v.ContentTypeID
	v.ContentTypeID = id

	if id != "" {
		kept := make([]view.Filter, 0, len(v.SearchFilters))
		for _, f := range v.SearchFilters {
			fieldID, isField := strings.CutPrefix(f.Key, "fields.")
			if isField && !catalog.HasField(id, fieldPathRoot(fieldID)) {
				continue
			}
			kept = append(kept, f)
		}
		v.SearchFilters = kept
	}
	if previous != "" && catalog.HasField(previous, v.Order.FieldID) && !catalog.HasField(id, v.Order.FieldID) {
		v.Order = s.store.Defaults().Order
	}
	s.store.Save(v)
	s.mu.Unlock()

	s.logger.Debug("content type changed", "from", previous, "to", id)
	s.commit(v)
}

// SelectFilterSuggestion appends a filter for the suggested field, prefilled
// when the field has a single possible value, clears the search text and
// closes the suggestion panel.
func (s *Context) SelectFilterSuggestion(sg Suggestion) {
	s.searchDebounce.Cancel()

	s.mu.Lock()
	v := s.store.Read()
	value, _ := sg.Prefill()
	v.SearchFilters = append(v.SearchFilters, view.Filter{
		Key:      sg.Key,
		Operator: sg.DefaultOperator(),
		Value:    value,
	})
	v.SearchText = ""
	s.store.Save(v)
	s.isTyping = false
	s.suggestionsOpen = false
	s.mu.Unlock()

	s.commit(v)
}

func (s *Context) ShowSuggestions() {
	s.mu.Lock()
	s.suggestionsOpen = true
	s.mu.Unlock()
}

func (s *Context) HideSuggestions() {
	s.mu.Lock()
	s.suggestionsOpen = false
	s.mu.Unlock()
}

func (s *Context) ToggleSuggestions() {
	s.mu.Lock()
	s.suggestionsOpen = !s.suggestionsOpen
	s.mu.Unlock()
}

// Flush runs pending debounced commits immediately.
func (s *Context) Flush() {
	s.searchDebounce.Flush()
	s.filterDebounce.Flush()
}

// Close stops pending debounced commits without running them.
func (s *Context) Close() {
	s.searchDebounce.Cancel()
	s.filterDebounce.Cancel()
	s.mu.Lock()
	s.isTyping = false
	s.mu.Unlock()
}

func (s *Context) commitCurrent() {
	s.mu.Lock()
	v := s.store.Read()
	s.mu.Unlock()
	s.commit(v)
}

func (s *Context) catalog() *contenttype.Catalog {
	if s.catalogs == nil {
		return nil
	}
	return s.catalogs.Current()
}

// fieldPathRoot returns the field id of a nested key such as "file.fileName".
func fieldPathRoot(path string) string {
	root, _, _ := strings.Cut(path, ".")
	return root
}

// Package persist reads and writes list views across three tiers: the URL
// query string, per-client storage and hard-coded defaults.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/entitylist/entitylist/internal/view"
)

var errNotJSON = errors.New("stored view is not valid JSON")

// Key scopes a persisted view.
type Key struct {
	EntityType    string
	EnvironmentID string
	SpaceID       string
}

// StorageKey is the current storage key for the scope.
func (k Key) StorageKey() string {
	return fmt.Sprintf("cf_webapp_lastfilter_%s_%s_%s", k.EntityType, k.EnvironmentID, k.SpaceID)
}

// LegacyStorageKey predates environments and is migrated once, then deleted.
func (k Key) LegacyStorageKey() string {
	return fmt.Sprintf("lastFilterQueryString.%s.%s", k.EntityType, k.SpaceID)
}

// Persistor resolves and saves the view of one list.
type Persistor struct {
	mu        sync.Mutex
	key       Key
	storage   Storage
	location  Location
	migration *MigrationState
	defaults  view.View
	initial   view.Partial
	logger    *slog.Logger
}

type Option func(*Persistor)

func WithStorage(s Storage) Option {
	return func(p *Persistor) {
		if s != nil {
			p.storage = s
		}
	}
}

func WithLocation(l Location) Option {
	return func(p *Persistor) {
		if l != nil {
			p.location = l
		}
	}
}

func WithMigrationState(m *MigrationState) Option {
	return func(p *Persistor) {
		if m != nil {
			p.migration = m
		}
	}
}

func WithDefaults(v view.View) Option {
	return func(p *Persistor) {
		p.defaults = v.Clone()
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Persistor) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a persistor, runs the legacy migration if the migration state
// allows it, and captures the query string as the initial override.
func New(key Key, opts ...Option) *Persistor {
	p := &Persistor{
		key:       key,
		storage:   NewMemoryStorage(),
		location:  NewStaticLocation(""),
		migration: NewMigrationState(),
		defaults:  view.Defaults(key.EntityType),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.migrateLegacy()
	p.initial = view.ParseQueryString(p.location.QueryString())
	return p
}

func (p *Persistor) Key() Key {
	return p.key
}

func (p *Persistor) Defaults() view.View {
	return p.defaults.Clone()
}

// QueryOverride is the query string captured at construction.
func (p *Persistor) QueryOverride() view.Partial {
	return p.initial
}

// Initial resolves the view at mount time: query string over stored over
// defaults.
func (p *Persistor) Initial() view.View {
	return p.Read(p.initial)
}

// Read merges defaults, the stored view and the given overrides, later
// sources winning per top-level property.
func (p *Persistor) Read(overrides ...view.Partial) view.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readLocked(overrides...)
}

func (p *Persistor) ReadKey(path string) (any, error) {
	return view.Get(p.Read(), path)
}

func (p *Persistor) ReadKeys(paths []string) (view.Partial, error) {
	return view.Pick(p.Read(), paths)
}

// Save writes the view to storage and mirrors its public keys into the URL.
func (p *Persistor) Save(v view.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveLocked(v)
}

// SaveKey replaces one dot path of the current view and saves it.
func (p *Persistor) SaveKey(path string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := view.Set(p.readLocked(), path, value)
	if err != nil {
		return err
	}
	p.saveLocked(next)
	return nil
}

// Clear removes the stored view; the next read falls back to defaults.
func (p *Persistor) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage.Remove(p.key.StorageKey())
	p.location.ReplaceQuery("")
}

func (p *Persistor) readLocked(overrides ...view.Partial) view.View {
	layers := make([]view.Partial, 0, len(overrides)+1)
	layers = append(layers, p.loadStored())
	layers = append(layers, overrides...)
	return view.Merge(p.defaults, layers...)
}

func (p *Persistor) saveLocked(v view.View) {
	v = v.StripUIOnly().Normalize()
	raw, err := marshalStored(v)
	if err != nil {
		p.logger.Error("encode view", "storage_key", p.key.StorageKey(), "err", err)
		return
	}
	p.storage.Set(p.key.StorageKey(), string(raw))
	p.location.ReplaceQuery(view.Encode(v))
}

// loadStored decodes the stored view. Anything malformed counts as absent.
func (p *Persistor) loadStored() view.Partial {
	raw, ok := p.storage.Get(p.key.StorageKey())
	if !ok || strings.TrimSpace(raw) == "" {
		return view.Partial{}
	}
	partial, err := decodeStored([]byte(raw))
	if err != nil {
		p.logger.Debug("ignoring malformed stored view", "storage_key", p.key.StorageKey(), "err", err)
		return view.Partial{}
	}
	return partial
}

func (p *Persistor) migrateLegacy() {
	if !p.migration.begin() {
		return
	}
	legacyKey := p.key.LegacyStorageKey()
	raw, ok := p.storage.Get(legacyKey)
	if !ok {
		return
	}
	p.storage.Remove(legacyKey)

	if _, exists := p.storage.Get(p.key.StorageKey()); exists {
		return
	}
	legacy, err := decodeStored([]byte(raw))
	if err != nil {
		legacy = view.ParseQueryString(raw)
	}
	if legacy.IsEmpty() {
		return
	}
	migrated := view.Merge(p.defaults, legacy).StripUIOnly().Normalize()
	data, err := marshalStored(migrated)
	if err != nil {
		p.logger.Error("encode migrated view", "legacy_key", legacyKey, "err", err)
		return
	}
	p.storage.Set(p.key.StorageKey(), string(data))
	p.logger.Info("migrated legacy view", "legacy_key", legacyKey, "storage_key", p.key.StorageKey())
}

// storedView is the storage encoding: every property present, so an explicitly
// emptied list survives a reload instead of falling back to defaults.
type storedView struct {
	ID                string        `json:"id,omitempty"`
	SearchText        string        `json:"searchText"`
	SearchFilters     []view.Filter `json:"searchFilters"`
	ContentTypeID     string        `json:"contentTypeId"`
	Order             view.Order    `json:"order"`
	DisplayedFieldIDs []string      `json:"displayedFieldIds"`
}

func marshalStored(v view.View) ([]byte, error) {
	s := storedView{
		ID:                v.ID,
		SearchText:        v.SearchText,
		SearchFilters:     v.SearchFilters,
		ContentTypeID:     v.ContentTypeID,
		Order:             v.Order,
		DisplayedFieldIDs: v.DisplayedFieldIDs,
	}
	if s.SearchFilters == nil {
		s.SearchFilters = []view.Filter{}
	}
	if s.DisplayedFieldIDs == nil {
		s.DisplayedFieldIDs = []string{}
	}
	return json.Marshal(s)
}

func decodeStored(raw []byte) (view.Partial, error) {
	if !json.Valid(raw) {
		return view.Partial{}, errNotJSON
	}
	if err := validateStored(raw); err != nil {
		return view.Partial{}, err
	}
	var partial view.Partial
	if err := json.Unmarshal(raw, &partial); err != nil {
		return view.Partial{}, err
	}
	// UI-only properties are never restored from storage.
	partial.Title = nil
	partial.LegacySearchTerm = nil
	return partial, nil
}

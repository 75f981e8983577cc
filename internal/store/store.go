// Package store serves entity collections out of Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entitylist/entitylist/internal/entity"
)

// DefaultMaxResponseBytes matches the collection API response limit.
const DefaultMaxResponseBytes = 7 << 20

// rowOverheadBytes approximates the serialized sys block of one item.
const rowOverheadBytes = 256

var ErrInvalidEntity = errors.New("invalid entity")

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPool creates a pgxpool connection pool and checks it.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

type Store struct {
	db               DB
	maxResponseBytes int
	logger           *slog.Logger
}

type Option func(*Store)

func WithMaxResponseBytes(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxResponseBytes = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, maxResponseBytes: DefaultMaxResponseBytes, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection is the fetch side of one scope.
type Collection struct {
	store *Store
	scope Scope
}

func (s *Store) Collection(scope Scope) *Collection {
	return &Collection{store: s, scope: scope}
}

// FetchFunc returns the fetch function of a scope.
func (s *Store) FetchFunc(scope Scope) entity.FetchFunc {
	return s.Collection(scope).Fetch
}

// Fetch satisfies entity.FetchFunc.
func (c *Collection) Fetch(ctx context.Context, params map[string]any) (entity.Collection, error) {
	q, err := Build(c.scope, params)
	if err != nil {
		return entity.Collection{}, err
	}

	var total int
	if err := c.store.db.QueryRow(ctx, q.CountSQL, q.CountArgs...).Scan(&total); err != nil {
		return entity.Collection{}, fmt.Errorf("count entities: %w", err)
	}

	rows, err := c.store.db.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return entity.Collection{}, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	items := make([]entity.Entity, 0, q.Limit)
	size := 0
	for rows.Next() {
		item, n, err := scanEntity(rows)
		if err != nil {
			return entity.Collection{}, err
		}
		size += n + rowOverheadBytes
		if size > c.store.maxResponseBytes {
			c.store.logger.Debug("collection response over limit",
				"space_id", c.scope.SpaceID, "entity_type", c.scope.EntityType, "limit", q.Limit, "max_bytes", c.store.maxResponseBytes)
			return entity.Collection{}, &entity.APIError{
				Status:  400,
				Code:    entity.CodeResponseSizeTooBig,
				Message: fmt.Sprintf("Response size too big. Maximum allowed response size: %dB.", c.store.maxResponseBytes),
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return entity.Collection{}, fmt.Errorf("read entities: %w", err)
	}
	return entity.Collection{Items: items, Total: total}, nil
}

func scanEntity(rows pgx.Rows) (entity.Entity, int, error) {
	var (
		e             entity.Entity
		contentTypeID *string
		fields        []byte
		tags          []string
	)
	err := rows.Scan(
		&e.Sys.ID, &e.Sys.Type, &contentTypeID, &fields, &tags,
		&e.Sys.CreatedAt, &e.Sys.UpdatedAt, &e.Sys.PublishedAt, &e.Sys.ArchivedAt,
	)
	if err != nil {
		return entity.Entity{}, 0, fmt.Errorf("scan entity: %w", err)
	}
	if contentTypeID != nil && *contentTypeID != "" {
		e.Sys.ContentType = &entity.Link{ID: *contentTypeID}
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &e.Fields); err != nil {
			return entity.Entity{}, 0, fmt.Errorf("decode fields of %q: %w", e.Sys.ID, err)
		}
	}
	if len(tags) > 0 {
		e.Metadata = &entity.Metadata{Tags: make([]entity.Link, 0, len(tags))}
		for _, tag := range tags {
			e.Metadata.Tags = append(e.Metadata.Tags, entity.Link{ID: tag})
		}
	}
	return e, len(fields), nil
}

// Record is an entity together with its storage scope and author.
type Record struct {
	SpaceID       string
	EnvironmentID string
	CreatedBy     string
	Entity        entity.Entity
}

// Upsert inserts or replaces an entity.
func (s *Store) Upsert(ctx context.Context, r Record) error {
	e := r.Entity
	if e.Sys.ID == "" || (e.Sys.Type != entity.TypeEntry && e.Sys.Type != entity.TypeAsset) {
		return fmt.Errorf("%w: id %q type %q", ErrInvalidEntity, e.Sys.ID, e.Sys.Type)
	}
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("encode fields of %q: %w", e.Sys.ID, err)
	}
	if e.Fields == nil {
		fields = []byte("{}")
	}
	var contentTypeID *string
	if id := e.ContentTypeID(); id != "" {
		contentTypeID = &id
	}
	tags := []string{}
	if e.Metadata != nil {
		for _, t := range e.Metadata.Tags {
			tags = append(tags, t.ID)
		}
	}
	createdAt, updatedAt := e.Sys.CreatedAt, e.Sys.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	const q = `
INSERT INTO entities (id, space_id, environment_id, entity_type, content_type_id, fields, tags,
                      created_by, created_at, updated_at, published_at, archived_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (space_id, environment_id, id) DO UPDATE SET
    entity_type = EXCLUDED.entity_type,
    content_type_id = EXCLUDED.content_type_id,
    fields = EXCLUDED.fields,
    tags = EXCLUDED.tags,
    created_by = EXCLUDED.created_by,
    updated_at = EXCLUDED.updated_at,
    published_at = EXCLUDED.published_at,
    archived_at = EXCLUDED.archived_at`
	_, err = s.db.Exec(ctx, q,
		e.Sys.ID, r.SpaceID, r.EnvironmentID, e.Sys.Type, contentTypeID, fields, tags,
		r.CreatedBy, createdAt, updatedAt, e.Sys.PublishedAt, e.Sys.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert entity %q: %w", e.Sys.ID, err)
	}
	return nil
}

// Membership is a user's role set within a space.
type Membership struct {
	SpaceID string
	UserID  string
	Admin   bool
	Roles   []string
}

func (s *Store) UpsertMembership(ctx context.Context, m Membership) error {
	roles := m.Roles
	if roles == nil {
		roles = []string{}
	}
	const q = `
INSERT INTO space_memberships (space_id, user_id, admin, roles)
VALUES ($1,$2,$3,$4)
ON CONFLICT (space_id, user_id) DO UPDATE SET admin = EXCLUDED.admin, roles = EXCLUDED.roles`
	if _, err := s.db.Exec(ctx, q, m.SpaceID, m.UserID, m.Admin, roles); err != nil {
		return fmt.Errorf("upsert membership %q: %w", m.UserID, err)
	}
	return nil
}

// Ping checks the database.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

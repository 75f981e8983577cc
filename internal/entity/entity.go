// Package entity holds the collection records the search engine filters, orders
// and selects, together with the fetch contract used to obtain them.
package entity

import (
	"context"
	"time"
)

const (
	TypeEntry = "Entry"
	TypeAsset = "Asset"
)

// Link references another record by id.
type Link struct {
	ID string `json:"id"`
}

// Sys is the system metadata every entity carries.
type Sys struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	ContentType *Link      `json:"contentType,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
}

// Metadata carries the tags attached to an entity.
type Metadata struct {
	Tags []Link `json:"tags"`
}

// Entity is an opaque entry or asset. The engine never mutates it.
type Entity struct {
	Sys      Sys            `json:"sys"`
	Fields   map[string]any `json:"fields,omitempty"`
	Metadata *Metadata      `json:"metadata,omitempty"`
}

func (e Entity) ID() string {
	return e.Sys.ID
}

func (e Entity) IsAsset() bool {
	return e.Sys.Type == TypeAsset
}

// ContentTypeID returns the id of the linked content type, or "" for assets.
func (e Entity) ContentTypeID() string {
	if e.Sys.ContentType == nil {
		return ""
	}
	return e.Sys.ContentType.ID
}

// HasFile reports whether an asset has a file attached.
func (e Entity) HasFile() bool {
	if e.Fields == nil {
		return false
	}
	file, ok := e.Fields["file"]
	if !ok || file == nil {
		return false
	}
	if m, ok := file.(map[string]any); ok {
		return len(m) > 0
	}
	return true
}

// Status derives the publishing status shown in lists.
func (e Entity) Status() string {
	switch {
	case e.Sys.ArchivedAt != nil:
		return "archived"
	case e.Sys.PublishedAt == nil:
		return "draft"
	case e.Sys.UpdatedAt.After(*e.Sys.PublishedAt):
		return "changed"
	default:
		return "published"
	}
}

// Collection is one page of a remote collection.
type Collection struct {
	Items []Entity `json:"items"`
	Total int      `json:"total"`
}

// FetchFunc fetches one page of entities for the given query parameters.
type FetchFunc func(ctx context.Context, params map[string]any) (Collection, error)

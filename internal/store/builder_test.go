package store

import (
	"reflect"
	"strings"
	"testing"

	"github.com/entitylist/entitylist/internal/entity"
)

var testScope = Scope{SpaceID: "space", EnvironmentID: "master", EntityType: entity.TypeEntry}

func TestBuildDefaults(t *testing.T) {
	q, err := Build(testScope, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if q.Limit != DefaultLimit || q.Skip != 0 {
		t.Fatalf("limit/skip = %d/%d", q.Limit, q.Skip)
	}
	if !strings.Contains(q.SQL, "ORDER BY e.updated_at DESC, e.id ASC") {
		t.Fatalf("default order missing: %s", q.SQL)
	}
	wantArgs := []any{"space", "master", entity.TypeEntry, 0, DefaultLimit}
	if !reflect.DeepEqual(q.Args, wantArgs) {
		t.Fatalf("Args = %v, want %v", q.Args, wantArgs)
	}
	if !reflect.DeepEqual(q.CountArgs, wantArgs[:3]) {
		t.Fatalf("CountArgs = %v", q.CountArgs)
	}
}

func TestBuildConditions(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]any
		contains []string
		args     []any
	}{
		{
			name:     "paging and order",
			params:   map[string]any{"skip": 40, "limit": 5000, "order": "-fields.title,sys.createdAt"},
			contains: []string{"ORDER BY e.fields #>> '{title}' DESC NULLS FIRST, e.created_at ASC NULLS LAST, e.id ASC", "OFFSET $4 LIMIT $5"},
			args:     []any{40, MaxLimit},
		},
		{
			name:     "content type and text",
			params:   map[string]any{"content_type": "post", "query": "50%"},
			contains: []string{"e.content_type_id = $4", "e.fields::text ILIKE $5"},
			args:     []any{"post", `%50\%%`},
		},
		{
			name:     "field equality and exists",
			params:   map[string]any{"fields.file[exists]": true, "fields.slug": "home"},
			contains: []string{"e.fields #>> '{file}' IS NOT NULL", "e.fields #>> '{slug}' = $4"},
			args:     []any{"home"},
		},
		{
			name:     "numeric range",
			params:   map[string]any{"fields.rating[gte]": "3"},
			contains: []string{"::numeric END) >= $4::numeric"},
			args:     []any{"3"},
		},
		{
			name:     "sys date",
			params:   map[string]any{"sys.updatedAt[lt]": "2024-01-01"},
			contains: []string{"e.updated_at < $4::timestamptz"},
			args:     []any{"2024-01-01"},
		},
		{
			name:     "in list",
			params:   map[string]any{"sys.id[in]": "a, b,"},
			contains: []string{"e.id = ANY($4::text[])"},
			args:     []any{[]string{"a", "b"}},
		},
		{
			name:     "admin alias",
			params:   map[string]any{"sys.spaceMemberships.admin": "true"},
			contains: []string{"m.admin = $4"},
			args:     []any{true},
		},
		{
			name:     "tags",
			params:   map[string]any{"metadata.tags.sys.id[all]": []string{"x", "y"}},
			contains: []string{"e.tags @> $4::text[]"},
			args:     []any{[]string{"x", "y"}},
		},
		{
			name:     "status",
			params:   map[string]any{"sys.status": "draft"},
			contains: []string{"WHEN e.published_at IS NULL THEN 'draft'", "END = $4"},
			args:     []any{"draft"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Build(testScope, tt.params)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(q.SQL, want) {
					t.Fatalf("SQL missing %q:\n%s", want, q.SQL)
				}
			}
			got := q.Args[3 : 3+len(tt.args)]
			if !reflect.DeepEqual(got, tt.args) {
				t.Fatalf("args = %#v, want %#v", got, tt.args)
			}
		})
	}
}

func TestBuildRejectsInvalidQueries(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{name: "unknown key", params: map[string]any{"title": "x"}},
		{name: "unknown sys attribute", params: map[string]any{"sys.color": "x"}},
		{name: "unknown operator", params: map[string]any{"fields.title[near]": "x"}},
		{name: "bad field path", params: map[string]any{"fields.a'b": "x"}},
		{name: "bad order", params: map[string]any{"order": "title"}},
		{name: "negative skip", params: map[string]any{"skip": -1}},
		{name: "bad limit", params: map[string]any{"limit": "many"}},
		{name: "bad exists", params: map[string]any{"fields.title[exists]": "maybe"}},
		{name: "operator on admin", params: map[string]any{"sys.spaceMemberships.admin[ne]": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(testScope, tt.params)
			if err == nil {
				t.Fatalf("expected error")
			}
			if entity.Classify(err) != entity.KindQueryRejected {
				t.Fatalf("Classify(%v) = %v, want query rejected", err, entity.Classify(err))
			}
		})
	}
}

func TestFieldPath(t *testing.T) {
	got, err := fieldPath("file.fileName")
	if err != nil || got != "{file,fileName}" {
		t.Fatalf("fieldPath = %q, %v", got, err)
	}
	if _, err := fieldPath("a..b"); err == nil {
		t.Fatalf("expected error for empty segment")
	}
}

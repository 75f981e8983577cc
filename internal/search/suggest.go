package search

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/entitylist/entitylist/internal/contenttype"
)

// Suggestion is a field that can be turned into a filter.
type Suggestion struct {
	Key             string   `json:"key"`
	Label           string   `json:"label"`
	Type            string   `json:"type"`
	ContentTypeID   string   `json:"contentTypeId,omitempty"`
	ContentTypeName string   `json:"contentTypeName,omitempty"`
	Operators       []string `json:"operators"`
	Values          []string `json:"values,omitempty"`
}

// DefaultOperator is the operator a new filter on this field starts with.
func (s Suggestion) DefaultOperator() string {
	if len(s.Operators) == 0 {
		return ""
	}
	return s.Operators[0]
}

// Prefill reports the value a new filter starts with when the field has
// exactly one possible value.
func (s Suggestion) Prefill() (string, bool) {
	if s.Type == contenttype.TypeBoolean {
		return "true", true
	}
	if len(s.Values) == 1 {
		return s.Values[0], true
	}
	return "", false
}

var statusValues = []string{"draft", "changed", "published", "archived"}

func sysSuggestions() []Suggestion {
	dateOps := []string{"", "lt", "lte", "gt", "gte"}
	return []Suggestion{
		{Key: "sys.updatedAt", Label: "Updated", Type: contenttype.TypeDate, Operators: dateOps},
		{Key: "sys.createdAt", Label: "Created", Type: contenttype.TypeDate, Operators: dateOps},
		{Key: "sys.publishedAt", Label: "Published", Type: contenttype.TypeDate, Operators: []string{"", "lt", "lte", "gt", "gte", "exists"}},
		{Key: "sys.status", Label: "Status", Type: contenttype.TypeSymbol, Operators: []string{"", "ne"}, Values: statusValues},
		{Key: "sys.id", Label: "ID", Type: contenttype.TypeSymbol, Operators: []string{"", "ne", "in"}},
		{Key: "sys.spaceMemberships.roles.name", Label: "Author role", Type: contenttype.TypeSymbol, Operators: []string{""}},
	}
}

func assetSuggestions() []Suggestion {
	return []Suggestion{
		{Key: "fields.title", Label: "Title", Type: contenttype.TypeSymbol, Operators: []string{"", "ne", "match", "exists"}},
		{Key: "fields.description", Label: "Description", Type: contenttype.TypeText, Operators: []string{"match", "exists"}},
		{Key: "fields.file.fileName", Label: "File name", Type: contenttype.TypeSymbol, Operators: []string{"", "match"}},
		{Key: "fields.file.contentType", Label: "MIME type", Type: contenttype.TypeSymbol, Operators: []string{"", "ne", "match"}},
	}
}

func metadataSuggestions() []Suggestion {
	return []Suggestion{
		{Key: "metadata.tags.sys.id", Label: "Tags", Type: contenttype.TypeArray, Operators: []string{"in", "all"}},
	}
}

// Candidates lists every filterable field for the given content type, or for
// all content types when contentTypeID is empty. Keys are unique, the first
// declaration wins, and hidden fields are left out.
func Candidates(contentTypeID string, catalog *contenttype.Catalog, withAssets, withMetadata bool) []Suggestion {
	var types []contenttype.ContentType
	if contentTypeID != "" {
		if ct, ok := catalog.Get(contentTypeID); ok {
			types = []contenttype.ContentType{ct}
		}
	} else {
		types = catalog.All()
	}

	seen := make(map[string]struct{})
	var out []Suggestion
	add := func(s Suggestion) {
		if _, dup := seen[s.Key]; dup {
			return
		}
		if catalog.IsHidden(s.Key) {
			return
		}
		seen[s.Key] = struct{}{}
		out = append(out, s)
	}

	for _, ct := range types {
		for _, f := range ct.Fields {
			if f.Disabled || f.Omitted {
				continue
			}
			add(Suggestion{
				Key:             f.Key(),
				Label:           f.Label(),
				Type:            f.Type,
				ContentTypeID:   ct.ID,
				ContentTypeName: ct.Name,
				Operators:       f.Operators(),
				Values:          f.AllowedValues(),
			})
		}
	}
	if withAssets {
		for _, s := range assetSuggestions() {
			add(s)
		}
	}
	if withMetadata {
		for _, s := range metadataSuggestions() {
			add(s)
		}
	}
	for _, s := range sysSuggestions() {
		add(s)
	}
	return out
}

// Suggest ranks the candidates against the search text. An empty text returns
// every candidate in declaration order.
func Suggest(searchText, contentTypeID string, catalog *contenttype.Catalog, withAssets, withMetadata bool) []Suggestion {
	candidates := Candidates(contentTypeID, catalog, withAssets, withMetadata)
	pattern := strings.TrimSpace(searchText)
	if pattern == "" {
		return candidates
	}

	best := make(map[int]int)
	record := func(matches fuzzy.Matches) {
		for _, m := range matches {
			if score, ok := best[m.Index]; !ok || m.Score > score {
				best[m.Index] = m.Score
			}
		}
	}
	record(fuzzy.FindFrom(pattern, labelSource(candidates)))
	record(fuzzy.FindFrom(pattern, keySource(candidates)))

	indexes := make([]int, 0, len(best))
	for i := range best {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool {
		ia, ib := indexes[a], indexes[b]
		if best[ia] != best[ib] {
			return best[ia] > best[ib]
		}
		return ia < ib
	})
	out := make([]Suggestion, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, candidates[i])
	}
	return out
}

type labelSource []Suggestion

func (s labelSource) String(i int) string { return s[i].Label }
func (s labelSource) Len() int            { return len(s) }

type keySource []Suggestion

func (s keySource) String(i int) string { return s[i].Key }
func (s keySource) Len() int            { return len(s) }

// Package view models the persisted search state behind an entity list: search
// text, filter pills, content type, ordering and visible columns.
package view

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// OrderKey is the sentinel key reserved for ordering; no filter may use it twice.
const OrderKey = "order"

var ErrDuplicateOrderFilter = errors.New("view has more than one order filter")

// Order is the list ordering.
type Order struct {
	FieldID   string    `json:"fieldId,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

func (o Order) IsZero() bool {
	return o.FieldID == "" && o.Direction == ""
}

// Filter is one [key, operator, value] filter pill. The operator is empty for
// plain equality.
type Filter struct {
	Key      string
	Operator string
	Value    string
}

func (f Filter) MarshalJSON() ([]byte, error) {
	var op any
	if f.Operator != "" {
		op = f.Operator
	}
	return json.Marshal([]any{f.Key, op, f.Value})
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("filter must have 3 elements, got %d", len(raw))
	}
	var key string
	if err := json.Unmarshal(raw[0], &key); err != nil {
		return fmt.Errorf("filter key: %w", err)
	}
	var op *string
	if err := json.Unmarshal(raw[1], &op); err != nil {
		return fmt.Errorf("filter operator: %w", err)
	}
	value, err := decodeFilterValue(raw[2])
	if err != nil {
		return fmt.Errorf("filter value: %w", err)
	}
	f.Key = key
	f.Operator = ""
	if op != nil {
		f.Operator = *op
	}
	f.Value = value
	return nil
}

// decodeFilterValue accepts strings, booleans, numbers and null; older stored
// views kept booleans unquoted.
func decodeFilterValue(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool, float64:
		return strings.TrimSpace(string(raw)), nil
	default:
		return "", fmt.Errorf("unsupported value %s", string(raw))
	}
}

// View is the complete search state of one list. Nil is the canonical form
// of an empty filter or field list; see Clone.
type View struct {
	ID                string   `json:"id,omitempty"`
	Title             string   `json:"title,omitempty"`
	LegacySearchTerm  string   `json:"_legacySearchTerm,omitempty"`
	SearchText        string   `json:"searchText,omitempty"`
	SearchFilters     []Filter `json:"searchFilters,omitempty"`
	ContentTypeID     string   `json:"contentTypeId,omitempty"`
	Order             Order    `json:"order,omitzero"`
	DisplayedFieldIDs []string `json:"displayedFieldIds,omitempty"`
}

// StripUIOnly drops the properties that are only meaningful to the list chrome.
func (v View) StripUIOnly() View {
	v.Title = ""
	v.LegacySearchTerm = ""
	return v
}

// Clone returns a copy that shares no slices with v. Empty slices come back
// nil, the canonical empty form that Merge and Unserialize also produce.
func (v View) Clone() View {
	out := v
	out.SearchFilters = nil
	out.DisplayedFieldIDs = nil
	if len(v.SearchFilters) > 0 {
		out.SearchFilters = append([]Filter(nil), v.SearchFilters...)
	}
	if len(v.DisplayedFieldIDs) > 0 {
		out.DisplayedFieldIDs = append([]string(nil), v.DisplayedFieldIDs...)
	}
	return out
}

// Validate checks the ordering invariant on filters.
func (v View) Validate() error {
	seen := false
	for _, f := range v.SearchFilters {
		if f.Key != OrderKey {
			continue
		}
		if seen {
			return ErrDuplicateOrderFilter
		}
		seen = true
	}
	return nil
}

// Normalize trims filter keys, drops keyless filters and keeps only the first
// order filter.
func (v View) Normalize() View {
	out := v.Clone()
	out.SearchText = strings.TrimSpace(out.SearchText)
	if out.SearchFilters == nil {
		return out
	}
	filters := make([]Filter, 0, len(out.SearchFilters))
	seenOrder := false
	for _, f := range out.SearchFilters {
		f.Key = strings.TrimSpace(f.Key)
		f.Operator = strings.TrimSpace(f.Operator)
		if f.Key == "" {
			continue
		}
		if f.Key == OrderKey {
			if seenOrder {
				continue
			}
			seenOrder = true
		}
		filters = append(filters, f)
	}
	if len(filters) == 0 {
		filters = nil
	}
	out.SearchFilters = filters
	return out
}

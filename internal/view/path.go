package view

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPath = errors.New("unknown view path")

// Dot paths addressable through Get, Set and Pick.
const (
	PathID                = "id"
	PathTitle             = "title"
	PathSearchText        = "searchText"
	PathSearchFilters     = "searchFilters"
	PathContentTypeID     = "contentTypeId"
	PathOrder             = "order"
	PathOrderFieldID      = "order.fieldId"
	PathOrderDirection    = "order.direction"
	PathDisplayedFieldIDs = "displayedFieldIds"
)

// Get returns the value at a dot path.
func Get(v View, path string) (any, error) {
	switch strings.TrimSpace(path) {
	case PathID:
		return v.ID, nil
	case PathTitle:
		return v.Title, nil
	case PathSearchText:
		return v.SearchText, nil
	case PathSearchFilters:
		return append([]Filter(nil), v.SearchFilters...), nil
	case PathContentTypeID:
		return v.ContentTypeID, nil
	case PathOrder:
		return v.Order, nil
	case PathOrderFieldID:
		return v.Order.FieldID, nil
	case PathOrderDirection:
		return v.Order.Direction, nil
	case PathDisplayedFieldIDs:
		return append([]string(nil), v.DisplayedFieldIDs...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
}

// Set returns a copy of v with the value at path replaced.
func Set(v View, path string, value any) (View, error) {
	out := v.Clone()
	path = strings.TrimSpace(path)
	switch path {
	case PathID, PathTitle, PathSearchText, PathContentTypeID, PathOrderFieldID:
		s, ok := value.(string)
		if !ok {
			return v, typeError(path, "string", value)
		}
		switch path {
		case PathID:
			out.ID = s
		case PathTitle:
			out.Title = s
		case PathSearchText:
			out.SearchText = s
		case PathContentTypeID:
			out.ContentTypeID = s
		case PathOrderFieldID:
			out.Order.FieldID = s
		}
	case PathOrderDirection:
		switch d := value.(type) {
		case Direction:
			out.Order.Direction = d
		case string:
			out.Order.Direction = parseDirection(d)
		default:
			return v, typeError(path, "direction", value)
		}
	case PathOrder:
		o, ok := value.(Order)
		if !ok {
			return v, typeError(path, "Order", value)
		}
		out.Order = o
	case PathSearchFilters:
		filters, ok := value.([]Filter)
		if !ok {
			return v, typeError(path, "[]Filter", value)
		}
		out.SearchFilters = nonEmptyFilters(filters)
	case PathDisplayedFieldIDs:
		ids, ok := value.([]string)
		if !ok {
			return v, typeError(path, "[]string", value)
		}
		out.DisplayedFieldIDs = nonEmptyStrings(ids)
	default:
		return v, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	return out, nil
}

// Pick copies the properties named by paths into a Partial. A nested path
// marks its parent present with only that member filled in.
func Pick(v View, paths []string) (Partial, error) {
	full := FromView(v)
	var out Partial
	for _, path := range paths {
		switch strings.TrimSpace(path) {
		case PathID:
			out.ID = full.ID
		case PathTitle:
			out.Title = full.Title
		case PathSearchText:
			out.SearchText = full.SearchText
		case PathSearchFilters:
			out.SearchFilters = full.SearchFilters
		case PathContentTypeID:
			out.ContentTypeID = full.ContentTypeID
		case PathOrder:
			o := v.Order
			out.Order = &o
		case PathOrderFieldID:
			if out.Order == nil {
				out.Order = &Order{}
			}
			out.Order.FieldID = v.Order.FieldID
		case PathOrderDirection:
			if out.Order == nil {
				out.Order = &Order{}
			}
			out.Order.Direction = v.Order.Direction
		case PathDisplayedFieldIDs:
			out.DisplayedFieldIDs = full.DisplayedFieldIDs
		default:
			return Partial{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
		}
	}
	return out, nil
}

func typeError(path, want string, got any) error {
	return fmt.Errorf("view path %q expects %s, got %T", path, want, got)
}

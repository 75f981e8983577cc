package view

import (
	"net/url"
	"strings"
)

// Query-string keys. Arrays use repeated keys (x=1&x=2); filters are spread over
// three parallel arrays zipped by position.
const (
	keyID                = "id"
	keyTitle             = "title"
	keyLegacySearchTerm  = "_legacySearchTerm"
	keySearchText        = "searchText"
	keyContentTypeID     = "contentTypeId"
	keyOrderFieldID      = "order.fieldId"
	keyOrderDirection    = "order.direction"
	keyDisplayedFieldIDs = "displayedFieldIds"
	keyFilterKey         = "searchFilters.key"
	keyFilterOperator    = "searchFilters.operator"
	keyFilterValue       = "searchFilters.value"
)

// Serialize flattens a view into query-string-safe values. Title is UI-only and
// never serialized; the underscore-prefixed search-term cache is, so callers
// writing to a URL drop it with PublicValues.
func Serialize(v View) url.Values {
	out := url.Values{}
	setIf(out, keyID, v.ID)
	setIf(out, keyLegacySearchTerm, v.LegacySearchTerm)
	setIf(out, keySearchText, v.SearchText)
	setIf(out, keyContentTypeID, v.ContentTypeID)
	setIf(out, keyOrderFieldID, v.Order.FieldID)
	setIf(out, keyOrderDirection, string(v.Order.Direction))
	for _, id := range v.DisplayedFieldIDs {
		out.Add(keyDisplayedFieldIDs, id)
	}
	for _, f := range v.SearchFilters {
		out.Add(keyFilterKey, f.Key)
		out.Add(keyFilterOperator, f.Operator)
		out.Add(keyFilterValue, f.Value)
	}
	return out
}

// PublicValues drops underscore-prefixed keys.
func PublicValues(values url.Values) url.Values {
	out := url.Values{}
	for key, vals := range values {
		if strings.HasPrefix(key, "_") {
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// Encode serializes a view for a URL: public keys only, repeat array encoding.
func Encode(v View) string {
	return PublicValues(Serialize(v.StripUIOnly())).Encode()
}

// ParseQuery decodes query-string values into a Partial, keeping track of
// which properties were present. Unknown keys are ignored.
func ParseQuery(values url.Values) Partial {
	var p Partial
	if v, ok := first(values, keyID); ok {
		p.ID = &v
	}
	if v, ok := first(values, keyTitle); ok {
		p.Title = &v
	}
	if v, ok := first(values, keyLegacySearchTerm); ok {
		p.LegacySearchTerm = &v
	}
	if v, ok := first(values, keySearchText); ok {
		p.SearchText = &v
	}
	if v, ok := first(values, keyContentTypeID); ok {
		p.ContentTypeID = &v
	}
	fieldID, hasField := first(values, keyOrderFieldID)
	direction, hasDirection := first(values, keyOrderDirection)
	if hasField || hasDirection {
		p.Order = &Order{FieldID: fieldID, Direction: parseDirection(direction)}
	}
	if ids, ok := values[keyDisplayedFieldIDs]; ok {
		p.DisplayedFieldIDs = append([]string{}, ids...)
	}
	if keys, ok := values[keyFilterKey]; ok {
		ops := values[keyFilterOperator]
		vals := values[keyFilterValue]
		filters := make([]Filter, 0, len(keys))
		for i, key := range keys {
			f := Filter{Key: key}
			if i < len(ops) {
				f.Operator = ops[i]
			}
			if i < len(vals) {
				f.Value = vals[i]
			}
			filters = append(filters, f)
		}
		p.SearchFilters = filters
	}
	return p
}

// Unserialize is the inverse of Serialize.
func Unserialize(values url.Values) View {
	return ParseQuery(values).Apply(View{})
}

// ParseQueryString parses a raw query string, with or without a leading "?".
// Malformed input yields an empty Partial.
func ParseQueryString(raw string) Partial {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	if raw == "" {
		return Partial{}
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return Partial{}
	}
	return ParseQuery(values)
}

func parseDirection(raw string) Direction {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case Ascending:
		return Ascending
	case Descending:
		return Descending
	default:
		return ""
	}
}

func setIf(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func first(values url.Values, key string) (string, bool) {
	vals, ok := values[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Package query turns filter pills into the flat parameter object sent to a
// collection API.
package query

import (
	"strings"

	"github.com/entitylist/entitylist/internal/view"
)

// Params is the flat query object handed to a fetch function.
type Params = map[string]any

const (
	roleNameKey   = "sys.spaceMemberships.roles.name"
	adminKey      = "sys.spaceMemberships.admin"
	adminRoleName = "Admin"
)

// Filter is a single key/operator/value condition.
type Filter struct {
	Key      string
	Operator string
	Value    any
}

// Format builds query parameters from filters. Filters with a nil or empty
// string value are dropped; false and zero are kept. "Admin" is not a role
// name on the backend, so that role filter becomes the admin flag.
func Format(filters []Filter) Params {
	out := Params{}
	for _, f := range filters {
		if isEmptyValue(f.Value) {
			continue
		}
		key := f.Key
		value := f.Value
		if key == roleNameKey && value == adminRoleName {
			key = adminKey
			value = "true"
		}
		out[paramName(key, f.Operator)] = value
	}
	return out
}

// FromView adapts view filter triples.
func FromView(filters []view.Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.Key == view.OrderKey {
			continue
		}
		out = append(out, Filter{Key: f.Key, Operator: f.Operator, Value: f.Value})
	}
	return out
}

// SplitParam is the inverse of the key[operator] naming.
func SplitParam(name string) (key, operator string) {
	name = strings.TrimSpace(name)
	open := strings.LastIndex(name, "[")
	if open <= 0 || !strings.HasSuffix(name, "]") {
		return name, ""
	}
	return name[:open], name[open+1 : len(name)-1]
}

func paramName(key, operator string) string {
	if operator == "" {
		return key
	}
	return key + "[" + operator + "]"
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case *string:
		return t == nil || *t == ""
	default:
		return false
	}
}

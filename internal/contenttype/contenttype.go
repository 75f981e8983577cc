// Package contenttype loads the content type catalogue used for ordering by
// display field and for filter suggestions.
package contenttype

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Field types understood by the suggestion and operator logic.
const (
	TypeSymbol   = "Symbol"
	TypeText     = "Text"
	TypeRichText = "RichText"
	TypeInteger  = "Integer"
	TypeNumber   = "Number"
	TypeDate     = "Date"
	TypeBoolean  = "Boolean"
	TypeLink     = "Link"
	TypeArray    = "Array"
	TypeLocation = "Location"
	TypeObject   = "Object"
)

var (
	ErrNoContentTypes = errors.New("catalogue has no content types")
	ErrDuplicateID    = errors.New("duplicate content type id")
)

type Validation struct {
	In []any `yaml:"in,omitempty" json:"in,omitempty"`
}

type Items struct {
	Type        string       `yaml:"type" json:"type"`
	LinkType    string       `yaml:"linkType,omitempty" json:"linkType,omitempty"`
	Validations []Validation `yaml:"validations,omitempty" json:"validations,omitempty"`
}

type Field struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	Type        string       `yaml:"type" json:"type"`
	LinkType    string       `yaml:"linkType,omitempty" json:"linkType,omitempty"`
	Items       *Items       `yaml:"items,omitempty" json:"items,omitempty"`
	Validations []Validation `yaml:"validations,omitempty" json:"validations,omitempty"`
	Disabled    bool         `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Omitted     bool         `yaml:"omitted,omitempty" json:"omitted,omitempty"`
}

// Key is the query key of the field.
func (f Field) Key() string {
	return "fields." + f.ID
}

// Label is the display name, falling back to the id.
func (f Field) Label() string {
	if strings.TrimSpace(f.Name) != "" {
		return f.Name
	}
	return f.ID
}

// AllowedValues returns the values of the first "in" validation, on the field
// itself or on its array items.
func (f Field) AllowedValues() []string {
	validations := f.Validations
	if f.Type == TypeArray && f.Items != nil {
		validations = append(append([]Validation(nil), validations...), f.Items.Validations...)
	}
	for _, v := range validations {
		if len(v.In) == 0 {
			continue
		}
		out := make([]string, 0, len(v.In))
		for _, raw := range v.In {
			out = append(out, fmt.Sprint(raw))
		}
		return out
	}
	return nil
}

// Operators lists the query operators a filter on this field may use. The
// empty string is equality.
func (f Field) Operators() []string {
	switch f.Type {
	case TypeInteger, TypeNumber, TypeDate:
		return []string{"", "ne", "lt", "lte", "gt", "gte", "exists"}
	case TypeBoolean:
		return []string{"", "exists"}
	case TypeText, TypeRichText:
		return []string{"match", "exists"}
	case TypeLink, TypeLocation, TypeObject:
		return []string{"exists"}
	case TypeArray:
		if f.Items != nil && f.Items.Type == TypeSymbol {
			return []string{"in", "nin", "exists"}
		}
		return []string{"exists"}
	default:
		if len(f.AllowedValues()) > 0 {
			return []string{"", "ne", "in", "nin", "exists"}
		}
		return []string{"", "ne", "match", "exists"}
	}
}

// DefaultOperator is the first entry of Operators.
func (f Field) DefaultOperator() string {
	return f.Operators()[0]
}

// SingleValue reports the value a new filter on this field can be prefilled
// with: "true" for a boolean, or the only option of an enum.
func (f Field) SingleValue() (string, bool) {
	if f.Type == TypeBoolean {
		return "true", true
	}
	values := f.AllowedValues()
	if len(values) == 1 {
		return values[0], true
	}
	return "", false
}

type ContentType struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	Description  string  `yaml:"description,omitempty" json:"description,omitempty"`
	DisplayField string  `yaml:"displayField,omitempty" json:"displayField,omitempty"`
	Fields       []Field `yaml:"fields" json:"fields"`
}

// Field looks up a field by id.
func (ct ContentType) Field(id string) (Field, bool) {
	for _, f := range ct.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// document is the YAML file layout.
type document struct {
	ContentTypes []ContentType `yaml:"contentTypes"`
	HiddenFields []string      `yaml:"hiddenFields"`
}

// Catalog is an immutable set of content types plus hidden-field patterns.
type Catalog struct {
	types          []ContentType
	byID           map[string]int
	hiddenPatterns []string
	hidden         []glob.Glob
}

// New builds a catalogue. Hidden patterns are globs over field keys, with "."
// as the separator (e.g. "fields.internal*").
func New(types []ContentType, hiddenPatterns []string) (*Catalog, error) {
	c := &Catalog{
		types: make([]ContentType, 0, len(types)),
		byID:  make(map[string]int, len(types)),
	}
	for _, ct := range types {
		ct.ID = strings.TrimSpace(ct.ID)
		if ct.ID == "" {
			return nil, errors.New("content type id is required")
		}
		if _, ok := c.byID[ct.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, ct.ID)
		}
		if ct.DisplayField != "" {
			if _, ok := ct.Field(ct.DisplayField); !ok {
				return nil, fmt.Errorf("content type %q: display field %q is not a field", ct.ID, ct.DisplayField)
			}
		}
		c.byID[ct.ID] = len(c.types)
		c.types = append(c.types, ct)
	}
	for _, pattern := range hiddenPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("compile hidden field pattern %q: %w", pattern, err)
		}
		c.hiddenPatterns = append(c.hiddenPatterns, pattern)
		c.hidden = append(c.hidden, g)
	}
	return c, nil
}

// Parse decodes a YAML catalogue.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse content types: %w", err)
	}
	if len(doc.ContentTypes) == 0 {
		return nil, ErrNoContentTypes
	}
	return New(doc.ContentTypes, doc.HiddenFields)
}

// Load reads and parses a YAML catalogue file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content types %q: %w", path, err)
	}
	return Parse(data)
}

// Empty returns a catalogue without content types.
func Empty() *Catalog {
	c, _ := New(nil, nil)
	return c
}

// Get returns the content type with the given id.
func (c *Catalog) Get(id string) (ContentType, bool) {
	if c == nil {
		return ContentType{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return ContentType{}, false
	}
	return c.types[i], true
}

// All returns the content types in declaration order.
func (c *Catalog) All() []ContentType {
	if c == nil {
		return nil
	}
	return append([]ContentType(nil), c.types...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.types)
}

// IDs returns the content type ids, sorted.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.types))
	for _, ct := range c.types {
		ids = append(ids, ct.ID)
	}
	sort.Strings(ids)
	return ids
}

// HiddenPatterns returns the configured hidden-field globs.
func (c *Catalog) HiddenPatterns() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.hiddenPatterns...)
}

// IsHidden reports whether a field key matches a hidden-field pattern.
func (c *Catalog) IsHidden(key string) bool {
	if c == nil {
		return false
	}
	for _, g := range c.hidden {
		if g.Match(key) {
			return true
		}
	}
	return false
}

// DisplayField returns the display field id of a content type.
func (c *Catalog) DisplayField(contentTypeID string) (string, bool) {
	ct, ok := c.Get(contentTypeID)
	if !ok || ct.DisplayField == "" {
		return "", false
	}
	return ct.DisplayField, true
}

// HasField reports whether the content type declares a field id.
func (c *Catalog) HasField(contentTypeID, fieldID string) bool {
	ct, ok := c.Get(contentTypeID)
	if !ok {
		return false
	}
	_, ok = ct.Field(fieldID)
	return ok
}

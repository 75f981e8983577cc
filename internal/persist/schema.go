package persist

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const storedViewSchemaJSON = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "searchText": {"type": "string"},
    "contentTypeId": {"type": ["string", "null"]},
    "searchFilters": {
      "type": ["array", "null"],
      "items": {
        "type": "array",
        "minItems": 3,
        "maxItems": 3,
        "items": [
          {"type": "string"},
          {"type": ["string", "null"]},
          {"type": ["string", "boolean", "number", "null"]}
        ]
      }
    },
    "order": {
      "type": ["object", "null"],
      "properties": {
        "fieldId": {"type": "string"},
        "direction": {"enum": ["ascending", "descending", ""]}
      }
    },
    "displayedFieldIds": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    }
  }
}`

var storedViewSchema = mustCompileSchema(storedViewSchemaJSON)

func mustCompileSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("persist: compile stored view schema: %v", err))
	}
	return schema
}

// validateStored checks raw stored JSON against the stored view shape.
func validateStored(raw []byte) error {
	result, err := storedViewSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("stored view does not match schema: %s", strings.Join(msgs, "; "))
}

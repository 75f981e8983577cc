package view

import (
	"strings"

	"github.com/entitylist/entitylist/internal/entity"
)

// Defaults returns the lowest-precedence view for an entity type.
func Defaults(entityType string) View {
	switch NormalizeEntityType(entityType) {
	case entity.TypeAsset:
		return View{
			Order:             Order{FieldID: "updatedAt", Direction: Descending},
			DisplayedFieldIDs: []string{"dimensions", "type", "updatedAt", "author", "status"},
		}
	default:
		return View{
			Order:             Order{FieldID: "updatedAt", Direction: Descending},
			DisplayedFieldIDs: []string{"contentType", "updatedAt", "author", "status"},
		}
	}
}

// NormalizeEntityType maps route and storage spellings ("entries", "asset")
// onto the entity type names. Unknown values yield "".
func NormalizeEntityType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "entry", "entries":
		return entity.TypeEntry
	case "asset", "assets":
		return entity.TypeAsset
	default:
		return ""
	}
}

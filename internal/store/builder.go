package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/query"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const statusExpr = `CASE WHEN e.archived_at IS NOT NULL THEN 'archived' ` +
	`WHEN e.published_at IS NULL THEN 'draft' ` +
	`WHEN e.updated_at > e.published_at THEN 'changed' ` +
	`ELSE 'published' END`

const selectColumns = `e.id, e.entity_type, e.content_type_id, e.fields, e.tags, ` +
	`e.created_at, e.updated_at, e.published_at, e.archived_at`

type columnKind int

const (
	kindText columnKind = iota
	kindTime
)

type sysColumn struct {
	expr string
	kind columnKind
}

var sysColumns = map[string]sysColumn{
	"id":                 {expr: "e.id", kind: kindText},
	"type":               {expr: "e.entity_type", kind: kindText},
	"contentType.sys.id": {expr: "e.content_type_id", kind: kindText},
	"createdBy.sys.id":   {expr: "e.created_by", kind: kindText},
	"status":             {expr: statusExpr, kind: kindText},
	"createdAt":          {expr: "e.created_at", kind: kindTime},
	"updatedAt":          {expr: "e.updated_at", kind: kindTime},
	"publishedAt":        {expr: "e.published_at", kind: kindTime},
	"archivedAt":         {expr: "e.archived_at", kind: kindTime},
}

// Scope selects the entities of one list.
type Scope struct {
	SpaceID       string
	EnvironmentID string
	EntityType    string
}

// Query is a parameterised statement pair: one page of rows and the total.
type Query struct {
	SQL      string
	CountSQL string
	Args     []any
	// CountArgs omits the trailing offset and limit.
	CountArgs []any
	Limit     int
	Skip      int
}

type builder struct {
	where []string
	args  []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func invalidQuery(format string, args ...any) error {
	return &entity.APIError{Status: 422, Code: entity.CodeInvalidQuery, Message: fmt.Sprintf(format, args...)}
}

// Build translates collection parameters into SQL. Unknown keys or operators
// are rejected with an InvalidQuery error.
func Build(scope Scope, params map[string]any) (Query, error) {
	b := &builder{}
	b.where = append(b.where,
		"e.space_id = "+b.arg(scope.SpaceID),
		"e.environment_id = "+b.arg(scope.EnvironmentID),
	)
	if scope.EntityType != "" {
		b.where = append(b.where, "e.entity_type = "+b.arg(scope.EntityType))
	}

	skip, limit := 0, DefaultLimit
	order := ""

	// Sorted for stable placeholder numbering.
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := params[name]
		switch name {
		case "skip":
			n, err := intParam(name, value)
			if err != nil {
				return Query{}, err
			}
			if n < 0 {
				return Query{}, invalidQuery("skip must not be negative")
			}
			skip = n
			continue
		case "limit":
			n, err := intParam(name, value)
			if err != nil {
				return Query{}, err
			}
			if n < 1 {
				return Query{}, invalidQuery("limit must be positive")
			}
			limit = min(n, MaxLimit)
			continue
		case "order":
			order = stringParam(value)
			continue
		case "content_type":
			b.where = append(b.where, "e.content_type_id = "+b.arg(stringParam(value)))
			continue
		case "query":
			b.where = append(b.where, "e.fields::text ILIKE "+b.arg("%"+escapeLike(stringParam(value))+"%"))
			continue
		}

		key, op := query.SplitParam(name)
		cond, err := b.condition(key, op, value)
		if err != nil {
			return Query{}, err
		}
		b.where = append(b.where, cond)
	}

	orderBy, err := orderClause(order)
	if err != nil {
		return Query{}, err
	}

	where := strings.Join(b.where, " AND ")
	countArgs := append([]any(nil), b.args...)
	countSQL := "SELECT count(*) FROM entities e WHERE " + where
	offsetPH := b.arg(skip)
	limitPH := b.arg(limit)
	sql := "SELECT " + selectColumns + " FROM entities e WHERE " + where +
		" ORDER BY " + orderBy + " OFFSET " + offsetPH + " LIMIT " + limitPH

	return Query{SQL: sql, CountSQL: countSQL, Args: b.args, CountArgs: countArgs, Limit: limit, Skip: skip}, nil
}

func (b *builder) condition(key, op string, value any) (string, error) {
	switch {
	case key == "sys.spaceMemberships.admin":
		if op != "" {
			return "", invalidQuery("operator %q is not supported on %s", op, key)
		}
		admin, err := boolParam(key, value)
		if err != nil {
			return "", err
		}
		return "e.created_by IN (SELECT m.user_id FROM space_memberships m WHERE m.space_id = e.space_id AND m.admin = " + b.arg(admin) + ")", nil
	case key == "sys.spaceMemberships.roles.name":
		if op != "" {
			return "", invalidQuery("operator %q is not supported on %s", op, key)
		}
		return "EXISTS (SELECT 1 FROM space_memberships m WHERE m.space_id = e.space_id AND m.user_id = e.created_by AND " +
			b.arg(stringParam(value)) + " = ANY(m.roles))", nil
	case key == "metadata.tags.sys.id":
		return b.tagCondition(op, value)
	case strings.HasPrefix(key, "sys."):
		col, ok := sysColumns[strings.TrimPrefix(key, "sys.")]
		if !ok {
			return "", invalidQuery("unknown query key %q", key)
		}
		return b.compare(col.expr, col.kind, op, value, key)
	case strings.HasPrefix(key, "fields."):
		path, err := fieldPath(strings.TrimPrefix(key, "fields."))
		if err != nil {
			return "", err
		}
		return b.fieldCondition(path, op, value, key)
	default:
		return "", invalidQuery("unknown query key %q", key)
	}
}

func (b *builder) compare(expr string, kind columnKind, op string, value any, key string) (string, error) {
	cast := ""
	if kind == kindTime {
		cast = "::timestamptz"
	}
	switch op {
	case "":
		return expr + " = " + b.arg(stringParam(value)) + cast, nil
	case "ne":
		return expr + " IS DISTINCT FROM " + b.arg(stringParam(value)) + cast, nil
	case "lt", "lte", "gt", "gte":
		return expr + " " + comparison(op) + " " + b.arg(stringParam(value)) + cast, nil
	case "exists":
		exists, err := boolParam(key, value)
		if err != nil {
			return "", err
		}
		if exists {
			return expr + " IS NOT NULL", nil
		}
		return expr + " IS NULL", nil
	case "match":
		if kind != kindText {
			return "", invalidQuery("operator %q is not supported on %s", op, key)
		}
		return expr + " ILIKE " + b.arg("%"+escapeLike(stringParam(value))+"%"), nil
	case "in":
		return expr + " = ANY(" + b.arg(listParam(value)) + "::text[])", nil
	case "nin":
		return "NOT (" + expr + " = ANY(" + b.arg(listParam(value)) + "::text[]))", nil
	default:
		return "", invalidQuery("unknown operator %q on %s", op, key)
	}
}

func (b *builder) fieldCondition(path, op string, value any, key string) (string, error) {
	text := "e.fields #>> '" + path + "'"
	node := "e.fields #> '" + path + "'"
	switch op {
	case "", "ne", "match", "exists":
		return b.compare(text, kindText, op, value, key)
	case "lt", "lte", "gt", "gte":
		raw := stringParam(value)
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return "(CASE WHEN jsonb_typeof(" + node + ") = 'number' THEN (" + text + ")::numeric END) " +
				comparison(op) + " " + b.arg(raw) + "::numeric", nil
		}
		return text + " " + comparison(op) + " " + b.arg(raw), nil
	case "in", "nin":
		list := b.arg(listParam(value))
		cond := "(" + text + " = ANY(" + list + "::text[]) OR (jsonb_typeof(" + node + ") = 'array' AND " +
			node + " ?| " + list + "::text[]))"
		if op == "nin" {
			return "NOT " + cond, nil
		}
		return cond, nil
	default:
		return "", invalidQuery("unknown operator %q on %s", op, key)
	}
}

func (b *builder) tagCondition(op string, value any) (string, error) {
	switch op {
	case "in":
		return "e.tags && " + b.arg(listParam(value)) + "::text[]", nil
	case "all":
		return "e.tags @> " + b.arg(listParam(value)) + "::text[]", nil
	case "exists":
		exists, err := boolParam("metadata.tags.sys.id", value)
		if err != nil {
			return "", err
		}
		if exists {
			return "cardinality(e.tags) > 0", nil
		}
		return "cardinality(e.tags) = 0", nil
	default:
		return "", invalidQuery("unknown operator %q on metadata.tags.sys.id", op)
	}
}

// orderClause parses "a,-b" into SQL, appending the id as a tiebreaker.
func orderClause(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "e.updated_at DESC, e.id ASC", nil
	}
	var parts []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(item, "-") {
			dir = "DESC"
			item = strings.TrimPrefix(item, "-")
		}
		var expr string
		switch {
		case strings.HasPrefix(item, "sys."):
			col, ok := sysColumns[strings.TrimPrefix(item, "sys.")]
			if !ok {
				return "", invalidQuery("unknown order key %q", item)
			}
			expr = col.expr
		case strings.HasPrefix(item, "fields."):
			path, err := fieldPath(strings.TrimPrefix(item, "fields."))
			if err != nil {
				return "", err
			}
			expr = "e.fields #>> '" + path + "'"
		default:
			return "", invalidQuery("unknown order key %q", item)
		}
		nulls := " NULLS LAST"
		if dir == "DESC" {
			nulls = " NULLS FIRST"
		}
		parts = append(parts, expr+" "+dir+nulls)
	}
	if len(parts) == 0 {
		return "e.updated_at DESC, e.id ASC", nil
	}
	return strings.Join(parts, ", ") + ", e.id ASC", nil
}

// fieldPath turns "file.fileName" into the Postgres path literal
// {file,fileName}. Segments are restricted to identifier characters so the
// literal can be inlined.
func fieldPath(raw string) (string, error) {
	segments := strings.Split(raw, ".")
	for _, s := range segments {
		if s == "" {
			return "", invalidQuery("invalid field path %q", raw)
		}
		for _, r := range s {
			if !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return "", invalidQuery("invalid field path %q", raw)
			}
		}
	}
	return "{" + strings.Join(segments, ",") + "}", nil
}

func comparison(op string) string {
	switch op {
	case "lt":
		return "<"
	case "lte":
		return "<="
	case "gt":
		return ">"
	default:
		return ">="
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func stringParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func listParam(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	default:
		raw = strings.Split(stringParam(v), ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intParam(name string, v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	default:
		n, err := strconv.Atoi(strings.TrimSpace(stringParam(v)))
		if err != nil {
			return 0, invalidQuery("%s must be an integer", name)
		}
		return n, nil
	}
}

func boolParam(name string, v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(stringParam(v)))
	if err != nil {
		return false, invalidQuery("%s expects true or false", name)
	}
	return b, nil
}

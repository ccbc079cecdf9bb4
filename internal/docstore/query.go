package docstore

import (
	"fmt"
	"regexp"
)

// ValueKind tells the store how a stored JSON field compares and sorts.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindBool
)

// Filter matches documents whose field equals Value. Value must be a string,
// float64 or bool matching Kind.
type Filter struct {
	Field string
	Kind  ValueKind
	Value any
}

// Sort orders by a stored field or by the "createdAt"/"updatedAt" columns.
type Sort struct {
	Field string
	Kind  ValueKind
	Desc  bool
}

// Query narrows a collection listing.
type Query struct {
	Filters []Filter
	Sort    []Sort
	Limit   int
	Offset  int
}

var fieldNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

var columnFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// dialect renders JSON field access for the active database.
type dialect interface {
	field(name string, kind ValueKind) string
	bind(kind ValueKind, value any) any
}

type postgresDialect struct{}

func (postgresDialect) field(name string, kind ValueKind) string {
	expr := fmt.Sprintf("(fields->>'%s')", name)
	if kind == KindNumber {
		return expr + "::numeric"
	}
	return expr
}

func (postgresDialect) bind(kind ValueKind, value any) any {
	if kind == KindBool {
		if b, ok := value.(bool); ok && b {
			return "true"
		}
		return "false"
	}
	return value
}

type sqliteDialect struct{}

func (sqliteDialect) field(name string, kind ValueKind) string {
	return fmt.Sprintf("json_extract(fields, '$.%s')", name)
}

func (sqliteDialect) bind(kind ValueKind, value any) any {
	if kind == KindBool {
		if b, ok := value.(bool); ok && b {
			return 1
		}
		return 0
	}
	return value
}

func dialectFor(name string) dialect {
	if name == "sqlite" {
		return sqliteDialect{}
	}
	return postgresDialect{}
}

func validateField(name string) error {
	if !fieldNameRe.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

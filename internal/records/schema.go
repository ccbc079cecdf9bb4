package records

import (
	"github.com/angelmondragon/studyabroad-backend/internal/docstore"
	"github.com/angelmondragon/studyabroad-backend/internal/media"
)

// DefaultMaxEncodedLen caps the serialized size of structured fields.
const DefaultMaxEncodedLen = 10000

// FieldKind selects how a field is validated, stored and decoded.
type FieldKind int

const (
	KindString FieldKind = iota
	KindText
	KindEmail
	KindURL
	KindInt
	KindDecimal
	KindDate
	KindBool
	KindEnum
	KindList
	KindObject
	KindObjectList
)

// Structured reports whether values of the kind are stored as JSON strings.
func (k FieldKind) Structured() bool {
	return k == KindList || k == KindObject || k == KindObjectList
}

func (k FieldKind) valueKind() docstore.ValueKind {
	switch k {
	case KindInt:
		return docstore.KindNumber
	case KindBool:
		return docstore.KindBool
	default:
		return docstore.KindText
	}
}

// Field describes one attribute of a collection.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// MaxLen bounds string length in runes, or the encoded size of structured fields.
	MaxLen int
	Min    *int
	Max    *int
	// Options and Default apply to KindEnum. Default is used on create when the
	// field is absent and on read when the stored value is unknown.
	Options    []string
	Default    string
	Filterable bool
	Sortable   bool
}

// MediaSpec binds a collection to a media bucket.
type MediaSpec struct {
	Bucket        string
	Groups        []media.MimeGroup
	Required      bool
	PreviewWidth  int
	PreviewHeight int
}

// Schema is the typed record definition of one collection.
type Schema struct {
	Collection string
	Fields     []Field
	// Media is nil for collections that never carry a file.
	Media *MediaSpec
	// PublicRead exposes the collection on the public read endpoints,
	// restricted to documents matching PublicFilter.
	PublicRead   bool
	PublicFilter map[string]string
	// PublicCreate allows unauthenticated creates (contact forms).
	PublicCreate bool
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasMedia reports whether the collection stores files.
func (s *Schema) HasMedia() bool {
	return s.Media != nil
}

// PubliclyVisible reports whether a decoded view passes the public filter.
func (s *Schema) PubliclyVisible(view View) bool {
	if !s.PublicRead {
		return false
	}
	for field, want := range s.PublicFilter {
		if got, _ := view[field].(string); got != want {
			return false
		}
	}
	return true
}

func (f Field) maxEncodedLen() int {
	if f.MaxLen > 0 {
		return f.MaxLen
	}
	return DefaultMaxEncodedLen
}

func (f Field) enumDefault() string {
	if f.Default != "" {
		return f.Default
	}
	if len(f.Options) > 0 {
		return f.Options[0]
	}
	return ""
}

func (f Field) allows(option string) bool {
	for _, o := range f.Options {
		if o == option {
			return true
		}
	}
	return false
}

// IntPtr is a helper for Field.Min and Field.Max literals.
func IntPtr(v int) *int {
	return &v
}

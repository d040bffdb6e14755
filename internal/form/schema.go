// Package form interprets a server-provided schema into grouped fields and
// decides, for a given input set, which fields are active and which hold
// acceptable values.
//
// A schema arrives as a flat ordered list of entries. Heading entries start
// a new group; every other entry describes one field bound to an input key.
// Fields may carry activation conditions over other inputs and a closed set
// of selectable options.
package form

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// FieldType is the declared type of a field's value.
type FieldType string

const (
	TypeBool   FieldType = "bool"
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float64"
)

// Known reports whether the validator has a rule for this type.
func (t FieldType) Known() bool {
	switch t {
	case TypeBool, TypeString, TypeInt, TypeFloat:
		return true
	}
	return false
}

// Relation is the comparison operator of a Condition.
type Relation string

const (
	RelEqual    Relation = "=="
	RelNotEqual Relation = "!="
	RelLess     Relation = "<"
	RelGreater  Relation = ">"
	RelIn       Relation = "in"
)

// Condition is one activation predicate over another field's input value.
type Condition struct {
	Field    string   `json:"field"`
	Relation Relation `json:"relation"`
	Value    Value    `json:"value"`
}

// Option is one selectable value of an enumerated field.
type Option struct {
	Value Value  `json:"value"`
	Text  string `json:"text"`
}

// RawEntry is the wire form of one schema row. A row whose Heading key is
// present (even if empty) is a group heading, not a field.
type RawEntry struct {
	Keyword      string      `json:"Keyword,omitempty"`
	Field        string      `json:"Field,omitempty"`
	Type         FieldType   `json:"Type,omitempty"`
	Dims         int         `json:"Dims,omitempty"`
	Desc         string      `json:"Desc,omitempty"`
	Heading      *string     `json:"Heading,omitempty"`
	Default      *Value      `json:"Default,omitempty"`
	CanBeDefault bool        `json:"CanBeDefault,omitempty"`
	Unit         string      `json:"Unit,omitempty"`
	Options      []Option    `json:"Options,omitempty"`
	Active       []Condition `json:"Active,omitempty"`
}

// IsHeading reports whether the entry starts a new group.
func (e RawEntry) IsHeading() bool { return e.Heading != nil }

// Heading builds a heading entry.
func Heading(name string) RawEntry { return RawEntry{Heading: &name} }

// FieldSpec describes one form field. It is built once from a RawEntry and
// not modified afterwards.
type FieldSpec struct {
	Keyword      string      `json:"Keyword"`
	Field        string      `json:"Field"`
	Type         FieldType   `json:"Type"`
	Dims         int         `json:"Dims,omitempty"`
	Desc         string      `json:"Desc,omitempty"`
	Default      *Value      `json:"Default,omitempty"`
	CanBeDefault bool        `json:"CanBeDefault,omitempty"`
	Unit         string      `json:"Unit,omitempty"`
	Options      []Option    `json:"Options,omitempty"`
	Active       []Condition `json:"Active,omitempty"`
}

func newFieldSpec(e RawEntry) FieldSpec {
	field := e.Field
	if field == "" {
		field = KeywordToField(e.Keyword)
	}
	return FieldSpec{
		Keyword:      e.Keyword,
		Field:        field,
		Type:         e.Type,
		Dims:         e.Dims,
		Desc:         e.Desc,
		Default:      e.Default,
		CanBeDefault: e.CanBeDefault,
		Unit:         e.Unit,
		Options:      NormalizeOptions(e.Options),
		Active:       append([]Condition(nil), e.Active...),
	}
}

// KeywordToField derives the input key of a keyword: parentheses are
// dropped and the first letter is upper-cased, so "BDBldFile(1)" binds to
// "BDBldFile1".
func KeywordToField(keyword string) string {
	s := strings.NewReplacer("(", "", ")", "").Replace(keyword)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SchemaGroup is a named, ordered run of fields.
type SchemaGroup struct {
	Name    string      `json:"name"`
	Entries []FieldSpec `json:"entries"`
}

// Schema is a grouped schema with a keyword index.
type Schema struct {
	Name   string
	Groups []SchemaGroup

	byKeyword map[string]FieldSpec
	byField   map[string]FieldSpec
}

// NewSchema groups entries and indexes them. Keywords must be unique.
func NewSchema(name string, entries []RawEntry) (*Schema, error) {
	s := &Schema{
		Name:      name,
		Groups:    Group(entries),
		byKeyword: make(map[string]FieldSpec),
		byField:   make(map[string]FieldSpec),
	}
	for _, f := range s.Fields() {
		if f.Keyword == "" {
			return nil, fmt.Errorf("form: schema %s: field without keyword", name)
		}
		if _, dup := s.byKeyword[f.Keyword]; dup {
			return nil, fmt.Errorf("form: schema %s: duplicate keyword %q", name, f.Keyword)
		}
		s.byKeyword[f.Keyword] = f
		s.byField[f.Field] = f
	}
	return s, nil
}

// ParseSchema decodes a JSON entry list and builds the schema.
func ParseSchema(name string, data []byte) (*Schema, error) {
	var entries []RawEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("form: decoding schema %s: %w", name, err)
	}
	return NewSchema(name, entries)
}

// SchemaSource fetches the raw JSON of a named schema.
type SchemaSource interface {
	Schema(ctx context.Context, name string) ([]byte, error)
}

// SchemaLoadError means a schema could not be fetched or understood. The
// form should render an empty state rather than fail.
type SchemaLoadError struct {
	Name string
	Err  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("loading schema %s: %v", e.Name, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// LoadSchema fetches and parses a schema. Every failure is reported as a
// *SchemaLoadError. Fields with unrecognized types are logged.
func LoadSchema(ctx context.Context, src SchemaSource, name string) (*Schema, error) {
	data, err := src.Schema(ctx, name)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Err: err}
	}
	s, err := ParseSchema(name, data)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Err: err}
	}
	for _, kw := range s.UnknownTypes() {
		f := s.byKeyword[kw]
		log.Printf("form: schema %s: field %s has unrecognized type %q, accepting any value", name, kw, f.Type)
	}
	return s, nil
}

// Fields returns every field in schema order.
func (s *Schema) Fields() []FieldSpec {
	var out []FieldSpec
	for _, g := range s.Groups {
		out = append(out, g.Entries...)
	}
	return out
}

// Field returns the field with the given keyword.
func (s *Schema) Field(keyword string) (FieldSpec, bool) {
	f, ok := s.byKeyword[keyword]
	return f, ok
}

// Lookup finds a field by keyword, falling back to its input key.
func (s *Schema) Lookup(name string) (FieldSpec, bool) {
	if f, ok := s.byKeyword[name]; ok {
		return f, true
	}
	f, ok := s.byField[name]
	return f, ok
}

// UnknownTypes lists keywords whose declared type has no validation rule.
func (s *Schema) UnknownTypes() []string {
	var out []string
	for _, f := range s.Fields() {
		if !f.Type.Known() {
			out = append(out, f.Keyword)
		}
	}
	return out
}

// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package schema declares the shape of entity types stored in salsa.
//
// An entity type is a Go struct F together with a Schema[F] listing its
// fields in declaration order. Each field says how it participates in
// revision tracking:
//
//   - Identity fields (Field.ID) are encoded into the entity's identity key.
//     Tracked entities with equal identity keys share one Id across
//     revisions. Input entities have no identity fields.
//   - Value fields are revision tracked individually. A value field that
//     declares Equal is backdated: when a recomputation produces an equal
//     value, the field keeps its old revision. A value field declared NoEq is
//     always considered changed.
//
// Field indexes used elsewhere (FieldRevision, FieldKeyIndex) count value
// fields only, in declaration order.
package schema

import (
	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/cockroachdb/errors"
)

// Kind distinguishes the two kinds of stores.
type Kind int8

const (
	// KindInput is an externally mutated store.
	KindInput Kind = iota
	// KindTracked is a store of entities produced by computations.
	KindTracked
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindTracked:
		return "tracked"
	default:
		return "unknown"
	}
}

// Field describes one field of the entity type F.
type Field[F any] struct {
	// Name is used in debug output and error messages.
	Name string
	// ID marks the field as part of the identity key.
	ID bool
	// NoEq opts the field out of backdating.
	NoEq bool
	// Equal reports whether the field holds equal values in a and b.
	Equal func(a, b *F) bool
	// AppendKey appends a self-delimiting encoding of the field to dst.
	// Required for identity fields.
	AppendKey func(dst []byte, f *F) []byte
}

// Backdates returns true if an unchanged recomputed value keeps the field's
// previous revision.
func (f *Field[F]) Backdates() bool {
	return !f.NoEq && f.Equal != nil
}

// Schema describes an entity type. A Schema is immutable once created.
type Schema[F any] struct {
	name   string
	fields []Field[F]
	// Indexes into fields.
	idFields    []int
	valueFields []int
}

// New creates a schema with the given fields, in declaration order.
func New[F any](name string, fields ...Field[F]) *Schema[F] {
	s := &Schema[F]{
		name:   name,
		fields: append([]Field[F](nil), fields...),
	}
	for i := range s.fields {
		if s.fields[i].ID {
			s.idFields = append(s.idFields, i)
		} else {
			s.valueFields = append(s.valueFields, i)
		}
	}
	return s
}

// Name returns the name of the entity type.
func (s *Schema[F]) Name() string {
	return s.name
}

// NumFields returns the number of fields, identity and value.
func (s *Schema[F]) NumFields() int {
	return len(s.fields)
}

// NumValueFields returns the number of value fields.
func (s *Schema[F]) NumValueFields() int {
	return len(s.valueFields)
}

// NumIdentityFields returns the number of identity fields.
func (s *Schema[F]) NumIdentityFields() int {
	return len(s.idFields)
}

// ValueField returns the i-th value field.
func (s *Schema[F]) ValueField(i int) *Field[F] {
	return &s.fields[s.valueFields[i]]
}

// CheckValueField returns an ErrInvalidField error if i is not a valid value
// field index.
func (s *Schema[F]) CheckValueField(i int) error {
	if i < 0 || i >= len(s.valueFields) {
		return base.AssertionErrorf(base.ErrInvalidField,
			"%s: value field %d out of range [0, %d)", errors.Safe(s.name), errors.Safe(i), errors.Safe(len(s.valueFields)))
	}
	return nil
}

// IdentityKey appends the identity key of f to dst. Two entities have equal
// keys if and only if all their identity fields encode equally.
func (s *Schema[F]) IdentityKey(dst []byte, f *F) []byte {
	for _, i := range s.idFields {
		dst = s.fields[i].AppendKey(dst, f)
	}
	return dst
}

// Validate checks that the schema can back a store of the given kind. Input
// schemas have no identity fields; tracked schemas have at least one.
func (s *Schema[F]) Validate(kind Kind) error {
	if s.name == "" {
		return invalidf("schema has no name")
	}
	seen := make(map[string]struct{}, len(s.fields))
	for i := range s.fields {
		f := &s.fields[i]
		if f.Name == "" {
			return invalidf("%s: field %d has no name", errors.Safe(s.name), errors.Safe(i))
		}
		if _, ok := seen[f.Name]; ok {
			return invalidf("%s: duplicate field %s", errors.Safe(s.name), errors.Safe(f.Name))
		}
		seen[f.Name] = struct{}{}

		switch kind {
		case KindInput:
			if f.ID {
				return invalidf("%s.%s: identity fields cannot be used with input entities",
					errors.Safe(s.name), errors.Safe(f.Name))
			}
		case KindTracked:
			if f.ID {
				if f.AppendKey == nil {
					return invalidf("%s.%s: identity field has no key encoding",
						errors.Safe(s.name), errors.Safe(f.Name))
				}
				continue
			}
			if f.NoEq && f.Equal != nil {
				return invalidf("%s.%s: field declares both Equal and NoEq",
					errors.Safe(s.name), errors.Safe(f.Name))
			}
			if !f.NoEq && f.Equal == nil {
				return invalidf("%s.%s: value field must declare Equal or NoEq",
					errors.Safe(s.name), errors.Safe(f.Name))
			}
		default:
			return invalidf("unknown store kind %d", errors.Safe(kind))
		}
	}
	if kind == KindTracked && len(s.idFields) == 0 {
		// Every entity would share the empty identity key.
		return invalidf("%s: tracked entities need at least one identity field", errors.Safe(s.name))
	}
	return nil
}

func invalidf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), base.ErrInvalidField)
}

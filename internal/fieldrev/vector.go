// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package fieldrev implements per-field revision vectors and the backdating
// algorithm that maintains them.
//
// A Vector holds one revision per value field of an entity: the revision in
// which that field's value last changed. It does not record when the value
// was last verified. Downstream computations that read a single field only
// need to be re-run if that field's revision is newer than the revision in
// which they last ran.
package fieldrev

import (
	"strings"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/cockroachdb/errors"
)

// Vector records the last-changed revision of each value field. The length of
// a Vector is fixed by the entity's schema.
type Vector []base.Revision

// New returns a vector of n fields, all stamped with rev.
func New(n int, rev base.Revision) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = rev
	}
	return v
}

// Stamp records that field i changed in rev.
func (v Vector) Stamp(i int, rev base.Revision) {
	v[i] = rev
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// CheckAtMost returns an assertion failure if any field is stamped with a
// revision newer than current.
func (v Vector) CheckAtMost(current base.Revision) error {
	for i, r := range v {
		if r > current {
			return errors.AssertionFailedf("field %d stamped %s, after current revision %s",
				errors.Safe(i), r, current)
		}
	}
	return nil
}

func (v Vector) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, r := range v {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(r.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

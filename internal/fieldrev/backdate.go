// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package fieldrev

import (
	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/OLUWAMUYIWA/salsa/schema"
)

// Result summarizes the effect of a Backdate call.
type Result struct {
	// Backdated is the number of value fields whose revision was kept because
	// the recomputed value compared equal.
	Backdated int
	// Changed is the number of value fields stamped with the current revision.
	Changed int
}

// Accumulate adds the counts of other to r.
func (r *Result) Accumulate(other Result) {
	r.Backdated += other.Backdated
	r.Changed += other.Changed
}

// Backdate updates v for a recomputation of an entity from prev to next. For
// each value field:
//
//   - if the field backdates and the prev and next values are equal, its
//     revision is left untouched;
//   - otherwise it is stamped with current.
//
// Identity fields are not compared: they are equal by construction for a
// given Id. The caller is responsible for replacing prev with next afterwards
// and for holding whatever lock makes the pair of steps atomic.
func Backdate[F any](s *schema.Schema[F], current base.Revision, prev, next *F, v Vector) Result {
	var res Result
	for i := range s.NumValueFields() {
		f := s.ValueField(i)
		if f.Backdates() && f.Equal(prev, next) {
			res.Backdated++
			continue
		}
		v[i] = current
		res.Changed++
	}
	return res
}

// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package metrics

import (
	"github.com/OLUWAMUYIWA/salsa/internal/invariants"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// ByKind contains two instances of a struct T, one for each kind of entity
// store.
type ByKind[T any] struct {
	Input   T
	Tracked T
}

func (bk *ByKind[T]) Get(kind schema.Kind) T {
	return *bk.Ptr(kind)
}

func (bk *ByKind[T]) Ptr(kind schema.Kind) *T {
	switch kind {
	case schema.KindInput:
		return &bk.Input
	case schema.KindTracked:
		return &bk.Tracked
	default:
		if invariants.Enabled {
			panic(errors.AssertionFailedf("invalid kind %d", kind))
		}
		return &bk.Input
	}
}

// EntityCountsByKind contains entity counts broken down by store kind.
type EntityCountsByKind struct {
	ByKind[EntityCounts]
}

func (c *EntityCountsByKind) Accumulate(rhs EntityCountsByKind) {
	c.Input.Accumulate(rhs.Input)
	c.Tracked.Accumulate(rhs.Tracked)
}

func (c EntityCountsByKind) Total() EntityCounts {
	return c.Input.Sum(c.Tracked)
}

func (c EntityCountsByKind) String() string {
	return redact.StringWithoutMarkers(c)
}

// SafeFormat implements redact.SafeFormatter.
func (c EntityCountsByKind) SafeFormat(w redact.SafePrinter, verb rune) {
	switch {
	case c.Input.IsZero() && c.Tracked.IsZero():
		w.Printf("no entities")
	case c.Tracked.IsZero():
		w.Printf("inputs: %s", c.Input)
	case c.Input.IsZero():
		w.Printf("tracked: %s", c.Tracked)
	default:
		w.Printf("inputs: %s; tracked: %s", c.Input, c.Tracked)
	}
}

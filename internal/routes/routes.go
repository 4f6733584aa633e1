// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package routes implements the routing table that assigns every store, and
// every value field of every store, a stable ingredient index.
//
// A Routes is created once per database. Stores register themselves while the
// database is being set up; the table is sealed before the first revision
// advance and is read-only afterwards.
package routes

import (
	"sync"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/cockroachdb/errors"
)

// Routes is the routing table of a database.
type Routes struct {
	mu struct {
		sync.RWMutex
		names  []string
		sealed bool
	}
}

// New returns an empty routing table.
func New() *Routes {
	return &Routes{}
}

// Push registers a new ingredient and returns its index.
func (r *Routes) Push(debugName string) (base.IngredientIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mu.sealed {
		return 0, base.AssertionErrorf(base.ErrSealed,
			"cannot register %s: routing table is sealed", errors.Safe(debugName))
	}
	r.mu.names = append(r.mu.names, debugName)
	return base.IngredientIndex(len(r.mu.names) - 1), nil
}

// PushRange registers n ingredients named by name(i) and returns the index of
// the first; the indexes are contiguous.
func (r *Routes) PushRange(n int, name func(i int) string) (base.IngredientIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mu.sealed {
		return 0, base.AssertionErrorf(base.ErrSealed,
			"cannot register %d ingredients: routing table is sealed", errors.Safe(n))
	}
	first := base.IngredientIndex(len(r.mu.names))
	for i := range n {
		r.mu.names = append(r.mu.names, name(i))
	}
	return first, nil
}

// Seal makes the table read-only. Sealing twice is a no-op.
func (r *Routes) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mu.sealed = true
}

// Len returns the number of registered ingredients.
func (r *Routes) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mu.names)
}

// Name returns the debug name of the ingredient at idx.
func (r *Routes) Name(idx base.IngredientIndex) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(idx) >= len(r.mu.names) {
		return "", false
	}
	return r.mu.names[idx], true
}

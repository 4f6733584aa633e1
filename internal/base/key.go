// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// IngredientIndex is a slot in a database's routing table. Every store, and
// every value field of a store, is registered once and receives its own index.
type IngredientIndex uint32

// DatabaseKeyIndex uniquely identifies a dependency source across the whole
// database: an ingredient (a store, or one field of a store) together with the
// Id of the entity within it.
type DatabaseKeyIndex struct {
	Ingredient IngredientIndex
	Key        Id
}

func (k DatabaseKeyIndex) String() string {
	return fmt.Sprintf("%d/%s", k.Ingredient, k.Key)
}

// SafeFormat implements redact.SafeFormatter.
func (k DatabaseKeyIndex) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(k.String()))
}

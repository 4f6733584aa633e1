// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import (
	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/OLUWAMUYIWA/salsa/internal/fieldrev"
)

// Id exports the base.Id type.
type Id = base.Id

// IdInvalid is the zero Id. It never names an entity.
const IdInvalid = base.IdInvalid

// Revision exports the base.Revision type.
type Revision = base.Revision

// These constants bound the revisions a DB can be in.
const (
	RevisionZero  = base.RevisionZero
	RevisionStart = base.RevisionStart
	RevisionMax   = base.RevisionMax
)

// IngredientIndex exports the base.IngredientIndex type.
type IngredientIndex = base.IngredientIndex

// DatabaseKeyIndex exports the base.DatabaseKeyIndex type.
type DatabaseKeyIndex = base.DatabaseKeyIndex

// UpdateResult exports the fieldrev.Result type: the number of value fields an
// update backdated and the number it stamped with the current revision.
type UpdateResult = fieldrev.Result

var (
	// ErrClosed is returned when an operation is performed on a closed DB.
	ErrClosed = base.ErrClosed
	// ErrDuplicateIdentity marks an insert under an Id already present.
	ErrDuplicateIdentity = base.ErrDuplicateIdentity
	// ErrUnknownIdentity marks an operation on an Id that is not present.
	ErrUnknownIdentity = base.ErrUnknownIdentity
	// ErrDoubleUpdate marks a second update of a tracked entity within one
	// revision.
	ErrDoubleUpdate = base.ErrDoubleUpdate
	// ErrPhaseClosed marks the use of a Computation or Writer after its phase
	// ended.
	ErrPhaseClosed = base.ErrPhaseClosed
	// ErrSealed marks the registration of a store after the first revision
	// advance.
	ErrSealed = base.ErrSealed
	// ErrInvalidField marks an invalid field index or declaration.
	ErrInvalidField = base.ErrInvalidField
)

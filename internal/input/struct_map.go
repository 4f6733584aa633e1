// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package input implements the store of input entities: externally supplied
// facts that are created, mutated and deleted explicitly by a writer.
//
// Input entities are only mutated from the database's exclusive phase, so no
// computation runs concurrently with a mutation. Each entity still carries its
// own lock: a reader that already held the entity when the exclusive phase
// began simply blocks until the mutation finishes, and observes either the
// whole old value or the whole new one.
package input

import (
	"sync"
	"sync/atomic"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/OLUWAMUYIWA/salsa/internal/entitymap"
	"github.com/OLUWAMUYIWA/salsa/internal/fieldrev"
	"github.com/OLUWAMUYIWA/salsa/internal/invariants"
	"github.com/OLUWAMUYIWA/salsa/internal/routes"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/cockroachdb/errors"
)

// value is the slot holding one input entity. Slots never move once inserted.
type value[F any] struct {
	id base.Id
	mu struct {
		sync.RWMutex
		fields    F
		revisions fieldrev.Vector
	}
}

// Metrics holds metrics for an input store.
type Metrics struct {
	// Live is the number of entities in the store.
	Live int64
	// Inserted is the number of entities ever inserted.
	Inserted int64
	// Deleted is the number of entities deleted.
	Deleted int64
	// Stamps is the number of field revisions stamped through update handles.
	Stamps int64
}

// StructMap maps input Ids to their data.
type StructMap[F any] struct {
	schema *schema.Schema[F]
	m      entitymap.Map[value[F]]

	ingredient       base.IngredientIndex
	fieldIngredients base.IngredientIndex

	metrics struct {
		inserted atomic.Int64
		deleted  atomic.Int64
		stamps   atomic.Int64
	}
}

// New creates an empty StructMap for entities described by s, registering the
// store and each of its fields in r. numShards must be a power of two.
func New[F any](
	s *schema.Schema[F], r *routes.Routes, numShards, initialCapacity int,
) (*StructMap[F], error) {
	if err := s.Validate(schema.KindInput); err != nil {
		return nil, err
	}
	m := &StructMap[F]{schema: s}
	var err error
	if m.ingredient, err = r.Push(s.Name()); err != nil {
		return nil, err
	}
	m.fieldIngredients, err = r.PushRange(s.NumValueFields(), func(i int) string {
		return s.Name() + "." + s.ValueField(i).Name
	})
	if err != nil {
		return nil, err
	}
	m.m.Init(numShards, initialCapacity)
	return m, nil
}

// Schema returns the schema of the stored entities.
func (m *StructMap[F]) Schema() *schema.Schema[F] {
	return m.schema
}

// Insert stores a new entity under id with every field stamped with current.
// It fails with ErrDuplicateIdentity if id is already present, which only a
// caller fabricating Ids can cause.
func (m *StructMap[F]) Insert(id base.Id, fields F, current base.Revision) error {
	v := &value[F]{id: id}
	v.mu.fields = fields
	v.mu.revisions = fieldrev.New(m.schema.NumValueFields(), current)
	if !m.m.Insert(id, v) {
		return base.AssertionErrorf(base.ErrDuplicateIdentity,
			"%s: duplicate identity %s", errors.Safe(m.schema.Name()), id)
	}
	m.metrics.inserted.Add(1)
	return nil
}

func (m *StructMap[F]) lookup(id base.Id) (*value[F], error) {
	v, ok := m.m.Get(id)
	if !ok {
		return nil, base.UnknownIdentityError(m.schema.Name(), id)
	}
	return v, nil
}

// Get returns a copy of the fields of id. The copy is taken under the entity's
// read lock, so it blocks behind a concurrent Update and never observes a
// partially applied one. The copy is shallow.
func (m *StructMap[F]) Get(id base.Id) (F, error) {
	v, err := m.lookup(id)
	if err != nil {
		var zero F
		return zero, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mu.fields, nil
}

// View calls fn with the fields of id while holding the entity's read lock.
// The pointer must not be retained after fn returns.
func (m *StructMap[F]) View(id base.Id, fn func(*F)) error {
	v, err := m.lookup(id)
	if err != nil {
		return err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	fn(&v.mu.fields)
	return nil
}

// FieldRevision returns the revision in which field i of id last changed.
func (m *StructMap[F]) FieldRevision(id base.Id, i int) (base.Revision, error) {
	if err := m.schema.CheckValueField(i); err != nil {
		return base.RevisionZero, err
	}
	v, err := m.lookup(id)
	if err != nil {
		return base.RevisionZero, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mu.revisions[i], nil
}

// Revisions returns a copy of the revision vector of id.
func (m *StructMap[F]) Revisions(id base.Id) (fieldrev.Vector, error) {
	v, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mu.revisions.Clone(), nil
}

// Update returns an exclusive handle on id, stamping changes with current.
// The entity stays write-locked until the handle is closed.
//
// Update must only be called from the exclusive phase.
func (m *StructMap[F]) Update(id base.Id, current base.Revision) (*Handle[F], error) {
	v, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	return &Handle[F]{
		m:             m,
		v:             v,
		current:       current,
		prevFields:    v.mu.fields,
		prevRevisions: v.mu.revisions.Clone(),
	}, nil
}

// Delete removes id and returns its fields, or false if id is absent. The
// caller guarantees no reference to the entity is still in use.
func (m *StructMap[F]) Delete(id base.Id) (F, bool) {
	v, ok := m.m.Delete(id)
	if !ok {
		var zero F
		return zero, false
	}
	m.metrics.deleted.Add(1)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mu.fields, true
}

// Len returns the number of live entities.
func (m *StructMap[F]) Len() int {
	return m.m.Len()
}

// DatabaseKeyIndex returns the dependency key of the entity as a whole.
func (m *StructMap[F]) DatabaseKeyIndex(id base.Id) base.DatabaseKeyIndex {
	return base.DatabaseKeyIndex{Ingredient: m.ingredient, Key: id}
}

// FieldKeyIndex returns the dependency key of field i of id.
func (m *StructMap[F]) FieldKeyIndex(id base.Id, i int) (base.DatabaseKeyIndex, error) {
	if err := m.schema.CheckValueField(i); err != nil {
		return base.DatabaseKeyIndex{}, err
	}
	return base.DatabaseKeyIndex{
		Ingredient: m.fieldIngredients + base.IngredientIndex(i),
		Key:        id,
	}, nil
}

// Metrics returns a snapshot of the store's metrics.
func (m *StructMap[F]) Metrics() Metrics {
	return Metrics{
		Live:     int64(m.m.Len()),
		Inserted: m.metrics.inserted.Load(),
		Deleted:  m.metrics.deleted.Load(),
		Stamps:   m.metrics.stamps.Load(),
	}
}

// Handle is an exclusive, lock-holding view of one input entity, returned by
// StructMap.Update. It must be closed.
type Handle[F any] struct {
	m       *StructMap[F]
	v       *value[F]
	current base.Revision
	changed int
	closed  bool
	// The entity as it was when the handle was opened, restored by Abort.
	prevFields    F
	prevRevisions fieldrev.Vector
	closer        invariants.CloseChecker
}

// Id returns the Id of the entity.
func (h *Handle[F]) Id() base.Id {
	return h.v.id
}

// Fields returns a copy of the entity's current fields.
func (h *Handle[F]) Fields() (F, error) {
	if err := h.checkOpen(); err != nil {
		var zero F
		return zero, err
	}
	return h.v.mu.fields, nil
}

func (h *Handle[F]) checkOpen() error {
	if h.closed {
		return base.AssertionErrorf(base.ErrPhaseClosed,
			"%s: handle on %s used after close", errors.Safe(h.m.schema.Name()), h.v.id)
	}
	return nil
}

// Set applies fn to the entity's fields and stamps field i with the current
// revision. Input fields are not backdated: the stamp is applied even if fn
// leaves the value unchanged.
func (h *Handle[F]) Set(i int, fn func(*F)) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if err := h.m.schema.CheckValueField(i); err != nil {
		return err
	}
	fn(&h.v.mu.fields)
	h.v.mu.revisions.Stamp(i, h.current)
	h.changed++
	h.m.metrics.stamps.Add(1)
	return nil
}

// Replace overwrites every field and stamps all of them with the current
// revision.
func (h *Handle[F]) Replace(fields F) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	h.v.mu.fields = fields
	for i := range h.v.mu.revisions {
		h.v.mu.revisions.Stamp(i, h.current)
	}
	h.changed += len(h.v.mu.revisions)
	h.m.metrics.stamps.Add(int64(len(h.v.mu.revisions)))
	return nil
}

// Changed returns the number of field stamps applied through the handle.
func (h *Handle[F]) Changed() int {
	return h.changed
}

// Close releases the entity's lock, keeping the changes made through the
// handle. Closing twice panics in invariant builds and is otherwise a no-op.
func (h *Handle[F]) Close() {
	h.closer.Close()
	if h.closed {
		return
	}
	h.closed = true
	h.v.mu.Unlock()
}

// Abort restores the fields and revisions the entity had when the handle was
// opened and releases the entity's lock. Like Close, it ends the handle.
func (h *Handle[F]) Abort() {
	h.closer.Close()
	if h.closed {
		return
	}
	h.v.mu.fields = h.prevFields
	h.v.mu.revisions = h.prevRevisions
	h.m.metrics.stamps.Add(-int64(h.changed))
	h.changed = 0
	h.closed = true
	h.v.mu.Unlock()
}

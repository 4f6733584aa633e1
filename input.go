// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import (
	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/OLUWAMUYIWA/salsa/internal/input"
	"github.com/OLUWAMUYIWA/salsa/metrics"
	"github.com/OLUWAMUYIWA/salsa/schema"
)

// InputHandle is an exclusive, lock-holding view of one input entity, passed
// to the function given to Input.Update.
type InputHandle[F any] = input.Handle[F]

// Input is a store of input entities of type F: externally supplied facts,
// created, mutated and deleted by a Writer and readable at any time.
type Input[F any] struct {
	db  *DB
	ids base.IdAllocator
	m   *input.StructMap[F]
}

var _ store = (*Input[struct{}])(nil)

// NewInput registers a store of input entities described by s with d. Stores
// must be registered before the first revision advance. The schema of an
// input may not declare identity fields.
func NewInput[F any](d *DB, s *schema.Schema[F]) (*Input[F], error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	m, err := input.New(s, d.routes, d.opts.NumShards, d.opts.InitialCapacity)
	if err != nil {
		return nil, d.report(err)
	}
	in := &Input[F]{db: d, m: m}
	d.register(in)
	return in, nil
}

func (in *Input[F]) name() string {
	return in.m.Schema().Name()
}

func (in *Input[F]) kind() schema.Kind {
	return schema.KindInput
}

func (in *Input[F]) collectMetrics(m *Metrics) {
	im := in.m.Metrics()
	m.Entities.Input.Accumulate(metrics.EntityCounts{
		Live:    uint64(im.Live),
		Created: uint64(im.Inserted),
		Removed: uint64(im.Deleted),
	})
	m.Inputs.Stamps += uint64(im.Stamps)
}

// Name returns the name of the store's schema.
func (in *Input[F]) Name() string {
	return in.name()
}

// Schema returns the schema of the store's entities.
func (in *Input[F]) Schema() *schema.Schema[F] {
	return in.m.Schema()
}

// Len returns the number of live entities.
func (in *Input[F]) Len() int {
	return in.m.Len()
}

// New allocates a fresh Id and stores fields under it, with every field
// stamped with the current revision.
func (in *Input[F]) New(w *Writer, fields F) (Id, error) {
	if err := in.db.checkWriter(w); err != nil {
		return IdInvalid, err
	}
	id := in.ids.Allocate()
	if err := in.m.Insert(id, fields, in.db.clock.Current()); err != nil {
		return IdInvalid, in.db.report(err)
	}
	return id, nil
}

// Get returns a shallow copy of the fields of id. It blocks while id is being
// updated and never observes a partial update.
func (in *Input[F]) Get(id Id) (F, error) {
	f, err := in.m.Get(id)
	return f, in.db.report(err)
}

// View calls fn with the fields of id under the entity's read lock. The
// pointer must not be retained after fn returns.
func (in *Input[F]) View(id Id, fn func(*F)) error {
	return in.db.report(in.m.View(id, fn))
}

// FieldRevision returns the revision in which value field i of id last
// changed.
func (in *Input[F]) FieldRevision(id Id, i int) (Revision, error) {
	r, err := in.m.FieldRevision(id, i)
	return r, in.db.report(err)
}

// Revisions returns the revision of every value field of id.
func (in *Input[F]) Revisions(id Id) ([]Revision, error) {
	v, err := in.m.Revisions(id)
	return []Revision(v), in.db.report(err)
}

// Update calls fn with an exclusive handle on id. Fields changed through the
// handle are stamped with the current revision. The entity is locked until fn
// returns, so fn must read it through the handle rather than through Get.
//
// If fn returns an error or panics, every change it made through the handle is
// rolled back: the entity keeps the fields and revisions it had before.
func (in *Input[F]) Update(w *Writer, id Id, fn func(h *InputHandle[F]) error) error {
	if err := in.db.checkWriter(w); err != nil {
		return err
	}
	h, err := in.m.Update(id, in.db.clock.Current())
	if err != nil {
		return in.db.report(err)
	}
	committed := false
	defer func() {
		if !committed {
			h.Abort()
		}
	}()
	if err := fn(h); err != nil {
		return in.db.report(err)
	}
	committed = true
	h.Close()
	return nil
}

// Set applies fn to the fields of id and stamps value field i with the current
// revision, whether or not fn changed it.
func (in *Input[F]) Set(w *Writer, id Id, i int, fn func(*F)) error {
	return in.Update(w, id, func(h *InputHandle[F]) error {
		return h.Set(i, fn)
	})
}

// Replace overwrites the fields of id and stamps every value field with the
// current revision.
func (in *Input[F]) Replace(w *Writer, id Id, fields F) error {
	return in.Update(w, id, func(h *InputHandle[F]) error {
		return h.Replace(fields)
	})
}

// Delete removes id and returns its fields, or false if id is absent. No
// reference to the entity obtained through View may still be in use.
func (in *Input[F]) Delete(w *Writer, id Id) (F, bool, error) {
	if err := in.db.checkWriter(w); err != nil {
		var zero F
		return zero, false, err
	}
	f, ok := in.m.Delete(id)
	return f, ok, nil
}

// DatabaseKeyIndex returns the dependency key of id as a whole.
func (in *Input[F]) DatabaseKeyIndex(id Id) DatabaseKeyIndex {
	return in.m.DatabaseKeyIndex(id)
}

// FieldKeyIndex returns the dependency key of value field i of id.
func (in *Input[F]) FieldKeyIndex(id Id, i int) (DatabaseKeyIndex, error) {
	k, err := in.m.FieldKeyIndex(id, i)
	return k, in.db.report(err)
}

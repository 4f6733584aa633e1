// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import (
	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/OLUWAMUYIWA/salsa/internal/tracked"
	"github.com/OLUWAMUYIWA/salsa/metrics"
	"github.com/OLUWAMUYIWA/salsa/schema"
)

// Tracked is a store of tracked entities of type F: entities produced by
// computations and identified by the values of their identity fields. A
// computation producing an entity whose identity fields match one produced
// earlier gets the earlier entity's Id back, and only the value fields that
// actually changed are stamped with the new revision.
type Tracked[F any] struct {
	db *DB
	s  *tracked.Store[F]
}

var _ sweeper = (*Tracked[struct{}])(nil)

// NewTracked registers a store of tracked entities described by s with d.
// Stores must be registered before the first revision advance.
func NewTracked[F any](d *DB, s *schema.Schema[F]) (*Tracked[F], error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	st, err := tracked.New(s, d.routes, d.opts.NumShards, d.opts.InitialCapacity)
	if err != nil {
		return nil, d.report(err)
	}
	t := &Tracked[F]{db: d, s: st}
	d.register(t)
	return t, nil
}

func (t *Tracked[F]) name() string {
	return t.s.Schema().Name()
}

func (t *Tracked[F]) kind() schema.Kind {
	return schema.KindTracked
}

func (t *Tracked[F]) sweep(threshold base.Revision) (removed, remaining int) {
	removed = t.s.Sweep(threshold)
	return removed, t.s.Len()
}

func (t *Tracked[F]) collectMetrics(m *Metrics) {
	tm := t.s.Metrics()
	m.Entities.Tracked.Accumulate(metrics.EntityCounts{
		Live:    uint64(tm.Live),
		Created: uint64(tm.Created),
		Removed: uint64(tm.Swept),
	})
	m.Tracked.Reused += uint64(tm.Reused)
	m.Tracked.Updates += uint64(tm.Updates)
	m.Tracked.Fields.Accumulate(metrics.FieldStamps{
		Backdated: uint64(tm.Backdated),
		Changed:   uint64(tm.Changed),
	})
}

// Name returns the name of the store's schema.
func (t *Tracked[F]) Name() string {
	return t.name()
}

// Schema returns the schema of the store's entities.
func (t *Tracked[F]) Schema() *schema.Schema[F] {
	return t.s.Schema()
}

// Len returns the number of live entities.
func (t *Tracked[F]) Len() int {
	return t.s.Len()
}

// LookupOrCreate returns the Id of the entity whose identity fields equal
// those of fields, marking it produced in the current revision. If there is
// none, a new entity is created from fields and created is true. The value
// fields of an existing entity are left untouched.
//
// Two computations racing to create the same identity get the same Id.
func (t *Tracked[F]) LookupOrCreate(c *Computation, fields F) (id Id, created bool, _ error) {
	if err := t.db.checkComputation(c); err != nil {
		return IdInvalid, false, err
	}
	id, created, err := t.s.LookupOrCreate(fields, c.rev)
	return id, created, t.db.report(err)
}

// Update replaces the fields of id with fields. Value fields whose new value
// equals the old one keep their revision; the others are stamped with the
// current revision. An entity may be updated at most once per revision, and
// its creation counts as its update; a second update fails with
// ErrDoubleUpdate.
func (t *Tracked[F]) Update(c *Computation, id Id, fields F) (UpdateResult, error) {
	if err := t.db.checkComputation(c); err != nil {
		return UpdateResult{}, err
	}
	res, err := t.s.Update(id, fields, c.rev)
	return res, t.db.report(err)
}

// New produces the entity described by fields in the current revision: it
// looks the entity up by its identity fields, creating it if needed, and
// otherwise updates its value fields.
func (t *Tracked[F]) New(c *Computation, fields F) (Id, UpdateResult, error) {
	if err := t.db.checkComputation(c); err != nil {
		return IdInvalid, UpdateResult{}, err
	}
	id, res, err := t.s.New(fields, c.rev)
	return id, res, t.db.report(err)
}

// Get returns a shallow copy of the fields of id. It never observes a partial
// update.
func (t *Tracked[F]) Get(id Id) (F, error) {
	f, err := t.s.Get(id)
	return f, t.db.report(err)
}

// View calls fn with the fields of id under the entity's read lock. The
// pointer must not be retained after fn returns.
func (t *Tracked[F]) View(id Id, fn func(*F)) error {
	return t.db.report(t.s.View(id, fn))
}

// FieldRevision returns the revision in which value field i of id last
// changed. Identity fields never change; their revision is CreatedAt.
func (t *Tracked[F]) FieldRevision(id Id, i int) (Revision, error) {
	r, err := t.s.FieldRevision(id, i)
	return r, t.db.report(err)
}

// Revisions returns the revision of every value field of id.
func (t *Tracked[F]) Revisions(id Id) ([]Revision, error) {
	v, err := t.s.Revisions(id)
	return []Revision(v), t.db.report(err)
}

// CreatedAt returns the revision in which id was allocated.
func (t *Tracked[F]) CreatedAt(id Id) (Revision, error) {
	r, err := t.s.CreatedAt(id)
	return r, t.db.report(err)
}

// VerifiedAt returns the last revision in which id was produced.
func (t *Tracked[F]) VerifiedAt(id Id) (Revision, error) {
	r, err := t.s.VerifiedAt(id)
	return r, t.db.report(err)
}

// DatabaseKeyIndex returns the dependency key of id as a whole.
func (t *Tracked[F]) DatabaseKeyIndex(id Id) DatabaseKeyIndex {
	return t.s.DatabaseKeyIndex(id)
}

// FieldKeyIndex returns the dependency key of value field i of id.
func (t *Tracked[F]) FieldKeyIndex(id Id, i int) (DatabaseKeyIndex, error) {
	k, err := t.s.FieldKeyIndex(id, i)
	return k, t.db.report(err)
}

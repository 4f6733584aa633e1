// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tracked implements the store of tracked entities: entities created
// by computations, identified by the content of their identity fields, and
// reused across revisions.
//
// # Identity
//
// The store keeps a secondary index from identity key (the encoding of an
// entity's identity fields, see schema.Schema.IdentityKey) to Id, layered over
// the primary Id -> entity map. The index is sharded by an xxhash of the key;
// LookupOrCreate holds the key's shard lock while it checks for and allocates
// an entity, so two computations racing to create the same key are serialized
// and the loser observes the winner's Id.
//
// # Revisions
//
// Each entity records:
//
//   - createdAt: the revision its Id was allocated in;
//   - updatedAt: the revision of its last update (creation counts as an
//     update), used to reject a second update within one revision;
//   - verifiedAt: the last revision in which a computation produced it, used
//     by Sweep to reclaim entities that are no longer produced;
//   - a fieldrev.Vector with the revision each value field last changed in,
//     maintained by fieldrev.Backdate.
//
// # Concurrency
//
// Updates to different Ids run in parallel. An update holds the entity's
// write lock for the whole comparison-and-write, so concurrent readers of the
// same Id see either the old fields and revisions or the new ones. Sweep must
// only run in the database's exclusive phase.
package tracked

import (
	"sync"
	"sync/atomic"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/OLUWAMUYIWA/salsa/internal/entitymap"
	"github.com/OLUWAMUYIWA/salsa/internal/fieldrev"
	"github.com/OLUWAMUYIWA/salsa/internal/invariants"
	"github.com/OLUWAMUYIWA/salsa/internal/routes"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/swiss"
)

type entity[F any] struct {
	id        base.Id
	key       string
	createdAt base.Revision
	// verifiedAt is written by LookupOrCreate under the key shard lock and by
	// Update under mu; it only moves forward within a revision.
	verifiedAt atomic.Uint64
	mu         struct {
		sync.RWMutex
		fields    F
		revisions fieldrev.Vector
		updatedAt base.Revision
	}
}

type keyShard struct {
	mu sync.Mutex
	m  swiss.Map[string, base.Id]
}

// Metrics holds metrics for a tracked store.
type Metrics struct {
	// Live is the number of entities in the store.
	Live int64
	// Created is the number of entities ever allocated.
	Created int64
	// Reused is the number of LookupOrCreate calls that found an existing
	// entity.
	Reused int64
	// Updates is the number of successful Update calls.
	Updates int64
	// Backdated is the number of value fields whose revision was kept by an
	// update.
	Backdated int64
	// Changed is the number of value fields stamped by an update.
	Changed int64
	// Swept is the number of entities removed by Sweep.
	Swept int64
}

// Store holds the tracked entities of one type.
type Store[F any] struct {
	schema   *schema.Schema[F]
	ids      base.IdAllocator
	entities entitymap.Map[entity[F]]
	keys     []keyShard
	keyMask  uint64

	ingredient       base.IngredientIndex
	fieldIngredients base.IngredientIndex

	metrics struct {
		created   atomic.Int64
		reused    atomic.Int64
		updates   atomic.Int64
		backdated atomic.Int64
		changed   atomic.Int64
		swept     atomic.Int64
	}
}

// New creates a store for entities described by s, registering the store and
// each of its value fields in r. numShards must be a power of two.
func New[F any](
	s *schema.Schema[F], r *routes.Routes, numShards, initialCapacity int,
) (*Store[F], error) {
	if err := s.Validate(schema.KindTracked); err != nil {
		return nil, err
	}
	st := &Store[F]{schema: s}
	var err error
	if st.ingredient, err = r.Push(s.Name()); err != nil {
		return nil, err
	}
	st.fieldIngredients, err = r.PushRange(s.NumValueFields(), func(i int) string {
		return s.Name() + "." + s.ValueField(i).Name
	})
	if err != nil {
		return nil, err
	}
	st.entities.Init(numShards, initialCapacity)
	st.keys = make([]keyShard, numShards)
	st.keyMask = uint64(numShards - 1)
	perShard := (initialCapacity + numShards - 1) / numShards
	for i := range st.keys {
		st.keys[i].m.Init(perShard)
	}
	return st, nil
}

// Schema returns the schema of the stored entities.
func (s *Store[F]) Schema() *schema.Schema[F] {
	return s.schema
}

func (s *Store[F]) name() redact.SafeString {
	return redact.SafeString(s.schema.Name())
}

func (s *Store[F]) keyShard(key string) *keyShard {
	return &s.keys[xxhash.Sum64String(key)&s.keyMask]
}

func (s *Store[F]) lookup(id base.Id) (*entity[F], error) {
	e, ok := s.entities.Get(id)
	if !ok {
		return nil, base.UnknownIdentityError(s.schema.Name(), id)
	}
	return e, nil
}

// LookupOrCreate returns the Id of the live entity whose identity fields equal
// those of fields, marking it verified in current. If there is none, it
// allocates a new Id and stores fields under it with every value field
// stamped with current; created is then true.
//
// The value fields of an existing entity are left untouched; use Update to
// recompute them.
func (s *Store[F]) LookupOrCreate(fields F, current base.Revision) (id base.Id, created bool, _ error) {
	key := string(s.schema.IdentityKey(nil, &fields))
	ks := s.keyShard(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if id, ok := ks.m.Get(key); ok {
		e, ok := s.entities.Get(id)
		if !ok {
			return base.IdInvalid, false, errors.AssertionFailedf(
				"%s: identity index names missing entity %s", s.name(), id)
		}
		if v := base.Revision(e.verifiedAt.Load()); v > current {
			return base.IdInvalid, false, errors.AssertionFailedf(
				"%s: %s verified at %s, after current revision %s", s.name(), id, v, current)
		}
		e.verifiedAt.Store(uint64(current))
		s.metrics.reused.Add(1)
		return id, false, nil
	}

	id = s.ids.Allocate()
	e := &entity[F]{
		id:        id,
		key:       key,
		createdAt: current,
	}
	e.verifiedAt.Store(uint64(current))
	e.mu.fields = fields
	e.mu.revisions = fieldrev.New(s.schema.NumValueFields(), current)
	e.mu.updatedAt = current
	if !s.entities.Insert(id, e) {
		return base.IdInvalid, false, base.AssertionErrorf(base.ErrDuplicateIdentity,
			"%s: duplicate identity %s", s.name(), id)
	}
	ks.m.Put(key, id)
	s.metrics.created.Add(1)
	return id, true, nil
}

// Update recomputes the value fields of id in revision current, backdating
// every field whose new value equals the old one (see fieldrev.Backdate), and
// then replaces the stored fields.
//
// An entity may be updated at most once per revision, and its creation counts
// as the update for the revision it was created in. A second update fails
// with ErrDoubleUpdate. The identity fields of fields must match those the
// entity was created with.
func (s *Store[F]) Update(id base.Id, fields F, current base.Revision) (fieldrev.Result, error) {
	e, err := s.lookup(id)
	if err != nil {
		return fieldrev.Result{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.mu.updatedAt == current:
		return fieldrev.Result{}, base.AssertionErrorf(base.ErrDoubleUpdate,
			"%s: %s already updated in %s", s.name(), id, current)
	case e.mu.updatedAt > current:
		return fieldrev.Result{}, errors.AssertionFailedf(
			"%s: %s updated in %s, after current revision %s", s.name(), id, e.mu.updatedAt, current)
	}
	if key := s.schema.IdentityKey(nil, &fields); string(key) != e.key {
		return fieldrev.Result{}, base.AssertionErrorf(base.ErrInvalidField,
			"%s: update of %s changes its identity fields", s.name(), id)
	}

	res := fieldrev.Backdate(s.schema, current, &e.mu.fields, &fields, e.mu.revisions)
	e.mu.fields = fields
	e.mu.updatedAt = current
	e.verifiedAt.Store(uint64(current))

	if invariants.Sometimes(25) {
		if err := e.mu.revisions.CheckAtMost(current); err != nil {
			panic(err)
		}
	}
	s.metrics.updates.Add(1)
	s.metrics.backdated.Add(int64(res.Backdated))
	s.metrics.changed.Add(int64(res.Changed))
	return res, nil
}

// New is LookupOrCreate followed, when an existing entity was found, by
// Update with the given fields.
func (s *Store[F]) New(fields F, current base.Revision) (base.Id, fieldrev.Result, error) {
	id, created, err := s.LookupOrCreate(fields, current)
	if err != nil {
		return base.IdInvalid, fieldrev.Result{}, err
	}
	if created {
		return id, fieldrev.Result{Changed: s.schema.NumValueFields()}, nil
	}
	res, err := s.Update(id, fields, current)
	return id, res, err
}

// Get returns a shallow copy of the fields of id, taken under its read lock.
func (s *Store[F]) Get(id base.Id) (F, error) {
	e, err := s.lookup(id)
	if err != nil {
		var zero F
		return zero, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mu.fields, nil
}

// View calls fn with the fields of id while holding its read lock. The pointer
// must not be retained after fn returns.
func (s *Store[F]) View(id base.Id, fn func(*F)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(&e.mu.fields)
	return nil
}

// FieldRevision returns the revision in which value field i of id last
// changed, without reading the field's value.
func (s *Store[F]) FieldRevision(id base.Id, i int) (base.Revision, error) {
	if err := s.schema.CheckValueField(i); err != nil {
		return base.RevisionZero, err
	}
	e, err := s.lookup(id)
	if err != nil {
		return base.RevisionZero, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mu.revisions[i], nil
}

// Revisions returns a copy of the revision vector of id.
func (s *Store[F]) Revisions(id base.Id) (fieldrev.Vector, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mu.revisions.Clone(), nil
}

// CreatedAt returns the revision id was allocated in. It is also the revision
// of every identity field of the entity.
func (s *Store[F]) CreatedAt(id base.Id) (base.Revision, error) {
	e, err := s.lookup(id)
	if err != nil {
		return base.RevisionZero, err
	}
	return e.createdAt, nil
}

// VerifiedAt returns the last revision in which id was produced.
func (s *Store[F]) VerifiedAt(id base.Id) (base.Revision, error) {
	e, err := s.lookup(id)
	if err != nil {
		return base.RevisionZero, err
	}
	return base.Revision(e.verifiedAt.Load()), nil
}

// DatabaseKeyIndex returns the dependency key of the entity as a whole.
func (s *Store[F]) DatabaseKeyIndex(id base.Id) base.DatabaseKeyIndex {
	return base.DatabaseKeyIndex{Ingredient: s.ingredient, Key: id}
}

// FieldKeyIndex returns the dependency key of value field i of id. Each value
// field is a dependency source of its own.
func (s *Store[F]) FieldKeyIndex(id base.Id, i int) (base.DatabaseKeyIndex, error) {
	if err := s.schema.CheckValueField(i); err != nil {
		return base.DatabaseKeyIndex{}, err
	}
	return base.DatabaseKeyIndex{
		Ingredient: s.fieldIngredients + base.IngredientIndex(i),
		Key:        id,
	}, nil
}

// Sweep removes every entity last verified before threshold and returns the
// number removed. Removed Ids are never reissued; a later LookupOrCreate of
// the same identity key allocates a fresh Id.
//
// Sweep must only be called while no computation holds a reference into the
// store.
func (s *Store[F]) Sweep(threshold base.Revision) int {
	removed := s.entities.DeleteFunc(func(_ base.Id, e *entity[F]) bool {
		return base.Revision(e.verifiedAt.Load()) < threshold
	})
	for id, e := range removed {
		ks := s.keyShard(e.key)
		ks.mu.Lock()
		if cur, ok := ks.m.Get(e.key); ok && cur == id {
			ks.m.Delete(e.key)
		}
		ks.mu.Unlock()
	}
	s.metrics.swept.Add(int64(len(removed)))
	return len(removed)
}

// Len returns the number of live entities.
func (s *Store[F]) Len() int {
	return s.entities.Len()
}

// Metrics returns a snapshot of the store's metrics.
func (s *Store[F]) Metrics() Metrics {
	return Metrics{
		Live:      int64(s.entities.Len()),
		Created:   s.metrics.created.Load(),
		Reused:    s.metrics.reused.Load(),
		Updates:   s.metrics.updates.Load(),
		Backdated: s.metrics.backdated.Load(),
		Changed:   s.metrics.changed.Load(),
		Swept:     s.metrics.swept.Load(),
	}
}

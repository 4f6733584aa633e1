// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package entitymap implements a sharded concurrent map from entity Ids to
// stable entity slots.
//
// The map stores pointers: once an entity is inserted its slot never moves,
// even when the shard's table grows, so a pointer obtained from Get stays
// valid for as long as the caller holds it. Removing an entity only unlinks
// the slot from the map; callers that still hold the pointer keep reading the
// (now detached) slot. Synchronization of the slot contents is the caller's
// concern; the map only protects its own tables.
//
// Contention is per shard. Shards are selected with a fibonacci hash of the
// Id, which spreads the densely allocated Ids evenly.
package entitymap

import (
	"math/bits"
	"sync"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/cockroachdb/swiss"
)

const fibonacci = 11400714819323198485

func fibonacciHash(id *base.Id, seed uintptr) uintptr {
	h := uint64(seed)
	h ^= uint64(*id) * fibonacci
	return uintptr(h)
}

// Map is a sharded map from base.Id to *V.
type Map[V any] struct {
	shards []shard[V]
	shift  uint
}

type shard[V any] struct {
	mu sync.RWMutex
	m  swiss.Map[base.Id, *V]
}

// New creates a map with the given number of shards, which must be a power of
// two, and total initial capacity.
func New[V any](numShards, initialCapacity int) *Map[V] {
	m := &Map[V]{}
	m.Init(numShards, initialCapacity)
	return m
}

// Init can be used instead of New when the map is embedded in another struct.
func (m *Map[V]) Init(numShards, initialCapacity int) {
	if numShards <= 0 || numShards&(numShards-1) != 0 {
		panic("entitymap: number of shards must be a positive power of two")
	}
	m.shards = make([]shard[V], numShards)
	m.shift = 64 - uint(bits.TrailingZeros(uint(numShards)))
	perShard := (initialCapacity + numShards - 1) / numShards
	for i := range m.shards {
		m.shards[i].m.Init(perShard, swiss.WithHash[base.Id, *V](fibonacciHash))
	}
}

func (m *Map[V]) shardFor(id base.Id) *shard[V] {
	if len(m.shards) == 1 {
		return &m.shards[0]
	}
	return &m.shards[(uint64(id)*fibonacci)>>m.shift]
}

// Get returns the slot for id.
func (m *Map[V]) Get(id base.Id) (*V, bool) {
	s := m.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Get(id)
}

// Insert adds the slot v for id. It returns false, leaving the map unchanged,
// if id is already present.
func (m *Map[V]) Insert(id base.Id, v *V) bool {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m.Get(id); ok {
		return false
	}
	s.m.Put(id, v)
	return true
}

// Delete removes id from the map and returns its slot.
func (m *Map[V]) Delete(id base.Id) (*V, bool) {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m.Get(id)
	if ok {
		s.m.Delete(id)
	}
	return v, ok
}

// Len returns the number of entries. The result is only exact when no
// concurrent Insert or Delete is running.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += s.m.Len()
		s.mu.RUnlock()
	}
	return n
}

// All calls fn for every entry, one shard at a time, holding that shard's read
// lock. Iteration stops when fn returns false. fn must not call back into the
// map.
func (m *Map[V]) All(fn func(id base.Id, v *V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		cont := true
		s.mu.RLock()
		s.m.All(func(id base.Id, v *V) bool {
			cont = fn(id, v)
			return cont
		})
		s.mu.RUnlock()
		if !cont {
			return
		}
	}
}

// DeleteFunc removes every entry for which fn returns true and returns the
// removed entries. Each shard is write-locked while it is processed.
func (m *Map[V]) DeleteFunc(fn func(id base.Id, v *V) bool) map[base.Id]*V {
	removed := make(map[base.Id]*V)
	var ids []base.Id
	for i := range m.shards {
		s := &m.shards[i]
		ids = ids[:0]
		s.mu.Lock()
		s.m.All(func(id base.Id, v *V) bool {
			if fn(id, v) {
				ids = append(ids, id)
				removed[id] = v
			}
			return true
		})
		for _, id := range ids {
			s.m.Delete(id)
		}
		s.mu.Unlock()
	}
	return removed
}

// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package salsa provides the entity storage of an incremental computation:
// stores of input and tracked entities whose fields carry the revision in
// which they last changed.
//
// A DB owns the revision clock and divides time into phases. Any number of
// computations run concurrently inside DB.Compute; each sees a fixed current
// revision and may create and update tracked entities. Inputs are mutated,
// entities are swept and the clock is advanced only inside DB.Exclusive, which
// waits for every computation to finish and blocks new ones until it returns.
//
//	db, _ := salsa.Open(nil)
//	files, _ := salsa.NewInput(db, fileSchema)
//	items, _ := salsa.NewTracked(db, itemSchema)
//
//	_ = db.Exclusive(func(w *salsa.Writer) error {
//		_, err := files.New(w, File{Path: "a.go", Text: "..."})
//		return err
//	})
//	_ = db.Compute(func(c *salsa.Computation) error {
//		_, _, err := items.New(c, Item{Name: "main", Arity: 0})
//		return err
//	})
//
// Every invariant violation (a duplicate Id, an unknown Id, a double update, a
// token used after its phase) is returned as an assertion failure marked with
// one of the exported sentinel errors and reported to
// EventListener.InvariantViolation. Callers should treat these as programmer
// errors; none of them is retryable.
package salsa // import "github.com/OLUWAMUYIWA/salsa"

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/OLUWAMUYIWA/salsa/internal/routes"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
)

// store is implemented by every store registered with a DB.
type store interface {
	name() string
	kind() schema.Kind
	collectMetrics(m *Metrics)
}

// sweeper is implemented by stores whose entities are reclaimed by sweeps.
type sweeper interface {
	store
	sweep(threshold base.Revision) (removed, remaining int)
}

// DB holds the revision clock and the routing table shared by a set of entity
// stores, and enforces the phase discipline under which they are accessed.
//
// It is always valid to pass a nil *Options to Open, which means to use the
// default parameter values.
type DB struct {
	opts   *Options
	clock  base.Clock
	routes *routes.Routes

	// phase is held shared by every running computation and exclusively by
	// the running writer.
	phase  sync.RWMutex
	closed atomic.Bool

	mu struct {
		sync.Mutex
		stores []store
	}

	metrics struct {
		revisions  atomic.Int64
		sweeps     atomic.Int64
		swept      atomic.Int64
		sweepNanos atomic.Int64
		violations atomic.Int64
	}
	collector *collector
}

// Open creates a DB whose clock is at RevisionStart and which has no stores.
func Open(opts *Options) (*DB, error) {
	opts = opts.Clone()
	opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	d := &DB{
		opts:   opts,
		routes: routes.New(),
	}
	d.clock.Init(base.RevisionStart)
	if opts.MetricsRegisterer != nil {
		d.collector = newCollector(d)
		if err := opts.MetricsRegisterer.Register(d.collector); err != nil {
			return nil, errors.Wrap(err, "salsa: registering metrics")
		}
	}
	return d, nil
}

// Close closes the DB. It fails if a phase is in progress. Entities remain
// readable through their stores, but no further phase can begin.
func (d *DB) Close() error {
	if !d.phase.TryLock() {
		return errors.AssertionFailedf("salsa: close while a phase is in progress")
	}
	defer d.phase.Unlock()
	if d.closed.Swap(true) {
		return ErrClosed
	}
	if d.collector != nil {
		d.opts.MetricsRegisterer.Unregister(d.collector)
	}
	return nil
}

// CurrentRevision returns the current revision. It only changes inside an
// exclusive phase.
func (d *DB) CurrentRevision() Revision {
	return d.clock.Current()
}

// KeyName returns a human-readable name for a dependency key, of the form
// "store.field(#id)".
func (d *DB) KeyName(k DatabaseKeyIndex) string {
	name, ok := d.routes.Name(k.Ingredient)
	if !ok {
		name = fmt.Sprintf("ingredient-%d", k.Ingredient)
	}
	return fmt.Sprintf("%s(%s)", name, k.Key)
}

// Compute runs fn in a shared phase. Any number of Compute calls may run
// concurrently, and all of them observe the same current revision. The
// Computation passed to fn must not be used after fn returns.
//
// Compute must not be called from within another phase of the same DB.
func (d *DB) Compute(fn func(c *Computation) error) error {
	d.phase.RLock()
	defer d.phase.RUnlock()
	if d.closed.Load() {
		return ErrClosed
	}
	c := &Computation{db: d, rev: d.clock.Current()}
	defer c.done.Store(true)
	return fn(c)
}

// Exclusive runs fn in an exclusive phase: it waits for every running
// computation to return and blocks new ones until fn returns. The Writer
// passed to fn must not be used after fn returns.
//
// Exclusive must not be called from within another phase of the same DB.
func (d *DB) Exclusive(fn func(w *Writer) error) error {
	d.phase.Lock()
	defer d.phase.Unlock()
	if d.closed.Load() {
		return ErrClosed
	}
	w := &Writer{db: d}
	defer w.done.Store(true)
	return fn(w)
}

// Computation is the token of a shared phase. It is required to create and
// update tracked entities. It may be shared by the goroutines a computation
// spawns, as long as they finish before the phase ends.
type Computation struct {
	db   *DB
	rev  base.Revision
	done atomic.Bool
}

// Revision returns the current revision of the phase.
func (c *Computation) Revision() Revision {
	return c.rev
}

// Writer is the token of an exclusive phase. It is required to create,
// mutate and delete input entities, to advance the clock and to sweep.
type Writer struct {
	db   *DB
	done atomic.Bool
}

// Revision returns the current revision.
func (w *Writer) Revision() Revision {
	return w.db.clock.Current()
}

// NewRevision advances the clock and returns the new current revision. The
// first call seals the routing table: stores can no longer be registered.
//
// If Options.SweepRetention is positive, every tracked store is then swept of
// the entities last produced more than SweepRetention revisions ago.
func (w *Writer) NewRevision() (Revision, error) {
	d := w.db
	if err := d.checkWriter(w); err != nil {
		return base.RevisionZero, err
	}
	d.routes.Seal()
	prev := d.clock.Current()
	cur := d.clock.Advance()
	d.metrics.revisions.Add(1)
	d.opts.EventListener.RevisionAdvanced(RevisionInfo{Previous: prev, Current: cur})

	if r := base.Revision(d.opts.SweepRetention); r > 0 && cur > r {
		d.sweep(cur - r)
	}
	return cur, nil
}

// Sweep removes every tracked entity last produced before threshold, from
// every tracked store, and returns the number removed. The Ids of removed
// entities are never reissued.
func (w *Writer) Sweep(threshold Revision) (int, error) {
	d := w.db
	if err := d.checkWriter(w); err != nil {
		return 0, err
	}
	if cur := d.clock.Current(); threshold > cur {
		return 0, d.report(errors.AssertionFailedf(
			"salsa: sweep threshold %s is after current revision %s", threshold, cur))
	}
	return d.sweep(threshold), nil
}

func (d *DB) sweep(threshold base.Revision) int {
	d.mu.Lock()
	stores := d.mu.stores
	d.mu.Unlock()

	total := 0
	for _, s := range stores {
		sw, ok := s.(sweeper)
		if !ok {
			continue
		}
		start := crtime.NowMono()
		removed, remaining := sw.sweep(threshold)
		elapsed := start.Elapsed()

		d.metrics.sweeps.Add(1)
		d.metrics.swept.Add(int64(removed))
		d.metrics.sweepNanos.Add(int64(elapsed))
		if d.collector != nil {
			d.collector.sweepDuration.Observe(elapsed.Seconds())
		}
		d.opts.EventListener.SweepEnd(SweepInfo{
			Store:     s.name(),
			Threshold: threshold,
			Removed:   removed,
			Remaining: remaining,
			Duration:  elapsed,
		})
		total += removed
	}
	return total
}

func (d *DB) register(s store) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Stores are only appended; sweep iterates over a prefix without holding
	// the lock.
	d.mu.stores = append(d.mu.stores[:len(d.mu.stores):len(d.mu.stores)], s)
}

// report forwards assertion failures to the event listener and returns err.
func (d *DB) report(err error) error {
	if err != nil && errors.HasAssertionFailure(err) {
		d.metrics.violations.Add(1)
		d.opts.EventListener.InvariantViolation(err)
	}
	return err
}

func (d *DB) checkComputation(c *Computation) error {
	switch {
	case c == nil || c.db != d:
		return d.report(base.AssertionErrorf(base.ErrPhaseClosed,
			"salsa: computation does not belong to this database"))
	case c.done.Load():
		return d.report(base.AssertionErrorf(base.ErrPhaseClosed,
			"salsa: computation in %s used after its phase ended", c.rev))
	}
	return nil
}

func (d *DB) checkWriter(w *Writer) error {
	switch {
	case w == nil || w.db != d:
		return d.report(base.AssertionErrorf(base.ErrPhaseClosed,
			"salsa: writer does not belong to this database"))
	case w.done.Load():
		return d.report(base.AssertionErrorf(base.ErrPhaseClosed,
			"salsa: writer used after its phase ended"))
	}
	return nil
}

func (d *DB) checkOpen() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OLUWAMUYIWA/salsa/internal/testutils"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type file struct {
	Path string
	X    int
}

var fileSchema = schema.New("file",
	schema.Value("path", func(f *file) string { return f.Path }),
	schema.Value("x", func(f *file) int { return f.X }),
)

type item struct {
	K string
	Y int
}

var itemSchema = schema.New("item",
	schema.IDString("k", func(i *item) string { return i.K }),
	schema.Value("y", func(i *item) int { return i.Y }),
)

// testDB opens a DB with a file input store and an item tracked store.
func testDB(t *testing.T, opts *Options) (*DB, *Input[file], *Tracked[item]) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Logger == nil {
		opts.Logger = testutils.Logger{T: t}
	}
	d, err := Open(opts)
	require.NoError(t, err)
	files, err := NewInput(d, fileSchema)
	require.NoError(t, err)
	items, err := NewTracked(d, itemSchema)
	require.NoError(t, err)
	return d, files, items
}

func advance(t *testing.T, d *DB) Revision {
	var rev Revision
	require.NoError(t, d.Exclusive(func(w *Writer) (err error) {
		rev, err = w.NewRevision()
		return err
	}))
	return rev
}

func TestBackdatingScenario(t *testing.T) {
	d, files, items := testDB(t, nil)
	require.Equal(t, RevisionStart, d.CurrentRevision())

	// Inputs: allocate, read, update through an exclusive handle.
	var i1 Id
	require.NoError(t, d.Exclusive(func(w *Writer) (err error) {
		i1, err = files.New(w, file{Path: "a.go", X: 5})
		return err
	}))
	f, err := files.Get(i1)
	require.NoError(t, err)
	require.Equal(t, 5, f.X)

	require.NoError(t, d.Exclusive(func(w *Writer) error {
		return files.Update(w, i1, func(h *InputHandle[file]) error {
			return h.Set(1, func(f *file) { f.X = 7 })
		})
	}))
	f, err = files.Get(i1)
	require.NoError(t, err)
	require.Equal(t, 7, f.X)

	// Tracked entity created in R1.
	var t1 Id
	require.NoError(t, d.Compute(func(c *Computation) error {
		id, created, err := items.LookupOrCreate(c, item{K: "foo", Y: 1})
		require.True(t, created)
		t1 = id
		return err
	}))
	rev, err := items.FieldRevision(t1, 0)
	require.NoError(t, err)
	require.Equal(t, Revision(1), rev)

	// R2: same identity, same value. The field is backdated.
	require.Equal(t, Revision(2), advance(t, d))
	require.NoError(t, d.Compute(func(c *Computation) error {
		id, created, err := items.LookupOrCreate(c, item{K: "foo"})
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, t1, id)
		res, err := items.Update(c, t1, item{K: "foo", Y: 1})
		require.Equal(t, UpdateResult{Backdated: 1}, res)
		return err
	}))
	rev, err = items.FieldRevision(t1, 0)
	require.NoError(t, err)
	require.Equal(t, Revision(1), rev)

	// R3: the value changes.
	require.Equal(t, Revision(3), advance(t, d))
	require.NoError(t, d.Compute(func(c *Computation) error {
		res, err := items.Update(c, t1, item{K: "foo", Y: 2})
		require.Equal(t, UpdateResult{Changed: 1}, res)
		return err
	}))
	rev, err = items.FieldRevision(t1, 0)
	require.NoError(t, err)
	require.Equal(t, Revision(3), rev)

	verified, err := items.VerifiedAt(t1)
	require.NoError(t, err)
	require.Equal(t, Revision(3), verified)
	created, err := items.CreatedAt(t1)
	require.NoError(t, err)
	require.Equal(t, Revision(1), created)
	require.NoError(t, d.Close())
}

func TestInputDelete(t *testing.T) {
	d, files, _ := testDB(t, nil)
	require.NoError(t, d.Exclusive(func(w *Writer) error {
		id, err := files.New(w, file{Path: "a.go"})
		require.NoError(t, err)
		f, ok, err := files.Delete(w, id)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "a.go", f.Path)

		_, ok, err = files.Delete(w, id)
		require.NoError(t, err)
		require.False(t, ok)

		// Ids are not reused after a delete.
		next, err := files.New(w, file{Path: "b.go"})
		require.NoError(t, err)
		require.Greater(t, next, id)
		return nil
	}))
	require.Equal(t, 1, files.Len())
}

func TestInputReplace(t *testing.T) {
	d, files, _ := testDB(t, nil)
	var id Id
	require.NoError(t, d.Exclusive(func(w *Writer) (err error) {
		id, err = files.New(w, file{Path: "a.go", X: 1})
		return err
	}))
	advance(t, d)
	require.NoError(t, d.Exclusive(func(w *Writer) error {
		return files.Replace(w, id, file{Path: "a.go", X: 1})
	}))
	// Inputs are never backdated.
	revs, err := files.Revisions(id)
	require.NoError(t, err)
	require.Equal(t, []Revision{2, 2}, revs)
}

func TestInputUpdateRollback(t *testing.T) {
	d, files, _ := testDB(t, nil)
	var id Id
	require.NoError(t, d.Exclusive(func(w *Writer) (err error) {
		id, err = files.New(w, file{Path: "a.go", X: 1})
		return err
	}))
	advance(t, d)

	// A failing update keeps none of its changes.
	errBoom := errors.New("boom")
	err := d.Exclusive(func(w *Writer) error {
		return files.Update(w, id, func(h *InputHandle[file]) error {
			if err := h.Set(1, func(f *file) { f.X = 2 }); err != nil {
				return err
			}
			return errBoom
		})
	})
	require.True(t, errors.Is(err, errBoom))
	require.False(t, errors.HasAssertionFailure(err))

	// Neither does a panicking one, and the entity is left unlocked.
	require.Panics(t, func() {
		_ = d.Exclusive(func(w *Writer) error {
			return files.Set(w, id, 0, func(f *file) {
				f.Path = "b.go"
				panic("boom")
			})
		})
	})

	f, err := files.Get(id)
	require.NoError(t, err)
	require.Equal(t, file{Path: "a.go", X: 1}, f)
	revs, err := files.Revisions(id)
	require.NoError(t, err)
	require.Equal(t, []Revision{1, 1}, revs)
	require.Zero(t, d.Metrics().Inputs.Stamps)
	require.Zero(t, d.Metrics().InvariantViolations)
}

func TestPhaseTokens(t *testing.T) {
	var violations atomic.Int64
	d, files, items := testDB(t, &Options{
		EventListener: &EventListener{
			InvariantViolation: func(err error) { violations.Add(1) },
		},
	})

	var w *Writer
	require.NoError(t, d.Exclusive(func(x *Writer) error {
		w = x
		return nil
	}))
	var c *Computation
	require.NoError(t, d.Compute(func(x *Computation) error {
		c = x
		return nil
	}))

	_, err := files.New(w, file{})
	require.True(t, errors.Is(err, ErrPhaseClosed), "%v", err)
	_, err = w.NewRevision()
	require.True(t, errors.Is(err, ErrPhaseClosed))
	_, err = w.Sweep(RevisionStart)
	require.True(t, errors.Is(err, ErrPhaseClosed))
	_, _, err = items.LookupOrCreate(c, item{K: "a"})
	require.True(t, errors.Is(err, ErrPhaseClosed))
	_, _, err = items.New(c, item{K: "a"})
	require.True(t, errors.Is(err, ErrPhaseClosed))

	// Tokens of another DB are rejected too.
	other, err := Open(&Options{Logger: NoopLogger{}})
	require.NoError(t, err)
	require.NoError(t, other.Exclusive(func(w *Writer) error {
		_, err := files.New(w, file{})
		require.True(t, errors.Is(err, ErrPhaseClosed))
		return nil
	}))
	require.NoError(t, other.Compute(func(c *Computation) error {
		_, _, err := items.LookupOrCreate(c, item{K: "a"})
		require.True(t, errors.Is(err, ErrPhaseClosed))
		return nil
	}))

	require.Equal(t, int64(7), violations.Load())
	require.Equal(t, int64(7), d.Metrics().InvariantViolations)
}

func TestSealed(t *testing.T) {
	d, _, _ := testDB(t, nil)
	advance(t, d)
	_, err := NewTracked(d, schema.New("late",
		schema.IDString("k", func(i *item) string { return i.K })))
	require.True(t, errors.Is(err, ErrSealed), "%v", err)
	_, err = NewInput(d, fileSchema)
	require.True(t, errors.Is(err, ErrSealed))
}

func TestInvalidSchema(t *testing.T) {
	d, _, _ := testDB(t, nil)
	_, err := NewInput(d, itemSchema)
	require.True(t, errors.Is(err, ErrInvalidField))
	require.False(t, errors.HasAssertionFailure(err))

	// Without identity fields every tracked entity would collapse onto one Id.
	_, err = NewTracked(d, fileSchema)
	require.True(t, errors.Is(err, ErrInvalidField))
	require.Contains(t, err.Error(), "file: tracked entities need at least one identity field")
	require.Zero(t, d.Metrics().InvariantViolations)
}

func TestClose(t *testing.T) {
	defer leaktest.AfterTest(t)()

	d, files, items := testDB(t, nil)
	var id Id
	require.NoError(t, d.Exclusive(func(w *Writer) (err error) {
		id, err = files.New(w, file{Path: "a.go"})
		return err
	}))

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.Compute(func(c *Computation) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	err := d.Close()
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))
	close(release)
	wg.Wait()

	require.NoError(t, d.Close())
	require.ErrorIs(t, d.Close(), ErrClosed)
	require.ErrorIs(t, d.Compute(func(*Computation) error { return nil }), ErrClosed)
	require.ErrorIs(t, d.Exclusive(func(*Writer) error { return nil }), ErrClosed)
	_, err = NewTracked(d, itemSchema)
	require.ErrorIs(t, err, ErrClosed)

	// Entities remain readable.
	f, err := files.Get(id)
	require.NoError(t, err)
	require.Equal(t, "a.go", f.Path)
	require.Zero(t, items.Len())
}

// TestExclusiveWaitsForComputations checks that a writer never runs while a
// computation is in progress, so a computation always sees one revision.
func TestExclusiveWaitsForComputations(t *testing.T) {
	defer leaktest.AfterTest(t)()

	d, _, items := testDB(t, nil)
	var wg sync.WaitGroup
	var stop atomic.Bool
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; !stop.Load(); n++ {
				err := d.Compute(func(c *Computation) error {
					rev := d.CurrentRevision()
					if _, _, err := items.New(c, item{K: fmt.Sprintf("%d/%d", g, n), Y: n}); err != nil {
						return err
					}
					time.Sleep(time.Microsecond)
					if d.CurrentRevision() != rev || c.Revision() != rev {
						return errors.Newf("revision moved from %s during computation", rev)
					}
					return nil
				})
				if err != nil {
					panic(err)
				}
			}
		}()
	}
	for range 50 {
		advance(t, d)
	}
	stop.Store(true)
	wg.Wait()
	require.Equal(t, Revision(51), d.CurrentRevision())
}

func TestWriterSweep(t *testing.T) {
	d, _, items := testDB(t, nil)
	produce := func(keys ...string) {
		require.NoError(t, d.Compute(func(c *Computation) error {
			for _, k := range keys {
				if _, _, err := items.New(c, item{K: k}); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	produce("a", "b", "c")
	advance(t, d)
	produce("a")
	advance(t, d)
	produce("a", "b")

	var ids []Id
	require.NoError(t, d.Compute(func(c *Computation) error {
		for _, k := range []string{"a", "b"} {
			id, _, err := items.LookupOrCreate(c, item{K: k})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}))

	require.NoError(t, d.Exclusive(func(w *Writer) error {
		_, err := w.Sweep(d.CurrentRevision() + 1)
		require.True(t, errors.HasAssertionFailure(err), "%v", err)

		n, err := w.Sweep(2)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return nil
	}))
	require.Equal(t, 2, items.Len())

	// The swept identity gets a fresh Id when produced again.
	require.NoError(t, d.Compute(func(c *Computation) error {
		id, created, err := items.LookupOrCreate(c, item{K: "c"})
		require.True(t, created)
		for _, prev := range ids {
			require.NotEqual(t, prev, id)
		}
		require.Greater(t, id, Id(3))
		return err
	}))
	m := d.Metrics()
	require.Equal(t, int64(1), m.Sweep.Count)
	require.Equal(t, int64(1), m.Sweep.Removed)
}

func TestSweepRetention(t *testing.T) {
	var sweeps []SweepInfo
	d, _, items := testDB(t, &Options{
		SweepRetention: 2,
		EventListener: &EventListener{
			SweepEnd: func(info SweepInfo) { sweeps = append(sweeps, info) },
		},
	})
	require.NoError(t, d.Compute(func(c *Computation) error {
		_, _, err := items.New(c, item{K: "once"})
		return err
	}))
	advance(t, d) // R2
	require.Empty(t, sweeps)
	advance(t, d) // R3: threshold R1, nothing verified before it.
	require.Len(t, sweeps, 1)
	require.Equal(t, 0, sweeps[0].Removed)
	require.Equal(t, 1, items.Len())
	advance(t, d) // R4: threshold R2 removes the entity produced in R1.
	require.Len(t, sweeps, 2)
	require.Equal(t, SweepInfo{
		Store:     "item",
		Threshold: 2,
		Removed:   1,
		Remaining: 0,
		Duration:  sweeps[1].Duration,
	}, sweeps[1])
	require.Zero(t, items.Len())
}

func TestKeyName(t *testing.T) {
	d, files, items := testDB(t, nil)
	require.Equal(t, "file(#3)", d.KeyName(files.DatabaseKeyIndex(3)))
	k, err := files.FieldKeyIndex(3, 1)
	require.NoError(t, err)
	require.Equal(t, "file.x(#3)", d.KeyName(k))
	k, err = items.FieldKeyIndex(7, 0)
	require.NoError(t, err)
	require.Equal(t, "item.y(#7)", d.KeyName(k))
	require.Equal(t, "ingredient-99(#1)", d.KeyName(DatabaseKeyIndex{Ingredient: 99, Key: 1}))

	_, err = items.FieldKeyIndex(7, 1)
	require.True(t, errors.Is(err, ErrInvalidField))
}

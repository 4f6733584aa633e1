// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/OLUWAMUYIWA/salsa/metrics"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// populate runs a short history over a fresh DB: two inputs, one of which is
// set, three tracked entities of which one is swept, and one backdated update.
func populate(t *testing.T, d *DB, files *Input[file], items *Tracked[item]) {
	require.NoError(t, d.Exclusive(func(w *Writer) error {
		var ids []Id
		for _, p := range []string{"a.go", "b.go"} {
			id, err := files.New(w, file{Path: p})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return files.Set(w, ids[0], 1, func(f *file) { f.X = 1 })
	}))
	produce := func(is ...item) {
		require.NoError(t, d.Compute(func(c *Computation) error {
			for _, i := range is {
				if _, _, err := items.New(c, i); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	produce(item{K: "a", Y: 1}, item{K: "b", Y: 1}, item{K: "c", Y: 1})
	advance(t, d)
	produce(item{K: "a", Y: 1}, item{K: "b", Y: 2})
	require.NoError(t, d.Exclusive(func(w *Writer) error {
		_, err := w.Sweep(d.CurrentRevision())
		return err
	}))
}

func TestMetrics(t *testing.T) {
	d, files, items := testDB(t, nil)
	populate(t, d, files, items)

	m := d.Metrics()
	require.Equal(t, Revision(2), m.Revision)
	require.Equal(t, 5, m.Ingredients)
	require.Len(t, m.Stores, 2)
	require.Equal(t, StoreMetrics{
		Name: "file",
		Kind: schema.KindInput,
		Entities: m.Stores[0].Entities,
	}, m.Stores[0])
	require.Equal(t, uint64(2), m.Stores[0].Entities.Live)
	require.Equal(t, "item", m.Stores[1].Name)
	require.Equal(t, uint64(2), m.Stores[1].Entities.Live)
	require.Equal(t, uint64(3), m.Stores[1].Entities.Created)
	require.Equal(t, uint64(1), m.Stores[1].Entities.Removed)
	require.Equal(t, uint64(1), m.Stores[1].Fields.Backdated)
	require.Equal(t, uint64(1), m.Stores[1].Fields.Changed)

	require.Equal(t, uint64(4), m.Entities.Total().Live)
	require.Equal(t, uint64(2), m.Tracked.Reused)
	require.Equal(t, uint64(2), m.Tracked.Updates)
	require.Equal(t, uint64(1), m.Inputs.Stamps)
	require.Equal(t, int64(1), m.Revisions)
	require.Equal(t, int64(1), m.Sweep.Count)
	require.Equal(t, int64(1), m.Sweep.Removed)

	const expected = `store_______kind____live_created_removed_backdated_changed
file       input       2       2       0         0       0
item     tracked       2       3       1         1       1
total                  4       5       1         1       1
revision R2 (1 advances), 1 sweeps removed 1 in <dur>, 0 invariant violations
`
	require.Equal(t, expected, redactDurations(m.String()))
}

// TestMetricsRowsMatchTotals reads metrics while computations create and
// update tracked entities, and checks that the per-store rows always add up
// to the totals.
func TestMetricsRowsMatchTotals(t *testing.T) {
	d, _, items := testDB(t, nil)

	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := range 10 {
				err := d.Compute(func(c *Computation) error {
					for i := range 50 {
						k := fmt.Sprintf("%d-%d", g, i)
						if _, _, err := items.New(c, item{K: k, Y: round % 3}); err != nil {
							return err
						}
					}
					return nil
				})
				if err == nil {
					// Each round produces its keys in a later revision.
					err = d.Exclusive(func(w *Writer) error {
						_, err := w.NewRevision()
						return err
					})
				}
				if err != nil {
					panic(err)
				}
			}
		}()
	}

	check := func() {
		m := d.Metrics()
		var entities metrics.EntityCounts
		var fields metrics.FieldStamps
		for _, s := range m.Stores {
			entities.Accumulate(s.Entities)
			fields.Accumulate(s.Fields)
		}
		require.Equal(t, m.Entities.Total(), entities)
		require.Equal(t, m.Tracked.Fields, fields)
	}
	for range 200 {
		check()
	}
	wg.Wait()
	check()
	require.Equal(t, 200, items.Len())
}

func TestMetricsPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	d, files, items := testDB(t, &Options{MetricsRegisterer: reg})
	populate(t, d, files, items)

	const expected = `
# HELP salsa_entities_created_total Number of entities created.
# TYPE salsa_entities_created_total counter
salsa_entities_created_total{kind="input"} 2
salsa_entities_created_total{kind="tracked"} 3
# HELP salsa_entities_live Number of live entities.
# TYPE salsa_entities_live gauge
salsa_entities_live{kind="input"} 2
salsa_entities_live{kind="tracked"} 2
# HELP salsa_entities_removed_total Number of entities deleted or swept.
# TYPE salsa_entities_removed_total counter
salsa_entities_removed_total{kind="input"} 0
salsa_entities_removed_total{kind="tracked"} 1
# HELP salsa_fields_backdated_total Number of tracked value fields whose revision was kept by an update.
# TYPE salsa_fields_backdated_total counter
salsa_fields_backdated_total 1
# HELP salsa_fields_changed_total Number of tracked value fields stamped with the current revision by an update.
# TYPE salsa_fields_changed_total counter
salsa_fields_changed_total 1
# HELP salsa_input_stamps_total Number of input field revisions stamped by writers.
# TYPE salsa_input_stamps_total counter
salsa_input_stamps_total 1
# HELP salsa_invariant_violations_total Number of invariant violations reported.
# TYPE salsa_invariant_violations_total counter
salsa_invariant_violations_total 0
# HELP salsa_revision The current revision.
# TYPE salsa_revision gauge
salsa_revision 2
# HELP salsa_tracked_reused_total Number of tracked lookups that found an existing entity.
# TYPE salsa_tracked_reused_total counter
salsa_tracked_reused_total 2
# HELP salsa_tracked_updates_total Number of tracked entity updates.
# TYPE salsa_tracked_updates_total counter
salsa_tracked_updates_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"salsa_entities_created_total",
		"salsa_entities_live",
		"salsa_entities_removed_total",
		"salsa_fields_backdated_total",
		"salsa_fields_changed_total",
		"salsa_input_stamps_total",
		"salsa_invariant_violations_total",
		"salsa_revision",
		"salsa_tracked_reused_total",
		"salsa_tracked_updates_total",
	))

	// The sweep duration histogram saw the one sweep.
	families, err := reg.Gather()
	require.NoError(t, err)
	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "salsa_sweep_duration_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	require.Equal(t, uint64(1), hist.GetSampleCount())

	// Close unregisters the collector, so a second DB can use the registry.
	require.NoError(t, d.Close())
	d2, err := Open(&Options{MetricsRegisterer: reg, Logger: NoopLogger{}})
	require.NoError(t, err)
	require.NoError(t, d2.Close())
}

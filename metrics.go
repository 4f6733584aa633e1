// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import (
	"bytes"
	"fmt"
	"time"

	"github.com/OLUWAMUYIWA/salsa/metrics"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics holds the metrics of one registered store.
type StoreMetrics struct {
	Name string
	Kind schema.Kind
	// Entities counts the store's entities.
	Entities metrics.EntityCounts
	// Fields counts the value fields compared by tracked updates. It is zero
	// for input stores, whose fields are never backdated.
	Fields metrics.FieldStamps
}

// Metrics holds metrics for the stores of a DB and its phases.
type Metrics struct {
	// Revision is the current revision.
	Revision Revision
	// Ingredients is the number of slots in the routing table.
	Ingredients int
	// Stores holds per-store metrics in registration order.
	Stores []StoreMetrics
	// Entities counts entities by store kind.
	Entities metrics.EntityCountsByKind

	Inputs struct {
		// Stamps is the number of input field revisions stamped by writers.
		Stamps uint64
	}

	Tracked struct {
		// Reused is the number of lookups that found an existing entity.
		Reused uint64
		// Updates is the number of successful updates.
		Updates uint64
		// Fields counts backdated and changed value fields over all updates.
		Fields metrics.FieldStamps
	}

	Sweep struct {
		// Count is the number of store sweeps performed.
		Count int64
		// Removed is the number of entities removed by sweeps.
		Removed int64
		// Duration is the total time spent sweeping.
		Duration time.Duration
	}

	// Revisions is the number of revision advances since Open.
	Revisions int64
	// InvariantViolations is the number of assertion failures reported.
	InvariantViolations int64
}

// Metrics returns metrics about the database.
func (d *DB) Metrics() *Metrics {
	m := &Metrics{
		Revision:            d.clock.Current(),
		Ingredients:         d.routes.Len(),
		Revisions:           d.metrics.revisions.Load(),
		InvariantViolations: d.metrics.violations.Load(),
	}
	m.Sweep.Count = d.metrics.sweeps.Load()
	m.Sweep.Removed = d.metrics.swept.Load()
	m.Sweep.Duration = time.Duration(d.metrics.sweepNanos.Load())

	d.mu.Lock()
	stores := d.mu.stores
	d.mu.Unlock()
	for _, s := range stores {
		// Each store is read once, so its row always agrees with the totals.
		var sm Metrics
		s.collectMetrics(&sm)
		m.Stores = append(m.Stores, StoreMetrics{
			Name:     s.name(),
			Kind:     s.kind(),
			Entities: sm.Entities.Get(s.kind()),
			Fields:   sm.Tracked.Fields,
		})
		m.accumulate(&sm)
	}
	return m
}

// accumulate adds the store figures of o to m.
func (m *Metrics) accumulate(o *Metrics) {
	m.Entities.Accumulate(o.Entities)
	m.Inputs.Stamps += o.Inputs.Stamps
	m.Tracked.Reused += o.Tracked.Reused
	m.Tracked.Updates += o.Tracked.Updates
	m.Tracked.Fields.Accumulate(o.Tracked.Fields)
}

// Pretty-print the metrics, showing a line per store and a total:
//
//	store_______kind____live_created_removed_backdated_changed
//	files      input       2       2       0         0       0
//	items    tracked       1       4       3         5       2
//	total                  3       6       3         5       2
//	revision R4 (3 advances), 1 sweeps removed 3 in 0.1ms, 0 invariant violations
func (m *Metrics) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "store_______kind____live_created_removed_backdated_changed\n")
	for _, s := range m.Stores {
		formatStore(&buf, s.Name, s.Kind.String(), &s)
	}
	formatStore(&buf, "total", "", &StoreMetrics{
		Entities: m.Entities.Total(),
		Fields:   m.Tracked.Fields,
	})
	fmt.Fprintf(&buf, "revision %s (%d advances), %d sweeps removed %d in %.1fms, %d invariant violations\n",
		m.Revision, m.Revisions, m.Sweep.Count, m.Sweep.Removed,
		m.Sweep.Duration.Seconds()*1000, m.InvariantViolations)
	return buf.String()
}

func formatStore(buf *bytes.Buffer, name, kind string, s *StoreMetrics) {
	fmt.Fprintf(buf, "%-8s %7s %7d %7d %7d %9d %7d\n",
		name, kind,
		s.Entities.Live, s.Entities.Created, s.Entities.Removed,
		s.Fields.Backdated, s.Fields.Changed)
}

// collector exports a DB's metrics to Prometheus. Gauges and counters are
// read from DB.Metrics at collection time; the sweep duration histogram is
// observed as sweeps happen.
type collector struct {
	db *DB

	revision        *prometheus.Desc
	entitiesLive    *prometheus.Desc
	entitiesCreated *prometheus.Desc
	entitiesRemoved *prometheus.Desc
	trackedReused   *prometheus.Desc
	trackedUpdates  *prometheus.Desc
	fieldsBackdated *prometheus.Desc
	fieldsChanged   *prometheus.Desc
	inputStamps     *prometheus.Desc
	violations      *prometheus.Desc

	sweepDuration prometheus.Histogram
}

var _ prometheus.Collector = (*collector)(nil)

func newCollector(d *DB) *collector {
	kind := []string{"kind"}
	return &collector{
		db: d,
		revision: prometheus.NewDesc("salsa_revision",
			"The current revision.", nil, nil),
		entitiesLive: prometheus.NewDesc("salsa_entities_live",
			"Number of live entities.", kind, nil),
		entitiesCreated: prometheus.NewDesc("salsa_entities_created_total",
			"Number of entities created.", kind, nil),
		entitiesRemoved: prometheus.NewDesc("salsa_entities_removed_total",
			"Number of entities deleted or swept.", kind, nil),
		trackedReused: prometheus.NewDesc("salsa_tracked_reused_total",
			"Number of tracked lookups that found an existing entity.", nil, nil),
		trackedUpdates: prometheus.NewDesc("salsa_tracked_updates_total",
			"Number of tracked entity updates.", nil, nil),
		fieldsBackdated: prometheus.NewDesc("salsa_fields_backdated_total",
			"Number of tracked value fields whose revision was kept by an update.", nil, nil),
		fieldsChanged: prometheus.NewDesc("salsa_fields_changed_total",
			"Number of tracked value fields stamped with the current revision by an update.", nil, nil),
		inputStamps: prometheus.NewDesc("salsa_input_stamps_total",
			"Number of input field revisions stamped by writers.", nil, nil),
		violations: prometheus.NewDesc("salsa_invariant_violations_total",
			"Number of invariant violations reported.", nil, nil),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "salsa_sweep_duration_seconds",
			Help:    "Time spent sweeping a tracked store.",
			Buckets: []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1},
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.revision
	ch <- c.entitiesLive
	ch <- c.entitiesCreated
	ch <- c.entitiesRemoved
	ch <- c.trackedReused
	ch <- c.trackedUpdates
	ch <- c.fieldsBackdated
	ch <- c.fieldsChanged
	ch <- c.inputStamps
	ch <- c.violations
	c.sweepDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m := c.db.Metrics()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	gauge(c.revision, float64(m.Revision))
	for _, k := range []schema.Kind{schema.KindInput, schema.KindTracked} {
		e := m.Entities.Get(k)
		gauge(c.entitiesLive, float64(e.Live), k.String())
		counter(c.entitiesCreated, float64(e.Created), k.String())
		counter(c.entitiesRemoved, float64(e.Removed), k.String())
	}
	counter(c.trackedReused, float64(m.Tracked.Reused))
	counter(c.trackedUpdates, float64(m.Tracked.Updates))
	counter(c.fieldsBackdated, float64(m.Tracked.Fields.Backdated))
	counter(c.fieldsChanged, float64(m.Tracked.Fields.Changed))
	counter(c.inputStamps, float64(m.Inputs.Stamps))
	counter(c.violations, float64(m.InvariantViolations))
	c.sweepDuration.Collect(ch)
}

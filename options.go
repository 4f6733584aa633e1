// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import (
	"bytes"
	"fmt"
	"math/bits"
	"runtime"
	"strings"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger = base.DefaultLogger

// NoopLogger is a Logger that does nothing.
type NoopLogger = base.NoopLogger

const (
	// maxShards bounds the number of shards of every entity map.
	maxShards = 1 << 16
	// initialCapacityDefault is the default number of entities each store is
	// sized for.
	initialCapacityDefault = 1 << 10
)

// Options holds the optional parameters for configuring a database. These
// options apply to the DB at Open time and to every store registered with it.
type Options struct {
	// EventListener provides hooks to listening to significant DB events such
	// as revision advances and sweeps.
	EventListener *EventListener

	// InitialCapacity is the number of entities each store preallocates room
	// for, spread over its shards.
	//
	// The default value is 1024.
	InitialCapacity int

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// MetricsRegisterer, if set, receives a collector exporting the DB's
	// metrics to Prometheus. The collector is unregistered on Close.
	MetricsRegisterer prometheus.Registerer

	// NumShards is the number of shards of every entity map and identity
	// index. Unrelated entities in different shards never contend on a lock.
	// It is rounded up to a power of two.
	//
	// The default value is 4 times GOMAXPROCS.
	NumShards int

	// SweepRetention is the number of revisions a tracked entity survives
	// without being produced. When positive, Writer.NewRevision sweeps every
	// tracked store of entities last produced more than SweepRetention
	// revisions before the new current revision. Zero disables automatic
	// sweeps; Writer.Sweep remains available.
	SweepRetention int
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.Logger == nil {
		o.Logger = DefaultLogger{}
	}
	if o.EventListener == nil {
		o.EventListener = &EventListener{}
	}
	o.EventListener.EnsureDefaults(o.Logger)

	if o.NumShards <= 0 {
		o.NumShards = 4 * runtime.GOMAXPROCS(0)
	}
	if o.NumShards&(o.NumShards-1) != 0 && o.NumShards < maxShards {
		o.NumShards = 1 << bits.Len(uint(o.NumShards))
	}
	if o.InitialCapacity <= 0 {
		o.InitialCapacity = initialCapacityDefault
	}
}

// AddEventListener adds the provided event listener to the Options, in addition
// to any existing event listener.
func (o *Options) AddEventListener(l EventListener) {
	if o.EventListener != nil {
		l = TeeEventListener(l, *o.EventListener)
	}
	o.EventListener = &l
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	n := *o
	if o.EventListener != nil {
		l := *o.EventListener
		n.EventListener = &l
	}
	return &n
}

func (o *Options) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  initial_capacity=%d\n", o.InitialCapacity)
	fmt.Fprintf(&buf, "  metrics_exported=%t\n", o.MetricsRegisterer != nil)
	fmt.Fprintf(&buf, "  num_shards=%d\n", o.NumShards)
	fmt.Fprintf(&buf, "  sweep_retention=%d\n", o.SweepRetention)
	return buf.String()
}

// Validate verifies that the options are mutually consistent. For example,
// NumShards must be a power of two.
func (o *Options) Validate() error {
	// Note that we can presume Options.EnsureDefaults has been called, so there
	// is no need to check for zero values.

	var buf strings.Builder
	if o.NumShards > maxShards {
		fmt.Fprintf(&buf, "NumShards (%d) must be <= %d\n", o.NumShards, maxShards)
	} else if o.NumShards&(o.NumShards-1) != 0 {
		fmt.Fprintf(&buf, "NumShards (%d) must be a power of two\n", o.NumShards)
	}
	if o.SweepRetention < 0 {
		fmt.Fprintf(&buf, "SweepRetention (%d) must be >= 0\n", o.SweepRetention)
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.New(buf.String())
}

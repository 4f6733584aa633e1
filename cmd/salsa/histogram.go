// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatency = 100 * time.Nanosecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

// namedHistogram records operation latencies from concurrent workers.
type namedHistogram struct {
	name string
	mu   struct {
		sync.Mutex
		current *hdrhistogram.Histogram
	}
}

func newNamedHistogram(name string) *namedHistogram {
	w := &namedHistogram{name: name}
	w.mu.current = newHistogram()
	return w
}

func (w *namedHistogram) Record(elapsed time.Duration) {
	elapsed = min(max(elapsed, minLatency), maxLatency)

	w.mu.Lock()
	err := w.mu.current.RecordValue(elapsed.Nanoseconds())
	w.mu.Unlock()

	if err != nil {
		// Values are clamped to the histogram's range, so this never happens.
		panic(fmt.Sprintf(`%s: recording value: %s`, w.name, err))
	}
}

// Snapshot returns a copy of the recorded latencies.
func (w *namedHistogram) Snapshot() *hdrhistogram.Histogram {
	w.mu.Lock()
	defer w.mu.Unlock()
	return hdrhistogram.Import(w.mu.current.Export())
}

// summaryRow formats the operation count and latency percentiles of h.
func summaryRow(name string, h *hdrhistogram.Histogram, elapsed time.Duration) []string {
	ms := func(v int64) string {
		return fmt.Sprintf("%.3f", time.Duration(v).Seconds()*1000)
	}
	return []string{
		name,
		fmt.Sprintf("%d", h.TotalCount()),
		fmt.Sprintf("%.1f", float64(h.TotalCount())/elapsed.Seconds()),
		ms(int64(h.Mean())),
		ms(h.ValueAtQuantile(50)),
		ms(h.ValueAtQuantile(95)),
		ms(h.ValueAtQuantile(99)),
		ms(h.Max()),
	}
}

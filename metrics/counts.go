// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package metrics contains the value types used to report the population of
// entity stores and the outcome of field revision stamping.
package metrics

import (
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// EntityCounts tracks the population of a set of entity stores.
type EntityCounts struct {
	// Live is the number of entities currently stored.
	Live uint64

	// Created is the number of entities ever allocated.
	Created uint64

	// Removed is the number of entities deleted or swept.
	Removed uint64
}

// Accumulate increases the counts by the given amounts.
func (c *EntityCounts) Accumulate(other EntityCounts) {
	c.Live += other.Live
	c.Created += other.Created
	c.Removed += other.Removed
}

func (c EntityCounts) IsZero() bool {
	return c == EntityCounts{}
}

// Sum returns the sums of the counts.
func (c EntityCounts) Sum(other EntityCounts) EntityCounts {
	c.Accumulate(other)
	return c
}

func (c EntityCounts) String() string {
	return redact.StringWithoutMarkers(c)
}

// SafeFormat implements redact.SafeFormatter.
func (c EntityCounts) SafeFormat(w redact.SafePrinter, verb rune) {
	w.Printf("%s live (%s created, %s removed)",
		crhumanize.Count(c.Live, crhumanize.Compact),
		crhumanize.Count(c.Created, crhumanize.Compact),
		crhumanize.Count(c.Removed, crhumanize.Compact))
}

// FieldStamps counts the outcome of comparing recomputed value fields with
// their previous values.
type FieldStamps struct {
	// Backdated is the number of fields whose revision was kept because the
	// new value equaled the old one.
	Backdated uint64

	// Changed is the number of fields stamped with the current revision.
	Changed uint64
}

// Accumulate increases the counts by the given amounts.
func (s *FieldStamps) Accumulate(other FieldStamps) {
	s.Backdated += other.Backdated
	s.Changed += other.Changed
}

// Total returns the number of compared fields.
func (s FieldStamps) Total() uint64 {
	return s.Backdated + s.Changed
}

// BackdateRatio returns the fraction of compared fields that were backdated,
// or 0 if no field was compared.
func (s FieldStamps) BackdateRatio() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Backdated) / float64(s.Total())
}

func (s FieldStamps) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s FieldStamps) SafeFormat(w redact.SafePrinter, verb rune) {
	if s.Total() == 0 {
		w.Printf("no fields compared")
		return
	}
	w.Printf("%s backdated, %s changed (%.0f%% backdated)",
		crhumanize.Count(s.Backdated, crhumanize.Compact),
		crhumanize.Count(s.Changed, crhumanize.Compact),
		redact.Safe(100*s.BackdateRatio()))
}

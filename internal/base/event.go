// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"time"

	"github.com/cockroachdb/redact"
)

// RevisionInfo contains the info for a revision advance event.
type RevisionInfo struct {
	// Previous is the revision that was current before the advance.
	Previous Revision
	// Current is the new current revision.
	Current Revision
}

func (i RevisionInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i RevisionInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("[revision] advanced %s -> %s", i.Previous, i.Current)
}

// SweepInfo contains the info for a sweep event.
type SweepInfo struct {
	// Store is the debug name of the swept store.
	Store string
	// Threshold is the revision below which unverified entities were removed.
	Threshold Revision
	// Removed is the number of entities removed.
	Removed int
	// Remaining is the number of entities left in the store.
	Remaining int
	// Duration is the time spent sweeping.
	Duration time.Duration
}

func (i SweepInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i SweepInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("[sweep] %s: threshold %s, removed %d, remaining %d (%.1fms)",
		redact.SafeString(i.Store), i.Threshold, redact.Safe(i.Removed),
		redact.Safe(i.Remaining), redact.Safe(i.Duration.Seconds()*1000))
}

// EventListener contains a set of functions that will be invoked when various
// significant database events occur. Note that the functions should not run
// for an excessive amount of time as they are invoked synchronously by the
// database and may block continued database work.
type EventListener struct {
	// InvariantViolation is invoked whenever an operation fails with an
	// assertion error (a duplicate identity, a double update, use of a closed
	// phase token, ...). The error is still returned to the caller.
	InvariantViolation func(error)

	// RevisionAdvanced is invoked after the clock moves to a new revision.
	RevisionAdvanced func(RevisionInfo)

	// SweepEnd is invoked after a tracked store was swept.
	SweepEnd func(SweepInfo)
}

// EnsureDefaults ensures that invariant violations are logged to the
// specified logger if a handler for those events hasn't been otherwise
// specified. Ensure all handlers are non-nil so that we don't have to check
// for nil-ness before invoking.
func (l *EventListener) EnsureDefaults(logger Logger) {
	if l.InvariantViolation == nil {
		if logger != nil {
			l.InvariantViolation = func(err error) {
				logger.Errorf("invariant violation: %s", err)
			}
		} else {
			l.InvariantViolation = func(error) {}
		}
	}
	if l.RevisionAdvanced == nil {
		l.RevisionAdvanced = func(RevisionInfo) {}
	}
	if l.SweepEnd == nil {
		l.SweepEnd = func(SweepInfo) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to
// the specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger{}
	}
	return EventListener{
		InvariantViolation: func(err error) {
			logger.Errorf("invariant violation: %s", err)
		},
		RevisionAdvanced: func(info RevisionInfo) {
			logger.Infof("%s", info)
		},
		SweepEnd: func(info SweepInfo) {
			logger.Infof("%s", info)
		},
	}
}

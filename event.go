// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package salsa

import "github.com/OLUWAMUYIWA/salsa/internal/base"

// RevisionInfo exports the base.RevisionInfo type.
type RevisionInfo = base.RevisionInfo

// SweepInfo exports the base.SweepInfo type.
type SweepInfo = base.SweepInfo

// EventListener exports the base.EventListener type.
type EventListener = base.EventListener

// MakeLoggingEventListener exports the base.MakeLoggingEventListener function.
func MakeLoggingEventListener(logger Logger) EventListener {
	return base.MakeLoggingEventListener(logger)
}

// TeeEventListener wraps two EventListeners, forwarding all events to both.
func TeeEventListener(a, b EventListener) EventListener {
	a.EnsureDefaults(nil)
	b.EnsureDefaults(nil)
	return EventListener{
		InvariantViolation: func(err error) {
			a.InvariantViolation(err)
			b.InvariantViolation(err)
		},
		RevisionAdvanced: func(info RevisionInfo) {
			a.RevisionAdvanced(info)
			b.RevisionAdvanced(info)
		},
		SweepEnd: func(info SweepInfo) {
			a.SweepEnd(info)
			b.SweepEnd(info)
		},
	}
}

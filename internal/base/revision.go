// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cockroachdb/redact"
)

// Revision is a point in the logical history of a database. Revisions are
// totally ordered and only ever compared; they carry no arithmetic meaning
// beyond that. Every field of every entity is stamped with the revision in
// which its value last changed.
type Revision uint64

const (
	// RevisionZero is never assigned by a Clock. It is used to denote "no
	// revision", e.g. an entity that was never verified.
	RevisionZero Revision = 0
	// RevisionStart is the revision of a newly opened database.
	RevisionStart Revision = 1
	// RevisionMax is the largest representable revision.
	RevisionMax Revision = math.MaxUint64
)

func (r Revision) String() string {
	if r == RevisionMax {
		return "inf"
	}
	return fmt.Sprintf("R%d", uint64(r))
}

// SafeFormat implements redact.SafeFormatter.
func (r Revision) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(r.String()))
}

// Clock holds the current revision of a database.
//
// Current may be called at any time and from any goroutine. Advance must only
// be called while no computation is running; the database enforces this with
// its phase lock, the clock itself does not.
type Clock struct {
	rev atomic.Uint64
}

// Init sets the clock to the given revision.
func (c *Clock) Init(start Revision) {
	c.rev.Store(uint64(start))
}

// Current returns the current revision.
func (c *Clock) Current() Revision {
	return Revision(c.rev.Load())
}

// Advance moves the clock to the next revision and returns it. It panics,
// leaving the clock unchanged, if the next revision would be RevisionMax.
func (c *Clock) Advance() Revision {
	if Revision(c.rev.Load()) >= RevisionMax-1 {
		panic("salsa: revision overflow")
	}
	return Revision(c.rev.Add(1))
}

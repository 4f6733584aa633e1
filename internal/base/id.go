// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/redact"
)

// Id is an opaque handle naming a single entity within a store. The zero Id
// is never allocated.
type Id uint64

// IdInvalid is the zero Id.
const IdInvalid Id = 0

func (id Id) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

// SafeFormat implements redact.SafeFormatter.
func (id Id) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(id.String()))
}

// IdAllocator issues Ids. It is safe for concurrent use; Ids are handed out in
// increasing order and never reissued.
type IdAllocator struct {
	last atomic.Uint64
}

// Allocate returns a fresh Id.
func (a *IdAllocator) Allocate() Id {
	return Id(a.last.Add(1))
}

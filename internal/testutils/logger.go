// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package testutils holds helpers shared by the tests of the salsa packages.
package testutils

import (
	"fmt"
	"testing"
)

// Logger sends a DB's log messages to the test log, tagging each line with
// its level. Invariant violations arrive through Errorf and do not fail the
// test, since several tests provoke them on purpose.
type Logger struct {
	T testing.TB
}

// Infof implements the Logger interface.
func (l Logger) Infof(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Logf("I %s", fmt.Sprintf(format, args...))
}

// Errorf implements the Logger interface.
func (l Logger) Errorf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Logf("E %s", fmt.Sprintf(format, args...))
}

// Fatalf implements the Logger interface.
func (l Logger) Fatalf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf("F %s", fmt.Sprintf(format, args...))
}

// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/OLUWAMUYIWA/salsa"
	"github.com/stretchr/testify/require"
)

func TestScenario(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runScenario(&buf, &salsa.Options{Logger: salsa.NoopLogger{}}))
	const expected = `R1: new input #1 x=5
R1: updated input #1 x=7
R1: k=foo y=1 -> #1 created=true backdated=0 changed=0 y changed in R1 (tracked(#1))
R2: k=foo y=1 -> #1 created=false backdated=1 changed=0 y changed in R1 (tracked(#1))
R3: k=foo y=2 -> #1 created=false backdated=0 changed=1 y changed in R3 (tracked(#1))
`
	require.Equal(t, expected, buf.String())
}

func TestBench(t *testing.T) {
	defer func(c int) { concurrency = c }(concurrency)
	saved := benchConfig
	defer func() { benchConfig = saved }()

	concurrency = 4
	duration = 0
	retention = 2
	benchConfig.inputs = 200
	benchConfig.revisions = 5
	benchConfig.churn = 0.5
	benchConfig.modulus = 2
	benchConfig.seed = 1

	var buf bytes.Buffer
	require.NoError(t, runBench(context.Background(), &buf))
	out := buf.String()
	require.Contains(t, out, "inputs 200\nconcurrency 4\n")
	require.Contains(t, out, "revision R6 (5 advances)")
	require.Contains(t, out, "entities: inputs: ")
	require.Regexp(t, `fields: .* backdated, .* changed \(\d+% backdated\)`, out)
	require.Contains(t, out, "backdate ratio per revision")
}

// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	concurrency int
	duration    time.Duration
	numShards   int
	retention   int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "salsa [command] (flags)",
	Short: "salsa entity store benchmarking/introspection tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		benchCmd,
		scenarioCmd,
	)

	for _, cmd := range []*cobra.Command{benchCmd, scenarioCmd} {
		cmd.Flags().IntVar(
			&numShards, "shards", 0, "number of shards per store (0 means the default)")
		cmd.Flags().IntVar(
			&retention, "retention", 0, "revisions an unproduced tracked entity survives (0 disables sweeps)")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "enable verbose event logging")
	}

	benchCmd.Flags().IntVarP(
		&concurrency, "concurrency", "c", 4, "number of concurrent computation workers")
	benchCmd.Flags().DurationVarP(
		&duration, "duration", "d", 10*time.Second, "the duration to run (0, run until --revisions)")
	benchCmd.Flags().IntVar(
		&benchConfig.inputs, "inputs", 10000, "number of input entities")
	benchCmd.Flags().IntVar(
		&benchConfig.revisions, "revisions", 0, "number of revisions to run (0 means unlimited)")
	benchCmd.Flags().Float64Var(
		&benchConfig.churn, "churn", 0.1, "fraction (0-1) of inputs modified in each revision")
	benchCmd.Flags().IntVar(
		&benchConfig.modulus, "modulus", 4,
		"derived values are input values modulo this; larger values backdate less often")
	benchCmd.Flags().Float64Var(
		&benchConfig.rate, "rate", 0, "maximum computation operations per second (0 means unlimited)")
	benchCmd.Flags().Int64Var(
		&benchConfig.seed, "seed", 1, "random seed")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

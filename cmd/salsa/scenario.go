// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/OLUWAMUYIWA/salsa"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/spf13/cobra"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "walk through input updates and tracked entity backdating",
	Long: `
Create an input entity and update it, then produce a tracked entity over three
revisions: created in the first, recomputed with an unchanged value in the
second (backdated), and recomputed with a new value in the third.
`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd.OutOrStdout(), benchOptions())
	},
}

type scenarioInput struct {
	X int
}

var scenarioInputSchema = schema.New("input",
	schema.Value("x", func(i *scenarioInput) int { return i.X }),
)

type scenarioTracked struct {
	K string
	Y int
}

var scenarioTrackedSchema = schema.New("tracked",
	schema.IDString("k", func(t *scenarioTracked) string { return t.K }),
	schema.Value("y", func(t *scenarioTracked) int { return t.Y }),
)

func runScenario(out io.Writer, opts *salsa.Options) error {
	db, err := salsa.Open(opts)
	if err != nil {
		return err
	}
	defer db.Close()
	inputs, err := salsa.NewInput(db, scenarioInputSchema)
	if err != nil {
		return err
	}
	tracked, err := salsa.NewTracked(db, scenarioTrackedSchema)
	if err != nil {
		return err
	}

	var in salsa.Id
	if err := db.Exclusive(func(w *salsa.Writer) error {
		if in, err = inputs.New(w, scenarioInput{X: 5}); err != nil {
			return err
		}
		f, err := inputs.Get(in)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: new input %s x=%d\n", w.Revision(), in, f.X)
		return inputs.Update(w, in, func(h *salsa.InputHandle[scenarioInput]) error {
			return h.Set(0, func(i *scenarioInput) { i.X = 7 })
		})
	}); err != nil {
		return err
	}
	f, err := inputs.Get(in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: updated input %s x=%d\n", db.CurrentRevision(), in, f.X)

	produce := func(y int) error {
		return db.Compute(func(c *salsa.Computation) error {
			id, created, err := tracked.LookupOrCreate(c, scenarioTracked{K: "foo", Y: y})
			if err != nil {
				return err
			}
			var res salsa.UpdateResult
			if !created {
				if res, err = tracked.Update(c, id, scenarioTracked{K: "foo", Y: y}); err != nil {
					return err
				}
			}
			rev, err := tracked.FieldRevision(id, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: k=foo y=%d -> %s created=%t backdated=%d changed=%d y changed in %s (%s)\n",
				c.Revision(), y, id, created, res.Backdated, res.Changed, rev,
				db.KeyName(tracked.DatabaseKeyIndex(id)))
			return nil
		})
	}
	advance := func() error {
		return db.Exclusive(func(w *salsa.Writer) error {
			_, err := w.NewRevision()
			return err
		})
	}

	for i, y := range []int{1, 1, 2} {
		if i > 0 {
			if err := advance(); err != nil {
				return err
			}
		}
		if err := produce(y); err != nil {
			return err
		}
	}
	return nil
}

// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/OLUWAMUYIWA/salsa"
	"github.com/OLUWAMUYIWA/salsa/metrics"
	"github.com/OLUWAMUYIWA/salsa/schema"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tokenbucket"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var benchConfig struct {
	inputs    int
	revisions int
	churn     float64
	modulus   int
	rate      float64
	seed      int64
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "run a revision/recompute benchmark",
	Long: `
Run a benchmark that repeatedly modifies a fraction of a set of input entities,
advances the revision and recomputes one tracked entity per input from
concurrent workers. Derived values are input values modulo --modulus, so many
recomputations produce unchanged values and are backdated.
`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.Context(), cmd.OutOrStdout())
	},
}

// source is an input entity: a file with a numeric payload.
type source struct {
	Path  string
	Value uint64
}

var sourceSchema = schema.New("source",
	schema.Value("path", func(s *source) string { return s.Path }),
	schema.Value("value", func(s *source) uint64 { return s.Value }),
)

// derived is the tracked entity computed from a source.
type derived struct {
	Path   string
	Digest uint64
}

var derivedSchema = schema.New("derived",
	schema.IDString("path", func(d *derived) string { return d.Path }),
	schema.Value("digest", func(d *derived) uint64 { return d.Digest }),
)

// limiter is a token bucket shared by concurrent workers.
type limiter struct {
	mu sync.Mutex
	tb tokenbucket.TokenBucket
}

func newLimiter(opsPerSec float64) *limiter {
	if opsPerSec <= 0 {
		return nil
	}
	l := &limiter{}
	l.tb.Init(tokenbucket.TokensPerSecond(opsPerSec), tokenbucket.Tokens(max(1, opsPerSec/10)))
	return l
}

// Wait blocks until one operation is allowed or ctx is done.
func (l *limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		l.mu.Lock()
		ok, d := l.tb.TryToFulfill(1)
		l.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

type bench struct {
	db       *salsa.DB
	sources  *salsa.Input[source]
	derived  *salsa.Tracked[derived]
	ids      []salsa.Id
	rng      *rand.Rand
	limiter  *limiter
	computes *namedHistogram
	advances *namedHistogram

	// ratios holds the backdate ratio of each recompute pass.
	ratios []float64
}

func newBench(opts *salsa.Options) (*bench, error) {
	db, err := salsa.Open(opts)
	if err != nil {
		return nil, err
	}
	b := &bench{
		db:       db,
		rng:      rand.New(rand.NewPCG(uint64(benchConfig.seed), 0)),
		limiter:  newLimiter(benchConfig.rate),
		computes: newNamedHistogram("compute"),
		advances: newNamedHistogram("advance"),
	}
	if b.sources, err = salsa.NewInput(db, sourceSchema); err != nil {
		return nil, err
	}
	if b.derived, err = salsa.NewTracked(db, derivedSchema); err != nil {
		return nil, err
	}
	err = db.Exclusive(func(w *salsa.Writer) error {
		for i := range benchConfig.inputs {
			id, err := b.sources.New(w, source{
				Path:  fmt.Sprintf("src/%06d.go", i),
				Value: b.rng.Uint64(),
			})
			if err != nil {
				return err
			}
			b.ids = append(b.ids, id)
		}
		return nil
	})
	return b, err
}

// mutate changes a random fraction of the sources and advances the revision.
func (b *bench) mutate() error {
	start := crtime.NowMono()
	n := int(float64(len(b.ids)) * benchConfig.churn)
	err := b.db.Exclusive(func(w *salsa.Writer) error {
		for range n {
			id := b.ids[b.rng.IntN(len(b.ids))]
			v := b.rng.Uint64()
			if err := b.sources.Set(w, id, 1, func(s *source) { s.Value = v }); err != nil {
				return err
			}
		}
		_, err := w.NewRevision()
		return err
	})
	b.advances.Record(start.Elapsed())
	return err
}

// recompute derives one tracked entity per source, spreading the sources over
// concurrency workers within a single computation.
func (b *bench) recompute(ctx context.Context) error {
	var mu sync.Mutex
	var stamps metrics.FieldStamps
	err := b.db.Compute(func(c *salsa.Computation) error {
		g, ctx := errgroup.WithContext(ctx)
		for w := range concurrency {
			g.Go(func() error {
				var local metrics.FieldStamps
				for i := w; i < len(b.ids); i += concurrency {
					if err := b.limiter.Wait(ctx); err != nil {
						return err
					}
					start := crtime.NowMono()
					src, err := b.sources.Get(b.ids[i])
					if err != nil {
						return err
					}
					_, res, err := b.derived.New(c, derived{
						Path:   src.Path,
						Digest: src.Value % uint64(benchConfig.modulus),
					})
					if err != nil {
						return err
					}
					b.computes.Record(start.Elapsed())
					local.Accumulate(metrics.FieldStamps{
						Backdated: uint64(res.Backdated),
						Changed:   uint64(res.Changed),
					})
				}
				mu.Lock()
				stamps.Accumulate(local)
				mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return err
	}
	b.ratios = append(b.ratios, stamps.BackdateRatio())
	return nil
}

func (b *bench) report(out io.Writer, elapsed time.Duration) {
	m := b.db.Metrics()
	fmt.Fprintf(out, "\n%s\n", m)
	fmt.Fprintf(out, "entities: %s\nfields: %s\n\n", m.Entities, m.Tracked.Fields)

	tbl := tablewriter.NewWriter(out)
	tbl.SetHeader([]string{"op", "count", "ops/sec", "avg(ms)", "p50(ms)", "p95(ms)", "p99(ms)", "max(ms)"})
	tbl.Append(summaryRow(b.advances.name, b.advances.Snapshot(), elapsed))
	tbl.Append(summaryRow(b.computes.name, b.computes.Snapshot(), elapsed))
	tbl.Render()

	// The first pass creates every entity, so it never backdates.
	if len(b.ratios) > 2 {
		fmt.Fprintf(out, "\nbackdate ratio per revision\n%s\n",
			asciigraph.Plot(b.ratios[1:], asciigraph.Height(10), asciigraph.Width(60)))
	}
}

func runBench(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	if duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, duration)
		defer cancelTimeout()
	}
	if benchConfig.modulus <= 0 {
		return errors.Newf("--modulus must be positive, got %d", benchConfig.modulus)
	}
	if concurrency <= 0 {
		return errors.Newf("--concurrency must be positive, got %d", concurrency)
	}

	b, err := newBench(benchOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := b.db.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()
	fmt.Fprintf(out, "inputs %d\nconcurrency %d\n", len(b.ids), concurrency)

	start := crtime.NowMono()
	for rev := 0; benchConfig.revisions == 0 || rev < benchConfig.revisions; rev++ {
		if ctx.Err() != nil {
			break
		}
		if err := b.recompute(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		if err := b.mutate(); err != nil {
			return err
		}
	}
	b.report(out, start.Elapsed())
	return nil
}

func benchOptions() *salsa.Options {
	opts := &salsa.Options{
		NumShards:      numShards,
		SweepRetention: retention,
		Logger:         salsa.DefaultLogger{},
	}
	if verbose {
		lel := salsa.MakeLoggingEventListener(opts.Logger)
		opts.EventListener = &lel
	}
	return opts
}

// Command nnschedperf benchmarks repeated scheduling of a graph, reporting
// mean/stddev latency the way the teacher's sublperf reports kernel timing.
// Iterations run concurrently via errgroup, each over its own freshly-
// parsed graph and scheduling context, so no single Schedule call ever
// shares state with another even though the harness itself is concurrent.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
	"golang.org/x/sync/errgroup"

	"github.com/sbl8/nnsched/alloc"
	"github.com/sbl8/nnsched/dsl"
	"github.com/sbl8/nnsched/sched"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var iterations int
	var concurrency int

	cmd := &cobra.Command{
		Use:   "nnschedperf <graph.nnsg>",
		Short: "Benchmark repeated scheduling of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], iterations, concurrency)
		},
	}
	cmd.Flags().IntVar(&iterations, "iter", 1000, "number of scheduling runs")
	cmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "concurrent scheduling runs")
	return cmd
}

func run(path string, iterations, concurrency int) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("nnschedperf: %w", err)
	}

	samples := make([]float64, iterations)

	g, egCtx := errgroup.WithContext(context.Background())
	g.SetLimit(concurrency)
	for i := 0; i < iterations; i++ {
		i := i
		g.Go(func() error {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			graph, err := dsl.Parse(src)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			start := time.Now()
			if _, err := sched.Schedule(graph, alloc.DefaultFactory, sched.Options{}); err != nil {
				return fmt.Errorf("schedule: %w", err)
			}
			samples[i] = float64(time.Since(start).Nanoseconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	mean, std := stat.MeanStdDev(samples, nil)
	fmt.Printf("nnschedperf: %s\n", path)
	fmt.Printf("iterations:  %d (concurrency %d)\n", iterations, concurrency)
	fmt.Printf("mean:        %.1fus\n", mean/1e3)
	fmt.Printf("stddev:      %.1fus\n", std/1e3)
	return nil
}

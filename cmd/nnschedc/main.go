// Command nnschedc parses a graph DSL file, runs the memory scheduler over
// it, and prints the resulting compute sequence, per-value allocations, and
// per-location peak usage. It replaces the teacher's bare flag-based sublc
// with a cobra command tree the way the rest of the retrieval pack builds
// its CLIs.
package main

import (
	"fmt"
	"os"

	units "github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sbl8/nnsched/alloc"
	"github.com/sbl8/nnsched/dsl"
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/sched"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var skipAlias bool

	cmd := &cobra.Command{
		Use:   "nnschedc <graph.nnsg>",
		Short: "Schedule a lowered graph and print its memory plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], sched.Options{SkipAliasAnalysis: skipAlias})
		},
	}
	cmd.Flags().BoolVar(&skipAlias, "skip-alias-analysis", false, "disable bitcast/concat aliasing and schedule every node as a real copy")
	return cmd
}

func run(path string, opts sched.Options) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("nnschedc: %w", err)
	}

	graph, err := dsl.Parse(src)
	if err != nil {
		return fmt.Errorf("nnschedc: %w", err)
	}

	result, err := sched.Schedule(graph, alloc.DefaultFactory, opts)
	if err != nil {
		return fmt.Errorf("nnschedc: schedule failed: %w", err)
	}

	fmt.Printf("run %s, %d module(s)\n\n", result.RunID, len(result.Modules))
	for _, idx := range result.ModuleOrder {
		printModule(result.Modules[idx])
	}
	return nil
}

func printModule(m *sched.ModuleResult) {
	fmt.Printf("module %q\n", m.Graph.ModuleType)

	fmt.Println("compute sequence:")
	for _, id := range m.Sequence {
		fmt.Printf("  %s\n", m.Graph.Node(id).Name)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NODE", "PORT", "LOCATION", "SHAPE", "START", "SIZE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, n := range m.Graph.Nodes {
		for portIdx := range n.Shapes {
			port := ir.Port{Node: n.ID, Index: portIdx}
			a, ok := m.Allocations[port]
			if !ok {
				continue
			}
			table.Append([]string{
				n.Name,
				fmt.Sprint(portIdx),
				a.Location.String(),
				fmt.Sprint(a.Shape),
				fmt.Sprint(a.Start),
				units.BytesSize(float64(a.Size)),
			})
		}
	}
	table.Render()

	fmt.Println("peak usage:")
	for _, loc := range alloc.DefaultLocations {
		fmt.Printf("  %-8s %s\n", loc, units.BytesSize(float64(m.PeakUsage[loc])))
	}
	fmt.Println()
}

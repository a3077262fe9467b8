package sched

import (
	"github.com/google/uuid"

	"github.com/sbl8/nnsched/alloc"
	"github.com/sbl8/nnsched/ir"
)

// Options controls driver behavior: SkipAliasAnalysis disables the
// bitcast/concat aliasing pass, forcing every node to execute as a real
// copy instead of a view.
type Options struct {
	SkipAliasAnalysis bool
}

// ModuleResult is the per-module schedule artifact: the traversal order,
// every value's memory allocation, the physical buffers backing them, and
// the peak byte usage reached per memory location.
type ModuleResult struct {
	Graph       *ir.Graph
	Sequence    []ir.NodeID
	Allocations map[ir.Port]BufferAllocation
	Physical    []*PhysicalBuffer
	PeakUsage   map[Location]int
}

// Result is the full schedule artifact: one ModuleResult per scheduled
// graph, plus an ordered list of module indices giving traversal order
// (main graph first, then subgraphs in declaration order).
type Result struct {
	RunID       uuid.UUID
	Modules     []*ModuleResult
	ModuleOrder []int
}

// Schedule runs the full scheduling pipeline over graph and every
// subgraph reachable from it, in that order. allocators is called once
// per module — not once per Schedule call — so target allocator state
// (e.g. the rdata seed) can be threaded between the main graph and its
// subgraphs.
func Schedule(graph *ir.Graph, allocators alloc.Factory, opts Options) (*Result, error) {
	if err := graph.Validate(); err != nil {
		return nil, unsupportedConfig("invalid graph: %v", err)
	}

	result := &Result{RunID: uuid.New()}
	rdataPeak := 0

	modules := []*ir.Graph{graph}
	for _, sg := range graph.Subgraphs {
		modules = append(modules, sg.Graph)
	}

	for i, g := range modules {
		mr, newRdataPeak, err := scheduleModule(g, allocators, opts, rdataPeak)
		if err != nil {
			return nil, err
		}
		rdataPeak = newRdataPeak
		result.Modules = append(result.Modules, mr)
		result.ModuleOrder = append(result.ModuleOrder, i)
	}

	return result, nil
}

func scheduleModule(g *ir.Graph, allocators alloc.Factory, opts Options, rdataSeed int) (*ModuleResult, int, error) {
	ctx := newContext(g)

	if err := recordLifetimes(ctx); err != nil {
		return nil, 0, err
	}
	if !opts.SkipAliasAnalysis {
		if err := analyzeAliases(ctx); err != nil {
			return nil, 0, err
		}
		if err := fixConcatIndices(ctx); err != nil {
			return nil, 0, err
		}
		if err := fixLifetimes(ctx); err != nil {
			return nil, 0, err
		}
	}

	sequence := captureSequence(ctx)

	if err := buildPhysicalBuffers(ctx); err != nil {
		return nil, 0, err
	}

	registry := allocators(g.ModuleType)
	if rdataAlloc, ok := registry[ir.RData]; ok {
		rdataAlloc.BaseOffset(rdataSeed)
	}

	peakUsage, err := allocateRegions(ctx, registry)
	if err != nil {
		return nil, 0, err
	}

	if err := assignAllocations(ctx); err != nil {
		return nil, 0, err
	}

	newRdataSeed := rdataSeed
	if p, ok := peakUsage[ir.RData]; ok && p > newRdataSeed {
		newRdataSeed = p
	}

	return &ModuleResult{
		Graph:       g,
		Sequence:    sequence,
		Allocations: ctx.allocations,
		Physical:    ctx.physical,
		PeakUsage:   peakUsage,
	}, newRdataSeed, nil
}

// captureSequence records the compute sequence: a post-order walk pinned
// after alias analysis has had its chance to clear action flags on
// views, so views never appear as a step a target has to execute.
func captureSequence(ctx *context) []ir.NodeID {
	var seq []ir.NodeID
	ir.Visit(ctx.graph, ctx.outputs, func(n *ir.Node) {
		if ctx.action[n.ID] {
			seq = append(seq, n.ID)
		}
	})
	return seq
}

// allocateRegions hands physical buffers to their location's allocator,
// sorted by ascending birth so earlier-live buffers get first pick of a
// free gap.
func allocateRegions(ctx *context, registry alloc.Registry) (map[Location]int, error) {
	sorted := make([]*PhysicalBuffer, len(ctx.physical))
	copy(sorted, ctx.physical)
	sortByBirth(sorted)

	for _, p := range sorted {
		a, ok := registry[p.Location]
		if !ok {
			return nil, unsupportedConfig("no allocator registered for location %s", p.Location)
		}
		span, err := a.Mark(alloc.Buffer{
			ID:    p.ID,
			Birth: p.Lifetime.Birth,
			End:   p.Lifetime.End(),
			Size:  p.Size,
		})
		if err != nil {
			return nil, &Error{Kind: KindAllocatorExhaustion, Location: p.Location, Required: p.Size, Err: err}
		}
		p.Start = span.Start
		p.Size = span.Size
	}

	usage := make(map[Location]int)
	for loc, a := range registry {
		a.Finish()
		usage[loc] = a.MaxUsage()
	}
	return usage, nil
}

func sortByBirth(bufs []*PhysicalBuffer) {
	// Insertion sort: module buffer counts are small (thousands at most)
	// and this keeps the tie-break (stable, lower id first) obvious
	// without pulling in sort.Slice's less-obvious stability contract.
	for i := 1; i < len(bufs); i++ {
		for j := i; j > 0 && bufs[j].Lifetime.Birth < bufs[j-1].Lifetime.Birth; j-- {
			bufs[j], bufs[j-1] = bufs[j-1], bufs[j]
		}
	}
}

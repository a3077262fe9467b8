// Package alloc implements the target-provided memory-region allocator
// interface: given a stream of physical buffers with known lifetimes,
// place each at a deterministic byte offset within its memory location
// such that no two live-overlapping buffers share bytes.
//
// The default BestFit allocator is the only allocator this repository
// ships; a real target would register its own allocators per memory
// location (e.g. an on-chip scratch allocator with a hard capacity).
// BestFit is grounded on the region-carving bump allocator in the
// teacher's runtime/arena.go, redesigned from a pure bump allocator into
// one that reclaims gaps once a buffer's lifetime ends.
package alloc

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/sbl8/nnsched/core"
	"github.com/sbl8/nnsched/ir"
)

// Span is a byte range within a memory location: [Start, Start+Size).
type Span struct {
	Start int
	Size  int
}

// Buffer is the minimal view of a physical buffer an Allocator needs. It
// intentionally does not reference sched.PhysicalBuffer to avoid an import
// cycle between sched and alloc.
type Buffer struct {
	ID    int
	Birth int
	End   int
	Size  int
}

func (b Buffer) overlaps(o Buffer) bool {
	return b.Birth <= o.End && o.Birth <= b.End
}

// Allocator is the target-supplied allocator contract every memory
// location's placer must satisfy.
type Allocator interface {
	// BaseOffset seeds the allocator's search floor, e.g. to keep a
	// prior module's rdata resident across a later module's schedule.
	BaseOffset(bytes int)
	// Mark places buf at a deterministic offset and returns its span.
	Mark(buf Buffer) (Span, error)
	// Finish freezes the allocator; no further Mark calls are valid.
	Finish()
	// MaxUsage returns the peak byte offset reached across all Mark calls.
	MaxUsage() int
}

// Registry maps each memory location a target exposes to its allocator.
type Registry map[ir.MemoryLocation]Allocator

// Factory builds a fresh Registry for one module, keyed by module type so
// a target can vary its allocator set (or capacities) per module kind.
type Factory func(moduleType string) Registry

// DefaultLocations lists the memory classes the default target exposes:
// the four universal ones plus the on-chip Cache scratch class.
var DefaultLocations = []ir.MemoryLocation{ir.Input, ir.Output, ir.RData, ir.Data, ir.Cache}

// DefaultFactory returns a Registry of one fresh BestFit allocator per
// location in DefaultLocations, ignoring moduleType — this repository ships
// a single target.
func DefaultFactory(moduleType string) Registry {
	reg := make(Registry, len(DefaultLocations))
	for _, loc := range DefaultLocations {
		reg[loc] = NewBestFit()
	}
	return reg
}

// placement records where a buffer already landed, for later overlap
// queries against buffers placed afterward.
type placement struct {
	Buffer
	start int
}

// BestFit is a deterministic first-fit-over-free-gaps allocator: for each
// buffer, in ascending-birth order, it scans the offsets of already-placed
// buffers whose lifetime overlaps the new one (sorted ascending via a
// treemap keyed by start offset) and takes the lowest gap the buffer fits
// in.
type BestFit struct {
	base     int
	peak     int
	finished bool
	placed   []placement
}

// NewBestFit constructs an empty BestFit allocator.
func NewBestFit() *BestFit {
	return &BestFit{}
}

func (a *BestFit) BaseOffset(bytes int) {
	if bytes > a.base {
		a.base = bytes
	}
	if bytes > a.peak {
		a.peak = bytes
	}
}

func (a *BestFit) Mark(buf Buffer) (Span, error) {
	if a.finished {
		return Span{}, fmt.Errorf("alloc: Mark called after Finish")
	}
	if buf.Size < 0 {
		return Span{}, fmt.Errorf("alloc: negative size %d for buffer %d", buf.Size, buf.ID)
	}
	buf.Size = int(core.AlignedSize(uintptr(buf.Size)))

	live := treemap.NewWithIntComparator()
	for _, p := range a.placed {
		if p.overlaps(buf) {
			// Keep the largest placement per start offset, so a zero-size
			// buffer sharing a start never hides a real one.
			if prev, found := live.Get(p.start); found && prev.(placement).Size >= p.Size {
				continue
			}
			live.Put(p.start, p)
		}
	}

	offset := a.base
	it := live.Iterator()
	for it.Next() {
		p := it.Value().(placement)
		if offset+buf.Size <= p.start {
			break
		}
		if end := p.start + p.Size; end > offset {
			offset = end
		}
	}

	if !core.IsAligned(uintptr(offset)) {
		return Span{}, fmt.Errorf("alloc: computed offset %d for buffer %d is not cache-line aligned", offset, buf.ID)
	}

	a.placed = append(a.placed, placement{Buffer: buf, start: offset})
	if end := offset + buf.Size; end > a.peak {
		a.peak = end
	}
	return Span{Start: offset, Size: buf.Size}, nil
}

func (a *BestFit) Finish() {
	a.finished = true
}

func (a *BestFit) MaxUsage() int {
	return a.peak
}

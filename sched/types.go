// Package sched implements the memory scheduler: liveness analysis, buffer
// aliasing, lifetime unioning, physical-buffer coalescing, and per-location
// byte-offset assignment over an ir.Graph. It is the direct generalization
// of sublation's compiler/runtime pipeline from payload-offset bookkeeping
// to the richer logical/physical buffer model a real AOT compiler needs.
package sched

import (
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

// Location aliases ir.MemoryLocation for brevity within this package.
type Location = ir.MemoryLocation

// Lifetime is the half-open integer interval [Birth, Birth+Age) during
// which a buffer must remain resident.
type Lifetime struct {
	Birth int
	Age   int
}

// End returns the exclusive end tick of the lifetime.
func (l Lifetime) End() int { return l.Birth + l.Age }

// Overlaps reports whether two lifetimes' closed [Birth, End] intervals
// intersect — the liveness test the allocator places allocations under.
func (l Lifetime) Overlaps(o Lifetime) bool {
	return l.Birth <= o.End() && o.Birth <= l.End()
}

// ParentDescriptor records that a logical buffer is a view into another:
// the sub-region [Begin, Begin+Shape) lies inside Parent's shape.
type ParentDescriptor struct {
	Parent *LogicalBuffer
	Begin  []int
}

// LogicalBuffer is the storage abstraction for one graph output port.
type LogicalBuffer struct {
	ID        int
	NodeID    int
	PortIndex int
	DType     opcode.DType
	Shape     []int
	Location  Location
	Lifetime  Lifetime
	UsedCount int
	Parent    *ParentDescriptor
	Physical  *PhysicalBuffer
}

// Root follows the (already-flattened, at most one hop) parent chain and
// returns the buffer that owns the physical storage.
func (b *LogicalBuffer) Root() *LogicalBuffer {
	if b.Parent == nil {
		return b
	}
	return b.Parent.Parent
}

// PhysicalBuffer is one actual memory region, shared by every logical
// buffer in one alias family.
type PhysicalBuffer struct {
	ID       int
	Owner    *LogicalBuffer // the root logical buffer
	Location Location
	Lifetime Lifetime
	Start    int
	Size     int
}

// BufferAllocation is the final per-output-port record emitted in a
// schedule result.
type BufferAllocation struct {
	Location    Location
	DType       opcode.DType
	Size        int
	Shape       []int
	ParentShape []int
	Strides     []int
	Start       int
}

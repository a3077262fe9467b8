package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/nnsched/ir"
)

// TestFixLifetimesRejectsCyclicParentChain covers the cyclic-alias fatal
// invariant violation: two logical buffers that name each other as parent
// must not send the chain-climbing walk into an infinite loop.
func TestFixLifetimesRejectsCyclicParentChain(t *testing.T) {
	g := &ir.Graph{ModuleType: "cpu"}
	ctx := newContext(g)

	a := &LogicalBuffer{ID: 0, NodeID: 0}
	b := &LogicalBuffer{ID: 1, NodeID: 1}
	ctx.bufferList = []*LogicalBuffer{a, b}

	ctx.setParent(a, b, nil)
	ctx.setParent(b, a, nil)

	err := fixLifetimes(ctx)
	require.NotNil(t, err)
	assert.Equal(t, KindInvariantViolation, err.Kind)
}

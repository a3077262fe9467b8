package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

func TestParseSimpleGraph(t *testing.T) {
	src := []byte(`
module main
node x0 input shape=2,4 dtype=f32
node w0 constant shape=4,3 dtype=f32 loc=rdata data=hex:0000803f0000803f
node y0 matmul shape=2,3 dtype=f32 inputs=x0:0,w0:0
node out0 output inputs=y0:0
`)
	g, err := Parse(src)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, "main", g.ModuleType)
	require.Len(t, g.Nodes, 4)

	x0 := g.Nodes[0]
	assert.Equal(t, opcode.OpInput, x0.Op)
	assert.Equal(t, []int{2, 4}, x0.Shapes[0])
	assert.Equal(t, opcode.Float32, x0.DTypes[0])

	w0 := g.Nodes[1]
	assert.Equal(t, ir.RData, w0.Locations[0])
	data, ok := w0.Attrs["data"].([]byte)
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x80, 0x3f}, data)

	y0 := g.Nodes[2]
	require.Len(t, y0.Inputs, 2)
	assert.Equal(t, ir.Port{Node: 0, Index: 0}, y0.Inputs[0])
	assert.Equal(t, ir.Port{Node: 1, Index: 0}, y0.Inputs[1])

	out0 := g.Nodes[3]
	assert.Equal(t, opcode.OpOutput, out0.Op)
	assert.Equal(t, []ir.NodeID{3}, g.Outputs)
}

func TestParseIterateBlockExpandsNodes(t *testing.T) {
	src := []byte(`
module main
node x0 input shape=1 dtype=f32
iterate i 0 2 {
	node relu$i relu shape=1 dtype=f32 inputs=x0:0
}
node out0 output inputs=relu0:0
`)
	g, err := Parse(src)
	require.NoError(t, err)

	names := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		names[i] = n.Name
	}
	assert.Equal(t, []string{"x0", "relu0", "relu1", "relu2", "out0"}, names)
}

func TestParseDecodesF16PayloadLiteral(t *testing.T) {
	src := []byte(`
node k0 constant shape=2 dtype=f16 loc=rdata data=f16:1,-1
node out0 output inputs=k0:0
`)
	g, err := Parse(src)
	require.NoError(t, err)

	k0 := g.Nodes[0]
	data, ok := k0.Attrs["data"].([]byte)
	require.True(t, ok)
	// IEEE-754 binary16 1.0 is 0x3C00, -1.0 is 0xBC00, both little-endian.
	assert.Equal(t, []byte{0x00, 0x3c, 0x00, 0xbc}, data)
}

func TestParseRejectsF16PayloadOnNonF16Node(t *testing.T) {
	src := []byte(`
node k0 constant shape=1 dtype=f32 loc=rdata data=f16:1
`)
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestParseRejectsUndeclaredNodeReference(t *testing.T) {
	src := []byte(`
node out0 output inputs=missing:0
`)
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	src := []byte(`
node x0 frobnicate shape=1 dtype=f32
`)
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestParseRejectsMissingShape(t *testing.T) {
	src := []byte(`
node x0 input dtype=f32
`)
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestParseRejectsEmptyGraph(t *testing.T) {
	_, err := Parse([]byte("# just a comment\n"))
	assert.Error(t, err)
}

func TestParseSkipsBlankLinesAndComments(t *testing.T) {
	src := []byte(`
# a leading comment

node x0 input shape=1 dtype=f32

# trailing comment
node out0 output inputs=x0:0
`)
	g, err := Parse(src)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
}

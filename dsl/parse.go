// Package dsl parses a small text format describing a lowered computation
// graph directly into an *ir.Graph, standing in for a real frontend
// importer and pass manager. Grammar and parsing style — line-based
// directives, an `iterate` block for expanding repeated node groups,
// hex-encoded payload literals — are carried directly from the teacher's
// compiler/compiler.go .subs parser, adapted from its flat kernel/offset
// node model onto ir.Graph's port graph.
//
// Example:
//
//	module main
//	node x0 input shape=2,4 dtype=f32
//	node w0 constant shape=4,3 dtype=f32 loc=rdata data=hex:0000803f0000803f
//	node y0 matmul shape=2,3 dtype=f32 inputs=x0:0,w0:0
//	node out0 output inputs=y0:0
package dsl

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/sbl8/nnsched/core"
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

var opcodeByName = map[string]opcode.OpCode{
	"input":    opcode.OpInput,
	"output":   opcode.OpOutput,
	"constant": opcode.OpConstant,
	"bitcast":  opcode.OpBitcast,
	"concat":   opcode.OpConcat,
	"slice":    opcode.OpSlice,
	"matmul":   opcode.OpMatMul,
	"add":      opcode.OpAdd,
	"mul":      opcode.OpMul,
	"relu":     opcode.OpReLU,
	"sigmoid":  opcode.OpSigmoid,
	"softmax":  opcode.OpSoftmax,
}

var dtypeByName = map[string]opcode.DType{
	"f32":     opcode.Float32,
	"float32": opcode.Float32,
	"f16":     opcode.Float16,
	"float16": opcode.Float16,
	"bf16":    opcode.BFloat16,
	"bfloat16": opcode.BFloat16,
	"i8":      opcode.Int8,
	"int8":    opcode.Int8,
	"u8":      opcode.UInt8,
	"uint8":   opcode.UInt8,
	"i32":     opcode.Int32,
	"int32":   opcode.Int32,
}

var locationByName = map[string]ir.MemoryLocation{
	"input":  ir.Input,
	"output": ir.Output,
	"rdata":  ir.RData,
	"data":   ir.Data,
	"cache":  ir.Cache,
}

// Parse converts src into an *ir.Graph. Nodes must be declared in an order
// where every producer precedes its consumers, matching the post-order
// construction style of a real lowering pass.
func Parse(src []byte) (*ir.Graph, error) {
	lines := strings.Split(string(src), "\n")
	p := &parser{
		graph:   &ir.Graph{ModuleType: "main"},
		byName:  make(map[string]ir.NodeID),
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var err error
		i, err = p.parseLine(lines, i)
		if err != nil {
			return nil, fmt.Errorf("dsl: line %d: %w", i+1, err)
		}
	}

	if len(p.graph.Nodes) == 0 {
		return nil, fmt.Errorf("dsl: empty graph")
	}
	return p.graph, nil
}

type parser struct {
	graph  *ir.Graph
	byName map[string]ir.NodeID
}

func (p *parser) parseLine(lines []string, idx int) (int, error) {
	line := strings.TrimSpace(lines[idx])
	fields := strings.Fields(line)

	switch fields[0] {
	case "module":
		if len(fields) < 2 {
			return idx, fmt.Errorf("module directive needs a name")
		}
		p.graph.ModuleType = fields[1]
		return idx, nil
	case "iterate":
		return p.parseIterateBlock(lines, idx, fields)
	case "node":
		return idx, p.parseNodeLine(fields)
	default:
		return idx, fmt.Errorf("unknown directive %q", fields[0])
	}
}

func (p *parser) parseIterateBlock(lines []string, idx int, fields []string) (int, error) {
	if len(fields) < 4 {
		return idx, fmt.Errorf("invalid iterate spec: %s", strings.Join(fields, " "))
	}
	varName := fields[1]
	start, err := strconv.Atoi(fields[2])
	if err != nil {
		return idx, fmt.Errorf("invalid iterate start %q: %w", fields[2], err)
	}
	end, err := strconv.Atoi(fields[3])
	if err != nil {
		return idx, fmt.Errorf("invalid iterate end %q: %w", fields[3], err)
	}

	// The opening '{' either ends the iterate line itself or stands alone
	// on the next non-blank line.
	i := idx + 1
	if len(fields) < 5 || fields[4] != "{" {
		blockStart := idx + 1
		for blockStart < len(lines) && strings.TrimSpace(lines[blockStart]) == "" {
			blockStart++
		}
		if blockStart >= len(lines) || strings.TrimSpace(lines[blockStart]) != "{" {
			return idx, fmt.Errorf("missing '{' after iterate")
		}
		i = blockStart + 1
	}

	var block []string
	for ; i < len(lines); i++ {
		l := strings.TrimSpace(lines[i])
		if l == "}" {
			break
		}
		if l != "" && !strings.HasPrefix(l, "#") {
			block = append(block, l)
		}
	}
	if i >= len(lines) {
		return idx, fmt.Errorf("unterminated iterate block")
	}

	for v := start; v <= end; v++ {
		for _, line := range block {
			expanded := expandVariable(line, varName, v)
			if err := p.parseNodeLine(strings.Fields(expanded)); err != nil {
				return idx, fmt.Errorf("iterate expansion: %w", err)
			}
		}
	}
	return i, nil
}

func expandVariable(line, varName string, value int) string {
	fields := strings.Fields(line)
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "$"+varName, strconv.Itoa(value))
	}
	return strings.Join(fields, " ")
}

func (p *parser) parseNodeLine(fields []string) error {
	if len(fields) < 3 || fields[0] != "node" {
		return fmt.Errorf("invalid node spec: needs name and opcode")
	}
	name := fields[1]
	op, ok := opcodeByName[fields[2]]
	if !ok {
		return fmt.Errorf("unknown opcode %q", fields[2])
	}

	n := &ir.Node{Name: name, Op: op, Attrs: make(map[string]any)}
	hasOutput := op != opcode.OpOutput

	var shape []int
	dtype := opcode.Float32
	loc := ir.Data
	var rawData string
	haveData := false

	for _, kv := range fields[3:] {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			return fmt.Errorf("expected key=value, got %q", kv)
		}
		switch key {
		case "shape":
			s, err := parseShape(value)
			if err != nil {
				return err
			}
			shape = s
		case "dtype":
			d, ok := dtypeByName[value]
			if !ok {
				return fmt.Errorf("unknown dtype %q", value)
			}
			dtype = d
		case "loc":
			l, ok := locationByName[value]
			if !ok {
				return fmt.Errorf("unknown location %q", value)
			}
			loc = l
		case "inputs":
			ports, err := p.parseInputs(value)
			if err != nil {
				return err
			}
			n.Inputs = ports
		case "axis":
			axis, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid axis %q: %w", value, err)
			}
			n.Attrs["axis"] = axis
		case "data":
			// Decoding is deferred until every key=value pair has been
			// read, since data= may appear before dtype= on the line and
			// an f16: literal needs the node's final declared dtype.
			rawData = value
			haveData = true
		default:
			return fmt.Errorf("unknown node attribute %q", key)
		}
	}

	if haveData {
		data, err := parsePayload(rawData, dtype)
		if err != nil {
			return err
		}
		// Copied into a cache-line-aligned backing array the way a real
		// runtime stores constant weights for SIMD kernels to read
		// without an extra copy.
		aligned := core.AlignedBytes(len(data))
		copy(aligned, data)
		n.Attrs["data"] = aligned
	}

	if hasOutput {
		if shape == nil {
			return fmt.Errorf("node %q missing shape=", name)
		}
		n.Shapes = [][]int{shape}
		n.DTypes = []opcode.DType{dtype}
		n.Locations = []ir.MemoryLocation{loc}
	}

	id := p.graph.AddNode(n)
	p.byName[name] = id
	if op == opcode.OpOutput {
		p.graph.Outputs = append(p.graph.Outputs, id)
	}
	return nil
}

func (p *parser) parseInputs(value string) ([]ir.Port, error) {
	var ports []ir.Port
	for _, tok := range strings.Split(value, ",") {
		name, idxStr, found := strings.Cut(tok, ":")
		idx := 0
		if found {
			i, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, fmt.Errorf("invalid port index in %q: %w", tok, err)
			}
			idx = i
		}
		id, ok := p.byName[name]
		if !ok {
			return nil, fmt.Errorf("reference to undeclared node %q", name)
		}
		ports = append(ports, ir.Port{Node: id, Index: idx})
	}
	return ports, nil
}

func parseShape(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	shape := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid shape dimension %q: %w", p, err)
		}
		shape[i] = v
	}
	return shape, nil
}

// parsePayload decodes a node's data= literal into raw bytes. A hex:
// literal is always a direct byte dump regardless of dtype; an f16:
// literal is a comma-separated list of decimal float values, valid only
// for a float16 node, packed via opcode.EncodeFloat16 the way a real
// lowering pass would quantize constant weights into the target dtype.
func parsePayload(value string, dtype opcode.DType) ([]byte, error) {
	if hexData, ok := strings.CutPrefix(value, "hex:"); ok {
		decoded, err := hex.DecodeString(hexData)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return decoded, nil
	}
	if f16Data, ok := strings.CutPrefix(value, "f16:"); ok {
		if dtype != opcode.Float16 {
			return nil, fmt.Errorf("f16: payload literal requires dtype=f16, node declares %s", dtype)
		}
		parts := strings.Split(f16Data, ",")
		out := make([]byte, 0, len(parts)*2)
		for _, part := range parts {
			f, err := strconv.ParseFloat(part, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid f16 literal %q: %w", part, err)
			}
			var buf [2]byte
			binary.LittleEndian.PutUint16(buf[:], opcode.EncodeFloat16(float32(f)))
			out = append(out, buf[:]...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("payload literal %q must start with hex: or f16:", value)
}

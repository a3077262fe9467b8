// Package opcode defines the closed set of node kinds and tensor datatypes
// the scheduler understands. Both enums are closed: the scheduler never
// encounters an opcode or dtype outside this table, mirroring how the
// kernel catalog of a lowered graph is a fixed dispatch surface rather than
// an open-ended plugin registry.
package opcode

import (
	"fmt"

	"github.com/x448/float16"
)

// OpCode identifies the kind of computation or view a node represents.
// The scheduler only special-cases the first few; everything from OpMatMul
// onward is treated uniformly as an "action" node that consumes its inputs
// and produces fresh outputs.
type OpCode uint8

const (
	OpInput OpCode = iota
	OpOutput
	OpConstant
	OpBitcast
	OpConcat
	OpSlice
	OpMatMul
	OpAdd
	OpMul
	OpReLU
	OpSigmoid
	OpSoftmax
	opCodeCount
)

var names = [opCodeCount]string{
	OpInput:    "input",
	OpOutput:   "output",
	OpConstant: "constant",
	OpBitcast:  "bitcast",
	OpConcat:   "concat",
	OpSlice:    "slice",
	OpMatMul:   "matmul",
	OpAdd:      "add",
	OpMul:      "mul",
	OpReLU:     "relu",
	OpSigmoid:  "sigmoid",
	OpSoftmax:  "softmax",
}

func (op OpCode) String() string {
	if op < opCodeCount {
		return names[op]
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// IsView reports whether op produces a buffer that may alias its input's
// physical storage rather than occupying fresh space.
func (op OpCode) IsView() bool {
	return op == OpBitcast || op == OpConcat
}

// DType is the closed set of element datatypes a port may carry.
type DType uint8

const (
	Float32 DType = iota
	Float16
	BFloat16
	Int8
	UInt8
	Int32
	dTypeCount
)

var dtypeNames = [dTypeCount]string{
	Float32:  "float32",
	Float16:  "float16",
	BFloat16: "bfloat16",
	Int8:     "int8",
	UInt8:    "uint8",
	Int32:    "int32",
}

func (d DType) String() string {
	if d < dTypeCount {
		return dtypeNames[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

var dtypeSize = [dTypeCount]int{
	Float32:  4,
	Float16:  2,
	BFloat16: 2,
	Int8:     1,
	UInt8:    1,
	Int32:    4,
}

// Size returns the byte width of a single element of d.
func (d DType) Size() int {
	if d < dTypeCount {
		return dtypeSize[d]
	}
	return 0
}

// EncodeFloat16 converts f into its float16 bit pattern, used when the DSL
// loads an "f16" payload literal into a constant node's bytes.
func EncodeFloat16(f float32) uint16 {
	return uint16(float16.Fromfloat32(f))
}

// DecodeFloat16 converts a float16 bit pattern back to float32.
func DecodeFloat16(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}

// Bytes returns the total byte size of a tensor with the given dtype and
// row-major shape.
func Bytes(d DType, shape []int) int {
	n := d.Size()
	for _, s := range shape {
		n *= s
	}
	return n
}

// Strides computes the row-major (C order) element strides for shape.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

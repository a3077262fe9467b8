// Package nnsched implements the memory scheduler of an ahead-of-time
// neural-network compiler: given a lowered computation graph, it decides
// the linear execution order of its operations, which logical tensor
// values may share physical storage, the lifetime of every physical
// buffer, and a concrete byte offset for every allocation.
//
// # Architecture Overview
//
//   - ir: the lowered graph — nodes, ports, opcodes, memory locations
//   - opcode: the closed opcode and datatype registries
//   - sched: liveness analysis, alias inference, lifetime unioning, and
//     final byte-offset assignment
//   - alloc: the target-provided region allocator
//   - dsl: a text graph format used to drive the scheduler end to end
//   - cmd/nnschedc, cmd/nnschedperf: driver and benchmark CLIs
//
// # Basic Usage
//
//	graph, err := dsl.Parse(src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := sched.Schedule(graph, alloc.DefaultFactory, sched.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Frontend importers, the pass manager, kernel/runtime emission, and
// quantization calibration are external collaborators this repository does
// not implement; the scheduler consumes a finished graph and emits a
// schedule artifact for downstream code-emitters to consume.
package nnsched

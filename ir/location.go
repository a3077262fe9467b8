package ir

import "fmt"

// MemoryLocation is the closed set of memory classes a buffer can be placed
// in. Input, Output, RData and Data are universal; Cache is a
// target-specific scratch class, modeled after the small on-chip scratch
// region real CPU/accelerator targets expose alongside the universal four.
type MemoryLocation uint8

const (
	Input MemoryLocation = iota
	Output
	RData
	Data
	Cache
	locationCount
)

var locationNames = [locationCount]string{
	Input:  "input",
	Output: "output",
	RData:  "rdata",
	Data:   "data",
	Cache:  "cache",
}

func (l MemoryLocation) String() string {
	if l < locationCount {
		return locationNames[l]
	}
	return fmt.Sprintf("location(%d)", uint8(l))
}

// Package mmio provides byte-wide access to memory-mapped hardware
// registers. Drivers depend on the ByteIO interface, never on raw pointers,
// so tests can substitute a software register block.
package mmio

// ByteIO is byte-wide register access at an offset from a window base.
// Controllers addressed through it define all register semantics as single
// bytes of bit flags; there are no multi-byte fields.
type ByteIO interface {
	Read8(off uint32) uint8
	Write8(off uint32, v uint8)
}

// Region is a ByteIO over a slice of mapped or plain memory.
type Region struct {
	label string
	mem   []byte

	// set only for windows obtained from MapPhysical
	mapped []byte
}

// NewRegion wraps mem as a register window. Intended for tests and for
// controllers that live in ordinary memory.
func NewRegion(label string, mem []byte) *Region {
	return &Region{label: label, mem: mem}
}

// Label returns the human-readable name the window was mapped under.
func (r *Region) Label() string { return r.label }

// Size returns the window length in bytes.
func (r *Region) Size() int { return len(r.mem) }

// Read8 reads the byte at off. Offsets beyond the window panic; register
// offsets are compile-time constants, so that is a driver bug, not a
// runtime condition.
func (r *Region) Read8(off uint32) uint8 {
	return r.mem[off]
}

// Write8 writes the byte at off.
func (r *Region) Write8(off uint32, v uint8) {
	r.mem[off] = v
}

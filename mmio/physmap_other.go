//go:build !linux

package mmio

import (
	"fmt"

	"goflash/programmer"
)

// MapPhysical needs /dev/mem; only Linux hosts can drive memory-mapped
// controllers.
func MapPhysical(label string, base uintptr, size int) (*Region, error) {
	return nil, fmt.Errorf("mapping %s: physical memory access is only supported on linux: %w",
		label, programmer.ErrMapping)
}

// Close is a no-op off Linux; no physical window can exist.
func (r *Region) Close() error { return nil }

//go:build linux

package mmio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"goflash/msg"
	"goflash/programmer"
)

// MapPhysical maps size bytes of physical address space starting at base
// into the process and returns them as a register window. The mapping is
// shared and uncached as far as /dev/mem allows; accesses go straight to
// the device.
func MapPhysical(label string, base uintptr, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mapping %s: non-positive size %d: %w", label, size, programmer.ErrMapping)
	}

	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: open /dev/mem: %v: %w", label, err, programmer.ErrMapping)
	}
	defer f.Close()

	// mmap requires page alignment; registers rarely sit on a page
	// boundary, so map the enclosing pages and offset into them.
	pageSize := uintptr(unix.Getpagesize())
	pageBase := base &^ (pageSize - 1)
	skew := int(base - pageBase)
	mapLen := (skew + size + int(pageSize) - 1) &^ (int(pageSize) - 1)

	mem, err := unix.Mmap(int(f.Fd()), int64(pageBase), mapLen,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping %s at %#x: mmap: %v: %w", label, base, err, programmer.ErrMapping)
	}

	msg.Pdbg("mapped %s: phys %#x (+%d), %d bytes", label, base, skew, size)
	return &Region{
		label:  label,
		mem:    mem[skew : skew+size],
		mapped: mem,
	}, nil
}

// Close unmaps a window obtained from MapPhysical. For plain NewRegion
// windows it is a no-op.
func (r *Region) Close() error {
	if r.mapped == nil {
		return nil
	}
	err := unix.Munmap(r.mapped)
	r.mapped = nil
	r.mem = nil
	return err
}

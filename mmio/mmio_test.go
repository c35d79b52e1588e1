package mmio

import "testing"

func TestRegionByteAccess(t *testing.T) {
	mem := make([]byte, 0x10)
	r := NewRegion("test window", mem)

	if r.Label() != "test window" {
		t.Errorf("Label = %q", r.Label())
	}
	if r.Size() != 0x10 {
		t.Errorf("Size = %d, want 16", r.Size())
	}

	r.Write8(0x5, 0x11)
	if got := r.Read8(0x5); got != 0x11 {
		t.Errorf("Read8(0x5) = %#02x, want 0x11", got)
	}
	if mem[0x5] != 0x11 {
		t.Error("Write8 did not hit the backing memory")
	}

	// A plain region has nothing to unmap.
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestRegionOutOfWindowPanics(t *testing.T) {
	r := NewRegion("tiny", make([]byte, 4))
	defer func() {
		if recover() == nil {
			t.Error("out-of-window access did not panic")
		}
	}()
	r.Read8(4)
}

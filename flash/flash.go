// Package flash implements the universal SPI flash command set on top of a
// programmer.Master. It knows generic opcodes and page geometry, not
// vendor-specific programming algorithms.
package flash

import (
	"fmt"
	"time"

	"goflash/msg"
	"goflash/programmer"
)

// Universal SPI flash opcodes.
const (
	opWriteEnable  = 0x06
	opWriteDisable = 0x04
	opReadStatus   = 0x05
	opReadData     = 0x03
	opPageProgram  = 0x02
	opAAIProgram   = 0xAD
	opErase4K      = 0x20
	opErase64K     = 0xD8
	opEraseChip    = 0xC7
	opReadID       = 0x9F
)

// Status register bits.
const (
	statusWIP = 1 << 0 // write in progress
	statusWEL = 1 << 1 // write enable latch
)

const (
	pageSize = 256

	// defaultReadChunk bounds one read transaction when the master
	// reports no limit of its own; it keeps progress observable.
	defaultReadChunk = 64 * 1024

	// readyTimeout bounds WaitReady. Chip erases are the slowest
	// universal operation and finish well inside this.
	readyTimeout = 2 * time.Minute
)

// Chip is a flash chip reachable through a bus master.
type Chip struct {
	m    programmer.Master
	ID   [3]byte
	Name string
	Size int // bytes; 0 if the chip is not in the known table
}

// knownChips maps JEDEC IDs to name and capacity. Unknown chips still
// work; callers then supply lengths themselves.
var knownChips = map[[3]byte]struct {
	name string
	size int
}{
	{0xEF, 0x40, 0x14}: {"W25Q80", 1 << 20},
	{0xEF, 0x40, 0x16}: {"W25Q32", 4 << 20},
	{0xEF, 0x40, 0x17}: {"W25Q64", 8 << 20},
	{0xEF, 0x40, 0x18}: {"W25Q128", 16 << 20},
	{0xC2, 0x20, 0x19}: {"MX25L256", 32 << 20},
	{0x20, 0xBA, 0x16}: {"N25Q32", 4 << 20},
	{0x1F, 0x86, 0x01}: {"AT25SF161", 2 << 20},
}

// Probe reads the JEDEC ID and returns the chip behind m.
func Probe(m programmer.Master) (*Chip, error) {
	id := make([]byte, 3)
	if err := programmer.SendCommand(m, []byte{opReadID}, id); err != nil {
		return nil, fmt.Errorf("read JEDEC ID: %w", err)
	}

	// All-zero and all-one IDs mean a floating bus, not a chip.
	if (id[0] == 0x00 && id[1] == 0x00 && id[2] == 0x00) ||
		(id[0] == 0xFF && id[1] == 0xFF && id[2] == 0xFF) {
		return nil, fmt.Errorf("no flash chip found (JEDEC ID %02x %02x %02x)", id[0], id[1], id[2])
	}

	c := &Chip{m: m, ID: [3]byte{id[0], id[1], id[2]}}
	if known, ok := knownChips[c.ID]; ok {
		c.Name = known.name
		c.Size = known.size
		msg.Pinfo("found %s (%d kB), JEDEC ID %02x %02x %02x",
			c.Name, c.Size/1024, id[0], id[1], id[2])
	} else {
		msg.Pwarn("unknown flash chip, JEDEC ID %02x %02x %02x", id[0], id[1], id[2])
	}
	return c, nil
}

// ReadStatus reads the chip's status register.
func (c *Chip) ReadStatus() (byte, error) {
	buf := make([]byte, 1)
	if err := programmer.SendCommand(c.m, []byte{opReadStatus}, buf); err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	return buf[0], nil
}

// WaitReady polls the status register until the write-in-progress bit
// clears.
func (c *Chip) WaitReady() error {
	deadline := time.Now().Add(readyTimeout)
	for {
		status, err := c.ReadStatus()
		if err != nil {
			return err
		}
		if status&statusWIP == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("chip busy for over %v: %w", readyTimeout, programmer.ErrHardwareFault)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// WriteEnable sets the write enable latch. Required before every program
// or erase operation; chips clear it again when the operation completes.
func (c *Chip) WriteEnable() error {
	if err := programmer.SendCommand(c.m, []byte{opWriteEnable}, nil); err != nil {
		return fmt.Errorf("write enable: %w", err)
	}
	return nil
}

// Read reads n bytes starting at addr, splitting the transfer into chunks
// the master's read limit allows.
func (c *Chip) Read(addr, n int) ([]byte, error) {
	if addr < 0 || n < 0 {
		return nil, fmt.Errorf("invalid read range addr=%d n=%d", addr, n)
	}

	chunk := c.m.MaxDataRead()
	if chunk <= 0 || chunk > defaultReadChunk {
		chunk = defaultReadChunk
	}

	out := make([]byte, n)
	for off := 0; off < n; off += chunk {
		end := off + chunk
		if end > n {
			end = n
		}
		cmd := readCmd(addr + off)
		if err := programmer.SendCommand(c.m, cmd, out[off:end]); err != nil {
			return nil, fmt.Errorf("read %d bytes at %#x: %w", end-off, addr+off, err)
		}
	}
	return out, nil
}

// Write programs data starting at addr using 256-byte page programming.
// The target range must already be erased; programming only clears bits.
func (c *Chip) Write(addr int, data []byte) error {
	if addr < 0 {
		return fmt.Errorf("invalid write address %d", addr)
	}

	maxData := c.m.MaxDataWrite()
	for off := 0; off < len(data); {
		// Never cross a page boundary in one program operation.
		n := pageSize - (addr+off)%pageSize
		if n > len(data)-off {
			n = len(data) - off
		}
		if maxData > 0 && n > maxData {
			n = maxData
		}

		cmd := append(progCmd(addr+off), data[off:off+n]...)
		err := programmer.SendMulticommand(c.m, []programmer.SPICommand{
			{Write: []byte{opWriteEnable}},
			{Write: cmd},
		})
		if err != nil {
			return fmt.Errorf("program %d bytes at %#x: %w", n, addr+off, err)
		}
		if err := c.WaitReady(); err != nil {
			return fmt.Errorf("program at %#x: %w", addr+off, err)
		}
		off += n
	}
	return nil
}

// WriteAAI programs data with auto-address-increment word programming,
// falling back to page programming for a trailing odd byte. AAI is the
// fast path on chips without page program (e.g. SST25 series).
func (c *Chip) WriteAAI(addr int, data []byte) error {
	if addr < 0 {
		return fmt.Errorf("invalid write address %d", addr)
	}
	if addr%2 != 0 {
		return fmt.Errorf("AAI programming needs an even start address, got %#x", addr)
	}

	pairs := len(data) / 2 * 2
	for off := 0; off < pairs; off += 2 {
		var cmd []byte
		if off == 0 {
			// First AAI op carries the address; the chip increments
			// it internally afterwards.
			cmd = append(progAAICmd(addr), data[0], data[1])
		} else {
			cmd = []byte{opAAIProgram, data[off], data[off+1]}
		}

		cmds := []programmer.SPICommand{{Write: cmd}}
		if off == 0 {
			cmds = []programmer.SPICommand{{Write: []byte{opWriteEnable}}, {Write: cmd}}
		}
		if err := programmer.SendMulticommand(c.m, cmds); err != nil {
			return fmt.Errorf("AAI program at %#x: %w", addr+off, err)
		}
		if err := c.WaitReady(); err != nil {
			return fmt.Errorf("AAI program at %#x: %w", addr+off, err)
		}
	}

	if err := programmer.SendCommand(c.m, []byte{opWriteDisable}, nil); err != nil {
		return fmt.Errorf("AAI write disable: %w", err)
	}

	if pairs < len(data) {
		return c.Write(addr+pairs, data[pairs:])
	}
	return nil
}

// Erase4K erases the 4 kB sector containing addr.
func (c *Chip) Erase4K(addr int) error {
	return c.erase(opErase4K, addr&^0xFFF)
}

// Erase64K erases the 64 kB block containing addr.
func (c *Chip) Erase64K(addr int) error {
	return c.erase(opErase64K, addr&^0xFFFF)
}

// EraseChip erases the entire chip.
func (c *Chip) EraseChip() error {
	err := programmer.SendMulticommand(c.m, []programmer.SPICommand{
		{Write: []byte{opWriteEnable}},
		{Write: []byte{opEraseChip}},
	})
	if err != nil {
		return fmt.Errorf("chip erase: %w", err)
	}
	return c.WaitReady()
}

func (c *Chip) erase(op byte, addr int) error {
	err := programmer.SendMulticommand(c.m, []programmer.SPICommand{
		{Write: []byte{opWriteEnable}},
		{Write: []byte{op, byte(addr >> 16), byte(addr >> 8), byte(addr)}},
	})
	if err != nil {
		return fmt.Errorf("erase %#02x at %#x: %w", op, addr, err)
	}
	return c.WaitReady()
}

func readCmd(addr int) []byte {
	return []byte{opReadData, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func progCmd(addr int) []byte {
	return []byte{opPageProgram, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func progAAICmd(addr int) []byte {
	return []byte{opAAIProgram, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

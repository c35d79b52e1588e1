// Package loongson3 drives the memory-mapped SPI controller of Loongson 3
// family processors and exposes it as a flash bus master. The firmware
// flash chip is wired to chip-select 0; transactions are run byte by byte
// through the controller's FIFO under software chip-select control.
package loongson3

import (
	"fmt"
	"time"

	"goflash/mmio"
	"goflash/msg"
	"goflash/programmer"
)

const (
	// defaultPollTimeout bounds the busy-wait for one FIFO byte. At any
	// usable SPI clock a byte arrives in microseconds; hitting this
	// deadline means the controller is wedged, not slow.
	defaultPollTimeout = 100 * time.Millisecond

	// defaultDummyByte is clocked out during the read phase once the
	// write buffer is exhausted. 0xFF keeps MOSI high, which SPI flash
	// chips ignore.
	defaultDummyByte = 0xFF

	// batchDepth is how many bytes the batch engine stages per poll
	// cycle. The hardware FIFO is at least this deep.
	batchDepth = 4
)

// Options tunes a Controller. The zero value selects the per-byte engine
// with default timeout and dummy byte.
type Options struct {
	// PollTimeout bounds each FIFO status busy-wait. 0 means the
	// default.
	PollTimeout time.Duration

	// Batch selects the FIFO-depth-aware engine, which polls once per
	// burst of up to batchDepth bytes instead of once per byte. Byte
	// transfer semantics are identical to the per-byte engine.
	Batch bool

	// DummyByte overrides the read-phase fill byte. 0 means the default
	// 0xFF.
	DummyByte byte
}

// Controller owns one mapped SPI controller register block.
//
// A Controller is not safe for concurrent use: the chip-select assert and
// deassert bracketing a transaction must not interleave with a second
// transaction, and nothing at this layer enforces that. Callers serialize.
type Controller struct {
	io          mmio.ByteIO
	pollTimeout time.Duration
	dummy       byte
	batch       bool
}

// New wraps a register window as a Controller. No hardware is touched
// until Enable.
func New(io mmio.ByteIO, opts Options) *Controller {
	c := &Controller{
		io:          io,
		pollTimeout: opts.PollTimeout,
		dummy:       opts.DummyByte,
		batch:       opts.Batch,
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = defaultPollTimeout
	}
	if c.dummy == 0 {
		c.dummy = defaultDummyByte
	}
	return c
}

// Enable moves the controller from its power-on state into software
// control: chip select idle, master and SPI-enable set, read engine off,
// read FIFO empty.
func (c *Controller) Enable() error {
	// Known idle bus state before the controller is reconfigured.
	c.io.Write8(regSoftCS, softCSDeassert)

	reg := c.io.Read8(regSPCR)
	c.io.Write8(regSPCR, reg|spcrMSTR|spcrSPE)

	// Hand FIFO control to software.
	reg = c.io.Read8(regSFCP)
	c.io.Write8(regSFCP, reg&^sfcpMemEn)

	return c.drainReadFIFO()
}

// drainReadFIFO discards bytes a prior boot stage left behind. The FIFO
// must go empty once nothing new is pushed; a FIFO that keeps producing
// bytes is a hardware fault.
func (c *Controller) drainReadFIFO() error {
	deadline := time.Now().Add(c.pollTimeout)
	drained := 0
	for c.io.Read8(regSPSR)&spsrRFEmpty == 0 {
		c.io.Read8(regFIFO)
		drained++
		if time.Now().After(deadline) {
			return fmt.Errorf("read FIFO still not empty after discarding %d bytes: %w",
				drained, programmer.ErrHardwareFault)
		}
	}
	if drained > 0 {
		msg.Pdbg("drained %d stale bytes from read FIFO", drained)
	}
	return nil
}

// Shutdown hands the bus back to the firmware read path: software
// chip-select control is dropped entirely (raw 0x0, not the parked-high
// deassert pattern) and the read engine is re-enabled. Nil-safe so a
// registered hook is harmless if initialization never finished.
func (c *Controller) Shutdown() error {
	if c == nil {
		return nil
	}
	c.io.Write8(regSoftCS, 0x0)

	reg := c.io.Read8(regSFCP)
	c.io.Write8(regSFCP, reg|sfcpMemEn)
	return nil
}

// MaxDataRead reports no read size limit; the engine does not chunk.
func (c *Controller) MaxDataRead() int { return 0 }

// MaxDataWrite reports no write size limit.
func (c *Controller) MaxDataWrite() int { return 0 }

// Command runs one SPI transaction: assert CS0, clock out write, clock
// len(read) response bytes into read, deassert CS0. Exactly
// len(write)+len(read) byte round trips occur, in that order. CS is
// deasserted on every return path, including timeouts.
func (c *Controller) Command(write, read []byte) error {
	msg.Pdbg("spi command: %d write, %d read", len(write), len(read))

	c.io.Write8(regSoftCS, softCSAssert)
	var err error
	if c.batch {
		err = c.commandBatch(write, read)
	} else {
		err = c.commandPerByte(write, read)
	}
	c.io.Write8(regSoftCS, softCSDeassert)
	return err
}

// commandPerByte fully round-trips one byte at a time: push, poll until
// the read FIFO has the response, pop. No pipelining.
func (c *Controller) commandPerByte(write, read []byte) error {
	for i, b := range write {
		if _, err := c.shift(b); err != nil {
			return fmt.Errorf("write byte %d of %d: %w", i+1, len(write), err)
		}
	}
	for i := range read {
		v, err := c.shift(c.readPhaseOut(write, i))
		if err != nil {
			return fmt.Errorf("read byte %d of %d: %w", i+1, len(read), err)
		}
		read[i] = v
	}
	return nil
}

// commandBatch stages up to batchDepth bytes in the write FIFO before
// collecting their responses, cutting the poll count per transaction.
func (c *Controller) commandBatch(write, read []byte) error {
	pending := 0
	for i, b := range write {
		c.io.Write8(regFIFO, b)
		pending++
		if pending == batchDepth || i == len(write)-1 {
			if err := c.collect(nil, pending); err != nil {
				return fmt.Errorf("write burst ending at byte %d: %w", i+1, err)
			}
			pending = 0
		}
	}

	pending = 0
	for i := range read {
		c.io.Write8(regFIFO, c.readPhaseOut(write, i))
		pending++
		if pending == batchDepth || i == len(read)-1 {
			if err := c.collect(read[i+1-pending:i+1], pending); err != nil {
				return fmt.Errorf("read burst ending at byte %d: %w", i+1, err)
			}
			pending = 0
		}
	}
	return nil
}

// shift round-trips a single byte through the FIFO. The controller is full
// duplex: every byte pushed produces exactly one response byte.
func (c *Controller) shift(out byte) (byte, error) {
	c.io.Write8(regFIFO, out)
	if err := c.waitReadable(); err != nil {
		return 0, err
	}
	return c.io.Read8(regFIFO), nil
}

// collect pops n response bytes, storing them into dst when dst is
// non-nil (dst then has length n).
func (c *Controller) collect(dst []byte, n int) error {
	for j := 0; j < n; j++ {
		if err := c.waitReadable(); err != nil {
			return err
		}
		v := c.io.Read8(regFIFO)
		if dst != nil {
			dst[j] = v
		}
	}
	return nil
}

// readPhaseOut picks the byte clocked out while response byte i is
// shifted in: the write buffer is reused while it has bytes, then the
// dummy fill takes over. Reads with R > len(write) are safe.
func (c *Controller) readPhaseOut(write []byte, i int) byte {
	if i < len(write) {
		return write[i]
	}
	return c.dummy
}

// waitReadable busy-polls the status register until the read FIFO has a
// byte. The spin is CPU-bound on purpose; the deadline only exists to
// turn a wedged controller into an error instead of a hang.
func (c *Controller) waitReadable() error {
	deadline := time.Now().Add(c.pollTimeout)
	for spins := 0; ; spins++ {
		if c.io.Read8(regSPSR)&spsrRFEmpty == 0 {
			return nil
		}
		// The clock read is far slower than the register poll; check
		// it only once per 1024 spins.
		if spins&0x3ff == 0x3ff && time.Now().After(deadline) {
			return fmt.Errorf("read FIFO empty for %v: %w",
				c.pollTimeout, programmer.ErrTransactionTimeout)
		}
	}
}

// Package serprog drives an external serial-attached flash programmer
// speaking the serprog protocol, and registers it as a flash bus master.
// It is the serial sibling of the memory-mapped loongson3 driver: same
// facade, round trips over a wire instead of a FIFO.
package serprog

import (
	"fmt"
	"io"
	"strconv"

	"goflash/msg"
	"goflash/programmer"
	"goflash/serial"
)

// Protocol opcodes and responses. All multi-byte lengths are little-endian.
const (
	cmdNop      = 0x00 // no operation
	cmdQIface   = 0x01 // query interface version (2 bytes)
	cmdQPgmName = 0x03 // query programmer name (16 bytes)
	cmdQBusType = 0x05 // query supported bus types (1 byte bitmap)
	cmdSyncNop  = 0x10 // resynchronize; answered NAK then ACK
	cmdSBusType = 0x12 // select bus types (1 byte bitmap)
	cmdOSpiOp   = 0x13 // SPI operation: wlen(3) rlen(3) wdata

	respACK = 0x06
	respNAK = 0x15

	busSPI = 0x08

	ifaceVersion = 1

	// maxOpLen is the largest write or read a single SPI op can carry:
	// lengths are 24-bit on the wire.
	maxOpLen = 1<<24 - 1
)

// Programmer is the registry entry for this driver.
var Programmer = &programmer.Programmer{
	Name:        "serprog",
	Description: "serial-attached external SPI programmer (serprog protocol)",
	Init:        initProgrammer,
}

// Serprog is a connected serprog device implementing programmer.Master.
// Not safe for concurrent use; one operation owns the wire at a time.
type Serprog struct {
	port serial.Port
	name string
}

// Connect synchronizes with the device on port and selects the SPI bus.
// The port is not closed on failure; the caller owns it.
func Connect(port serial.Port) (*Serprog, error) {
	s := &Serprog{port: port}

	if err := s.synchronize(); err != nil {
		return nil, err
	}

	ver, err := s.queryIface()
	if err != nil {
		return nil, err
	}
	if ver != ifaceVersion {
		return nil, fmt.Errorf("programmer speaks interface version %d, want %d: %w",
			ver, ifaceVersion, programmer.ErrConfiguration)
	}

	if name, err := s.queryName(); err == nil {
		s.name = name
		msg.Pdbg("serprog programmer: %q", name)
	}

	buses, err := s.queryBusTypes()
	if err != nil {
		return nil, err
	}
	if buses&busSPI == 0 {
		return nil, fmt.Errorf("programmer supports bus bitmap %#02x, no SPI: %w",
			buses, programmer.ErrConfiguration)
	}
	if err := s.selectBus(busSPI); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the device-reported programmer name, if it gave one.
func (s *Serprog) Name() string { return s.name }

// synchronize flushes stale bytes and runs SYNCNOP until the NAK+ACK pair
// lines up. The device may be mid-command from a previous run.
func (s *Serprog) synchronize() error {
	if err := s.port.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	const attempts = 8
	for i := 0; i < attempts; i++ {
		if _, err := s.port.Write([]byte{cmdSyncNop}); err != nil {
			return fmt.Errorf("sync write: %w", err)
		}
		var buf [2]byte
		if _, err := io.ReadFull(s.port, buf[:]); err != nil {
			continue // timeout while the device discards garbage input
		}
		if buf[0] == respNAK && buf[1] == respACK {
			// The NAK+ACK pair can also appear inside other response
			// payloads; a NOP acking cleanly confirms real alignment.
			if err := s.roundTrip([]byte{cmdNop}, nil); err != nil {
				continue
			}
			return nil
		}
	}
	return fmt.Errorf("no serprog device answered after %d sync attempts: %w",
		attempts, programmer.ErrConfiguration)
}

func (s *Serprog) queryIface() (uint16, error) {
	var buf [2]byte
	if err := s.roundTrip([]byte{cmdQIface}, buf[:]); err != nil {
		return 0, fmt.Errorf("query interface: %w", err)
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func (s *Serprog) queryName() (string, error) {
	var buf [16]byte
	if err := s.roundTrip([]byte{cmdQPgmName}, buf[:]); err != nil {
		return "", err
	}
	n := len(buf)
	for n > 0 && (buf[n-1] == 0 || buf[n-1] == ' ') {
		n--
	}
	return string(buf[:n]), nil
}

func (s *Serprog) queryBusTypes() (byte, error) {
	var buf [1]byte
	if err := s.roundTrip([]byte{cmdQBusType}, buf[:]); err != nil {
		return 0, fmt.Errorf("query bus types: %w", err)
	}
	return buf[0], nil
}

func (s *Serprog) selectBus(bus byte) error {
	if err := s.roundTrip([]byte{cmdSBusType, bus}, nil); err != nil {
		return fmt.Errorf("select bus %#02x: %w", bus, err)
	}
	return nil
}

// roundTrip sends req, checks the ACK, and reads len(resp) payload bytes.
func (s *Serprog) roundTrip(req, resp []byte) error {
	if _, err := s.port.Write(req); err != nil {
		return err
	}
	var ack [1]byte
	if _, err := io.ReadFull(s.port, ack[:]); err != nil {
		return err
	}
	switch ack[0] {
	case respACK:
	case respNAK:
		return fmt.Errorf("command %#02x refused (NAK)", req[0])
	default:
		return fmt.Errorf("command %#02x: protocol desync, got %#02x instead of ACK/NAK",
			req[0], ack[0])
	}
	if len(resp) == 0 {
		return nil
	}
	_, err := io.ReadFull(s.port, resp)
	return err
}

// Command runs one SPI transaction through the device.
func (s *Serprog) Command(write, read []byte) error {
	if len(write) > maxOpLen || len(read) > maxOpLen {
		return fmt.Errorf("transfer of %d+%d bytes exceeds the 24-bit length field",
			len(write), len(read))
	}

	req := make([]byte, 0, 7+len(write))
	req = append(req, cmdOSpiOp,
		byte(len(write)), byte(len(write)>>8), byte(len(write)>>16),
		byte(len(read)), byte(len(read)>>8), byte(len(read)>>16))
	req = append(req, write...)

	if err := s.roundTrip(req, read); err != nil {
		return fmt.Errorf("spi op (%d write, %d read): %w", len(write), len(read), err)
	}
	return nil
}

// MaxDataRead reports the wire-format read limit.
func (s *Serprog) MaxDataRead() int { return maxOpLen }

// MaxDataWrite reports the wire-format write limit.
func (s *Serprog) MaxDataWrite() int { return maxOpLen }

// Shutdown closes the serial port.
func (s *Serprog) Shutdown() error {
	return s.port.Close()
}

func initProgrammer(p *programmer.Params) error {
	dev := p.Get("dev")
	if dev == "" {
		return fmt.Errorf("no dev parameter specified (use dev=/dev/ttyUSB0): %w",
			programmer.ErrConfiguration)
	}

	cfg := serial.DefaultConfig(dev)
	if baud := p.Get("baud"); baud != "" {
		b, err := strconv.Atoi(baud)
		if err != nil || b <= 0 {
			return fmt.Errorf("invalid baud %q: %w", baud, programmer.ErrConfiguration)
		}
		cfg.Baud = b
	}

	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("%v: %w", err, programmer.ErrConfiguration)
	}

	s, err := Connect(port)
	if err != nil {
		port.Close()
		return err
	}
	if err := programmer.RegisterShutdown(s.Shutdown); err != nil {
		port.Close()
		return err
	}
	if err := programmer.RegisterMaster(s); err != nil {
		return err
	}

	msg.Pinfo("serprog programmer on %s ready", dev)
	return nil
}

package serprog

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"goflash/programmer"
)

// mockPort is a scripted serial port: reads come from the response buffer,
// writes are recorded.
type mockPort struct {
	responses bytes.Buffer
	written   bytes.Buffer
	closed    bool
	flushed   bool
}

func (m *mockPort) Read(b []byte) (int, error) {
	if m.responses.Len() == 0 {
		return 0, io.EOF
	}
	return m.responses.Read(b)
}

func (m *mockPort) Write(b []byte) (int, error) {
	return m.written.Write(b)
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func (m *mockPort) Flush() error {
	m.flushed = true
	return nil
}

// handshake is the scripted device side of a successful Connect.
func handshake() []byte {
	var b []byte
	b = append(b, respNAK, respACK)            // SYNCNOP
	b = append(b, respACK)                     // NOP liveness check
	b = append(b, respACK, ifaceVersion, 0x00) // Q_IFACE
	b = append(b, respACK)                     // Q_PGMNAME ack...
	b = append(b, []byte("testprog\x00\x00\x00\x00\x00\x00\x00\x00")...)
	b = append(b, respACK, busSPI) // Q_BUSTYPE
	b = append(b, respACK)         // S_BUSTYPE
	return b
}

func TestConnect(t *testing.T) {
	port := &mockPort{}
	port.responses.Write(handshake())

	s, err := Connect(port)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !port.flushed {
		t.Error("Connect did not flush stale input")
	}
	if s.Name() != "testprog" {
		t.Errorf("Name = %q, want %q", s.Name(), "testprog")
	}

	want := []byte{cmdSyncNop, cmdNop, cmdQIface, cmdQPgmName, cmdQBusType, cmdSBusType, busSPI}
	if diff := cmp.Diff(want, port.written.Bytes()); diff != "" {
		t.Errorf("handshake bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectWrongVersion(t *testing.T) {
	port := &mockPort{}
	port.responses.Write([]byte{respNAK, respACK, respACK, respACK, 0x02, 0x00})

	if _, err := Connect(port); err == nil ||
		!strings.Contains(err.Error(), "interface version") {
		t.Fatalf("Connect with version 2 = %v, want version error", err)
	}
}

func TestConnectNoSPI(t *testing.T) {
	port := &mockPort{}
	var b []byte
	b = append(b, respNAK, respACK)
	b = append(b, respACK) // NOP
	b = append(b, respACK, ifaceVersion, 0x00)
	b = append(b, respACK)
	b = append(b, make([]byte, 16)...)
	b = append(b, respACK, 0x01) // parallel only
	port.responses.Write(b)

	if _, err := Connect(port); err == nil || !strings.Contains(err.Error(), "no SPI") {
		t.Fatalf("Connect without SPI support = %v, want bus error", err)
	}
}

// A NAK+ACK pair that was really stray payload data is caught by the NOP
// confirmation, and synchronization keeps trying instead of proceeding.
func TestConnectNopRefused(t *testing.T) {
	port := &mockPort{}
	port.responses.Write([]byte{respNAK, respACK, respNAK})

	if _, err := Connect(port); !errors.Is(err, programmer.ErrConfiguration) {
		t.Fatalf("Connect with refused NOP = %v, want ErrConfiguration", err)
	}
}

func TestCommandFraming(t *testing.T) {
	port := &mockPort{}
	port.responses.Write(handshake())
	s, err := Connect(port)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	port.written.Reset()
	port.responses.Write([]byte{respACK, 0xEF, 0x40, 0x18})

	read := make([]byte, 3)
	if err := s.Command([]byte{0x9F}, read); err != nil {
		t.Fatalf("Command: %v", err)
	}

	if diff := cmp.Diff([]byte{0xEF, 0x40, 0x18}, read); diff != "" {
		t.Errorf("read payload mismatch (-want +got):\n%s", diff)
	}
	// opcode, wlen=1 (24-bit LE), rlen=3, then the write payload
	want := []byte{cmdOSpiOp, 0x01, 0x00, 0x00, 0x03, 0x00, 0x00, 0x9F}
	if diff := cmp.Diff(want, port.written.Bytes()); diff != "" {
		t.Errorf("wire framing mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandNAK(t *testing.T) {
	port := &mockPort{}
	port.responses.Write(handshake())
	s, err := Connect(port)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	port.responses.Write([]byte{respNAK})

	if err := s.Command([]byte{0x9F}, make([]byte, 3)); err == nil ||
		!strings.Contains(err.Error(), "NAK") {
		t.Fatalf("Command after NAK = %v, want refusal error", err)
	}
}

func TestShutdownClosesPort(t *testing.T) {
	port := &mockPort{}
	port.responses.Write(handshake())
	s, err := Connect(port)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !port.closed {
		t.Error("Shutdown did not close the port")
	}
}

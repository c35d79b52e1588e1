package programmer

import (
	"fmt"
	"sync"
)

// Master is the raw SPI transaction primitive a programmer exposes once its
// controller is up. Command shifts out write, then shifts in len(read) bytes
// into read, under a single chip-select assertion. Framing (opcode, address,
// dummy bytes) is entirely the caller's business; the master moves bytes.
//
// MaxDataRead and MaxDataWrite bound the data portion of a single
// transaction; 0 means unlimited. Higher-level operations (multicommand
// batching, bulk read, paged write) are built on top of Command by the
// flash package and respect these bounds.
//
// Masters are not safe for concurrent use: a transaction's chip-select
// assert/deassert pair must not interleave with another transaction.
type Master interface {
	Command(write, read []byte) error
	MaxDataRead() int
	MaxDataWrite() int
}

// SPICommand is one element of a multicommand sequence.
type SPICommand struct {
	Write []byte
	Read  []byte
}

// Multicommander is implemented by masters that can run a command sequence
// natively (e.g. a remote programmer that batches round trips). Masters
// without it get the one-at-a-time fallback in SendMulticommand.
type Multicommander interface {
	Multicommand(cmds []SPICommand) error
}

var (
	masterMu     sync.Mutex
	activeMaster Master
)

// RegisterMaster installs m as the active flash-access path. Only one
// master may be active; a second registration is refused.
func RegisterMaster(m Master) error {
	masterMu.Lock()
	defer masterMu.Unlock()

	if m == nil {
		return fmt.Errorf("nil bus master: %w", ErrRegistration)
	}
	if activeMaster != nil {
		return fmt.Errorf("a bus master is already registered: %w", ErrRegistration)
	}
	activeMaster = m
	return nil
}

// CurrentMaster returns the active bus master, or nil before
// initialization or after shutdown.
func CurrentMaster() Master {
	masterMu.Lock()
	defer masterMu.Unlock()
	return activeMaster
}

// SendCommand runs a single write-then-read transaction on m.
func SendCommand(m Master, write, read []byte) error {
	return m.Command(write, read)
}

// SendMulticommand runs a sequence of transactions, using the master's
// native multicommand support when present. Execution stops at the first
// failing command.
func SendMulticommand(m Master, cmds []SPICommand) error {
	if mc, ok := m.(Multicommander); ok {
		return mc.Multicommand(cmds)
	}
	for i := range cmds {
		if err := m.Command(cmds[i].Write, cmds[i].Read); err != nil {
			return fmt.Errorf("multicommand step %d: %w", i, err)
		}
	}
	return nil
}

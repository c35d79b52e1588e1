package programmer

import "errors"

// Error kinds surfaced by programmer initialization and transactions.
// Programmers wrap these with fmt.Errorf("...: %w", ...) so callers can
// classify failures with errors.Is while still seeing the detail.
var (
	// ErrConfiguration means a required programmer parameter was missing
	// or had an unrecognized value. No hardware was touched.
	ErrConfiguration = errors.New("invalid programmer configuration")

	// ErrMapping means the programmer's register window could not be
	// mapped into the process address space.
	ErrMapping = errors.New("register mapping failed")

	// ErrRegistration means a shutdown hook or bus master could not be
	// registered with the framework.
	ErrRegistration = errors.New("registration failed")

	// ErrTransactionTimeout means the controller did not produce a byte
	// within the configured poll deadline. The transaction is abandoned
	// with chip select deasserted; the caller may retry.
	ErrTransactionTimeout = errors.New("transaction timed out")

	// ErrHardwareFault means the controller misbehaved outside a
	// transaction, e.g. its read FIFO never drained during bring-up.
	ErrHardwareFault = errors.New("hardware fault")
)

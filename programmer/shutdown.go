package programmer

import (
	"fmt"
	"sync"
)

// ShutdownFunc restores hardware touched during initialization.
type ShutdownFunc func() error

var (
	shutdownMu   sync.Mutex
	shutdownFns  []ShutdownFunc
	shuttingDown bool
)

// RegisterShutdown pushes a hook onto the shutdown stack. Hooks run in
// reverse registration order, so a programmer that registers its hook
// before touching hardware is unwound even if a later step fails.
func RegisterShutdown(fn ShutdownFunc) error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()

	if shuttingDown {
		return fmt.Errorf("shutdown already in progress: %w", ErrRegistration)
	}
	if fn == nil {
		return fmt.Errorf("nil shutdown hook: %w", ErrRegistration)
	}
	shutdownFns = append(shutdownFns, fn)
	return nil
}

// Shutdown runs all registered hooks, most recent first, and unregisters
// the active bus master. Every hook runs even if an earlier one fails; the
// first error is returned.
func Shutdown() error {
	shutdownMu.Lock()
	shuttingDown = true
	fns := shutdownFns
	shutdownFns = nil
	shutdownMu.Unlock()

	var firstErr error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	masterMu.Lock()
	activeMaster = nil
	masterMu.Unlock()

	shutdownMu.Lock()
	shuttingDown = false
	shutdownMu.Unlock()

	return firstErr
}

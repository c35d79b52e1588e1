// Package programmer is the framework that flash access is built on: a
// registry of programmer drivers, their parameter strings, the shutdown hook
// stack, and the SPI bus master facade that drivers register once they are
// initialized.
package programmer

import (
	"fmt"
	"sort"
	"sync"
)

// InitFunc brings a programmer's hardware up and registers its bus master.
// It must register any needed shutdown hook before mutating hardware state
// so a failed initialization is still unwound.
type InitFunc func(p *Params) error

// Programmer describes one registered flash programmer driver.
type Programmer struct {
	Name        string
	Description string
	Init        InitFunc
}

var (
	mu          sync.Mutex
	programmers = make(map[string]*Programmer)
)

// Register adds a programmer to the registry. Name collisions are a
// programming error and panic, matching how drivers are wired at startup.
func Register(p *Programmer) {
	mu.Lock()
	defer mu.Unlock()

	if p == nil || p.Name == "" || p.Init == nil {
		panic("programmer: Register with incomplete programmer")
	}
	if _, exists := programmers[p.Name]; exists {
		panic("programmer: duplicate programmer name " + p.Name)
	}
	programmers[p.Name] = p
}

// Lookup returns the programmer registered under name.
func Lookup(name string) (*Programmer, error) {
	mu.Lock()
	defer mu.Unlock()

	p, ok := programmers[name]
	if !ok {
		return nil, fmt.Errorf("unknown programmer %q: %w", name, ErrConfiguration)
	}
	return p, nil
}

// All returns the registered programmer names, sorted.
func All() []string {
	mu.Lock()
	defer mu.Unlock()

	names := make([]string, 0, len(programmers))
	for name := range programmers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

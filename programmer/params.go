package programmer

import (
	"fmt"
	"strings"

	"github.com/google/shlex"

	"goflash/msg"
)

// Params holds the key=value parameters passed to a programmer on the
// command line, e.g. "cpu=3a4000,engine=batch". Values may be quoted
// ("dev='/dev/tty USB0'") but must not themselves contain commas.
type Params struct {
	values map[string]string
	used   map[string]bool
}

// ParseParams parses a comma- or space-separated key=value list.
func ParseParams(s string) (*Params, error) {
	p := &Params{
		values: make(map[string]string),
		used:   make(map[string]bool),
	}
	if strings.TrimSpace(s) == "" {
		return p, nil
	}

	tokens, err := shlex.Split(strings.ReplaceAll(s, ",", " "))
	if err != nil {
		return nil, fmt.Errorf("malformed parameter string %q: %w", s, ErrConfiguration)
	}

	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q is not key=value: %w", tok, ErrConfiguration)
		}
		if _, dup := p.values[key]; dup {
			return nil, fmt.Errorf("duplicate parameter %q: %w", key, ErrConfiguration)
		}
		p.values[key] = value
	}
	return p, nil
}

// Get returns the value for key, or "" if the key was not given.
// The key is marked as consumed for WarnUnused.
func (p *Params) Get(key string) string {
	p.used[key] = true
	return p.values[key]
}

// WarnUnused reports parameters the programmer never looked at. Typos in
// parameter names would otherwise be silently ignored.
func (p *Params) WarnUnused() {
	for key := range p.values {
		if !p.used[key] {
			msg.Pwarn("unused programmer parameter %q", key)
		}
	}
}

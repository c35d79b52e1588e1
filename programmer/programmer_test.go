package programmer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseParams(t *testing.T) {
	cases := []struct {
		in      string
		want    map[string]string
		wantErr bool
	}{
		{in: "", want: map[string]string{}},
		{in: "cpu=3a4000", want: map[string]string{"cpu": "3a4000"}},
		{in: "cpu=3a4000,engine=batch", want: map[string]string{"cpu": "3a4000", "engine": "batch"}},
		{in: "dev='/dev/tty USB0' baud=115200", want: map[string]string{"dev": "/dev/tty USB0", "baud": "115200"}},
		{in: "cpu", wantErr: true},
		{in: "=x", wantErr: true},
		{in: "cpu=1,cpu=2", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			p, err := ParseParams(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Fatalf("ParseParams(%q) = %v, want ErrConfiguration", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseParams(%q): %v", tc.in, err)
			}
			if diff := cmp.Diff(tc.want, p.values); diff != "" {
				t.Errorf("parsed values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	name := fmt.Sprintf("testprog-%p", t)
	Register(&Programmer{
		Name: name,
		Init: func(*Params) error { return nil },
	})

	p, err := Lookup(name)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Name != name {
		t.Errorf("Lookup returned %q", p.Name)
	}

	if _, err := Lookup("no-such-programmer"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Lookup of unknown name = %v, want ErrConfiguration", err)
	}

	found := false
	for _, n := range All() {
		if n == name {
			found = true
		}
	}
	if !found {
		t.Errorf("All() = %v does not list %q", All(), name)
	}
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		if err := RegisterShutdown(func() error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("RegisterShutdown: %v", err)
		}
	}

	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if diff := cmp.Diff([]int{3, 2, 1}, order); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}

	// The stack is consumed; a second shutdown runs nothing.
	order = nil
	if err := Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("second Shutdown ran %d hooks", len(order))
	}
}

func TestShutdownRunsAllHooksOnError(t *testing.T) {
	ran := 0
	hookErr := errors.New("cleanup failed")
	for i := 0; i < 2; i++ {
		if err := RegisterShutdown(func() error {
			ran++
			return hookErr
		}); err != nil {
			t.Fatalf("RegisterShutdown: %v", err)
		}
	}

	if err := Shutdown(); !errors.Is(err, hookErr) {
		t.Fatalf("Shutdown = %v, want first hook error", err)
	}
	if ran != 2 {
		t.Errorf("ran %d hooks, want 2 (errors must not stop the stack)", ran)
	}
}

type nopMaster struct{}

func (nopMaster) Command(write, read []byte) error { return nil }
func (nopMaster) MaxDataRead() int                 { return 0 }
func (nopMaster) MaxDataWrite() int                { return 0 }

func TestMasterRegistration(t *testing.T) {
	if err := Shutdown(); err != nil { // clear any master from other tests
		t.Fatalf("Shutdown: %v", err)
	}

	if err := RegisterMaster(nopMaster{}); err != nil {
		t.Fatalf("RegisterMaster: %v", err)
	}
	if CurrentMaster() == nil {
		t.Fatal("CurrentMaster is nil after registration")
	}
	if err := RegisterMaster(nopMaster{}); !errors.Is(err, ErrRegistration) {
		t.Errorf("second RegisterMaster = %v, want ErrRegistration", err)
	}

	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if CurrentMaster() != nil {
		t.Error("CurrentMaster still set after Shutdown")
	}
}

// recordingMulti implements Multicommander and counts native calls.
type recordingMulti struct {
	nopMaster
	native int
}

func (m *recordingMulti) Multicommand(cmds []SPICommand) error {
	m.native++
	return nil
}

type countingMaster struct {
	nopMaster
	commands int
	failAt   int
}

func (m *countingMaster) Command(write, read []byte) error {
	m.commands++
	if m.failAt > 0 && m.commands == m.failAt {
		return errors.New("bus error")
	}
	return nil
}

func TestSendMulticommand(t *testing.T) {
	cmds := []SPICommand{
		{Write: []byte{0x06}},
		{Write: []byte{0x02, 0, 0, 0, 1}},
	}

	native := &recordingMulti{}
	if err := SendMulticommand(native, cmds); err != nil {
		t.Fatalf("SendMulticommand native: %v", err)
	}
	if native.native != 1 {
		t.Errorf("native multicommand called %d times, want 1", native.native)
	}

	fallback := &countingMaster{}
	if err := SendMulticommand(fallback, cmds); err != nil {
		t.Fatalf("SendMulticommand fallback: %v", err)
	}
	if fallback.commands != 2 {
		t.Errorf("fallback issued %d commands, want 2", fallback.commands)
	}

	failing := &countingMaster{failAt: 1}
	if err := SendMulticommand(failing, cmds); err == nil {
		t.Fatal("SendMulticommand with failing master succeeded")
	}
	if failing.commands != 1 {
		t.Errorf("execution continued past a failed command: %d commands", failing.commands)
	}
}

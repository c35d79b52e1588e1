package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"goflash/programmer"
)

// A programmer that registers a cleanup hook and then fails bring-up must
// still have that hook run, or real hardware is left half-configured.
func TestRunUnwindsFailedInit(t *testing.T) {
	hookRan := false
	programmer.Register(&programmer.Programmer{
		Name:        "failing-test-prog",
		Description: "registers a hook, then fails bring-up",
		Init: func(p *programmer.Params) error {
			if err := programmer.RegisterShutdown(func() error {
				hookRan = true
				return nil
			}); err != nil {
				return err
			}
			return fmt.Errorf("bring-up failed: %w", programmer.ErrHardwareFault)
		},
	})

	old := *progName
	*progName = "failing-test-prog"
	defer func() { *progName = old }()

	if err := run("probe"); err == nil {
		t.Fatal("run with a failing programmer succeeded")
	}
	if !hookRan {
		t.Error("shutdown hook did not run after failed initialization")
	}
}

func TestVerbosityFlagOverridesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goflash.json")
	if err := os.WriteFile(path, []byte(`{"verbosity":2}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	old := *configPath
	*configPath = path
	defer func() { *configPath = old }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Verbosity != 2 {
		t.Fatalf("Verbosity without -v = %d, want the config file's 2", cfg.Verbosity)
	}

	// An explicit -v 0 must beat the config file even though 0 is also
	// the flag default.
	if err := flag.Set("v", "0"); err != nil {
		t.Fatalf("flag.Set: %v", err)
	}
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Verbosity != 0 {
		t.Errorf("Verbosity with explicit -v 0 = %d, want 0", cfg.Verbosity)
	}
}

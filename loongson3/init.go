package loongson3

import (
	"fmt"

	"goflash/mmio"
	"goflash/msg"
	"goflash/programmer"
)

// Programmer is the registry entry for this driver. Register it with
// programmer.Register before looking it up by name.
var Programmer = &programmer.Programmer{
	Name:        "loongson3_spi",
	Description: "Loongson 3 on-chip SPI controller (firmware flash on CS0)",
	Init:        initProgrammer,
}

// initConfig is the validated result of the programmer parameters,
// resolved before any hardware is touched.
type initConfig struct {
	family string
	base   uintptr
	opts   Options
}

func configFromParams(p *programmer.Params) (*initConfig, error) {
	cpu := p.Get("cpu")
	if cpu == "" {
		// Different kernels report different cpuinfo model strings, so
		// the CPU must be named explicitly.
		return nil, fmt.Errorf("no cpu parameter specified (use cpu=<model>, e.g. cpu=3a4000): %w",
			programmer.ErrConfiguration)
	}
	fam, ok := cpuFamilies[cpu]
	if !ok {
		return nil, fmt.Errorf("unsupported cpu %q: %w", cpu, programmer.ErrConfiguration)
	}

	cfg := &initConfig{family: fam.family, base: fam.base}
	switch engine := p.Get("engine"); engine {
	case "", "perbyte":
	case "batch":
		cfg.opts.Batch = true
	default:
		return nil, fmt.Errorf("unknown engine %q (want perbyte or batch): %w",
			engine, programmer.ErrConfiguration)
	}
	return cfg, nil
}

func initProgrammer(p *programmer.Params) error {
	cfg, err := configFromParams(p)
	if err != nil {
		return err
	}
	msg.Pdbg("%s controller selected, base %#x", cfg.family, cfg.base)

	region, err := mmio.MapPhysical(cfg.family+" SPICTRL", cfg.base, RegWindowSize)
	if err != nil {
		return err
	}
	if err := programmer.RegisterShutdown(region.Close); err != nil {
		region.Close()
		return err
	}

	// A disabled read engine usually means this controller is not the
	// system firmware path; flashing through it still works, so warn
	// and continue.
	if region.Read8(regSFCP)&sfcpMemEn == 0 {
		msg.Pwarn("read engine is not enabled, SPI flash may not be the system firmware")
	}

	ctl := New(region, cfg.opts)

	// The cleanup hook goes in before the controller state is mutated
	// so a failed bring-up is still unwound at shutdown.
	if err := programmer.RegisterShutdown(ctl.Shutdown); err != nil {
		return err
	}
	if err := ctl.Enable(); err != nil {
		return err
	}
	if err := programmer.RegisterMaster(ctl); err != nil {
		return err
	}

	msg.Pinfo("%s SPI controller at %#x ready", cfg.family, cfg.base)
	return nil
}

// goflash reads, erases and writes SPI firmware flash chips through one of
// the registered programmer drivers.
//
// Examples:
//
//	goflash -p loongson3_spi -a cpu=3a4000 probe
//	goflash -p loongson3_spi -a cpu=3a4000 -o backup.bin read
//	goflash -p serprog -a dev=/dev/ttyUSB0 -i image.bin write
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"goflash/config"
	"goflash/flash"
	"goflash/loongson3"
	"goflash/msg"
	"goflash/programmer"
	"goflash/serprog"
)

var (
	progName   = flag.String("p", "", "programmer to use (default from config file)")
	progParams = flag.String("a", "", `programmer parameters, e.g. "cpu=3a4000,engine=batch"`)
	configPath = flag.String("c", "", "JSON configuration file")
	verbosity  = flag.Int("v", 0, "verbosity: -1 quiet, 0 normal, 1 debug")
	outFile    = flag.String("o", "", "output file (read)")
	inFile     = flag.String("i", "", "input file (write)")
	address    = flag.Int("addr", 0, "flash byte address (read/erase/write)")
	length     = flag.Int("len", 0, "byte count (read; default whole chip)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] probe|read|erase|write\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Programmers: %s\n\nFlags:\n", strings.Join(programmer.All(), ", "))
	flag.PrintDefaults()
}

func main() {
	programmer.Register(loongson3.Programmer)
	programmer.Register(serprog.Programmer)

	flag.Usage = usage
	flag.Parse()

	if err := run(flag.Arg(0)); err != nil {
		msg.Perr("%v", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file (if any) with command-line flags.
// Flags win; -v counts as given even when it is an explicit 0.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *progName != "" {
		cfg.Programmer = *progName
	}
	if *progParams != "" {
		cfg.Params = *progParams
	}
	if flagWasSet("v") {
		cfg.Verbosity = *verbosity
	}
	return cfg, nil
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func run(op string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	msg.SetVerbosity(cfg.Verbosity)

	prog, err := programmer.Lookup(cfg.Programmer)
	if err != nil {
		return err
	}
	params, err := programmer.ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	// Programmers register their cleanup hooks before touching hardware,
	// so the shutdown stack must run even when Init fails partway.
	defer func() {
		if err := programmer.Shutdown(); err != nil {
			msg.Perr("shutdown: %v", err)
		}
	}()

	if err := prog.Init(params); err != nil {
		return fmt.Errorf("initializing %s: %w", prog.Name, err)
	}
	params.WarnUnused()

	chip, err := flash.Probe(programmer.CurrentMaster())
	if err != nil {
		return err
	}

	switch op {
	case "", "probe":
		return nil
	case "read":
		return opRead(chip)
	case "erase":
		return opErase(chip)
	case "write":
		return opWrite(chip)
	default:
		return fmt.Errorf("unknown operation %q (want probe, read, erase or write): %w",
			op, programmer.ErrConfiguration)
	}
}

func opRead(chip *flash.Chip) error {
	if *outFile == "" {
		return fmt.Errorf("read needs -o <file>: %w", programmer.ErrConfiguration)
	}
	n := *length
	if n == 0 {
		if chip.Size == 0 {
			return fmt.Errorf("chip size unknown, specify -len: %w", programmer.ErrConfiguration)
		}
		n = chip.Size - *address
	}

	msg.Pinfo("reading %d bytes at %#x", n, *address)
	data, err := chip.Read(*address, n)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outFile, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", *outFile, err)
	}
	msg.Pinfo("wrote %s", *outFile)
	return nil
}

func opErase(chip *flash.Chip) error {
	msg.Pinfo("erasing 4 kB sector at %#x", *address)
	return chip.Erase4K(*address)
}

func opWrite(chip *flash.Chip) error {
	if *inFile == "" {
		return fmt.Errorf("write needs -i <file>: %w", programmer.ErrConfiguration)
	}
	data, err := os.ReadFile(*inFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", *inFile, err)
	}

	// Erase every 4 kB sector the image touches, program, then verify.
	start := *address &^ 0xFFF
	end := *address + len(data)
	msg.Pinfo("erasing %#x-%#x", start, end)
	for a := start; a < end; a += 0x1000 {
		if err := chip.Erase4K(a); err != nil {
			return err
		}
	}

	msg.Pinfo("programming %d bytes at %#x", len(data), *address)
	if err := chip.Write(*address, data); err != nil {
		return err
	}

	msg.Pinfo("verifying")
	got, err := chip.Read(*address, len(data))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return fmt.Errorf("verify failed: flash contents differ from %s", *inFile)
	}
	msg.Pinfo("done")
	return nil
}

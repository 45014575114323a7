// Command cpurunner is a headless CPU/test-ROM runner: it loads a ROM (and
// optional boot ROM), steps the CPU until serial output matches a pattern
// or a step/time budget runs out, and exits 0/1/2 for pass/fail/timeout.
// It exists to drive Blargg-style test ROMs from a script without a window.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/GaminRick7/RetroGB/internal/machine"
)

// writerFunc adapts a function to io.Writer.
type writerFunc func(p []byte) (n int, err error)

func (f writerFunc) Write(p []byte) (n int, err error) { return f(p) }

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM to run from 0x0000 until FF50 disables it")
	steps := flag.Int("steps", 5_000_000, "max CPU steps to run")
	startPC := flag.Int("pc", 0x0100, "initial PC value (ignored when a boot ROM is supplied)")
	trace := flag.Bool("trace", false, "print PC/opcode/register trace")
	until := flag.String("until", "Passed", "stop when serial output contains this substring (case-insensitive); empty to disable")
	auto := flag.Bool("auto", false, "auto-detect 'Passed' or 'Failed N tests' in serial output and exit 0/1")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}
	var boot []byte
	if *bootPath != "" {
		boot, err = os.ReadFile(*bootPath)
		if err != nil {
			log.Fatalf("read bootrom: %v", err)
		}
	}

	m := machine.New(machine.Config{Trace: *trace, FastForward: true, Headless: true})
	if err := m.LoadCartridge(rom, *romPath); err != nil {
		log.Fatalf("load cart: %v", err)
	}

	var ser bytes.Buffer
	w := io.Writer(os.Stdout)
	if *until != "" || *auto {
		w = io.MultiWriter(os.Stdout, &ser)
	}
	m.SetSerialWriter(writerFunc(func(p []byte) (int, error) { return w.Write(p) }))

	if len(boot) >= 0x100 {
		m.Bus().SetBootROM(boot)
		m.CPU().SetPC(0x0000)
	} else {
		m.SetPC(uint16(*startPC))
		// Minimal DMG post-boot IO defaults (LCD on, palettes, timers off).
		b := m.Bus()
		b.Write(0xFF00, 0xCF)
		b.Write(0xFF05, 0x00)
		b.Write(0xFF06, 0x00)
		b.Write(0xFF07, 0x00)
		b.Write(0xFF40, 0x91)
		b.Write(0xFF42, 0x00)
		b.Write(0xFF43, 0x00)
		b.Write(0xFF45, 0x00)
		b.Write(0xFF47, 0xFC)
		b.Write(0xFF48, 0xFF)
		b.Write(0xFF49, 0xFF)
		b.Write(0xFF4A, 0x00)
		b.Write(0xFF4B, 0x00)
		b.Write(0xFFFF, 0x00)
	}

	start := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = start.Add(*timeout)
	}
	failRe := regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)

	var cycles int
	for i := 0; i < *steps; i++ {
		c := m.CPU()
		pc := c.PC
		cyc, err := c.Step()
		cycles += cyc
		if err != nil {
			fmt.Printf("\nstopped at PC=%04X: %v\n", pc, err)
			os.Exit(1)
		}
		if *trace {
			fmt.Printf("PC=%04X A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t\n",
				pc, c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.SP, c.IME)
		}

		if *auto {
			s := ser.String()
			if strings.Contains(strings.ToLower(s), "passed") {
				fmt.Printf("\nDetected PASS in serial output.\nDone: steps=%d cycles~=%d elapsed=%s\n",
					i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				os.Exit(0)
			}
			if mm := failRe.FindStringSubmatch(s); mm != nil {
				fmt.Printf("\nDetected %s in serial output.\nDone: steps=%d cycles~=%d elapsed=%s\n",
					mm[0], i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				os.Exit(1)
			}
		} else if *until != "" && strings.Contains(strings.ToLower(ser.String()), strings.ToLower(*until)) {
			fmt.Printf("\nDetected %q in serial output.\nDone: steps=%d cycles~=%d elapsed=%s\n",
				*until, i+1, cycles, time.Since(start).Truncate(time.Millisecond))
			return
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\nDone: steps=%d cycles~=%d elapsed=%s\n",
				time.Since(start).Truncate(time.Millisecond), i+1, cycles, time.Since(start).Truncate(time.Millisecond))
			os.Exit(2)
		}
	}
	fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", *steps, cycles, time.Since(start).Truncate(time.Millisecond))
}

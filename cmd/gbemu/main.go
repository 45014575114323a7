// Command gbemu is the main launcher: "run" opens an ebiten window,
// "headless" steps a fixed number of frames and optionally checksums or
// dumps the result, and "test" drives a test ROM via its serial port
// looking for a pass/fail marker, matching the conventions Blargg-style
// test ROMs use.
package main

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/GaminRick7/RetroGB/internal/cart"
	"github.com/GaminRick7/RetroGB/internal/host/ebitenhost"
	"github.com/GaminRick7/RetroGB/internal/machine"
)

func main() {
	app := cli.NewApp()
	app.Name = "gbemu"
	app.Usage = "a DMG Game Boy emulator core"
	app.Version = "1.0.0"

	romFlag := cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"}
	bootFlag := cli.StringFlag{Name: "bootrom", Usage: "optional DMG boot ROM"}
	traceFlag := cli.BoolFlag{Name: "trace", Usage: "log each CPU instruction"}

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "open a window and play a ROM",
			Flags: []cli.Flag{
				romFlag, bootFlag, traceFlag,
				cli.IntFlag{Name: "scale", Value: 3, Usage: "window scale"},
				cli.StringFlag{Name: "title", Value: "gbemu", Usage: "window title"},
			},
			Action: runWindowed,
		},
		{
			Name:  "headless",
			Usage: "run a fixed number of frames with no window",
			Flags: []cli.Flag{
				romFlag, bootFlag, traceFlag,
				cli.IntFlag{Name: "frames", Value: 300, Usage: "frames to run"},
				cli.StringFlag{Name: "outpng", Usage: "write the last frame to a PNG at this path"},
				cli.StringFlag{Name: "expect", Usage: "assert the final frame's CRC32 (hex)"},
			},
			Action: runHeadlessCmd,
		},
		{
			Name:  "test",
			Usage: "run a test ROM, watching its serial port for a pass/fail marker",
			Flags: []cli.Flag{
				romFlag, bootFlag,
				cli.IntFlag{Name: "frames", Value: 3600, Usage: "max frames before giving up"},
				cli.StringFlag{Name: "until", Value: "passed", Usage: "lowercase substring of serial output meaning success"},
			},
			Action: runTestCmd,
		},
	}
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadMachine(c *cli.Context) (*machine.Machine, error) {
	romPath := c.String("rom")
	if romPath == "" {
		return nil, fmt.Errorf("-rom is required")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return nil, fmt.Errorf("read rom: %w", err)
	}
	if h, err := cart.ParseHeader(rom); err == nil {
		log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
	}

	m := machine.New(machine.Config{Trace: c.Bool("trace")})
	if err := m.LoadCartridge(rom, romPath); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if bootPath := c.String("bootrom"); bootPath != "" {
		boot, err := os.ReadFile(bootPath)
		if err != nil {
			return nil, fmt.Errorf("read bootrom: %w", err)
		}
		m.Bus().SetBootROM(boot)
		m.CPU().SetPC(0x0000)
	}
	return m, nil
}

func runWindowed(c *cli.Context) error {
	m, err := loadMachine(c)
	if err != nil {
		return err
	}
	host := ebitenhost.New(ebitenhost.Config{Title: c.String("title"), Scale: c.Int("scale")}, m)
	if err := host.Run(); err != nil {
		return err
	}
	return m.SaveBattery()
}

func runHeadlessCmd(c *cli.Context) error {
	m, err := loadMachine(c)
	if err != nil {
		return err
	}
	frames := c.Int("frames")
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.StepFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(uint32SliceToBytes(fb))
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x", frames, dur.Truncate(time.Millisecond), fps, crc)

	if path := c.String("outpng"); path != "" {
		if err := savePNG(fb, path); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", path)
	}
	if expect := c.String("expect"); expect != "" {
		want := strings.TrimPrefix(strings.ToLower(expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return m.SaveBattery()
}

func runTestCmd(c *cli.Context) error {
	m, err := loadMachine(c)
	if err != nil {
		return err
	}
	var ser strings.Builder
	m.SetSerialWriter(&ser)

	until := strings.ToLower(c.String("until"))
	maxFrames := c.Int("frames")
	for i := 0; i < maxFrames; i++ {
		if err := m.StepFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if until != "" && strings.Contains(strings.ToLower(ser.String()), until) {
			fmt.Printf("PASS after %d frames\n%s\n", i+1, ser.String())
			return nil
		}
	}
	fmt.Printf("no match after %d frames\n%s\n", maxFrames, ser.String())
	return fmt.Errorf("test ROM did not reach %q within %d frames", until, maxFrames)
}

// uint32SliceToBytes views a []uint32 frame buffer as raw bytes for
// checksumming, matching the teacher's byte-oriented CRC32 of its RGBA
// frame buffer closely enough for regression comparisons to stay stable.
func uint32SliceToBytes(px []uint32) []byte {
	out := make([]byte, len(px)*4)
	for i, v := range px {
		o := i * 4
		out[o] = byte(v >> 24)
		out[o+1] = byte(v >> 16)
		out[o+2] = byte(v >> 8)
		out[o+3] = byte(v)
	}
	return out
}

func savePNG(px []uint32, path string) error {
	const w, h = 160, 144
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, v := range px {
		o := i * 4
		img.Pix[o] = byte(v >> 16)
		img.Pix[o+1] = byte(v >> 8)
		img.Pix[o+2] = byte(v)
		img.Pix[o+3] = byte(v >> 24)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

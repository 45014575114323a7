// Package machine aggregates the CPU and address bus into the single
// emulation unit a host drives: load a cartridge, step instructions or
// whole frames, and read back the frame buffer and battery RAM.
package machine

import (
	"log"
	"os"
	"sync/atomic"

	"github.com/GaminRick7/RetroGB/internal/bus"
	"github.com/GaminRick7/RetroGB/internal/cart"
	"github.com/GaminRick7/RetroGB/internal/cpu"
)

// Config holds settings that affect emulation behavior but not its
// correctness, mirroring the teacher's emu.Config shape.
type Config struct {
	Trace       bool // log each instruction (cmd/cpurunner uses this)
	FastForward bool // skip the host pacing delay
	Headless    bool // no FrameSink/Pacer is attached
}

// Buttons mirrors the eight DMG joypad buttons in a host-friendly form.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

// Mask packs Buttons into the active-high bitmask bus.SetJoypadState wants.
func (b Buttons) Mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// FrameSink receives a completed ARGB32 frame from the PPU.
type FrameSink interface {
	PushFrame(pixels []uint32)
}

// InputSource supplies the currently pressed buttons.
type InputSource interface {
	Buttons() Buttons
}

// Pacer throttles the host loop to real time.
type Pacer interface {
	Sleep(ms int)
}

// Control is the small set of atomic flags a host on another goroutine may
// use to pause, fast-forward, or stop a running Machine without locking.
type Control struct {
	paused atomic.Bool
	fast   atomic.Bool
	quit   atomic.Bool
}

func (c *Control) SetPaused(v bool)      { c.paused.Store(v) }
func (c *Control) Paused() bool          { return c.paused.Load() }
func (c *Control) SetFastForward(v bool) { c.fast.Store(v) }
func (c *Control) FastForward() bool     { return c.fast.Load() }
func (c *Control) Quit()                 { c.quit.Store(true) }
func (c *Control) ShouldQuit() bool      { return c.quit.Load() }

// Machine is the single aggregate owning the CPU and bus (which in turn
// owns the cartridge, RAM, timer, DMA, and PPU).
type Machine struct {
	cfg     Config
	cpu     *cpu.CPU
	bus     *bus.Bus
	romPath string
	ctrl    Control
}

// New constructs an empty Machine; LoadCartridge must be called before
// Step/StepFrame/Run.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// LoadCartridge parses rom, wires a fresh bus and CPU around it, and loads
// any existing battery file at romPath+".battery".
func (m *Machine) LoadCartridge(rom []byte, romPath string) error {
	c, err := cart.New(rom)
	if err != nil {
		return err
	}
	m.bus = bus.New(c)
	m.romPath = romPath
	m.bus.PPU().SetFrameCallback(func() {
		if m.bus.Cart().NeedsSave() {
			_ = m.SaveBattery()
		}
	})
	m.cpu = cpu.New(m.bus)
	m.cpu.ResetNoBoot()
	m.loadBattery()
	return nil
}

func (m *Machine) batteryPath() string { return m.romPath + ".battery" }

func (m *Machine) loadBattery() {
	if m.romPath == "" || !m.bus.Cart().Battery() {
		return
	}
	data, err := os.ReadFile(m.batteryPath())
	if err != nil {
		return
	}
	m.bus.Cart().LoadRAM(data)
}

// SaveBattery writes the cartridge's battery-backed RAM to
// romPath+".battery", doing nothing for carts with no battery or when no
// ROM path was given (e.g. the headless test runner).
func (m *Machine) SaveBattery() error {
	if m.bus == nil || m.romPath == "" || !m.bus.Cart().Battery() {
		return nil
	}
	data := m.bus.Cart().SaveRAM()
	if data == nil {
		return nil
	}
	return os.WriteFile(m.batteryPath(), data, 0o644)
}

// Step executes exactly one CPU instruction, logging the registers before
// it when Config.Trace is set.
func (m *Machine) Step() (int, error) {
	if m.cfg.Trace {
		c := m.cpu
		log.Printf("PC=%04X A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t",
			c.PC, c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.SP, c.IME)
	}
	return m.cpu.Step()
}

// StepFrame runs instructions until the PPU completes one more frame.
func (m *Machine) StepFrame() error {
	target := m.bus.PPU().CurrentFrame() + 1
	for m.bus.PPU().CurrentFrame() < target {
		if _, err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run drives the machine frame-by-frame until Control.Quit is called,
// pushing each frame to sink, sampling input before each frame, and
// pacing via pacer unless fast-forward is set. Any of sink/input/pacer
// may be nil.
func (m *Machine) Run(sink FrameSink, input InputSource, pacer Pacer) error {
	for !m.ctrl.ShouldQuit() {
		if m.ctrl.Paused() {
			if pacer != nil {
				pacer.Sleep(16)
			}
			continue
		}
		if input != nil {
			m.bus.SetJoypadState(input.Buttons().Mask())
		}
		if err := m.StepFrame(); err != nil {
			return err
		}
		if sink != nil {
			sink.PushFrame(m.bus.PPU().Framebuffer())
		}
		if pacer != nil && !m.cfg.FastForward && !m.ctrl.FastForward() {
			pacer.Sleep(16)
		}
	}
	return nil
}

// Framebuffer exposes the PPU's current ARGB32 frame buffer.
func (m *Machine) Framebuffer() []uint32 { return m.bus.PPU().Framebuffer() }

// CurrentFrame returns the PPU's completed-frame counter.
func (m *Machine) CurrentFrame() uint64 { return m.bus.PPU().CurrentFrame() }

// Control returns the atomic control word a host goroutine can use to
// pause/resume/fast-forward/quit a running Machine.
func (m *Machine) Control() *Control { return &m.ctrl }

// ROMPath returns the path LoadCartridge was given, or "" if none.
func (m *Machine) ROMPath() string { return m.romPath }

// SetPC overrides the program counter, used by cmd/cpurunner to jump
// straight past a missing boot ROM to a test ROM's entry point.
func (m *Machine) SetPC(pc uint16) { m.cpu.SetPC(pc) }

// SetSerialWriter installs a sink for bytes written out the serial port,
// used by cmd/cpurunner to capture Blargg test-ROM output.
func (m *Machine) SetSerialWriter(w interface{ Write([]byte) (int, error) }) {
	m.bus.SetSerialWriter(w)
}

// Config returns the Config the Machine was constructed with.
func (m *Machine) Config() Config { return m.cfg }

// SetButtons drives the joypad directly, for hosts (like ebitenhost) that
// run their own frame loop instead of calling Run.
func (m *Machine) SetButtons(b Buttons) { m.bus.SetJoypadState(b.Mask()) }

// Bus exposes the underlying address bus for tools that need low-level
// access (cmd/cpurunner pokes post-boot IO register defaults directly).
func (m *Machine) Bus() *bus.Bus { return m.bus }

// CPU exposes the underlying CPU for tools that need register-level access
// (cmd/cpurunner's trace output reads A/F/B/C/.../IME directly).
func (m *Machine) CPU() *cpu.CPU { return m.cpu }

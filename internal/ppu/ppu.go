// Package ppu implements the DMG picture processing unit: the scanline
// state machine (OAM scan -> pixel transfer -> HBlank -> VBlank), the
// background/window pixel fetcher, sprite selection and compositing, and
// the 160x144 ARGB frame buffer consumed by the host.
package ppu

import (
	"github.com/GaminRick7/RetroGB/internal/lcd"
)

const (
	screenWidth  = 160
	screenHeight = 144
	dotsPerLine  = 456
	oamDots      = 80
	totalLines   = 154
)

// InterruptRequester requests an interrupt by its IF bit index (see
// package bits for the canonical bit assignments).
type InterruptRequester func(bit int)

// PPU owns VRAM, OAM, the LCD register block, the pixel pipeline, and the
// frame buffer.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0x00A0]byte // 0xFE00-0xFE9F, 40 entries * 4 bytes

	regs *lcd.Registers

	mode    lcd.Mode
	lineDot int // 0..455, ticks elapsed in the current scanline

	frame [screenWidth * screenHeight]uint32
	currentFrame uint64

	winLine int // internal window line counter, 0..143

	lineSprites []spriteEntry
	spriteLo    []byte
	spriteHi    []byte

	// fetcher/pixel-pipeline state, see fetcher.go
	fetchState   fetchState
	fetchParity  bool
	fetchX       int
	tileIndex    byte
	dataLo, dataHi byte
	windowActive bool
	pushedX      int
	lineX        int
	fifo         pixelFIFO

	req InterruptRequester

	onFrame func() // invoked once per completed frame (pacing/save hooks)
}

// New constructs a PPU. req is called to request VBlank/LCD-STAT
// interrupts; it may be nil in tests that don't care about interrupts.
func New(req InterruptRequester) *PPU {
	p := &PPU{regs: lcd.New(), req: req}
	p.lineSprites = make([]spriteEntry, 0, maxSpritesPerLine)
	p.spriteLo = make([]byte, 0, maxSpritesPerLine)
	p.spriteHi = make([]byte, 0, maxSpritesPerLine)
	p.mode = lcd.ModeOAM
	p.regs.SetMode(lcd.ModeOAM)
	return p
}

// SetFrameCallback installs a hook invoked once per completed frame, used
// by the orchestration layer for pacing and periodic battery saves.
func (p *PPU) SetFrameCallback(fn func()) { p.onFrame = fn }

// Framebuffer returns the current 160x144 ARGB32 frame buffer. The slice is
// owned by the PPU and is only safe to read, never to mutate; the host
// should treat it as read-only and sample CurrentFrame() to know when it
// has changed, per spec.md §5.
func (p *PPU) Framebuffer() []uint32 { return p.frame[:] }

// CurrentFrame returns the count of frames fully rendered so far.
func (p *PPU) CurrentFrame() uint64 { return p.currentFrame }

// requestIF is a nil-safe wrapper around the interrupt callback.
func (p *PPU) requestIF(bit int) {
	if p.req != nil {
		p.req(bit)
	}
}

// --- CPU-facing memory map ---

// CPURead serves VRAM (0x8000-0x9FFF), OAM (0xFE00-0xFE9F), and the 12 LCD
// registers (0xFF40-0xFF4B). VRAM is inaccessible during mode 3 and OAM
// during modes 2/3, both of which read as 0xFF on real hardware.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode == lcd.ModeXFER {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.mode == lcd.ModeOAM || p.mode == lcd.ModeXFER {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	default:
		return p.readReg(addr)
	}
}

// CPUWrite is the write counterpart of CPURead.
func (p *PPU) CPUWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode == lcd.ModeXFER {
			return
		}
		p.vram[addr-0x8000] = v
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.mode == lcd.ModeOAM || p.mode == lcd.ModeXFER {
			return
		}
		p.oam[addr-0xFE00] = v
	default:
		p.writeReg(addr, v)
	}
}

// WriteOAMByte lands a DMA-transferred byte directly into OAM, bypassing
// the CPU-facing mode lock (DMA is the only writer allowed to do this).
func (p *PPU) WriteOAMByte(offset byte, v byte) {
	if int(offset) < len(p.oam) {
		p.oam[offset] = v
	}
}

func (p *PPU) readReg(addr uint16) byte {
	switch addr {
	case 0xFF40:
		return p.regs.LCDC()
	case 0xFF41:
		return p.regs.STAT()
	case 0xFF42:
		return p.regs.SCY()
	case 0xFF43:
		return p.regs.SCX()
	case 0xFF44:
		return p.regs.LY()
	case 0xFF45:
		return p.regs.LYC()
	case 0xFF47:
		return p.regs.BGP()
	case 0xFF48:
		return p.regs.OBP0()
	case 0xFF49:
		return p.regs.OBP1()
	case 0xFF4A:
		return p.regs.WY()
	case 0xFF4B:
		return p.regs.WX()
	default:
		return 0xFF
	}
}

func (p *PPU) writeReg(addr uint16, v byte) {
	switch addr {
	case 0xFF40:
		prev := p.regs.LCDC()
		p.regs.SetLCDC(v)
		if prev&0x80 != 0 && v&0x80 == 0 {
			p.lineDot = 0
			p.regs.SetLY(0)
			p.setMode(lcd.ModeHBlank)
		} else if prev&0x80 == 0 && v&0x80 != 0 {
			p.lineDot = 0
			p.regs.SetLY(0)
			p.setMode(lcd.ModeOAM)
		}
	case 0xFF41:
		p.regs.SetSTATWritable(v)
	case 0xFF42:
		p.regs.SetSCY(v)
	case 0xFF43:
		p.regs.SetSCX(v)
	case 0xFF44:
		// Read-only: writes reset LY per common emulator convention, but
		// since spec.md doesn't define a write side-effect and no game
		// relies on it, treat as read-only (ignore).
	case 0xFF45:
		p.regs.SetLYC(v)
		p.updateLYC()
	case 0xFF47:
		p.regs.SetBGP(v)
	case 0xFF48:
		p.regs.SetOBP0(v)
	case 0xFF49:
		p.regs.SetOBP1(v)
	case 0xFF4A:
		p.regs.SetWY(v)
	case 0xFF4B:
		p.regs.SetWX(v)
	}
}

func (p *PPU) setMode(m lcd.Mode) {
	p.mode = m
	p.regs.SetMode(m)
}

// enterOAM transitions into mode 2 and raises the OAM STAT interrupt when
// enabled, mirroring the HBlank/VBlank/LYC STAT sources below.
func (p *PPU) enterOAM() {
	p.setMode(lcd.ModeOAM)
	if p.regs.OAMIntEnabled() {
		p.requestIF(1)
	}
}

// --- scanline state machine ---

// Tick advances the PPU by the given number of T-cycles.
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		p.tick1()
	}
}

func (p *PPU) tick1() {
	if !p.regs.LCDEnabled() {
		return
	}
	p.lineDot++

	switch p.mode {
	case lcd.ModeOAM:
		if p.lineDot == 1 {
			p.scanOAM()
		}
		if p.lineDot == oamDots {
			p.setMode(lcd.ModeXFER)
			p.resetFetcher()
		}
	case lcd.ModeXFER:
		p.stepPixelPipeline()
		if p.pushedX >= screenWidth {
			p.setMode(lcd.ModeHBlank)
			if p.regs.HBlankIntEnabled() {
				p.requestIF(1)
			}
		}
	case lcd.ModeHBlank:
		if p.lineDot >= dotsPerLine {
			p.lineDot = 0
			p.lyIncrement()
			if p.regs.LY() == screenHeight {
				p.setMode(lcd.ModeVBlank)
				p.requestIF(0)
				if p.regs.VBlankIntEnabled() {
					p.requestIF(1)
				}
			} else {
				p.enterOAM()
			}
		}
	case lcd.ModeVBlank:
		if p.lineDot >= dotsPerLine {
			p.lineDot = 0
			if p.regs.LY() == totalLines-1 {
				p.lyIncrement()
				p.regs.SetLY(0)
				p.winLine = 0
				p.updateLYC()
				p.currentFrame++
				if p.onFrame != nil {
					p.onFrame()
				}
				p.enterOAM()
			} else {
				p.lyIncrement()
			}
		}
	}
}

// windowVisibleThisLine reports whether the window contributes to the
// CURRENT (pre-increment) scanline, used only to decide whether the
// internal window line counter advances (spec.md §4.8's "LY increment
// procedure").
func (p *PPU) windowVisibleThisLine() bool {
	if !p.regs.WinEnabled() {
		return false
	}
	wx := int(p.regs.WX())
	if wx < 0 || wx > 166 {
		return false
	}
	wy := int(p.regs.WY())
	if wy >= screenHeight {
		return false
	}
	ly := int(p.regs.LY())
	return ly >= wy && ly < wy+screenHeight
}

func (p *PPU) lyIncrement() {
	if p.windowVisibleThisLine() {
		p.winLine++
	}
	p.regs.SetLY(p.regs.LY() + 1)
	p.updateLYC()
}

func (p *PPU) updateLYC() {
	if p.regs.LY() == p.regs.LYC() {
		p.regs.SetLYCFlag(true)
		if p.regs.LYCIntEnabled() {
			p.requestIF(1)
		}
	} else {
		p.regs.SetLYCFlag(false)
	}
}

// --- pixel transfer ---

func (p *PPU) stepPixelPipeline() {
	p.stepFetcher()

	if p.fifo.Len() == 0 {
		return
	}
	px, ok := p.fifo.Pop()
	if !ok {
		return
	}
	scx := p.regs.SCX()
	if p.lineX < int(scx&7) && !p.windowActive {
		p.lineX++
		return
	}
	p.lineX++

	color := p.compose(px.colorIndex, p.pushedX)
	ly := int(p.regs.LY())
	p.frame[ly*screenWidth+p.pushedX] = uint32(color)
	p.pushedX++
}

// compose overlays sprite contribution on top of a BG/window color index
// at the given screen column, per spec.md §4.9's sprite-resolution rules.
func (p *PPU) compose(bgIndex byte, screenX int) lcd.Color {
	bgColor := p.regs.BGColor(bgIndex)
	if !p.regs.ObjEnabled() {
		return bgColor
	}
	for i, e := range p.lineSprites {
		dx := screenX - (int(e.x) - 8)
		if dx < 0 || dx > 7 {
			continue
		}
		col := dx
		if e.xFlip() {
			col = 7 - dx
		}
		bit := 7 - uint(col)
		lo := (p.spriteLo[i] >> bit) & 1
		hi := (p.spriteHi[i] >> bit) & 1
		ci := hi<<1 | lo
		if ci == 0 {
			continue
		}
		if e.bgPriority() && bgIndex != 0 {
			continue
		}
		return p.regs.OBColor(e.palette(), ci)
	}
	return bgColor
}

// --- save/load state ---

// SaveState returns a snapshot of VRAM, OAM, registers, and scalar PPU
// state sufficient to resume emulation (but not mid-scanline fetch
// progress, which is not preserved across save points by this core).
func (p *PPU) SaveState() ([0x2000]byte, [0x00A0]byte, [12]byte, byte, int, int, uint64) {
	return p.vram, p.oam, p.regs.SaveState(), byte(p.mode), p.lineDot, p.winLine, p.currentFrame
}

// LoadState restores a snapshot produced by SaveState.
func (p *PPU) LoadState(vram [0x2000]byte, oam [0x00A0]byte, regs [12]byte, mode byte, lineDot, winLine int, frame uint64) {
	p.vram = vram
	p.oam = oam
	p.regs.LoadState(regs)
	p.mode = lcd.Mode(mode)
	p.lineDot = lineDot
	p.winLine = winLine
	p.currentFrame = frame
}

// Registers exposes the LCD register block for host-side diagnostics (e.g.
// palette-aware debug viewers); emulation itself never needs this path.
func (p *PPU) Registers() *lcd.Registers { return p.regs }

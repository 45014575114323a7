// Package lcd models the DMG's 12-byte LCD register block at 0xFF40-0xFF4B:
// LCDC, STAT, SCY, SCX, LY, LYC, DMA, BGP, OBP0, OBP1, WY, WX.
package lcd

// Mode is the STAT mode field (bits 1-0).
type Mode byte

const (
	ModeHBlank Mode = 0
	ModeVBlank Mode = 1
	ModeOAM    Mode = 2
	ModeXFER   Mode = 3
)

// STAT interrupt-source bits.
const (
	statHBlankInt = 1 << 3
	statVBlankInt = 1 << 4
	statOAMInt    = 1 << 5
	statLYCInt    = 1 << 6
	statLYCFlag   = 1 << 2
)

// Color is a host-facing 32-bit ARGB pixel, opaque (alpha = 0xFF).
type Color uint32

// Default DMG 4-shade grey palette, brightest to darkest. Hosts
// that want a different look can recolor after reading the frame buffer;
// the core only needs four distinguishable shades.
var shades = [4]Color{
	0xFFFFFFFF, // white
	0xFFAAAAAA, // light gray
	0xFF555555, // dark gray
	0xFF000000, // black
}

// Registers holds the 12 LCD registers plus derived palette lookup tables.
type Registers struct {
	lcdc byte
	stat byte
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	dma  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	bgColors   [4]Color
	obp0Colors [4]Color
	obp1Colors [4]Color
}

// New constructs LCD registers with BGP/OBP0/OBP1 already unpacked (all
// zero, which maps every index to white until the first palette write).
func New() *Registers {
	r := &Registers{}
	r.recalcBG()
	r.recalcOBP0()
	r.recalcOBP1()
	return r
}

func unpack(v byte, idx int) Color {
	shade := (v >> (uint(idx) * 2)) & 0x03
	return shades[shade]
}

func (r *Registers) recalcBG() {
	for i := 0; i < 4; i++ {
		r.bgColors[i] = unpack(r.bgp, i)
	}
}
func (r *Registers) recalcOBP0() {
	for i := 0; i < 4; i++ {
		r.obp0Colors[i] = unpack(r.obp0, i)
	}
}
func (r *Registers) recalcOBP1() {
	for i := 0; i < 4; i++ {
		r.obp1Colors[i] = unpack(r.obp1, i)
	}
}

// BGColor maps a BG/window 2-bit color index through BGP.
func (r *Registers) BGColor(index byte) Color { return r.bgColors[index&0x03] }

// OBColor maps a sprite 2-bit color index through OBP0 (pal=0) or OBP1
// (pal=1). Index 0 is transparent for sprites and must never reach here.
func (r *Registers) OBColor(pal byte, index byte) Color {
	if pal == 0 {
		return r.obp0Colors[index&0x03]
	}
	return r.obp1Colors[index&0x03]
}

// --- LCDC ---

func (r *Registers) LCDC() byte        { return r.lcdc }
func (r *Registers) LCDEnabled() bool  { return r.lcdc&0x80 != 0 }
func (r *Registers) WinMapArea() uint16 {
	if r.lcdc&0x40 != 0 {
		return 0x9C00
	}
	return 0x9800
}
func (r *Registers) WinEnabled() bool { return r.lcdc&0x20 != 0 }
func (r *Registers) BGWDataArea() uint16 {
	if r.lcdc&0x10 != 0 {
		return 0x8000
	}
	return 0x8800
}
func (r *Registers) BGMapArea() uint16 {
	if r.lcdc&0x08 != 0 {
		return 0x9C00
	}
	return 0x9800
}
func (r *Registers) ObjHeight() int {
	if r.lcdc&0x04 != 0 {
		return 16
	}
	return 8
}
func (r *Registers) ObjEnabled() bool { return r.lcdc&0x02 != 0 }
func (r *Registers) BGEnabled() bool  { return r.lcdc&0x01 != 0 }

// SetLCDC stores LCDC verbatim; the PPU is responsible for reacting to the
// enable-bit transition (resetting LY/dot/mode), since that is a PPU
// state-machine concern, not a register-storage concern.
func (r *Registers) SetLCDC(v byte) { r.lcdc = v }

// --- STAT ---

// STAT returns the FF41 read value; bit 7 always reads as 1 on DMG.
func (r *Registers) STAT() byte { return 0x80 | r.stat }

// SetSTATWritable stores only the host-writable bits of STAT (the
// interrupt-enable bits 6-3); mode and the LYC flag are PPU-owned.
func (r *Registers) SetSTATWritable(v byte) {
	r.stat = (r.stat & 0x07) | (v & 0x78)
}

func (r *Registers) Mode() Mode { return Mode(r.stat & 0x03) }
func (r *Registers) SetMode(m Mode) {
	r.stat = (r.stat &^ 0x03) | byte(m)
}

func (r *Registers) HBlankIntEnabled() bool { return r.stat&statHBlankInt != 0 }
func (r *Registers) VBlankIntEnabled() bool { return r.stat&statVBlankInt != 0 }
func (r *Registers) OAMIntEnabled() bool    { return r.stat&statOAMInt != 0 }
func (r *Registers) LYCIntEnabled() bool    { return r.stat&statLYCInt != 0 }

func (r *Registers) SetLYCFlag(on bool) {
	if on {
		r.stat |= statLYCFlag
	} else {
		r.stat &^= statLYCFlag
	}
}

// --- scroll/line/palette registers ---

func (r *Registers) SCY() byte { return r.scy }
func (r *Registers) SCX() byte { return r.scx }
func (r *Registers) SetSCY(v byte) { r.scy = v }
func (r *Registers) SetSCX(v byte) { r.scx = v }

func (r *Registers) LY() byte     { return r.ly }
func (r *Registers) SetLY(v byte) { r.ly = v }

func (r *Registers) LYC() byte     { return r.lyc }
func (r *Registers) SetLYC(v byte) { r.lyc = v }

func (r *Registers) DMAReg() byte     { return r.dma }
func (r *Registers) SetDMAReg(v byte) { r.dma = v }

func (r *Registers) BGP() byte { return r.bgp }
func (r *Registers) SetBGP(v byte) {
	r.bgp = v
	r.recalcBG()
}
func (r *Registers) OBP0() byte { return r.obp0 }
func (r *Registers) SetOBP0(v byte) {
	r.obp0 = v & 0xFC // bits 1-0 unused (color 0 is always transparent)
	r.recalcOBP0()
}
func (r *Registers) OBP1() byte { return r.obp1 }
func (r *Registers) SetOBP1(v byte) {
	r.obp1 = v & 0xFC
	r.recalcOBP1()
}

func (r *Registers) WY() byte     { return r.wy }
func (r *Registers) SetWY(v byte) { r.wy = v }
func (r *Registers) WX() byte     { return r.wx }
func (r *Registers) SetWX(v byte) { r.wx = v }

// SaveState returns a flat snapshot of all 12 registers.
func (r *Registers) SaveState() [12]byte {
	return [12]byte{r.lcdc, r.stat, r.scy, r.scx, r.ly, r.lyc, r.dma, r.bgp, r.obp0, r.obp1, r.wy, r.wx}
}

// LoadState restores all 12 registers and recomputes palette tables.
func (r *Registers) LoadState(s [12]byte) {
	r.lcdc, r.stat, r.scy, r.scx, r.ly, r.lyc, r.dma, r.bgp, r.obp0, r.obp1, r.wy, r.wx =
		s[0], s[1], s[2], s[3], s[4], s[5], s[6], s[7], s[8], s[9], s[10], s[11]
	r.recalcBG()
	r.recalcOBP0()
	r.recalcOBP1()
}

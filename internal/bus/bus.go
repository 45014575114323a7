// Package bus implements the DMG address space: cartridge ROM/RAM, work
// RAM and its echo mirror, high RAM, the PPU's VRAM/OAM/LCD registers, the
// timer, OAM DMA, joypad, serial port, and the IE/IF interrupt registers.
package bus

import (
	"io"

	"github.com/GaminRick7/RetroGB/internal/bits"
	"github.com/GaminRick7/RetroGB/internal/cart"
	"github.com/GaminRick7/RetroGB/internal/dma"
	"github.com/GaminRick7/RetroGB/internal/ppu"
	"github.com/GaminRick7/RetroGB/internal/ram"
	"github.com/GaminRick7/RetroGB/internal/timer"
)

// Joypad button bitmasks for SetJoypadState; a set bit means "pressed".
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

// Bus wires every memory-mapped component together and implements the
// flat cartridge-facing Read/Write the CPU and DMA see.
type Bus struct {
	cart  cart.Cartridge
	ram   *ram.RAM
	timer *timer.Timer
	dma   *dma.DMA
	ppu   *ppu.PPU

	ie    byte
	ifReg byte

	joypSelect byte
	joypad     byte
	joypLower4 byte

	sb byte
	sc byte
	sw io.Writer // serial output sink, e.g. the Blargg-test-ROM capture buffer

	bootROM     []byte
	bootEnabled bool

	tCycleCount uint64
}

// New wires a Bus around an already-constructed cartridge.
func New(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, ram: ram.New(), timer: timer.New(), dma: dma.New()}
	b.ppu = ppu.New(func(bit int) { b.ifReg = bits.Set(b.ifReg, uint(bit)) })
	return b
}

// PPU exposes the PPU for the host to read the frame buffer.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart exposes the cartridge for battery save/load orchestration.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// SetSerialWriter installs a sink that receives each byte transferred out
// the serial port the moment a transfer completes (spec.md's immediate,
// no-link-cable model).
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM maps a 256-byte DMG boot ROM over 0x0000-0x00FF until a
// non-zero write to 0xFF50 disables the overlay.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// SetJoypadState sets which buttons are currently pressed (Joyp* mask,
// bits set = pressed) and raises the joypad interrupt on any 1->0 edge of
// the selected, active-low nibble.
func (b *Bus) SetJoypadState(mask byte) {
	b.joypad = mask
	b.updateJoypadIRQ()
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr <= 0xDFFF:
		return b.ram.ReadWRAM(addr - 0xC000)
	case addr <= 0xFDFF:
		return b.ram.ReadWRAM(addr - 0x2000 - 0xC000)
	case addr <= 0xFE9F:
		if b.dma.Active() {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr <= 0xFEFF:
		return 0xFF // unusable region
	case addr == 0xFF00:
		return b.readJoyp()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return b.timer.DIV()
	case addr == 0xFF05:
		return b.timer.TIMA()
	case addr == 0xFF06:
		return b.timer.TMA()
	case addr == 0xFF07:
		return b.timer.TAC()
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFF46:
		return b.dma.Register()
	case addr == 0xFF50:
		return 0xFF
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.ram.ReadHRAM(addr - 0xFF80)
	case addr == 0xFFFF:
		return b.ie
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr <= 0xDFFF:
		b.ram.WriteWRAM(addr-0xC000, value)
	case addr <= 0xFDFF:
		b.ram.WriteWRAM(addr-0x2000-0xC000, value)
	case addr <= 0xFE9F:
		if b.dma.Active() {
			return
		}
		b.ppu.CPUWrite(addr, value)
	case addr <= 0xFEFF:
		// unusable region, writes are dropped
	case addr == 0xFF00:
		b.joypSelect = value & 0x30
		b.updateJoypadIRQ()
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc == 0x81 {
			// Blargg test-ROM serial convention: writing 0x81 latches SB
			// out immediately and clears the transfer-start bit.
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.ifReg = bits.Set(b.ifReg, bits.IntSerial)
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		b.timer.ResetDIV(func() { b.ifReg = bits.Set(b.ifReg, bits.IntTimer) })
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
	case addr == 0xFF07:
		b.timer.WriteTAC(value, func() { b.ifReg = bits.Set(b.ifReg, bits.IntTimer) })
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
	case addr == 0xFF46:
		b.dma.Start(value)
	case addr == 0xFF50:
		if value != 0 {
			b.bootEnabled = false
		}
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.ram.WriteHRAM(addr-0xFF80, value)
	case addr == 0xFFFF:
		b.ie = value
	}
}

func (b *Bus) readJoyp() byte {
	res := byte(0xC0 | (b.joypSelect & 0x30) | 0x0F)
	if b.joypSelect&0x10 == 0 {
		if b.joypad&JoypRight != 0 {
			res &^= 0x01
		}
		if b.joypad&JoypLeft != 0 {
			res &^= 0x02
		}
		if b.joypad&JoypUp != 0 {
			res &^= 0x04
		}
		if b.joypad&JoypDown != 0 {
			res &^= 0x08
		}
	}
	if b.joypSelect&0x20 == 0 {
		if b.joypad&JoypA != 0 {
			res &^= 0x01
		}
		if b.joypad&JoypB != 0 {
			res &^= 0x02
		}
		if b.joypad&JoypSelectBtn != 0 {
			res &^= 0x04
		}
		if b.joypad&JoypStart != 0 {
			res &^= 0x08
		}
	}
	return res
}

// updateJoypadIRQ recomputes the selected active-low nibble and raises the
// joypad interrupt on any 1->0 transition, per spec.md §4's joypad model.
func (b *Bus) updateJoypadIRQ() {
	newLower := byte(0x0F)
	if b.joypSelect&0x10 == 0 {
		if b.joypad&JoypRight != 0 {
			newLower &^= 0x01
		}
		if b.joypad&JoypLeft != 0 {
			newLower &^= 0x02
		}
		if b.joypad&JoypUp != 0 {
			newLower &^= 0x04
		}
		if b.joypad&JoypDown != 0 {
			newLower &^= 0x08
		}
	}
	if b.joypSelect&0x20 == 0 {
		if b.joypad&JoypA != 0 {
			newLower &^= 0x01
		}
		if b.joypad&JoypB != 0 {
			newLower &^= 0x02
		}
		if b.joypad&JoypSelectBtn != 0 {
			newLower &^= 0x04
		}
		if b.joypad&JoypStart != 0 {
			newLower &^= 0x08
		}
	}
	if falling := b.joypLower4 &^ newLower; falling != 0 {
		b.ifReg = bits.Set(b.ifReg, bits.IntJoypad)
	}
	b.joypLower4 = newLower
}

// IE returns the interrupt-enable register (0xFFFF).
func (b *Bus) IE() byte { return b.ie }

// IF returns the interrupt-flag register (0xFF0F), unmasked.
func (b *Bus) IF() byte { return b.ifReg }

// SetIF overwrites the interrupt-flag register, used by the CPU when it
// clears the bit for an interrupt it is about to service.
func (b *Bus) SetIF(v byte) { b.ifReg = v & 0x1F }

// RequestInterrupt sets a single IF bit, for components that don't go
// through a narrower callback.
func (b *Bus) RequestInterrupt(bit uint) { b.ifReg = bits.Set(b.ifReg, bit) }

// Tick advances every cycle-driven component by tcycles T-cycles: the timer and
// PPU every T-cycle, and OAM DMA once every four T-cycles (one machine
// cycle), matching spec.md §4's cycle-accounting rules.
func (b *Bus) Tick(tcycles int) {
	for i := 0; i < tcycles; i++ {
		b.timer.Tick(func() { b.ifReg = bits.Set(b.ifReg, bits.IntTimer) })
		b.ppu.Tick(1)
		b.tCycleCount++
		if b.tCycleCount%4 == 0 {
			b.dma.Tick(b, b.ppu)
		}
	}
}

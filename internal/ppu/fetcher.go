package ppu

// fetchState is one stage of the BG/window pixel fetcher (spec.md §4.9).
type fetchState int

const (
	fsTile fetchState = iota
	fsData0
	fsData1
	fsIdle
	fsPush
)

// resetFetcher prepares per-scanline fetch state when XFER begins.
func (p *PPU) resetFetcher() {
	p.fetchState = fsTile
	p.fetchParity = false
	p.fetchX = 0
	p.pushedX = 0
	p.lineX = 0
	p.windowActive = false
	p.fifo.Clear()

	// Sprite row data is stable for the whole scanline; computing it once
	// here avoids redoing VRAM reads per pixel.
	p.spriteLo = p.spriteLo[:0]
	p.spriteHi = p.spriteHi[:0]
	for _, e := range p.lineSprites {
		lo, hi := p.spriteRow(e)
		p.spriteLo = append(p.spriteLo, lo)
		p.spriteHi = append(p.spriteHi, hi)
	}
}

// windowStartX returns the on-screen column the window starts painting at,
// or -1 if the window cannot appear on the current line at all.
func (p *PPU) windowStartX() int {
	if !p.regs.WinEnabled() {
		return -1
	}
	wx := int(p.regs.WX())
	if wx < 0 || wx > 166 {
		return -1
	}
	wy := int(p.regs.WY())
	ly := int(p.regs.LY())
	if wy >= 144 || ly < wy {
		return -1
	}
	return wx - 7
}

// stepFetcher advances the fetcher by one T-cycle. The fetcher itself only
// advances stage on alternating T-cycles (spec.md §4.9), tracked by
// fetchParity.
func (p *PPU) stepFetcher() {
	p.fetchParity = !p.fetchParity
	if !p.fetchParity {
		return
	}

	switch p.fetchState {
	case fsTile:
		if start := p.windowStartX(); !p.windowActive && start >= 0 && p.pushedX >= start {
			p.windowActive = true
			p.fetchX = p.pushedX - start
			p.fifo.Clear()
		}

		if p.windowActive {
			mapBase := p.regs.WinMapArea()
			mapX := uint16(p.fetchX) / 8
			mapY := uint16(p.winLine) / 8
			addr := mapBase + mapY*32 + (mapX & 31)
			p.tileIndex = p.vram[addr-0x8000]
		} else {
			mapBase := p.regs.BGMapArea()
			mapX := (uint16(p.fetchX) + uint16(p.regs.SCX())) / 8
			mapY := (uint16(p.regs.LY()) + uint16(p.regs.SCY())) / 8
			addr := mapBase + (mapY&31)*32 + (mapX & 31)
			p.tileIndex = p.vram[addr-0x8000]
		}
		p.fetchX += 8
		p.fetchState = fsData0

	case fsData0:
		p.dataLo = p.fetchTileByte(0)
		p.fetchState = fsData1

	case fsData1:
		p.dataHi = p.fetchTileByte(1)
		p.fetchState = fsIdle

	case fsIdle:
		p.fetchState = fsPush

	case fsPush:
		var group [8]bgPixel
		for bit := 0; bit < 8; bit++ {
			shift := 7 - uint(bit)
			lo := (p.dataLo >> shift) & 1
			hi := (p.dataHi >> shift) & 1
			ci := hi<<1 | lo
			if !p.regs.BGEnabled() {
				ci = 0
			}
			group[bit] = bgPixel{colorIndex: ci}
		}
		if p.fifo.TryPush8(group) {
			p.fetchState = fsTile
		}
		// else: stay in PUSH and retry next eligible tick.
	}
}

// fetchTileByte reads the low (half=0) or high (half=1) bitplane byte of
// the tile row currently being fetched, honoring the BG/window data area
// addressing mode (signed when 0x8800).
func (p *PPU) fetchTileByte(half int) byte {
	var fineY uint16
	if p.windowActive {
		fineY = uint16(p.winLine) & 7
	} else {
		fineY = (uint16(p.regs.LY()) + uint16(p.regs.SCY())) & 7
	}

	dataArea := p.regs.BGWDataArea()
	var base uint16
	if dataArea == 0x8000 {
		base = 0x8000 + uint16(p.tileIndex)*16
	} else {
		base = 0x9000 + uint16(int8(p.tileIndex))*16
	}
	addr := base + fineY*2 + uint16(half)
	return p.vram[addr-0x8000]
}

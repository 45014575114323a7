package ppu

// maxSpritesPerLine is the hardware OAM-scan limit (spec.md §3 invariant).
const maxSpritesPerLine = 10

// spriteEntry is a decoded 4-byte OAM record plus its original OAM index
// (needed for the secondary X-tie sort key).
type spriteEntry struct {
	y, x, tile, attr byte
	oamIndex         int
}

func (s spriteEntry) yFlip() bool     { return s.attr&0x40 != 0 }
func (s spriteEntry) xFlip() bool     { return s.attr&0x20 != 0 }
func (s spriteEntry) bgPriority() bool { return s.attr&0x80 != 0 }
func (s spriteEntry) palette() byte {
	if s.attr&0x10 != 0 {
		return 1
	}
	return 0
}

// scanOAM selects up to maxSpritesPerLine sprites whose Y range contains
// ly+16, sorted ascending by X then OAM index (spec.md §3/§4.8).
func (p *PPU) scanOAM() {
	p.lineSprites = p.lineSprites[:0]
	height := p.regs.ObjHeight()
	ly := int(p.regs.LY())

	for i := 0; i < 40 && len(p.lineSprites) < maxSpritesPerLine; i++ {
		base := i * 4
		y := p.oam[base]
		rowInSprite := ly + 16 - int(y)
		if rowInSprite < 0 || rowInSprite >= height {
			continue
		}
		e := spriteEntry{y: y, x: p.oam[base+1], tile: p.oam[base+2], attr: p.oam[base+3], oamIndex: i}
		p.insertSorted(e)
	}
}

// insertSorted inserts e keeping p.lineSprites ascending by (X, oamIndex);
// O(n^2) with n<=10 is the accepted tradeoff per spec.md §9.
func (p *PPU) insertSorted(e spriteEntry) {
	p.lineSprites = append(p.lineSprites, e)
	for i := len(p.lineSprites) - 1; i > 0; i-- {
		a, b := p.lineSprites[i-1], p.lineSprites[i]
		if a.x < b.x || (a.x == b.x && a.oamIndex < b.oamIndex) {
			break
		}
		p.lineSprites[i-1], p.lineSprites[i] = b, a
	}
}

// spriteRow returns the 2bpp low/high tile-row bytes for sprite e at the
// current scanline, honoring Y-flip and (for 8x16 sprites) which half-tile
// the row falls in.
func (p *PPU) spriteRow(e spriteEntry) (lo, hi byte) {
	height := p.regs.ObjHeight()
	ly := int(p.regs.LY())
	row := ly + 16 - int(e.y)
	if e.yFlip() {
		row = height - 1 - row
	}
	tile := e.tile
	if height == 16 {
		tile &^= 0x01
		if row >= 8 {
			tile |= 0x01
			row -= 8
		}
	}
	base := uint16(tile)*16 + uint16(row)*2
	return p.vram[base], p.vram[base+1]
}

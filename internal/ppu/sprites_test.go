package ppu

import "testing"

func setOAMEntry(p *PPU, index int, y, x, tile, attr byte) {
	base := index * 4
	p.oam[base] = y
	p.oam[base+1] = x
	p.oam[base+2] = tile
	p.oam[base+3] = attr
}

func TestScanOAM_SelectsOnlySpritesOverlappingLine(t *testing.T) {
	p := New(nil)
	p.Registers().SetLCDC(0x91) // 8x8 sprites
	p.Registers().SetLY(50)
	setOAMEntry(p, 0, 66, 10, 0, 0) // y=66 means sprite top at screen row 50, overlaps LY=50
	setOAMEntry(p, 1, 200, 20, 0, 0) // far off-screen, never overlaps

	p.scanOAM()

	if len(p.lineSprites) != 1 {
		t.Fatalf("lineSprites len = %d, want 1", len(p.lineSprites))
	}
	if p.lineSprites[0].x != 10 {
		t.Fatalf("selected sprite x = %d, want 10", p.lineSprites[0].x)
	}
}

func TestScanOAM_CapsAtTenSpritesPerLine(t *testing.T) {
	p := New(nil)
	p.Registers().SetLCDC(0x91)
	p.Registers().SetLY(50)
	for i := 0; i < 15; i++ {
		setOAMEntry(p, i, 66, byte(i), 0, 0)
	}
	p.scanOAM()
	if len(p.lineSprites) != maxSpritesPerLine {
		t.Fatalf("lineSprites len = %d, want %d (hardware cap)", len(p.lineSprites), maxSpritesPerLine)
	}
}

func TestScanOAM_SortsByXThenOAMIndex(t *testing.T) {
	p := New(nil)
	p.Registers().SetLCDC(0x91)
	p.Registers().SetLY(50)
	setOAMEntry(p, 0, 66, 30, 0, 0)
	setOAMEntry(p, 1, 66, 10, 0, 0)
	setOAMEntry(p, 2, 66, 10, 0, 0) // tie on X with entry 1; entry 1 has the lower OAM index

	p.scanOAM()

	if p.lineSprites[0].x != 10 || p.lineSprites[0].oamIndex != 1 {
		t.Fatalf("first sprite = %+v, want x=10 oamIndex=1", p.lineSprites[0])
	}
	if p.lineSprites[1].x != 10 || p.lineSprites[1].oamIndex != 2 {
		t.Fatalf("second sprite = %+v, want x=10 oamIndex=2", p.lineSprites[1])
	}
	if p.lineSprites[2].x != 30 {
		t.Fatalf("third sprite x = %d, want 30", p.lineSprites[2].x)
	}
}

func TestSpriteRow_YFlipReversesRowWithinTile(t *testing.T) {
	p := New(nil)
	p.Registers().SetLCDC(0x91) // 8x8 sprites
	p.Registers().SetLY(10)
	e := spriteEntry{y: 26, x: 0, tile: 2, attr: 0x40} // y-flip set, row = 10+16-26 = 0 -> flipped to 7
	p.vram[2*16+7*2] = 0xAA
	p.vram[2*16+7*2+1] = 0x55

	lo, hi := p.spriteRow(e)
	if lo != 0xAA || hi != 0x55 {
		t.Fatalf("spriteRow() = (%02X,%02X), want (AA,55) for the y-flipped row", lo, hi)
	}
}

func TestSpriteRow_TallSpriteSelectsCorrectHalfTile(t *testing.T) {
	p := New(nil)
	p.Registers().SetLCDC(0x95) // bit2 set -> 8x16 sprites
	p.Registers().SetLY(24)
	e := spriteEntry{y: 32, x: 0, tile: 0x05, attr: 0} // row = 24+16-32 = 8 -> bottom half-tile (tile|1)
	p.vram[uint16(0x05|0x01)*16+0] = 0x3C
	p.vram[uint16(0x05|0x01)*16+1] = 0xC3

	lo, hi := p.spriteRow(e)
	if lo != 0x3C || hi != 0xC3 {
		t.Fatalf("spriteRow() = (%02X,%02X), want (3C,C3) for the bottom half-tile", lo, hi)
	}
}

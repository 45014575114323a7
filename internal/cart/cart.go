// Package cart implements the cartridge/MBC layer: ROM-only cartridges,
// MBC1 banking, and battery-backed RAM persistence.
package cart

import "errors"

// ErrBadHeader is an exported sentinel for header errors. Nothing in this
// package returns it: ParseHeader and New report a ROM too short to parse
// as ErrRomTooSmall.
var ErrBadHeader = errors.New("cart: invalid rom header")

// Cartridge is the minimal interface the bus needs for ROM/RAM banking.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM
	// (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external RAM
	// writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)

	// Battery reports whether this cartridge has battery-backed RAM that
	// should be persisted.
	Battery() bool
	// NeedsSave reports whether RAM has been dirtied since the last save.
	NeedsSave() bool
	// SaveRAM returns a flat concatenation of all allocated RAM banks in
	// index order, for writing to the battery file. Clears the dirty bit.
	SaveRAM() []byte
	// LoadRAM restores RAM banks from a battery file's contents.
	LoadRAM(data []byte)

	// Header returns the parsed ROM header.
	Header() *Header
}

// New picks a Cartridge implementation based on the ROM header's cart-type
// byte. Per spec.md's explicit Non-goals, MBC2/MBC3/MBC5 and other uncommon
// mappers are not implemented; such ROMs fall back to ROM-only so that at
// least the fixed bank is usable.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	switch h.CartType {
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h), nil
	default:
		return NewROMOnly(rom, h), nil
	}
}

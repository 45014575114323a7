package cart

// MBC1 implements the MBC1 mapper (cart types 0x01-0x03): 5-bit primary ROM
// bank register, 2-bit secondary register (either the upper ROM bank bits
// or a RAM bank number depending on the banking-mode select), RAM enable,
// and — for types 0x02/0x03 — external RAM, with 0x03 additionally battery
// backed.
type MBC1 struct {
	rom []byte
	ram []byte

	header *Header

	ramEnabled bool
	primary    byte // low 5 bits of the ROM bank number; 0 is remapped to 1
	secondary  byte // 2-bit: upper ROM bank bits (mode 0) or RAM bank (mode 1)
	mode       byte // 0: ROM banking, 1: RAM banking

	battery  bool
	needSave bool
}

// NewMBC1 constructs an MBC1 cartridge, allocating external RAM per the
// header's RAM-size code. Battery backing is inferred from the cart-type
// byte (0x03 is "MBC1+RAM+BATTERY").
func NewMBC1(rom []byte, h *Header) *MBC1 {
	m := &MBC1{rom: rom, header: h, primary: 1, battery: h.CartType == 0x03}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	return m
}

// effectiveROMBank computes the bank selecting the 0x4000-0x7FFF window,
// combining the secondary register's upper bits with the primary register
// regardless of banking mode (mode only changes the 0x0000-0x3FFF window
// and the RAM bank).
func (m *MBC1) effectiveROMBank() int {
	return int(m.secondary&0x03)<<5 | int(m.primary&0x1F)
}

// lowBankWindow computes the bank mapped into 0x0000-0x3FFF: fixed bank 0
// in ROM-banking mode, or the secondary register's bits (as a multiple of
// 0x20 banks) in RAM-banking mode — this is the large-ROM behavior the
// teacher only partially implemented (see DESIGN.md).
func (m *MBC1) lowBankWindow() int {
	if m.mode == 0 {
		return 0
	}
	return int(m.secondary&0x03) << 5
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		bank := m.lowBankWindow()
		off := bank*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		bank := m.effectiveROMBank()
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) ramOffset(addr uint16) int {
	bank := 0
	if m.mode == 1 {
		bank = int(m.secondary & 0x03)
	}
	return bank*0x2000 + int(addr-0xA000)
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		// Disabling RAM is one of the natural save points for
		// battery-backed carts. The cart layer has no file handle of its
		// own, so it cannot persist anything here; needSave is left set
		// (not cleared) so the host's VBlank autosave hook — or an
		// explicit save on exit — is the thing that actually writes it
		// to disk.
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.primary = value & 0x1F
		if m.primary == 0 {
			m.primary = 1
		}
	case addr < 0x6000:
		m.secondary = value & 0x03
	case addr < 0x8000:
		m.mode = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
			if m.battery {
				m.needSave = true
			}
		}
	}
}

func (m *MBC1) Battery() bool   { return m.battery }
func (m *MBC1) NeedsSave() bool { return m.battery && m.needSave }

// SaveRAM returns a flat copy of all RAM banks in index order and clears
// the dirty bit. Returns nil when there is no RAM to persist.
func (m *MBC1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	m.needSave = false
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

// LoadRAM restores RAM bank contents from a previously saved battery file,
// copying as many bytes as fit.
func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	n := len(data)
	if n > len(m.ram) {
		n = len(m.ram)
	}
	copy(m.ram, data[:n])
}

func (m *MBC1) Header() *Header { return m.header }

package register

import (
	"fmt"
	"strings"
)

// Bank identifies one of the four register collections of the device.
type Bank string

// Bank constants. The string values are the names used in snapshots,
// API paths and the register map.
const (
	Coils            Bank = "coils"
	DiscreteInputs   Bank = "discrete_inputs"
	HoldingRegisters Bank = "holding_registers"
	InputRegisters   Bank = "input_registers"
)

// Word value bounds accepted by Set on word banks. Negative values are
// stored as their 16-bit two's-complement representation.
const (
	MinWordValue = -32768
	MaxWordValue = 65535
)

// AllBanks returns the four banks in canonical order.
func AllBanks() []Bank {
	return []Bank{Coils, DiscreteInputs, HoldingRegisters, InputRegisters}
}

// bankAliases maps the singular request forms onto their bank.
var bankAliases = map[string]Bank{
	"coil":             Coils,
	"discrete_input":   DiscreteInputs,
	"holding_register": HoldingRegisters,
	"input_register":   InputRegisters,
}

// ParseBank resolves a bank from its canonical name or its singular form
// ("coil", "holding_register", ...). Matching is case-insensitive.
func ParseBank(s string) (Bank, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	b := Bank(name)
	if b.Valid() {
		return b, nil
	}
	if alias, ok := bankAliases[name]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBank, s)
}

// Valid reports whether b is one of the four banks.
func (b Bank) Valid() bool {
	switch b {
	case Coils, DiscreteInputs, HoldingRegisters, InputRegisters:
		return true
	}
	return false
}

// IsBoolean reports whether the bank holds single-bit values.
func (b Bank) IsBoolean() bool {
	return b == Coils || b == DiscreteInputs
}

// String returns the canonical bank name.
func (b Bank) String() string {
	return string(b)
}

// encode converts a caller-supplied value into the stored word for bank b.
//
// Boolean banks coerce any non-zero value to 1. Word banks accept the
// union of the signed and unsigned 16-bit ranges; negative values are
// re-encoded as 65536+v so that -1 is stored as 0xFFFF.
func encode(b Bank, value int) (uint16, error) {
	if b.IsBoolean() {
		if value != 0 {
			return 1, nil
		}
		return 0, nil
	}
	if value < MinWordValue || value > MaxWordValue {
		return 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidValue, value, MinWordValue, MaxWordValue)
	}
	if value < 0 {
		value += 1 << 16
	}
	return uint16(value), nil
}

// bank is a fixed-length array of words. It performs bounds checks only;
// locking is the owning Image's job.
type bank struct {
	kind  Bank
	cells []uint16
}

func newBank(kind Bank, size int) *bank {
	return &bank{kind: kind, cells: make([]uint16, size)}
}

func (b *bank) read(addr int) (uint16, error) {
	if addr < 0 || addr >= len(b.cells) {
		return 0, fmt.Errorf("%w: %s[%d], size %d", ErrOutOfRange, b.kind, addr, len(b.cells))
	}
	return b.cells[addr], nil
}

func (b *bank) write(addr int, word uint16) error {
	if addr < 0 || addr >= len(b.cells) {
		return fmt.Errorf("%w: %s[%d], size %d", ErrOutOfRange, b.kind, addr, len(b.cells))
	}
	b.cells[addr] = word
	return nil
}

package register

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseScale(t *testing.T) {
	tests := []struct {
		text    string
		raw     uint16
		want    float64
		wantErr bool
	}{
		{"0.1", 1200, 120, false},
		{"0.01", 10000, 100, false},
		{"0.001", 970, 0.97, false},
		{"1", 3600, 3600, false},
		{"1/4", 10, 2.5, false},
		{"ten", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s, err := ParseScale(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCatalog) {
					t.Fatalf("ParseScale(%q) error = %v, want ErrInvalidCatalog", tt.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScale(%q) error = %v", tt.text, err)
			}
			if got := s.Apply(tt.raw); got != tt.want {
				t.Errorf("Apply(%d) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestScale_ZeroValueIsOne(t *testing.T) {
	var s Scale
	if got := s.Apply(42); got != 42 {
		t.Errorf("zero Scale Apply(42) = %v, want 42", got)
	}
	if got := s.String(); got != "1" {
		t.Errorf("zero Scale String() = %q, want %q", got, "1")
	}
}

func TestParseCatalog(t *testing.T) {
	doc := `
input_registers:
  - address: 20
    name: I_L1
    description: Phase L1 Current
    unit: A
    scale: 0.01
    default: 10000
  - address: 0
    name: V_L1_N
    description: Phase L1-N Voltage
    unit: V
    scale: 0.1
    default: 1200
coil:
  - address: 3
    name: CMD_LOCKOUT_RESET
    description: Lockout Reset Command
    default: 0
`
	c, err := ParseCatalog([]byte(doc))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	entry, ok := c.Lookup(InputRegisters, 0)
	if !ok {
		t.Fatal("Lookup(input_registers, 0) not found")
	}
	if entry.Name != "V_L1_N" || entry.Unit != "V" || entry.Default != 1200 {
		t.Errorf("entry = %+v", entry)
	}
	if got := entry.Scale.Apply(1200); got != 120 {
		t.Errorf("scale Apply(1200) = %v, want 120", got)
	}

	if _, ok := c.Lookup(InputRegisters, 1); ok {
		t.Error("Lookup(input_registers, 1) found an entry for an uncatalogued address")
	}

	if _, ok := c.LookupName(Coils, "CMD_LOCKOUT_RESET"); !ok {
		t.Error("LookupName(coils, CMD_LOCKOUT_RESET) not found")
	}

	defaults := c.DefaultsFor(InputRegisters)
	if len(defaults) != 2 || defaults[0].Address != 0 || defaults[1].Address != 20 {
		t.Errorf("DefaultsFor(input_registers) = %+v, want address order 0, 20", defaults)
	}

	if got := c.MaxAddress(); got != 20 {
		t.Errorf("MaxAddress() = %d, want 20", got)
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown bank", "widgets:\n  - address: 0\n    name: X\n    default: 0\n"},
		{"duplicate address", "coils:\n  - {address: 1, name: A, default: 0}\n  - {address: 1, name: B, default: 0}\n"},
		{"duplicate name", "coils:\n  - {address: 1, name: A, default: 0}\n  - {address: 2, name: A, default: 0}\n"},
		{"negative address", "coils:\n  - {address: -1, name: A, default: 0}\n"},
		{"default out of range", "holding_registers:\n  - {address: 0, name: A, default: 70000}\n"},
		{"bad scale", "input_registers:\n  - {address: 0, name: A, scale: fast, default: 0}\n"},
		{"not yaml", "coils: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("ParseCatalog() error = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader("coils:\n  - {address: 7, name: CMD_DS_89B_OPEN, default: 0}\n"))
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if got := c.Len(Coils); got != 1 {
		t.Errorf("Len(coils) = %d, want 1", got)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	for _, b := range AllBanks() {
		if c.Len(b) == 0 {
			t.Errorf("default catalog has no %s entries", b)
		}
	}

	freq, ok := c.LookupName(InputRegisters, "FREQ")
	if !ok {
		t.Fatal("FREQ not in default catalog")
	}
	if freq.Address != 70 || freq.Default != 6000 {
		t.Errorf("FREQ = %+v, want address 70 default 6000", freq)
	}
	if got := freq.Scale.Apply(uint16(freq.Default)); got != 60 {
		t.Errorf("FREQ scaled default = %v, want 60", got)
	}

	if got := c.MaxAddress(); got >= DefaultSize {
		t.Errorf("MaxAddress() = %d, does not fit in %d registers", got, DefaultSize)
	}
}

func TestScale_JSON(t *testing.T) {
	for _, in := range []string{`0.1`, `"0.01"`, `"1/3"`, `10`} {
		var s Scale
		if err := json.Unmarshal([]byte(in), &s); err != nil {
			t.Fatalf("Unmarshal(%s): %v", in, err)
		}
		if s.Float64() == 0 {
			t.Errorf("Unmarshal(%s) gave a zero scale", in)
		}
	}

	out, err := json.Marshal(MustScale("0.1"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != "0.1" {
		t.Errorf("Marshal = %s, want 0.1", out)
	}

	var bad Scale
	if err := json.Unmarshal([]byte(`"abc"`), &bad); !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("Unmarshal(abc) error = %v, want ErrInvalidCatalog", err)
	}
}

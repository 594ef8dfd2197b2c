package register

import (
	_ "embed"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// maxScaleTerm bounds numerator and denominator of a scale so raw*num
// cannot overflow int64.
const maxScaleTerm = 1 << 40

// Scale is an exact rational multiplier from raw register value to
// engineering units. The zero value means 1.
type Scale struct {
	num int64
	den int64
}

// ParseScale parses a decimal or fractional scale such as "0.1", "1" or "1/3".
func ParseScale(text string) (Scale, error) {
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return Scale{}, fmt.Errorf("%w: scale %q is not a number", ErrInvalidCatalog, text)
	}
	num, den := r.Num(), r.Denom()
	if !num.IsInt64() || !den.IsInt64() ||
		abs64(num.Int64()) > maxScaleTerm || den.Int64() > maxScaleTerm {
		return Scale{}, fmt.Errorf("%w: scale %q out of range", ErrInvalidCatalog, text)
	}
	return Scale{num: num.Int64(), den: den.Int64()}, nil
}

// MustScale is ParseScale for literals; it panics on error.
func MustScale(text string) Scale {
	s, err := ParseScale(text)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Scale) terms() (int64, int64) {
	if s.den == 0 {
		return 1, 1
	}
	return s.num, s.den
}

// Apply returns raw*scale. The product is formed on integers and divided
// once, so 1200 at scale 0.1 yields exactly 120.
func (s Scale) Apply(raw uint16) float64 {
	num, den := s.terms()
	return float64(int64(raw)*num) / float64(den)
}

// Float64 returns the scale as a float.
func (s Scale) Float64() float64 {
	num, den := s.terms()
	return float64(num) / float64(den)
}

func (s Scale) String() string {
	return strconv.FormatFloat(s.Float64(), 'f', -1, 64)
}

// UnmarshalYAML parses the scalar text exactly rather than going through float64.
func (s *Scale) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseScale(node.Value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON writes the scale as a JSON number.
func (s Scale) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted scale such as "1/3".
func (s *Scale) UnmarshalJSON(data []byte) error {
	parsed, err := ParseScale(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Entry describes one catalogued register.
type Entry struct {
	Address     int    `yaml:"address" json:"address"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Unit        string `yaml:"unit,omitempty" json:"unit,omitempty"`
	Scale       Scale  `yaml:"scale,omitempty" json:"scale"`
	Default     int    `yaml:"default" json:"default"`
}

// Default is an (address, default value) pair.
type Default struct {
	Address int
	Value   int
}

// Catalog maps (bank, address) to register metadata. It is immutable once
// built and safe for concurrent use.
type Catalog struct {
	entries map[Bank][]Entry
	byAddr  map[Bank]map[int]int
	byName  map[Bank]map[string]int
}

// NewCatalog builds a catalog from per-bank entries. Addresses and names
// must be unique within a bank.
func NewCatalog(entries map[Bank][]Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[Bank][]Entry, len(entries)),
		byAddr:  make(map[Bank]map[int]int, len(entries)),
		byName:  make(map[Bank]map[string]int, len(entries)),
	}

	for b, list := range entries {
		if !b.Valid() {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidCatalog, ErrUnknownBank, string(b))
		}

		sorted := make([]Entry, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

		addrs := make(map[int]int, len(sorted))
		names := make(map[string]int, len(sorted))
		for i, e := range sorted {
			if e.Address < 0 {
				return nil, fmt.Errorf("%w: %s address %d is negative", ErrInvalidCatalog, b, e.Address)
			}
			if _, dup := addrs[e.Address]; dup {
				return nil, fmt.Errorf("%w: %s address %d listed twice", ErrInvalidCatalog, b, e.Address)
			}
			if e.Name != "" {
				if _, dup := names[e.Name]; dup {
					return nil, fmt.Errorf("%w: %s name %q listed twice", ErrInvalidCatalog, b, e.Name)
				}
				names[e.Name] = i
			}
			if _, err := encode(b, e.Default); err != nil {
				return nil, fmt.Errorf("%w: %s[%d] default: %w", ErrInvalidCatalog, b, e.Address, err)
			}
			addrs[e.Address] = i
		}

		c.entries[b] = sorted
		c.byAddr[b] = addrs
		c.byName[b] = names
	}

	return c, nil
}

// ParseCatalog decodes a YAML document keyed by bank name.
//
//	input_registers:
//	  - address: 0
//	    name: V_L1_N
//	    description: Phase L1-N Voltage
//	    unit: V
//	    scale: 0.1
//	    default: 1200
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw map[string][]Entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	entries := make(map[Bank][]Entry, len(raw))
	for name, list := range raw {
		b, err := ParseBank(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
		}
		entries[b] = append(entries[b], list...)
	}
	return NewCatalog(entries)
}

// LoadCatalog reads and parses a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in power-industry register map.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// EmptyCatalog returns a catalog with no entries.
func EmptyCatalog() *Catalog {
	c, _ := NewCatalog(nil) //nolint:errcheck // nil input cannot fail
	return c
}

// Lookup returns the entry for (b, addr), if any.
func (c *Catalog) Lookup(b Bank, addr int) (Entry, bool) {
	i, ok := c.byAddr[b][addr]
	if !ok {
		return Entry{}, false
	}
	return c.entries[b][i], true
}

// LookupName returns the entry with the given symbolic name in bank b.
func (c *Catalog) LookupName(b Bank, name string) (Entry, bool) {
	i, ok := c.byName[b][name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[b][i], true
}

// DefaultsFor returns the (address, default) pairs of bank b in address order.
func (c *Catalog) DefaultsFor(b Bank) []Default {
	list := c.entries[b]
	out := make([]Default, len(list))
	for i, e := range list {
		out[i] = Default{Address: e.Address, Value: e.Default}
	}
	return out
}

// Entries returns a copy of bank b's entries in address order.
func (c *Catalog) Entries(b Bank) []Entry {
	list := c.entries[b]
	out := make([]Entry, len(list))
	copy(out, list)
	return out
}

// Len returns the number of entries in bank b.
func (c *Catalog) Len(b Bank) int {
	return len(c.entries[b])
}

// MaxAddress returns the highest catalogued address across all banks, or -1.
func (c *Catalog) MaxAddress() int {
	highest := -1
	for _, list := range c.entries {
		if n := len(list); n > 0 && list[n-1].Address > highest {
			highest = list[n-1].Address
		}
	}
	return highest
}

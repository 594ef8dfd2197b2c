package register

import (
	"fmt"
	"sync"
	"time"
)

// DefaultSize is the number of addresses per bank when none is configured.
const DefaultSize = 500

// Logger defines the logging interface used by the Image.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is called with every recorded change, after the image lock is
// released. Observers must not block.
type Observer func(Change)

// Options configures a new Image.
type Options struct {
	// Size is the address-space width of every bank. Zero means DefaultSize.
	Size int

	// Catalog supplies names, scales and defaults. Nil means no metadata.
	Catalog *Catalog

	// ChangeLogCapacity bounds the change history. Zero means
	// DefaultChangeLogCapacity.
	ChangeLogCapacity int
}

// Image is the live process image shared by the Modbus adapter and the
// inspection API. Every mutation goes through Set so that encoding and
// change tracking are uniform.
//
// Thread Safety: all methods are safe for concurrent use. A single mutex
// guards the four banks and the change log append; bulk operations take it
// once per address.
type Image struct {
	mu      sync.Mutex
	banks   map[Bank]*bank // fixed at construction
	size    int
	catalog *Catalog
	changes *ChangeLog

	obsMu     sync.RWMutex
	observers []Observer

	now    func() time.Time
	logger Logger
}

// New builds an Image and loads the catalog defaults into it. Loading the
// defaults does not produce change log entries.
//
// Returns an error wrapping ErrInvalidCatalog when a catalogued address does
// not fit in the configured size.
func New(opts Options) (*Image, error) {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	if size > 1<<16 {
		return nil, fmt.Errorf("register: size %d exceeds the 16-bit address space", size)
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = EmptyCatalog()
	}
	if highest := catalog.MaxAddress(); highest >= size {
		return nil, fmt.Errorf("%w: address %d does not fit in %d registers", ErrInvalidCatalog, highest, size)
	}

	img := &Image{
		banks:   make(map[Bank]*bank, 4),
		size:    size,
		catalog: catalog,
		changes: NewChangeLog(opts.ChangeLogCapacity),
		now:     time.Now,
		logger:  noopLogger{},
	}
	for _, b := range AllBanks() {
		img.banks[b] = newBank(b, size)
		for _, d := range catalog.DefaultsFor(b) {
			word, _ := encode(b, d.Value) //nolint:errcheck // validated by NewCatalog
			img.banks[b].cells[d.Address] = word
		}
	}
	return img, nil
}

// SetLogger sets the logger for the image.
func (img *Image) SetLogger(logger Logger) {
	img.logger = logger
}

// Subscribe registers fn to receive every change recorded from now on.
func (img *Image) Subscribe(fn Observer) {
	img.obsMu.Lock()
	defer img.obsMu.Unlock()
	img.observers = append(img.observers, fn)
}

// Size returns the number of addresses per bank.
func (img *Image) Size() int {
	return img.size
}

// Catalog returns the metadata catalog.
func (img *Image) Catalog() *Catalog {
	return img.catalog
}

// Get returns the stored word at (b, addr): 0 or 1 for boolean banks,
// 0 to 65535 for word banks.
func (img *Image) Get(b Bank, addr int) (uint16, error) {
	bk, ok := img.banks[b]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBank, string(b))
	}

	img.mu.Lock()
	defer img.mu.Unlock()
	return bk.read(addr)
}

// Set stores value at (b, addr) and records the change.
//
// Boolean banks coerce value to 0 or 1. Word banks accept [-32768, 65535]
// and store negatives as 65536+value; anything else fails ErrInvalidValue.
// On any error the bank is left untouched and nothing is recorded.
func (img *Image) Set(b Bank, addr int, value int) error {
	bk, ok := img.banks[b]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBank, string(b))
	}

	img.mu.Lock()
	old, err := bk.read(addr)
	if err != nil {
		img.mu.Unlock()
		return err
	}
	word, err := encode(b, value)
	if err != nil {
		img.mu.Unlock()
		return fmt.Errorf("%s[%d]: %w", b, addr, err)
	}
	if err := bk.write(addr, word); err != nil {
		img.mu.Unlock()
		return err
	}

	change := Change{
		Timestamp: img.now(),
		Bank:      b,
		Address:   addr,
		OldValue:  old,
		NewValue:  word,
	}
	if entry, ok := img.catalog.Lookup(b, addr); ok && entry.Name != "" {
		name := entry.Name
		change.Name = &name
	}
	img.changes.Record(change)
	img.mu.Unlock()

	img.notify(change)
	return nil
}

func (img *Image) notify(c Change) {
	img.obsMu.RLock()
	defer img.obsMu.RUnlock()
	for _, fn := range img.observers {
		fn(c)
	}
}

// Coil returns the coil at addr.
func (img *Image) Coil(addr int) (uint16, error) { return img.Get(Coils, addr) }

// SetCoil sets the coil at addr.
func (img *Image) SetCoil(addr, value int) error { return img.Set(Coils, addr, value) }

// DiscreteInput returns the discrete input at addr.
func (img *Image) DiscreteInput(addr int) (uint16, error) { return img.Get(DiscreteInputs, addr) }

// SetDiscreteInput sets the discrete input at addr.
func (img *Image) SetDiscreteInput(addr, value int) error {
	return img.Set(DiscreteInputs, addr, value)
}

// HoldingRegister returns the holding register at addr.
func (img *Image) HoldingRegister(addr int) (uint16, error) { return img.Get(HoldingRegisters, addr) }

// SetHoldingRegister sets the holding register at addr.
func (img *Image) SetHoldingRegister(addr, value int) error {
	return img.Set(HoldingRegisters, addr, value)
}

// InputRegister returns the input register at addr.
func (img *Image) InputRegister(addr int) (uint16, error) { return img.Get(InputRegisters, addr) }

// SetInputRegister sets the input register at addr.
func (img *Image) SetInputRegister(addr, value int) error {
	return img.Set(InputRegisters, addr, value)
}

// Values returns a copy of every word in bank b, taken under one lock.
func (img *Image) Values(b Bank) ([]uint16, error) {
	bk, ok := img.banks[b]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBank, string(b))
	}

	img.mu.Lock()
	defer img.mu.Unlock()
	out := make([]uint16, len(bk.cells))
	copy(out, bk.cells)
	return out, nil
}

// ResetToDefaults sets every catalogued address back to its default through
// Set, so each write is recorded. Concurrent writers may interleave between
// addresses. The first failure stops the reset; earlier writes stay.
func (img *Image) ResetToDefaults() error {
	count := 0
	for _, b := range AllBanks() {
		for _, d := range img.catalog.DefaultsFor(b) {
			if err := img.Set(b, d.Address, d.Value); err != nil {
				return fmt.Errorf("resetting %s[%d]: %w", b, d.Address, err)
			}
			count++
		}
	}
	img.logger.Info("registers reset to defaults", "count", count)
	return nil
}

// ScaledValue returns the stored word times the catalog scale. The second
// result is false when the address has no catalog entry or is invalid.
func (img *Image) ScaledValue(b Bank, addr int) (float64, bool) {
	entry, ok := img.catalog.Lookup(b, addr)
	if !ok {
		return 0, false
	}
	raw, err := img.Get(b, addr)
	if err != nil {
		return 0, false
	}
	return entry.Scale.Apply(raw), true
}

// RecentChanges returns the last k changes, newest last.
func (img *Image) RecentChanges(k int) []Change {
	return img.changes.Recent(k)
}

// ClearChanges empties the change log.
func (img *Image) ClearChanges() {
	img.changes.Clear()
}

// Stats holds image counters for status reporting.
type Stats struct {
	Size              int          `json:"size"`
	CatalogEntries    map[Bank]int `json:"catalog_entries"`
	ChangeLogLength   int          `json:"change_log_length"`
	ChangeLogCapacity int          `json:"change_log_capacity"`
	TotalChanges      uint64       `json:"total_changes"`
}

// Stats returns current counters.
func (img *Image) Stats() Stats {
	entries := make(map[Bank]int, 4)
	for _, b := range AllBanks() {
		entries[b] = img.catalog.Len(b)
	}
	return Stats{
		Size:              img.size,
		CatalogEntries:    entries,
		ChangeLogLength:   img.changes.Len(),
		ChangeLogCapacity: img.changes.Cap(),
		TotalChanges:      img.changes.Total(),
	}
}

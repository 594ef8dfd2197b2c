package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iedsim/internal/register"
)

// Logger defines the logging interface used by the Engine.
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

// ModbusConfig describes the Modbus endpoint at export time. It is
// informational and ignored on import.
type ModbusConfig struct {
	UnitID int    `json:"address" msgpack:"address"`
	Host   string `json:"ip" msgpack:"ip"`
	Port   int    `json:"port" msgpack:"port"`
}

// Snapshot is a serialisable copy of the process image and the custom
// variables.
//
// A nil CustomVariables map means "absent": import leaves the variables
// alone. CurrentValues may be sparse; missing banks and addresses are not
// touched on import.
type Snapshot struct {
	ID              string                        `json:"id,omitempty" msgpack:"id,omitempty"`
	Timestamp       time.Time                     `json:"timestamp" msgpack:"timestamp"`
	Modbus          *ModbusConfig                 `json:"modbus_config,omitempty" msgpack:"modbus_config,omitempty"`
	CustomVariables map[string]any                `json:"custom_variables" msgpack:"custom_variables"`
	CurrentValues   map[register.Bank]map[int]int `json:"current_values,omitempty" msgpack:"current_values,omitempty"`
}

// VariableStore is the part of the custom variable store the engine needs.
type VariableStore interface {
	GetAll() map[string]any
	Replace(ctx context.Context, vars map[string]any)
}

// Engine exports and imports snapshots of one process image.
type Engine struct {
	image  *register.Image
	vars   VariableStore
	modbus ModbusConfig
	now    func() time.Time
	logger Logger
}

// NewEngine creates an engine over img and vars. modbus is copied into
// every export.
func NewEngine(img *register.Image, vars VariableStore, modbus ModbusConfig) *Engine {
	return &Engine{
		image:  img,
		vars:   vars,
		modbus: modbus,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Export captures every address of every bank plus the custom variables.
// Each bank is copied under one lock; banks are not captured atomically
// with respect to each other.
func (e *Engine) Export() *Snapshot {
	modbus := e.modbus
	snap := &Snapshot{
		ID:              uuid.NewString(),
		Timestamp:       e.now(),
		Modbus:          &modbus,
		CustomVariables: e.vars.GetAll(),
		CurrentValues:   make(map[register.Bank]map[int]int, 4),
	}
	if snap.CustomVariables == nil {
		snap.CustomVariables = map[string]any{}
	}

	for _, b := range register.AllBanks() {
		words, err := e.image.Values(b)
		if err != nil {
			continue
		}
		values := make(map[int]int, len(words))
		for addr, w := range words {
			values[addr] = int(w)
		}
		snap.CurrentValues[b] = values
	}
	return snap
}

// Import applies snap: custom variables first (when present), then each
// bank in enum order with addresses ascending, every value through
// Image.Set so that each write is change-tracked.
//
// The first rejected entry aborts the import with ErrInvalidSnapshot naming
// the bank and address. Earlier writes are not rolled back.
func (e *Engine) Import(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidSnapshot)
	}
	for b := range snap.CurrentValues {
		if !b.Valid() {
			return fmt.Errorf("%w: %w: %q", ErrInvalidSnapshot, register.ErrUnknownBank, string(b))
		}
	}

	if snap.CustomVariables != nil {
		e.vars.Replace(ctx, snap.CustomVariables)
	}

	applied := 0
	for _, b := range register.AllBanks() {
		values, ok := snap.CurrentValues[b]
		if !ok {
			continue
		}
		addrs := make([]int, 0, len(values))
		for addr := range values {
			addrs = append(addrs, addr)
		}
		sort.Ints(addrs)

		for _, addr := range addrs {
			if err := e.image.Set(b, addr, values[addr]); err != nil {
				e.logger.Warn("snapshot import stopped",
					"bank", b, "address", addr, "applied", applied, "error", err)
				return fmt.Errorf("%w: %s[%d]: %w", ErrInvalidSnapshot, b, addr, err)
			}
			applied++
		}
	}

	e.logger.Info("snapshot imported",
		"id", snap.ID,
		"registers", applied,
		"custom_variables", snap.CustomVariables != nil,
	)
	return nil
}

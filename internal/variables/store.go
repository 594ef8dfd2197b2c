package variables

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the Store.
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

// Persister loads and saves the complete variable mapping.
type Persister interface {
	// Load returns the stored mapping. A store that has never been written
	// returns an empty mapping and no error.
	Load(ctx context.Context) (map[string]any, error)

	// Save replaces the stored mapping with vars.
	Save(ctx context.Context, vars map[string]any) error
}

// Store is the in-memory custom variable mapping backed by a Persister.
type Store struct {
	mu   sync.RWMutex
	vars map[string]any

	saveMu    sync.Mutex // serialises persister writes
	persister Persister
	logger    Logger

	saves        atomic.Uint64
	saveFailures atomic.Uint64
}

// NewStore creates an empty store. A nil persister keeps variables in
// memory only.
func NewStore(p Persister) *Store {
	return &Store{
		vars:      make(map[string]any),
		persister: p,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load replaces the in-memory mapping with the persisted one. Any load
// failure is logged and leaves the store empty.
func (s *Store) Load(ctx context.Context) {
	if s.persister == nil {
		return
	}

	vars, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("loading custom variables failed, starting empty", "error", err)
		vars = nil
	}

	s.mu.Lock()
	s.vars = deepCopyMap(vars)
	if s.vars == nil {
		s.vars = make(map[string]any)
	}
	n := len(s.vars)
	s.mu.Unlock()

	s.logger.Info("custom variables loaded", "count", n)
}

// GetAll returns a deep copy of the whole mapping.
func (s *Store) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopyMap(s.vars)
}

// Get returns a deep copy of one variable's configuration.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	if !ok {
		return nil, false
	}
	return deepCopyValue(v), true
}

// Names returns the variable names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}

// Set inserts or replaces a variable and persists the mapping.
// Returns ErrInvalidName for an empty name. A persistence failure does not
// fail the call.
func (s *Store) Set(ctx context.Context, name string, config any) error {
	if name == "" {
		return ErrInvalidName
	}

	s.mu.Lock()
	s.vars[name] = deepCopyValue(config)
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// Delete removes a variable and persists the mapping.
// Returns ErrNotFound, with the store unchanged, if name is absent.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	if _, ok := s.vars[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.vars, name)
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// Replace swaps in a whole new mapping and persists it.
func (s *Store) Replace(ctx context.Context, vars map[string]any) {
	cpy := deepCopyMap(vars)
	if cpy == nil {
		cpy = make(map[string]any)
	}

	s.mu.Lock()
	s.vars = cpy
	s.mu.Unlock()

	s.persist(ctx)
}

// persist writes the current mapping. The copy is taken under saveMu so
// that concurrent saves land in mutation order.
func (s *Store) persist(ctx context.Context) {
	if s.persister == nil {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	vars := s.GetAll()
	if err := s.persister.Save(ctx, vars); err != nil {
		s.saveFailures.Add(1)
		s.logger.Warn("custom variables not persisted",
			"error", fmt.Errorf("%w: %w", ErrPersistence, err),
			"count", len(vars),
		)
		return
	}
	s.saves.Add(1)
}

// Stats holds store counters for status reporting.
type Stats struct {
	Variables    int    `json:"variables"`
	Persistent   bool   `json:"persistent"`
	Saves        uint64 `json:"saves"`
	SaveFailures uint64 `json:"save_failures"`
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	return Stats{
		Variables:    s.Len(),
		Persistent:   s.persister != nil,
		Saves:        s.saves.Load(),
		SaveFailures: s.saveFailures.Load(),
	}
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

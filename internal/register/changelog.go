package register

import (
	"sync"
	"time"
)

// Change log sizing used when callers pass zero.
const (
	DefaultChangeLogCapacity = 100
	DefaultRecentChanges     = 50
)

// Change records one successful Set.
type Change struct {
	Timestamp time.Time `json:"timestamp"`
	Bank      Bank      `json:"type"`
	Address   int       `json:"address"`
	Name      *string   `json:"name"` // nil when the address is not catalogued
	OldValue  uint16    `json:"old_value"`
	NewValue  uint16    `json:"new_value"`
}

// ChangeLog is a fixed-capacity ring of changes. When full, the oldest
// entry is overwritten.
//
// Thread Safety: all methods are safe for concurrent use. The lock is held
// only for the copy in or out of the ring.
type ChangeLog struct {
	mu    sync.Mutex
	buf   []Change
	start int // index of the oldest entry
	n     int
	total uint64
}

// NewChangeLog creates an empty log holding at most capacity entries.
func NewChangeLog(capacity int) *ChangeLog {
	if capacity <= 0 {
		capacity = DefaultChangeLogCapacity
	}
	return &ChangeLog{buf: make([]Change, capacity)}
}

// Record appends c, evicting the oldest entry when the log is full.
func (l *ChangeLog) Record(c Change) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if l.n < len(l.buf) {
		l.buf[(l.start+l.n)%len(l.buf)] = c
		l.n++
		return
	}
	l.buf[l.start] = c
	l.start = (l.start + 1) % len(l.buf)
}

// Recent returns the last k entries, oldest first and newest last.
// A k of zero or less, or larger than the log, returns everything held.
func (l *ChangeLog) Recent(k int) []Change {
	l.mu.Lock()
	defer l.mu.Unlock()

	if k <= 0 || k > l.n {
		k = l.n
	}
	out := make([]Change, k)
	first := l.start + l.n - k
	for i := range k {
		out[i] = l.buf[(first+i)%len(l.buf)]
	}
	return out
}

// Clear drops all held entries. The running total is kept.
func (l *ChangeLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.buf)
	l.start = 0
	l.n = 0
}

// Len returns the number of entries held.
func (l *ChangeLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Cap returns the log capacity.
func (l *ChangeLog) Cap() int {
	return len(l.buf)
}

// Total returns the number of changes ever recorded, including evicted ones.
func (l *ChangeLog) Total() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

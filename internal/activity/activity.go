package activity

import (
	"sync"
	"time"
)

// Interface names recorded with each request.
const (
	InterfaceAPI    = "api"
	InterfaceModbus = "modbus"
)

// Sizing used when callers pass zero.
const (
	DefaultCapacity     = 100
	DefaultReportRecent = 10
)

// Connection is one inbound request as seen by either interface.
type Connection struct {
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
	Interface string    `json:"interface"`
}

// Tracker keeps a bounded list of recent requests and running counters for
// the system status view.
//
// Thread Safety: all methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	ring    []Connection
	next    int
	n       int
	total   uint64
	byIface map[string]uint64
	last    time.Time

	started time.Time
	running map[string]bool

	now func() time.Time
}

// NewTracker returns a Tracker holding at most capacity requests.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		ring:    make([]Connection, capacity),
		byIface: make(map[string]uint64),
		running: make(map[string]bool),
		started: time.Now(),
		now:     time.Now,
	}
}

// Record notes one request from addr on iface.
func (t *Tracker) Record(addr, iface string) {
	ts := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.next] = Connection{Address: addr, Timestamp: ts, Interface: iface}
	t.next = (t.next + 1) % len(t.ring)
	if t.n < len(t.ring) {
		t.n++
	}
	t.total++
	t.byIface[iface]++
	t.last = ts
}

// SetRunning flags whether an interface's listener is up.
func (t *Tracker) SetRunning(iface string, running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[iface] = running
}

// Running reports the flag set by SetRunning.
func (t *Tracker) Running(iface string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running[iface]
}

// Recent returns up to k requests, oldest first. k <= 0 returns everything
// held.
func (t *Tracker) Recent(k int) []Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recentLocked(k)
}

func (t *Tracker) recentLocked(k int) []Connection {
	if k <= 0 || k > t.n {
		k = t.n
	}
	out := make([]Connection, k)
	first := t.next - k
	if first < 0 {
		first += len(t.ring)
	}
	for i := range k {
		out[i] = t.ring[(first+i)%len(t.ring)]
	}
	return out
}

// Stats is the system section of the status report.
type Stats struct {
	UptimeSeconds       float64           `json:"uptime_seconds"`
	TotalRequests       uint64            `json:"total_requests"`
	RequestsByInterface map[string]uint64 `json:"requests_by_interface"`
	RecentConnections   []Connection      `json:"recent_connections"`
	LastRequest         *time.Time        `json:"last_request"`
	ModbusRunning       bool              `json:"modbus_running"`
	APIRunning          bool              `json:"api_running"`
}

// Stats returns a consistent copy of the counters with the last
// DefaultReportRecent requests.
func (t *Tracker) Stats() Stats {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	byIface := make(map[string]uint64, len(t.byIface))
	for k, v := range t.byIface {
		byIface[k] = v
	}

	s := Stats{
		UptimeSeconds:       now.Sub(t.started).Seconds(),
		TotalRequests:       t.total,
		RequestsByInterface: byIface,
		RecentConnections:   t.recentLocked(DefaultReportRecent),
		ModbusRunning:       t.running[InterfaceModbus],
		APIRunning:          t.running[InterfaceAPI],
	}
	if !t.last.IsZero() {
		last := t.last
		s.LastRequest = &last
	}
	return s
}

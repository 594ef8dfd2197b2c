package api

import (
	"net/http"
	"runtime"
	"time"

	mqttbridge "github.com/nerrad567/iedsim/internal/bridges/mqtt"
	"github.com/nerrad567/iedsim/internal/changefeed"
	"github.com/nerrad567/iedsim/internal/modbus"
	"github.com/nerrad567/iedsim/internal/register"
	"github.com/nerrad567/iedsim/internal/variables"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string              `json:"timestamp"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Runtime       RuntimeMetrics      `json:"runtime"`
	WebSocket     HubStats            `json:"websocket"`
	Registers     register.Stats      `json:"registers"`
	Variables     variables.Stats     `json:"variables"`
	Modbus        *modbus.Stats       `json:"modbus,omitempty"`
	ChangeFeed    *changefeed.Stats   `json:"change_feed,omitempty"`
	MQTT          *mqttbridge.Metrics `json:"mqtt,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// handleMetrics returns runtime, image, store and feed counters.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: s.hub.Stats(),
		Registers: s.image.Stats(),
		Variables: s.vars.Stats(),
	}

	if s.modbusStats != nil {
		stats := s.modbusStats.Stats()
		metrics.Modbus = &stats
	}
	if s.feed != nil {
		stats := s.feed.Stats()
		metrics.ChangeFeed = &stats
	}
	if s.mqtt != nil {
		m := s.mqtt.GetMetrics()
		metrics.MQTT = &m
	}

	writeJSON(w, http.StatusOK, metrics)
}

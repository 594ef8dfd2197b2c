package changefeed

import (
	"context"

	"github.com/nerrad567/iedsim/internal/infrastructure/influxdb"
	"github.com/nerrad567/iedsim/internal/register"
)

// WebSocket channel and event type used for register changes.
const (
	ChannelRegisterChanges = "register.changes"
	EventRegisterChanged   = "register.changed"
)

// Broadcaster is the subset of the WebSocket hub the feed needs.
type Broadcaster interface {
	Broadcast(channel, eventType string, payload any)
}

// BroadcastSink pushes every change to WebSocket subscribers of
// ChannelRegisterChanges.
type BroadcastSink struct {
	hub Broadcaster
}

// NewBroadcastSink wraps hub.
func NewBroadcastSink(hub Broadcaster) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

// Name implements Sink.
func (s *BroadcastSink) Name() string { return "websocket" }

// HandleChange implements Sink.
func (s *BroadcastSink) HandleChange(_ context.Context, c register.Change) error {
	s.hub.Broadcast(ChannelRegisterChanges, EventRegisterChanged, c)
	return nil
}

// ChangeWriter is the subset of the InfluxDB client the feed needs.
type ChangeWriter interface {
	WriteRegisterChange(rc influxdb.RegisterChange)
}

// InfluxSink records every change as a register_change point. Scaled values
// are added for catalogued registers whose scale is not 1.
type InfluxSink struct {
	writer   ChangeWriter
	catalog  *register.Catalog
	deviceID string
}

// NewInfluxSink creates a sink tagging points with deviceID.
func NewInfluxSink(w ChangeWriter, catalog *register.Catalog, deviceID string) *InfluxSink {
	if catalog == nil {
		catalog = register.EmptyCatalog()
	}
	return &InfluxSink{writer: w, catalog: catalog, deviceID: deviceID}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// HandleChange implements Sink. Writes are buffered by the client, so this
// never blocks on the network.
func (s *InfluxSink) HandleChange(_ context.Context, c register.Change) error {
	rc := influxdb.RegisterChange{
		DeviceID: s.deviceID,
		Bank:     c.Bank.String(),
		Address:  c.Address,
		OldValue: c.OldValue,
		NewValue: c.NewValue,
		Time:     c.Timestamp,
	}
	if c.Name != nil {
		rc.Name = *c.Name
	}
	if entry, ok := s.catalog.Lookup(c.Bank, c.Address); ok && entry.Scale.Float64() != 1 {
		scaled := entry.Scale.Apply(c.NewValue)
		rc.Scaled = &scaled
	}
	s.writer.WriteRegisterChange(rc)
	return nil
}

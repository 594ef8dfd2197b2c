package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementRegisterChange is the measurement every register change is
// written to.
const MeasurementRegisterChange = "register_change"

// RegisterChange is one register write as stored in InfluxDB.
type RegisterChange struct {
	DeviceID string
	Bank     string
	Address  int
	Name     string // empty when the address is not catalogued
	OldValue uint16
	NewValue uint16
	Scaled   *float64 // nil when the register has no scale
	Time     time.Time
}

// WriteRegisterChange queues a register_change point. Dropped silently when
// the client is not connected.
func (c *Client) WriteRegisterChange(rc RegisterChange) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(registerChangePoint(rc))
}

// registerChangePoint maps a change onto tags device_id, bank, address and
// name, and integer fields old_value and new_value plus a float
// scaled_value when present.
func registerChangePoint(rc RegisterChange) *write.Point {
	tags := map[string]string{
		"device_id": rc.DeviceID,
		"bank":      rc.Bank,
		"address":   strconv.Itoa(rc.Address),
	}
	if rc.Name != "" {
		tags["name"] = rc.Name
	}

	fields := map[string]any{
		"old_value": int64(rc.OldValue),
		"new_value": int64(rc.NewValue),
	}
	if rc.Scaled != nil {
		fields["scaled_value"] = *rc.Scaled
	}

	ts := rc.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementRegisterChange, tags, fields, ts)
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "no telemetry", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled")

	// ErrConnectionFailed wraps ping and health failures at Connect.
	ErrConnectionFailed = errors.New("influxdb: cannot reach server")

	// ErrNotConnected is reported by HealthCheck on a closed or zero Client.
	ErrNotConnected = errors.New("influxdb: no open connection")

	// ErrWriteFailed wraps batch errors delivered to the OnError callback.
	ErrWriteFailed = errors.New("influxdb: batch write rejected")
)

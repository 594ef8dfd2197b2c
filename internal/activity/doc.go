// Package activity tracks inbound requests on the Modbus and HTTP
// interfaces for the system status report: a bounded list of recent
// connections, per-interface counters, uptime and listener flags.
package activity

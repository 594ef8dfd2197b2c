// Package api serves the simulator's HTTP inspection API and the WebSocket
// change stream.
//
// Routes live under /api: register reads and writes (by bank and address,
// or the legacy get_register/set_* forms), category and register-map views,
// the change log, custom variables, configuration export/import and reset.
// /ws upgrades to a WebSocket; clients subscribe to the register.changes
// channel and receive a register.changed event per write.
//
// The server holds no register state of its own. Every handler goes through
// the shared register.Image, so writes made here are visible to Modbus
// clients and vice versa.
package api

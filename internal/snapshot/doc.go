// Package snapshot exports and restores the simulator state: every
// register value plus the custom variables, in JSON or MessagePack.
//
// The JSON layout keeps the field names the engineering tools already use:
//
//	{
//	  "timestamp": "2026-03-01T12:00:00Z",
//	  "modbus_config": {"address": 254, "ip": "0.0.0.0", "port": 5002},
//	  "custom_variables": {"feeder": "F-12"},
//	  "current_values": {
//	    "coils": {"0": 1, "1": 0},
//	    "holding_registers": {"70": 6000}
//	  }
//	}
//
// Imports may be partial. Values are applied one at a time through the
// process image, so a rejected entry leaves the earlier ones in place.
package snapshot

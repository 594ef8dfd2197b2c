// Package mqtt provides the MQTT client used to mirror the simulated
// device onto a broker.
//
// This package manages:
//   - Connection with auto-reconnect and exponential backoff
//   - Publishing with QoS validation and payload limits
//   - Wildcard subscriptions restored after reconnect
//   - A retained status topic with Last Will and Testament
//
// # Topics
//
//	iedsim/{device_id}/status                    online / offline (retained)
//	iedsim/{device_id}/changes/{bank}/{address}  one message per register change
//	iedsim/{device_id}/set/{bank}/{address}      inbound value injection
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Change("holding_registers", 70)
//	err = client.PublishJSON(topic, change)
package mqtt

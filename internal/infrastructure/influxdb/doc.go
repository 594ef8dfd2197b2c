// Package influxdb records register changes as InfluxDB v2 time series.
//
// It wraps the official influxdb-client-go v2 library: connect with a ping,
// then write through the non-blocking batched write API.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteRegisterChange(influxdb.RegisterChange{
//	    DeviceID: "ied-001",
//	    Bank:     "input_registers",
//	    Address:  40,
//	    Name:     "FREQUENCY",
//	    NewValue: 5000,
//	})
//
// Batch failures are reported asynchronously through SetOnError. Batching
// follows the batch_size and flush_interval settings.
package influxdb

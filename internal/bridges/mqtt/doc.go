// Package mqttbridge connects the process image to MQTT.
//
// Outbound, the Bridge is a change feed sink: each register change is
// published as JSON on
//
//	{prefix}/{device_id}/changes/{bank}/{address}
//
// Inbound, it subscribes to
//
//	{prefix}/{device_id}/set/{bank}/{address}
//
// and writes the payload value into the image, so test rigs can drive
// field inputs (discrete inputs, input registers) without a Modbus master.
// Accepted payloads are {"value": 1200}, a bare 1200, true and false.
package mqttbridge

package mqttbridge

import "errors"

var (
	// ErrInvalidTopic is returned for a set message on a topic that does not
	// name a bank and address of this device.
	ErrInvalidTopic = errors.New("mqttbridge: invalid set topic")

	// ErrInvalidPayload is returned when a set payload carries no integer value.
	ErrInvalidPayload = errors.New("mqttbridge: invalid set payload")
)

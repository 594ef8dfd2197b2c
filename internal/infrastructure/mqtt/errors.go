package mqtt

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	ErrNotConnected      = errors.New("mqtt: broker connection is down")
	ErrConnectionFailed  = errors.New("mqtt: cannot reach broker")
	ErrPublishFailed     = errors.New("mqtt: publish not acknowledged")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe not acknowledged")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe not acknowledged")
	ErrInvalidQoS        = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic      = errors.New("mqtt: empty topic")
)

package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is the root of every simulator topic.
const DefaultTopicPrefix = "iedsim"

// Topics builds the MQTT topics of one simulated device:
//
//	{prefix}/{device_id}/status                    retained online/offline
//	{prefix}/{device_id}/changes/{bank}/{address}  register change events
//	{prefix}/{device_id}/set/{bank}/{address}      inbound value injection
//
// Using these helpers keeps topic naming consistent between publisher and
// subscriber.
type Topics struct {
	Prefix   string
	DeviceID string
}

// NewTopics returns a builder for deviceID under prefix. An empty prefix
// means DefaultTopicPrefix.
func NewTopics(prefix, deviceID string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: strings.TrimSuffix(prefix, "/"), DeviceID: deviceID}
}

func (t Topics) base() string {
	return t.Prefix + "/" + t.DeviceID
}

// Status returns the retained device status topic.
//
// Example: iedsim/ied-001/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Change returns the topic a register change is published on.
//
// Example: iedsim/ied-001/changes/holding_registers/70
func (t Topics) Change(bank string, address int) string {
	return fmt.Sprintf("%s/changes/%s/%d", t.base(), bank, address)
}

// AllChanges returns a wildcard matching every change of the device.
func (t Topics) AllChanges() string {
	return t.base() + "/changes/#"
}

// Set returns the topic that injects a value into one register.
//
// Example: iedsim/ied-001/set/discrete_inputs/0
func (t Topics) Set(bank string, address int) string {
	return fmt.Sprintf("%s/set/%s/%d", t.base(), bank, address)
}

// AllSets returns a wildcard matching every set topic of the device.
func (t Topics) AllSets() string {
	return t.base() + "/set/+/+"
}

// ParseSet extracts bank and address from a set topic. The bank string is
// returned as received; callers validate it.
func (t Topics) ParseSet(topic string) (bank string, address int, ok bool) {
	rest, found := strings.CutPrefix(topic, t.base()+"/set/")
	if !found {
		return "", 0, false
	}
	bank, addr, found := strings.Cut(rest, "/")
	if !found || bank == "" || strings.Contains(addr, "/") {
		return "", 0, false
	}
	address, err := strconv.Atoi(addr)
	if err != nil || address < 0 {
		return "", 0, false
	}
	return bank, address, true
}

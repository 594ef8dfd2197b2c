package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/iedsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/iedsim/internal/register"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockMQTT struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	published    []published
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, payload, qos, retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// deliver simulates an inbound message on a subscribed wildcard.
func (m *mockMQTT) deliver(t *testing.T, sub, topic string, payload string) error {
	t.Helper()
	m.mu.Lock()
	h, ok := m.handlers[sub]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler for %q", sub)
	}
	return h(topic, []byte(payload))
}

func newTestBridge(t *testing.T) (*Bridge, *mockMQTT, *register.Image) {
	t.Helper()
	img, err := register.New(register.Options{Size: 20})
	if err != nil {
		t.Fatalf("register.New() error = %v", err)
	}
	client := newMockMQTT()
	b, err := NewBridge(Options{
		Client: client,
		Image:  img,
		Topics: mqtt.NewTopics("iedsim", "ied-001"),
		QoS:    1,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return b, client, img
}

func TestNewBridge_Validation(t *testing.T) {
	img, _ := register.New(register.Options{Size: 1})
	topics := mqtt.NewTopics("", "ied-001")

	tests := []struct {
		name string
		opts Options
	}{
		{"no client", Options{Image: img, Topics: topics}},
		{"no image", Options{Client: newMockMQTT(), Topics: topics}},
		{"no device", Options{Client: newMockMQTT(), Image: img}},
		{"bad qos", Options{Client: newMockMQTT(), Image: img, Topics: topics, QoS: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() succeeded, want error")
			}
		})
	}
}

func TestBridge_HandleChange(t *testing.T) {
	b, client, img := newTestBridge(t)
	var got register.Change
	img.Subscribe(func(c register.Change) { got = c })

	if err := img.SetInputRegister(4, 1200); err != nil {
		t.Fatalf("SetInputRegister() error = %v", err)
	}
	if err := b.HandleChange(context.Background(), got); err != nil {
		t.Fatalf("HandleChange() error = %v", err)
	}

	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	msg := client.published[0]
	if msg.topic != "iedsim/ied-001/changes/input_registers/4" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos=%d retained=%v, want 1/false", msg.qos, msg.retained)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.payload, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["type"] != "input_registers" || body["new_value"] != float64(1200) || body["name"] != nil {
		t.Errorf("payload = %v", body)
	}

	client.publishErr = mqtt.ErrNotConnected
	if err := b.HandleChange(context.Background(), got); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("HandleChange() = %v, want ErrNotConnected", err)
	}

	m := b.GetMetrics()
	if m.Published != 1 || m.PublishErrors != 1 || !m.Connected {
		t.Errorf("GetMetrics() = %+v", m)
	}
}

func TestBridge_SetTopics(t *testing.T) {
	b, client, img := newTestBridge(t)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub := "iedsim/ied-001/set/+/+"

	tests := []struct {
		name    string
		topic   string
		payload string
		bank    register.Bank
		addr    int
		want    uint16
		wantErr error
	}{
		{"object payload", "iedsim/ied-001/set/input_registers/3", `{"value": 1200}`, register.InputRegisters, 3, 1200, nil},
		{"bare negative", "iedsim/ied-001/set/holding_register/2", ` -1 `, register.HoldingRegisters, 2, 0xFFFF, nil},
		{"bool", "iedsim/ied-001/set/discrete_inputs/0", `true`, register.DiscreteInputs, 0, 1, nil},
		{"nonzero coil", "iedsim/ied-001/set/coil/1", `7`, register.Coils, 1, 1, nil},
		{"unknown bank", "iedsim/ied-001/set/widgets/1", `1`, "", 0, 0, register.ErrUnknownBank},
		{"out of range", "iedsim/ied-001/set/coils/20", `1`, "", 0, 0, register.ErrOutOfRange},
		{"bad value", "iedsim/ied-001/set/holding_registers/1", `70000`, "", 0, 0, register.ErrInvalidValue},
		{"float", "iedsim/ied-001/set/holding_registers/1", `1.5`, "", 0, 0, ErrInvalidPayload},
		{"missing value", "iedsim/ied-001/set/holding_registers/1", `{"v": 1}`, "", 0, 0, ErrInvalidPayload},
		{"other device", "iedsim/ied-002/set/coils/1", `1`, "", 0, 0, ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.deliver(t, sub, tt.topic, tt.payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("handler error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("handler error = %v", err)
			}
			got, err := img.Get(tt.bank, tt.addr)
			if err != nil || got != tt.want {
				t.Errorf("Get(%s, %d) = %d, %v; want %d", tt.bank, tt.addr, got, err, tt.want)
			}
		})
	}

	m := b.GetMetrics()
	if m.SetsApplied != 4 || m.SetsRejected != 6 {
		t.Errorf("GetMetrics() = %+v", m)
	}

	b.Stop()
	b.Stop()
	if len(client.unsubscribed) != 1 || client.unsubscribed[0] != sub {
		t.Errorf("unsubscribed = %v, want [%s]", client.unsubscribed, sub)
	}
}

func TestParseSetPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    int
		wantErr bool
	}{
		{`5`, 5, false},
		{`{"value":-32768}`, -32768, false},
		{`false`, 0, false},
		{`{"value":true}`, 1, false},
		{``, 0, true},
		{`"5"`, 0, true},
		{`{`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := parseSetPayload([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSetPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseSetPayload() = %d, want %d", got, tt.want)
			}
		})
	}
}

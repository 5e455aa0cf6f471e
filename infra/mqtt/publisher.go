package mqtt

import (
	"strings"
	"sync"

	coremqtt "github.com/kilianp07/batsim/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// Message is a publication captured by MockClient.
type Message struct {
	Topic   string
	Payload []byte
}

// MockClient is an in-memory client used in tests.
type MockClient struct {
	Prefix  string
	FailErr error

	mu       sync.Mutex
	messages []Message
	handlers map[string]coremqtt.Handler
}

// NewMockClient creates a MockClient with the given topic prefix.
func NewMockClient(prefix string) *MockClient {
	return &MockClient{Prefix: prefix, handlers: make(map[string]coremqtt.Handler)}
}

// Publish records the message or returns FailErr.
func (m *MockClient) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailErr != nil {
		return m.FailErr
	}
	m.messages = append(m.messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

// Subscribe stores the handler for Deliver.
func (m *MockClient) Subscribe(topic string, h coremqtt.Handler) error {
	m.mu.Lock()
	m.handlers[topic] = h
	m.mu.Unlock()
	return nil
}

func (m *MockClient) Topic(suffix string) string { return joinTopic(m.Prefix, suffix) }

// Deliver simulates an incoming message.
func (m *MockClient) Deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	var h coremqtt.Handler
	for pattern, fn := range m.handlers {
		if topicMatches(pattern, topic) {
			h = fn
			break
		}
	}
	m.mu.Unlock()
	if h == nil {
		return false
	}
	h(topic, payload)
	return true
}

// Messages returns a copy of the published messages.
func (m *MockClient) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// topicMatches applies MQTT wildcard rules for "+" and "#".
func topicMatches(pattern, topic string) bool {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, p := range pp {
		if p == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if p != "+" && p != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

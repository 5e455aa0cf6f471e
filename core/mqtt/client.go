package mqtt

import "errors"

// ErrPublishFailed is returned when a message could not be delivered after
// all retries.
var ErrPublishFailed = errors.New("mqtt publish failed")

// Handler receives messages for a subscribed topic.
type Handler func(topic string, payload []byte)

// Client is the subset of an MQTT connection used by the simulator.
type Client interface {
	// Publish sends payload to topic, retrying on transient failures.
	Publish(topic string, payload []byte) error
	// Subscribe registers h for topic. Wildcards follow MQTT rules.
	Subscribe(topic string, h Handler) error
	// Topic joins the configured prefix with the given suffix.
	Topic(suffix string) string
}

package telemetry

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DataLayerTopic is the topic records of a container are published on.
func DataLayerTopic(containerID string) string {
	return "datalayer." + containerID
}

// PubSubDataLayer publishes every record as a JSON message, in push order,
// so downstream tag containers can subscribe to the stream.
type PubSubDataLayer struct {
	publisher message.Publisher
	topic     string
}

func NewPubSubDataLayer(publisher message.Publisher, containerID string) *PubSubDataLayer {
	return &PubSubDataLayer{publisher: publisher, topic: DataLayerTopic(containerID)}
}

func (l *PubSubDataLayer) Topic() string {
	return l.topic
}

func (l *PubSubDataLayer) Push(record map[string]any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode data layer record: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if ev, ok := record["event"].(string); ok {
		msg.Metadata.Set("event", ev)
	}

	if err := l.publisher.Publish(l.topic, msg); err != nil {
		return fmt.Errorf("publish data layer record: %w", err)
	}
	return nil
}

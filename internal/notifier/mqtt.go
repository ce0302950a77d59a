package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Publisher MQTT publish side (satisfied by common/mqtt.Client)
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier publishes alerts to <prefix>/<target> for app clients subscribed over MQTT
type MQTTNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTNotifier creates an MQTT notifier
func NewMQTTNotifier(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		qos:         qos,
		logger:      logger,
	}
}

// Topic returns the topic alerts for target are published on
func (n *MQTTNotifier) Topic(target string) string {
	return n.topicPrefix + "/" + target
}

// Send publishes the alert as JSON
func (n *MQTTNotifier) Send(ctx context.Context, target, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(newMessage(target, title, body))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	topic := n.Topic(target)
	if err := n.publisher.Publish(topic, n.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	n.logger.Debug("Alert published",
		zap.String("topic", topic),
	)
	return nil
}

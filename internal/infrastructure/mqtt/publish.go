package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound messages at 1MB. Composite state and
// source-label payloads are a few hundred bytes; anything near this
// limit is a bug upstream, not traffic to forward.
const maxPayloadSize = 1 << 20

// Publish sends a message and waits for broker acknowledgment up to the
// publish timeout. Retained should be true only for state topics such as
// Topics.ClimateState, never for commands or events.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained message at the configured default
// QoS. The pair pipelines use this for composite state and source labels
// so late subscribers get the current values immediately.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

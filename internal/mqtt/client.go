package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Client is a thin wrapper over the paho client that publishes JSON
// payloads at QoS 1.
type Client struct {
	inner paho.Client
}

// Connect dials the broker and blocks until the connection is up or the
// timeout expires.
func Connect(brokerURL, clientID, username, password string) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetUsername(username).
		SetPassword(password).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", brokerURL, err)
	}

	return &Client{inner: client}, nil
}

// Publish sends payload as JSON to topic and waits for broker
// acknowledgement.
func (c *Client) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mqtt payload: %w", err)
	}

	token := c.inner.Publish(topic, 1, false, raw)

	deadline := publishTimeout
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < deadline {
			deadline = remaining
		}
	}
	if !token.WaitTimeout(deadline) {
		return errors.New("publish mqtt message: timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish mqtt message: %w", err)
	}

	return nil
}

func (c *Client) Close() {
	c.inner.Disconnect(250)
}

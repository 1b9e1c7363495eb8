package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 10 * time.Second
	mqttDisconnectWait = 250 // milliseconds
)

// MQTT publishes alerts as JSON to "<prefix>/<team>/<session>".
type MQTT struct {
	client mqtt.Client
	prefix string
}

// DialMQTT connects to the broker in cfg. The client reconnects on its own
// after the first successful connect.
func DialMQTT(cfg config.MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password())
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("alerts: mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("alerts: mqtt connection lost", "broker", cfg.Broker, "err", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("alerts: mqtt connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("alerts: mqtt connect to %s: %w", cfg.Broker, err)
	}
	return NewMQTT(client, cfg.TopicPrefix), nil
}

// NewMQTT wraps an already connected client.
func NewMQTT(client mqtt.Client, prefix string) *MQTT {
	return &MQTT{client: client, prefix: strings.TrimSuffix(prefix, "/")}
}

// Name implements Sink.
func (m *MQTT) Name() string { return "mqtt" }

// Topic returns the topic a is published on. Alerts without a team go
// under "_".
func (m *MQTT) Topic(a Alert) string {
	team := a.TeamID
	if team == "" {
		team = "_"
	}
	return m.prefix + "/" + team + "/" + a.SessionID
}

// Deliver implements Sink.
func (m *MQTT) Deliver(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	token := m.client.Publish(m.Topic(a), mqttQoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(mqttDisconnectWait)
}

package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/snapshot"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Broker   string // host:port or URL
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Snapshot snapshot.Options
}

// publisher is the subset of mqtt.Client used by MQTT.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTT publishes alerts as JSON with an embedded base64 JPEG snapshot.
type MQTT struct {
	cfg    MQTTConfig
	client publisher
}

// Payload is the MQTT message body.
type Payload struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	MotionArea int           `json:"motion_area"`
	Envelope   *types.Region `json:"envelope,omitempty"`
	Image      []byte        `json:"image,omitempty"` // JPEG, base64 in JSON
}

// ConnectMQTT connects to the broker. Reconnection is left to the client.
func ConnectMQTT(ctx context.Context, cfg MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt: topic is required")
	}

	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("MQTT connected to %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost: %v (reconnecting)", err)
	}

	timeout, err := waitBudget(ctx, mqttConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
		}
		return nil, fmt.Errorf("mqtt: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}

	return newMQTT(cfg, client), nil
}

func newMQTT(cfg MQTTConfig, client publisher) *MQTT {
	return &MQTT{cfg: cfg, client: client}
}

func (m *MQTT) Name() string { return "mqtt" }

// Notify publishes one alert and waits for the broker acknowledgement.
func (m *MQTT) Notify(ctx context.Context, event types.AlertEvent) error {
	if !m.client.IsConnected() {
		return errors.New("mqtt: not connected")
	}

	payload, err := m.encode(event)
	if err != nil {
		return err
	}

	timeout, err := waitBudget(ctx, mqttPublishTimeout)
	if err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}

	token := m.client.Publish(m.cfg.Topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(timeout) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("mqtt: publish: %w", err)
		}
		return errors.New("mqtt: publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}

	log.Debug("Alert %s published to %s (%d bytes)", event.ID, m.cfg.Topic, len(payload))
	return nil
}

func (m *MQTT) encode(event types.AlertEvent) ([]byte, error) {
	p := Payload{
		ID:         event.ID,
		Timestamp:  event.Timestamp,
		MotionArea: event.MotionArea,
	}
	if event.HasEnvelope {
		env := event.Envelope
		p.Envelope = &env
	}
	if !event.Frame.Empty() {
		img, err := snapshot.Encode(event.Frame, m.cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		p.Image = img
	}
	return json.Marshal(p)
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

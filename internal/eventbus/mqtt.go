package eventbus

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/tphakala/alertflow/internal/logger"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
)

// MQTTConfig configures an MQTTBus.
type MQTTConfig struct {
	Brokers  []string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// MQTTBus publishes and subscribes through an MQTT broker. Subscriptions
// are restored after reconnects.
type MQTTBus struct {
	client mqtt.Client
	qos    byte
	log    logger.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

// NewMQTTBus connects to the broker.
func NewMQTTBus(cfg MQTTConfig, log logger.Logger) (*MQTTBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("mqtt: at least one broker is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid qos %d", cfg.QoS)
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "alertflow-" + uuid.NewString()[:8]
	}

	b := &MQTTBus{
		qos:  cfg.QoS,
		log:  log.Module("eventbus.mqtt"),
		subs: make(map[string]Handler),
	}

	opts := mqtt.NewClientOptions().
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOrderMatters(false).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.log.Warn("mqtt connection lost", logger.Error(err))
		})
	for _, broker := range cfg.Brokers {
		opts.AddBroker(broker)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		b.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect timeout after %s", mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}
	b.log.Info("connected to mqtt broker", logger.Any("brokers", cfg.Brokers))
	return b, nil
}

// onConnect re-subscribes every registered topic.
func (b *MQTTBus) onConnect(client mqtt.Client) {
	b.mu.Lock()
	subs := maps.Clone(b.subs)
	b.mu.Unlock()

	for topic, h := range subs {
		token := client.Subscribe(topic, b.qos, b.wrap(topic, h))
		if token.WaitTimeout(mqttConnectTimeout) && token.Error() != nil {
			b.log.Error("mqtt resubscribe failed",
				logger.String("topic", topic),
				logger.Error(token.Error()))
		}
	}
}

func (b *MQTTBus) wrap(topic string, h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("event handler panicked",
					logger.String("topic", topic),
					logger.Any("panic", r))
			}
		}()
		h(context.Background(), msg.Payload())
	}
}

// Publish sends payload and waits for the broker acknowledgement required
// by the configured QoS.
func (b *MQTTBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if !b.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt: publish to %s: not connected", topic)
	}
	token := b.client.Publish(topic, b.qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers h for topic.
func (b *MQTTBus) Subscribe(topic string, h Handler) error {
	b.mu.Lock()
	b.subs[topic] = h
	b.mu.Unlock()

	token := b.client.Subscribe(topic, b.qos, b.wrap(topic, h))
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("mqtt: subscribe to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (b *MQTTBus) Close() error {
	b.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}

// Package eventbus carries raw events into the engine and triggered alert
// summaries out of it. Transports: in-process, MQTT and Kafka.
package eventbus

import (
	"context"
	"fmt"

	"github.com/tphakala/alertflow/internal/conf"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
)

// Supported drivers.
const (
	DriverMemory = "memory"
	DriverMQTT   = "mqtt"
	DriverKafka  = "kafka"
)

var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.NewStd("event bus closed")
	// ErrBufferFull is returned when the in-memory bus drops a message.
	ErrBufferFull = errors.NewStd("event bus buffer full")
)

// Handler processes one message payload. Handlers must not retain payload
// after returning.
type Handler func(ctx context.Context, payload []byte)

// Bus is a topic-based publish/subscribe transport.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, h Handler) error
	Close() error
}

// New builds the bus selected by settings.Driver.
func New(settings *conf.EventBusSettings, log logger.Logger) (Bus, error) {
	switch settings.Driver {
	case "", DriverMemory:
		return NewMemoryBus(settings.BufferSize, log), nil
	case DriverMQTT:
		return NewMQTTBus(MQTTConfig{
			Brokers:  settings.Brokers,
			ClientID: settings.ClientID,
			Username: settings.Username,
			Password: settings.Password,
			QoS:      byte(settings.QoS),
		}, log)
	case DriverKafka:
		return NewKafkaBus(KafkaConfig{
			Brokers: settings.Brokers,
			GroupID: settings.GroupID,
		}, log)
	default:
		return nil, fmt.Errorf("unknown event bus driver %q", settings.Driver)
	}
}

package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
)

const (
	kafkaWriteTimeout   = 10 * time.Second
	kafkaReadMaxWait    = time.Second
	kafkaCommitInterval = time.Second
	kafkaDefaultGroupID = "alertflow"
	kafkaRetryBackoff   = time.Second
)

// KafkaConfig configures a KafkaBus.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// KafkaBus publishes through one writer and runs a consumer-group reader
// per subscribed topic. Offsets are committed after the handler returns,
// so delivery is at least once.
type KafkaBus struct {
	brokers []string
	groupID string
	writer  *kafka.Writer
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
}

// NewKafkaBus creates the writer. Readers are created on Subscribe.
func NewKafkaBus(cfg KafkaConfig, log logger.Logger) (*KafkaBus, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = kafkaDefaultGroupID
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaBus{
		brokers: brokers,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			WriteTimeout:           kafkaWriteTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		log:    log.Module("eventbus.kafka"),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Publish writes one message synchronously.
func (b *KafkaBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: payload}); err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	return nil
}

// PublishKeyed writes one message partitioned by key.
func (b *KafkaBus) PublishKeyed(ctx context.Context, topic, key string, payload []byte) error {
	if err := b.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts a consumer-group reader for topic.
func (b *KafkaBus) Subscribe(topic string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        b.brokers,
		Topic:          topic,
		GroupID:        b.groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        kafkaReadMaxWait,
		CommitInterval: kafkaCommitInterval,
		StartOffset:    kafka.FirstOffset,
	})
	b.readers = append(b.readers, reader)
	b.wg.Go(func() { b.consume(reader, topic, h) })
	return nil
}

func (b *KafkaBus) consume(reader *kafka.Reader, topic string, h Handler) {
	for {
		msg, err := reader.FetchMessage(b.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || b.ctx.Err() != nil {
				return
			}
			b.log.Error("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(kafkaRetryBackoff):
				continue
			case <-b.ctx.Done():
				return
			}
		}

		b.handle(h, topic, msg.Value)

		if err := reader.CommitMessages(b.ctx, msg); err != nil && b.ctx.Err() == nil {
			b.log.Warn("kafka commit failed",
				logger.String("topic", topic),
				logger.Int64("offset", msg.Offset),
				logger.Error(err))
		}
	}
}

func (b *KafkaBus) handle(h Handler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				logger.String("topic", topic),
				logger.Any("panic", r))
		}
	}()
	h(b.ctx, payload)
}

// Close stops the readers and flushes the writer.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	readers := b.readers
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

package eventbus

import (
	"context"
	"sync"

	"github.com/tphakala/alertflow/internal/logger"
)

// defaultBufferSize is the capacity of the in-memory message channel.
const defaultBufferSize = 1000

type message struct {
	topic   string
	payload []byte
}

// MemoryBus is an in-process bus. Publish never blocks: messages go to a
// buffered channel drained by one worker, and are dropped with
// ErrBufferFull when the buffer is full. Close drains what is buffered.
type MemoryBus struct {
	log logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	msgCh    chan message
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryBus creates the bus and starts its worker.
func NewMemoryBus(bufferSize int, log logger.Logger) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	b := &MemoryBus{
		log:      log.Module("eventbus"),
		handlers: make(map[string][]Handler),
		msgCh:    make(chan message, bufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.processLoop()
	return b
}

// Subscribe registers h for topic.
func (b *MemoryBus) Subscribe(topic string, h Handler) error {
	select {
	case <-b.stopCh:
		return ErrClosed
	default:
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
	return nil
}

// Publish enqueues a copy of payload.
func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	select {
	case <-b.stopCh:
		return ErrClosed
	default:
	}

	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case b.msgCh <- msg:
		return nil
	default:
		b.log.Warn("event bus buffer full, dropping message", logger.String("topic", topic))
		return ErrBufferFull
	}
}

// Close stops the worker after it drains buffered messages. Safe to call
// more than once.
func (b *MemoryBus) Close() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.done
	return nil
}

func (b *MemoryBus) processLoop() {
	defer close(b.done)
	for {
		select {
		case msg := <-b.msgCh:
			b.dispatch(msg)
		case <-b.stopCh:
			for {
				select {
				case msg := <-b.msgCh:
					b.dispatch(msg)
				default:
					return
				}
			}
		}
	}
}

func (b *MemoryBus) dispatch(msg message) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[msg.topic]))
	copy(handlers, b.handlers[msg.topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(h, msg)
	}
}

// safeCall invokes a handler with panic recovery so a panicking handler
// cannot kill the worker.
func (b *MemoryBus) safeCall(h Handler, msg message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				logger.String("topic", msg.topic),
				logger.Any("panic", r))
		}
	}()
	h(context.Background(), msg.payload)
}

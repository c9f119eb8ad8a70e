package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/tphakala/alertflow/internal/eventbus"
	"github.com/tphakala/alertflow/internal/logger"
	"github.com/tphakala/alertflow/internal/observability"
)

// EventEnvelope is the wire format of an inbound bus message.
type EventEnvelope struct {
	TenantID string         `json:"tenant_id"`
	Event    map[string]any `json:"event"`
}

// TriggeredEnvelope is published once per inbound event that fired at
// least one alert.
type TriggeredEnvelope struct {
	TenantID string           `json:"tenant_id"`
	EventID  string           `json:"event_id,omitempty"`
	Alerts   []TriggeredAlert `json:"alerts"`
}

// EventProcessor is the part of Engine the consumer drives.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event map[string]any, tenantID string) []TriggeredAlert
}

// BusConsumer feeds events from the ingest topic into the engine and
// publishes what fired to the triggered topic.
type BusConsumer struct {
	bus            eventbus.Bus
	engine         EventProcessor
	ingestTopic    string
	triggeredTopic string
	defaultTenant  string
	metrics        *observability.Metrics
	log            logger.Logger
}

// ConsumerConfig configures a BusConsumer. An empty TriggeredTopic
// disables publishing results.
type ConsumerConfig struct {
	IngestTopic    string
	TriggeredTopic string
	DefaultTenant  string
}

// NewBusConsumer creates a consumer. Call Start to subscribe.
func NewBusConsumer(bus eventbus.Bus, engine EventProcessor, cfg ConsumerConfig, metrics *observability.Metrics, log logger.Logger) *BusConsumer {
	return &BusConsumer{
		bus:            bus,
		engine:         engine,
		ingestTopic:    cfg.IngestTopic,
		triggeredTopic: cfg.TriggeredTopic,
		defaultTenant:  cfg.DefaultTenant,
		metrics:        metrics,
		log:            log.Module("alerting.consumer"),
	}
}

// Start subscribes to the ingest topic.
func (c *BusConsumer) Start() error {
	c.log.Info("consuming events",
		logger.String("ingest_topic", c.ingestTopic),
		logger.String("triggered_topic", c.triggeredTopic))
	return c.bus.Subscribe(c.ingestTopic, c.Handle)
}

// Handle processes one raw ingest message. Malformed messages are logged
// and dropped.
func (c *BusConsumer) Handle(ctx context.Context, payload []byte) {
	c.metrics.BusMessage(c.ingestTopic, observability.DirectionIn)

	env, err := DecodeEnvelope(payload)
	if err != nil {
		c.log.Warn("dropping malformed event", logger.Error(err), logger.Int("bytes", len(payload)))
		c.metrics.BusMessage(c.ingestTopic, observability.DirectionDropped)
		return
	}
	tenantID := strings.TrimSpace(env.TenantID)
	if tenantID == "" {
		tenantID = c.defaultTenant
	}
	if tenantID == "" {
		c.log.Warn("dropping event without tenant")
		c.metrics.BusMessage(c.ingestTopic, observability.DirectionDropped)
		return
	}

	triggered := c.engine.ProcessEvent(ctx, env.Event, tenantID)
	if len(triggered) == 0 || c.triggeredTopic == "" {
		return
	}

	out, err := json.Marshal(TriggeredEnvelope{
		TenantID: tenantID,
		EventID:  eventID(env.Event),
		Alerts:   triggered,
	})
	if err != nil {
		c.log.Error("failed to encode triggered alerts", logger.Error(err))
		return
	}
	if err := c.bus.Publish(ctx, c.triggeredTopic, out); err != nil {
		c.log.Error("failed to publish triggered alerts",
			logger.String("tenant_id", tenantID),
			logger.Int("alerts", len(triggered)),
			logger.Error(err))
		return
	}
	c.metrics.BusMessage(c.triggeredTopic, observability.DirectionOut)
}

// DecodeEnvelope parses an ingest message. Numbers are kept as json.Number
// so large identifiers survive unchanged.
func DecodeEnvelope(payload []byte) (*EventEnvelope, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var env EventEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	if env.Event == nil {
		env.Event = map[string]any{}
	}
	return &env, nil
}

func eventID(event map[string]any) string {
	if id := upstreamEventID(event); id != nil {
		return *id
	}
	return ""
}

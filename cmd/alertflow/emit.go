package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/alertflow/internal/alerting"
	"github.com/tphakala/alertflow/internal/eventbus"
	"github.com/tphakala/alertflow/internal/logger"
)

func newEmitCmd(setup func() (*app, error)) *cobra.Command {
	var tenantID, event string

	cmd := &cobra.Command{
		Use:     "emit",
		Short:   "Publish an event on the configured bus's ingest topic",
		Example: `  alertflow emit --tenant acme --event '{"event_type":"user_login","status":"failed","user_id":"alice"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			payload, err := buildEnvelope(tenantID, event)
			if err != nil {
				return err
			}
			if rt.settings.EventBus.Driver == eventbus.DriverMemory || rt.settings.EventBus.Driver == "" {
				return fmt.Errorf("emit needs a networked bus; eventbus.driver is %q", rt.settings.EventBus.Driver)
			}

			bus, err := eventbus.New(&rt.settings.EventBus, rt.log.Module("eventbus"))
			if err != nil {
				return err
			}
			defer func() { _ = bus.Close() }()

			topic := rt.settings.EventBus.IngestTopic
			if err := bus.Publish(cmd.Context(), topic, payload); err != nil {
				return err
			}
			rt.log.Info("event published",
				logger.String("topic", topic),
				logger.String("tenant_id", tenantID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant the event belongs to")
	cmd.Flags().StringVarP(&event, "event", "e", "", "event as a JSON object")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

// buildEnvelope wraps a JSON event object in the ingest envelope.
func buildEnvelope(tenantID, event string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant is required")
	}
	payload, err := json.Marshal(struct {
		TenantID string          `json:"tenant_id"`
		Event    json.RawMessage `json:"event"`
	}{tenantID, json.RawMessage(event)})
	if err != nil {
		return nil, fmt.Errorf("event is not valid JSON: %w", err)
	}
	if _, err := alerting.DecodeEnvelope(payload); err != nil {
		return nil, fmt.Errorf("event must be a JSON object: %w", err)
	}
	return payload, nil
}

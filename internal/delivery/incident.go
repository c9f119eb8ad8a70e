package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/antonholmquist/jason"
)

const incidentEventTrigger = "trigger"

type incidentEvent struct {
	RoutingKey  string          `json:"routing_key"`
	EventAction string          `json:"event_action"`
	DedupKey    string          `json:"dedup_key"`
	Payload     incidentPayload `json:"payload"`
}

type incidentPayload struct {
	Summary       string         `json:"summary"`
	Source        string         `json:"source"`
	Severity      string         `json:"severity"`
	Timestamp     string         `json:"timestamp"`
	Component     string         `json:"component,omitempty"`
	Group         string         `json:"group,omitempty"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

// sendIncident submits a trigger event. Only 202 Accepted counts as success.
func (o *Orchestrator) sendIncident(ctx context.Context, cfg *IncidentConfig, p *Payload) Result {
	severity, ok := cfg.SeverityMapping[p.Severity]
	if !ok {
		severity = "info"
	}
	body, err := json.Marshal(incidentEvent{
		RoutingKey:  cfg.RoutingKey,
		EventAction: incidentEventTrigger,
		DedupKey:    p.AlertID,
		Payload: incidentPayload{
			Summary:   truncate(p.Title, 1024),
			Source:    cfg.Source,
			Severity:  severity,
			Timestamp: p.TriggeredAt.Format(time.RFC3339),
			Component: p.PolicyID,
			Group:     p.TenantID,
			CustomDetails: map[string]any{
				"message": p.Message,
				"summary": p.Summary,
				"event":   p.Event,
			},
		},
	})
	if err != nil {
		return failed(fmt.Sprintf("encode incident event: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout(cfg.Timeout.Std()))
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return failed(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return failed(fmt.Sprintf("incident request: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	msg := incidentResponseMessage(resp)
	if resp.StatusCode != http.StatusAccepted {
		return failed(fmt.Sprintf("incident API returned %d: %s", resp.StatusCode, msg))
	}
	return sent(msg)
}

// incidentResponseMessage extracts "message" and "dedup_key" from the
// response body when it is JSON.
func incidentResponseMessage(resp *http.Response) string {
	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return http.StatusText(resp.StatusCode)
	}
	msg, err := obj.GetString("message")
	if err != nil {
		msg = http.StatusText(resp.StatusCode)
	}
	if key, err := obj.GetString("dedup_key"); err == nil && key != "" {
		msg += " (dedup_key " + key + ")"
	}
	if errs, err := obj.GetStringArray("errors"); err == nil && len(errs) > 0 {
		msg += ": " + errs[0]
	}
	return msg
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

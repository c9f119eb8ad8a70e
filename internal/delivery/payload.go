// Package delivery fans alerts out to the providers configured on a policy.
package delivery

import (
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// Payload is the provider-neutral view of an alert that every adapter
// serialises.
type Payload struct {
	AlertID     string         `json:"alert_id"`
	PolicyID    string         `json:"policy_id"`
	TenantID    string         `json:"tenant_id"`
	Severity    string         `json:"severity"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Summary     string         `json:"summary"`
	TriggeredAt time.Time      `json:"triggered_at"`
	Event       map[string]any `json:"event"`
}

// NewPayload copies the deliverable fields of an alert.
func NewPayload(alert *entities.Alert) Payload {
	return Payload{
		AlertID:     alert.ID,
		PolicyID:    alert.PolicyID,
		TenantID:    alert.TenantID,
		Severity:    alert.Severity,
		Title:       alert.Title,
		Message:     alert.Message,
		Summary:     alert.Summary,
		TriggeredAt: alert.TriggeredAt.UTC(),
		Event:       alert.EventData,
	}
}

// Result is the outcome of one provider dispatch. Status is one of
// entities.DeliverySent, DeliveryFailed or DeliveryQueued.
type Result struct {
	ProviderID string `json:"provider_id"`
	Kind       string `json:"kind"`
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
}

func sent(msg string) Result {
	return Result{Success: true, Status: entities.DeliverySent, Message: msg}
}

func failed(msg string) Result {
	return Result{Status: entities.DeliveryFailed, Message: msg}
}

// StatusMap flattens results into provider id -> status.
func StatusMap(results []Result) map[string]string {
	m := make(map[string]string, len(results))
	for _, r := range results {
		m[r.ProviderID] = r.Status
	}
	return m
}

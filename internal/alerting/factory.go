package alerting

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// maxTitleLength matches the alerts.title column size.
const maxTitleLength = 500

// AlertStore persists alerts and their lifecycle transitions.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *entities.Alert) error
	UpdateDeliveryStatus(ctx context.Context, id string, status map[string]string) error
	Acknowledge(ctx context.Context, id, by string, at time.Time) (*entities.Alert, error)
	Resolve(ctx context.Context, id string, at time.Time) (*entities.Alert, error)
}

// Factory builds and persists alerts for matched policies.
type Factory struct {
	store AlertStore
}

// NewFactory creates a Factory backed by store.
func NewFactory(store AlertStore) *Factory {
	return &Factory{store: store}
}

// Build renders a new ACTIVE alert without persisting it.
func (f *Factory) Build(policy *entities.Policy, event map[string]any, tenantID string, now time.Time) *entities.Alert {
	message := RenderTemplate(policy.MessageTemplate, event)
	title := titleFrom(message, policy.Name)
	summary := RenderTemplate(policy.SummaryTemplate, event)
	if summary == "" {
		summary = title
	}
	if message == "" {
		message = title
	}

	return &entities.Alert{
		ID:             uuid.NewString(),
		PolicyID:       policy.ID,
		TenantID:       tenantID,
		Severity:       policy.Severity,
		Status:         entities.AlertStatusActive,
		Title:          title,
		Message:        message,
		Summary:        summary,
		EventData:      maps.Clone(event),
		EventID:        upstreamEventID(event),
		TriggeredAt:    now.UTC(),
		DeliveryStatus: map[string]string{},
	}
}

// Create builds the alert and stores it.
func (f *Factory) Create(ctx context.Context, policy *entities.Policy, event map[string]any, tenantID string, now time.Time) (*entities.Alert, error) {
	alert := f.Build(policy, event, tenantID, now)
	if err := f.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to persist alert for policy %s: %w", policy.ID, err)
	}
	return alert, nil
}

// titleFrom takes the first non-empty line of the rendered message.
func titleFrom(message, fallback string) string {
	title := fallback
	for line := range strings.SplitSeq(message, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = line
			break
		}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	return title
}

func upstreamEventID(event map[string]any) *string {
	for _, key := range []string{FieldEventID, FieldID} {
		if s, ok := event[key].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

package entities

import "time"

// Alert lifecycle states. Suppressed matches are skipped before an alert
// row exists, so no stored alert carries AlertStatusSuppressed today.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
	AlertStatusSuppressed   = "suppressed"
)

// AlertStatuses lists every alert status.
var AlertStatuses = []string{
	AlertStatusActive,
	AlertStatusAcknowledged,
	AlertStatusResolved,
	AlertStatusSuppressed,
}

// Per-provider delivery states recorded in Alert.DeliveryStatus.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
	DeliveryQueued = "queued"
)

// Alert is a fired policy occurrence.
type Alert struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	PolicyID       string            `gorm:"size:36;not null;index" json:"policy_id"`
	TenantID       string            `gorm:"size:64;not null;index:idx_alerts_tenant_status,priority:1" json:"tenant_id"`
	Severity       string            `gorm:"size:16;not null" json:"severity"`
	Status         string            `gorm:"size:16;not null;index:idx_alerts_tenant_status,priority:2" json:"status"`
	Title          string            `gorm:"size:500;not null" json:"title"`
	Message        string            `gorm:"type:text" json:"message"`
	Summary        string            `gorm:"type:text" json:"summary"`
	EventData      map[string]any    `gorm:"serializer:json;type:text" json:"event_data"`
	EventID        *string           `gorm:"size:128" json:"event_id,omitempty"`
	TriggeredAt    time.Time         `gorm:"not null;index" json:"triggered_at"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string            `gorm:"size:255;default:''" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	DeliveryStatus map[string]string `gorm:"serializer:json;type:text" json:"delivery_status"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

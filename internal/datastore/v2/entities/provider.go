package entities

import "time"

// Provider kinds.
const (
	ProviderIncident = "incident"
	ProviderChat     = "chat"
	ProviderWebhook  = "webhook"
	ProviderEmail    = "email"
)

// ProviderKinds lists every supported provider kind.
var ProviderKinds = []string{ProviderIncident, ProviderChat, ProviderWebhook, ProviderEmail}

// Provider is a tenant-scoped delivery destination. Config holds the
// kind-specific settings and is decoded into a typed struct by the
// delivery package.
type Provider struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string         `gorm:"size:64;not null;index" json:"tenant_id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Kind      string         `gorm:"size:16;not null" json:"kind"`
	Enabled   bool           `gorm:"not null" json:"enabled"`
	Config    map[string]any `gorm:"serializer:json;type:text" json:"config"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Provider) TableName() string {
	return "providers"
}

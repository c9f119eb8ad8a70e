package entities

import "time"

// Severity levels, ordered from most to least urgent.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Severities lists every valid severity.
var Severities = []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Group combinators for compound policies.
const (
	GroupAnd = "AND"
	GroupOr  = "OR"
)

// Policy is a tenant-owned alerting policy. The engine only reads policies;
// authoring happens through the API.
//
// A policy is "flat" when Groups is empty: Conditions are combined with AND
// when MatchAll is set and with OR otherwise. When Groups is non-empty the
// policy is compound: Conditions and Groups together form a root group
// combined with GroupOperator.
type Policy struct {
	ID               string           `gorm:"primaryKey;size:36" json:"id" yaml:"id,omitempty"`
	TenantID         string           `gorm:"size:64;not null;index:idx_policies_tenant_enabled,priority:1" json:"tenant_id" yaml:"tenant_id"`
	Name             string           `gorm:"size:255;not null" json:"name" yaml:"name"`
	Description      string           `gorm:"size:1000;default:''" json:"description" yaml:"description"`
	Enabled          bool             `gorm:"not null;index:idx_policies_tenant_enabled,priority:2" json:"enabled" yaml:"enabled"`
	Severity         string           `gorm:"size:16;not null" json:"severity" yaml:"severity"`
	MatchAll         bool             `gorm:"not null" json:"match_all" yaml:"match_all"`
	GroupOperator    string           `gorm:"size:3;default:''" json:"group_operator,omitempty" yaml:"group_operator,omitempty"`
	Conditions       []Condition      `gorm:"serializer:json;type:text" json:"conditions" yaml:"conditions"`
	Groups           []ConditionGroup `gorm:"serializer:json;type:text" json:"groups,omitempty" yaml:"groups,omitempty"`
	TimeWindow       *TimeWindow      `gorm:"serializer:json;type:text" json:"time_window,omitempty" yaml:"time_window,omitempty"`
	ThrottleMinutes  int              `gorm:"not null;default:0" json:"throttle_minutes" yaml:"throttle_minutes"`
	MaxAlertsPerHour int              `gorm:"not null;default:0" json:"max_alerts_per_hour" yaml:"max_alerts_per_hour"`
	MessageTemplate  string           `gorm:"type:text" json:"message_template" yaml:"message_template"`
	SummaryTemplate  string           `gorm:"type:text" json:"summary_template" yaml:"summary_template"`
	ProviderIDs      []string         `gorm:"serializer:json;type:text" json:"provider_ids" yaml:"provider_ids"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at" yaml:"updated_at,omitempty"`
}

// TableName returns the table name for GORM.
func (Policy) TableName() string {
	return "policies"
}

// IsCompound reports whether the policy uses nested condition groups.
func (p *Policy) IsCompound() bool {
	return len(p.Groups) > 0
}

// RateLimited reports whether either throttle limit is active.
func (p *Policy) RateLimited() bool {
	return p.ThrottleMinutes > 0 || p.MaxAlertsPerHour > 0
}

// Condition is a single field predicate. Value holds a scalar for comparison
// operators, a list for in/not_in and a pattern string for regex.
// CaseSensitive defaults to true when unset.
type Condition struct {
	Field         string `json:"field" yaml:"field"`
	Operator      string `json:"operator" yaml:"operator"`
	Value         any    `json:"value" yaml:"value"`
	CaseSensitive *bool  `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// IsCaseSensitive resolves the CaseSensitive default.
func (c *Condition) IsCaseSensitive() bool {
	return c.CaseSensitive == nil || *c.CaseSensitive
}

// ConditionGroup combines conditions and nested groups with AND or OR.
type ConditionGroup struct {
	Operator   string           `json:"operator" yaml:"operator"`
	Conditions []Condition      `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Groups     []ConditionGroup `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// TimeWindow restricts a policy to certain weekdays and hours. Days use
// 0 = Monday through 6 = Sunday; times are "HH:MM" in Timezone (IANA).
type TimeWindow struct {
	Days      []int  `json:"days" yaml:"days"`
	StartTime string `json:"start_time" yaml:"start_time"`
	EndTime   string `json:"end_time" yaml:"end_time"`
	Timezone  string `json:"timezone" yaml:"timezone"`
}

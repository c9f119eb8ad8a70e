package entities

import "time"

// SuppressionRecord silences a (policy, suppression key) pair until
// SuppressedUntil. The engine only reads these.
type SuppressionRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PolicyID        string    `gorm:"size:36;not null;index:idx_suppression_lookup,priority:1" json:"policy_id"`
	SuppressionKey  string    `gorm:"size:1024;not null;index:idx_suppression_lookup,priority:2" json:"suppression_key"`
	SuppressedUntil time.Time `gorm:"not null;index" json:"suppressed_until"`
	Reason          string    `gorm:"size:1000;default:''" json:"reason"`
	CreatedBy       string    `gorm:"size:255;default:''" json:"created_by"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (SuppressionRecord) TableName() string {
	return "suppression_records"
}

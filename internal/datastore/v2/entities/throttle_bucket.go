package entities

import "time"

// ThrottleBucket counts alerts fired for a policy within one clock hour.
// HourStart is always the UTC hour truncation.
type ThrottleBucket struct {
	ID          uint       `gorm:"primaryKey"`
	PolicyID    string     `gorm:"size:36;not null;uniqueIndex:idx_throttle_policy_hour,priority:1"`
	HourStart   time.Time  `gorm:"not null;uniqueIndex:idx_throttle_policy_hour,priority:2"`
	AlertCount  int        `gorm:"not null;default:0"`
	LastAlertAt *time.Time `gorm:"index"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (ThrottleBucket) TableName() string {
	return "throttle_buckets"
}

// Package repository provides gorm-backed storage for policies, providers,
// alerts, throttle buckets and suppression records.
package repository

import "github.com/tphakala/alertflow/internal/errors"

var (
	ErrPolicyNotFound      = errors.NewStd("policy not found")
	ErrProviderNotFound    = errors.NewStd("provider not found")
	ErrAlertNotFound       = errors.NewStd("alert not found")
	ErrSuppressionNotFound = errors.NewStd("suppression not found")
	// ErrInvalidTransition is returned when an alert lifecycle change is not
	// allowed from the alert's current status.
	ErrInvalidTransition = errors.NewStd("invalid alert status transition")
)

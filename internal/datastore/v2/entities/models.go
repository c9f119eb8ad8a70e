// Package entities defines the gorm models persisted by alertflow.
package entities

// All returns every model, in migration order.
func All() []any {
	return []any{
		&Policy{},
		&Provider{},
		&Alert{},
		&ThrottleBucket{},
		&SuppressionRecord{},
	}
}

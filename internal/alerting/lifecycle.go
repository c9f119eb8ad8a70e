package alerting

import (
	"context"
	"fmt"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/logger"
)

// Acknowledge moves an ACTIVE alert to ACKNOWLEDGED. Any other starting
// state yields repository.ErrInvalidTransition from the store.
func (e *Engine) Acknowledge(ctx context.Context, alertID, by string) (*entities.Alert, error) {
	alert, err := e.alerts.Acknowledge(ctx, alertID, by, e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}
	e.log.Info("alert acknowledged",
		logger.String("alert_id", alertID),
		logger.String("by", by))
	return alert, nil
}

// Resolve moves an ACTIVE or ACKNOWLEDGED alert to RESOLVED.
func (e *Engine) Resolve(ctx context.Context, alertID string) (*entities.Alert, error) {
	alert, err := e.alerts.Resolve(ctx, alertID, e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve alert %s: %w", alertID, err)
	}
	e.log.Info("alert resolved", logger.String("alert_id", alertID))
	return alert, nil
}

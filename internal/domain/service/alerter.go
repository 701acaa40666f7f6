package service

import (
	"context"

	"RegimeFlow/internal/domain/models"
)

// Alerter delivers stress alerts to the monitoring collaborators. Delivery
// failures must never fail the classification path; callers log and move on.
type Alerter interface {
	Raise(ctx context.Context, alert models.StressAlert) error
}

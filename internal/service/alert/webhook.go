package alert

import (
	"context"
	"fmt"
	"time"

	"RegimeFlow/internal/domain/models"
	dsvc "RegimeFlow/internal/domain/service"
	xhttp "RegimeFlow/pkg/http"
	applogger "RegimeFlow/pkg/logger"
)

// WebhookAlerter delivers stress alerts to the monitoring webhook with
// bounded retries.
type WebhookAlerter struct {
	client   *xhttp.Client
	url      string
	retries  int
	backoff  time.Duration
	l        *applogger.Logger
}

func NewWebhookAlerter(url string, timeout time.Duration, retries int, backoff time.Duration, l *applogger.Logger) *WebhookAlerter {
	if retries <= 0 {
		retries = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &WebhookAlerter{
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		url:     url,
		retries: retries,
		backoff: backoff,
		l:       l,
	}
}

func (a *WebhookAlerter) Raise(ctx context.Context, alert models.StressAlert) error {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    a.url,
		Body:   alert,
	}
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.backoff << uint(attempt-1)):
			}
		}
		if err := a.client.SendAndParse(ctx, opts, nil); err != nil {
			lastErr = err
			if a.l != nil {
				a.l.Warn("alert delivery failed",
					applogger.Int("attempt", attempt+1),
					applogger.Error(err),
				)
			}
			continue
		}
		if a.l != nil {
			a.l.Info("stress alert raised",
				applogger.String("severity", alert.Severity),
				applogger.String("reason", alert.Reason),
			)
		}
		return nil
	}
	return fmt.Errorf("raise alert after %d attempts: %w", a.retries, lastErr)
}

var _ dsvc.Alerter = (*WebhookAlerter)(nil)

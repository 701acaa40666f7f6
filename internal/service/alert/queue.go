package alert

import (
	"context"
	"fmt"

	"RegimeFlow/internal/domain/models"
	dsvc "RegimeFlow/internal/domain/service"
	"RegimeFlow/pkg/queue"
)

const msgTypeStressAlert = "stress_alert"

// QueueAlerter enqueues alerts for asynchronous delivery so a slow webhook
// never blocks the classification path. Failed deliveries land in the queue's
// dead letter list after the retry budget is spent.
type QueueAlerter struct {
	q queue.QueueService
}

func NewQueueAlerter(q queue.QueueService) *QueueAlerter {
	return &QueueAlerter{q: q}
}

func (a *QueueAlerter) Raise(ctx context.Context, alert models.StressAlert) error {
	if err := a.q.PublishMessage(ctx, msgTypeStressAlert, alert); err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	return nil
}

var _ dsvc.Alerter = (*QueueAlerter)(nil)

// DeliverJob drains queued alerts through the webhook alerter.
type DeliverJob struct {
	webhook *WebhookAlerter
}

func NewDeliverJob(webhook *WebhookAlerter) *DeliverJob {
	return &DeliverJob{webhook: webhook}
}

func (j *DeliverJob) Name() string { return "alert_deliver" }

func (j *DeliverJob) Type() string { return msgTypeStressAlert }

func (j *DeliverJob) Handle(ctx context.Context, payload interface{}) error {
	alert, err := queue.ParsePayload[models.StressAlert](payload)
	if err != nil {
		return fmt.Errorf("parse alert payload: %w", err)
	}
	return j.webhook.Raise(ctx, *alert)
}

var _ queue.Job = (*DeliverJob)(nil)

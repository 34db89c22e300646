package mqpub

import (
	"context"

	"github.com/coregx/mqpub/model"
)

// NotificationService defines an optional interface for sending notifications
// about engine events (delivery failures, dead letters, mode changes).
//
// Implementations might send emails, Slack messages, or log to monitoring systems.
type NotificationService interface {
	// NotifyDeadLettered is called when a message is quarantined after
	// exhausting all delivery attempts.
	NotifyDeadLettered(ctx context.Context, dl model.DeadLetter) error

	// NotifyDeliveryFailure is called when a delivery attempt fails.
	// This is informational and happens before dead-lettering.
	NotifyDeliveryFailure(ctx context.Context, row *model.OutboxRow, err error) error

	// NotifyModeChanged is called when the engine switches between hot and
	// cold delivery.
	NotifyModeChanged(ctx context.Context, mode DeliveryMode) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
// Use this when notifications are not needed.
type NoOpNotificationService struct{}

// NotifyDeadLettered does nothing.
func (n *NoOpNotificationService) NotifyDeadLettered(_ context.Context, _ model.DeadLetter) error {
	return nil
}

// NotifyDeliveryFailure does nothing.
func (n *NoOpNotificationService) NotifyDeliveryFailure(_ context.Context, _ *model.OutboxRow, _ error) error {
	return nil
}

// NotifyModeChanged does nothing.
func (n *NoOpNotificationService) NotifyModeChanged(_ context.Context, _ DeliveryMode) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyDeadLettered logs the quarantined message.
func (n *LoggingNotificationService) NotifyDeadLettered(_ context.Context, dl model.DeadLetter) error {
	n.logger.Warnf("Message dead-lettered: broker=%s, topic=%s, attempts=%d, reason=%s",
		dl.Broker, dl.Topic, dl.AttemptCount, dl.FailureReason)
	return nil
}

// NotifyDeliveryFailure logs the failed delivery attempt.
func (n *LoggingNotificationService) NotifyDeliveryFailure(_ context.Context, row *model.OutboxRow, err error) error {
	n.logger.Warnf("Delivery failed: outbox_id=%d, broker=%s, topic=%s, attempt=%d, error=%v",
		row.ID, row.Broker, row.Topic, row.AttemptCount, err)
	return nil
}

// NotifyModeChanged logs the mode transition.
func (n *LoggingNotificationService) NotifyModeChanged(_ context.Context, mode DeliveryMode) error {
	n.logger.Infof("Delivery mode changed: mode=%s", mode)
	return nil
}

package mqpub

import (
	"fmt"
	"time"

	"github.com/coregx/mqpub/retry"
)

// Option is a function that configures a DrainWorker.
//
// Example:
//
//	worker, err := mqpub.NewDrainWorker(
//	    mqpub.WithRepositories(outboxRepo, dlqRepo),
//	    mqpub.WithQueues(modeState, ring),
//	    mqpub.WithGateway(gateway),
//	    mqpub.WithLogger(logger),
//	    mqpub.WithBatchSize(200), // optional
//	)
type Option func(*DrainWorker) error

// WithRepositories sets the required persistence dependencies.
// Both repositories are required and must not be nil.
func WithRepositories(outboxRepo OutboxRepository, dlqRepo DeadLetterRepository) Option {
	return func(w *DrainWorker) error {
		if outboxRepo == nil {
			return fmt.Errorf("outboxRepo cannot be nil")
		}
		if dlqRepo == nil {
			return fmt.Errorf("dlqRepo cannot be nil")
		}
		w.outbox = outboxRepo
		w.dlq = dlqRepo
		return nil
	}
}

// WithQueues sets the shared mode state and the hot-path ring queue.
// Both are required and must be the same instances the router uses.
func WithQueues(modeState *ModeState, ring *RingQueue) Option {
	return func(w *DrainWorker) error {
		if modeState == nil {
			return fmt.Errorf("modeState cannot be nil")
		}
		if ring == nil {
			return fmt.Errorf("ring cannot be nil")
		}
		w.modeState = modeState
		w.ring = ring
		return nil
	}
}

// WithGateway sets the broker gateway that performs the actual publishes.
func WithGateway(gateway BrokerGateway) Option {
	return func(w *DrainWorker) error {
		if gateway == nil {
			return fmt.Errorf("gateway cannot be nil")
		}
		w.gateway = gateway
		return nil
	}
}

// WithLogger sets the logger instance for the drain worker.
//
// Use NoopLogger for silent operation or implement Logger to integrate with
// your logging system (zap, logrus, etc.).
func WithLogger(logger Logger) Option {
	return func(w *DrainWorker) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		w.logger = logger
		return nil
	}
}

// WithRetryStrategy sets a custom retry strategy.
// If not provided, retry.DefaultStrategy() is used: 1s doubling to a 30s
// cap, dead-letter after 5 attempts.
func WithRetryStrategy(strategy retry.Strategy) Option {
	return func(w *DrainWorker) error {
		w.retryStrategy = strategy
		return nil
	}
}

// WithBatchSize sets the number of outbox rows claimed per cycle.
// Default is 500. Must be > 0.
//
// The batch bounds per-cycle work so a large backlog cannot starve
// connectivity checks or ring draining.
func WithBatchSize(size int) Option {
	return func(w *DrainWorker) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be > 0, got %d", size)
		}
		w.batchSize = size
		return nil
	}
}

// WithNotifications sets an optional notification service.
// If not provided, notifications are disabled.
//
// The service receives callbacks for delivery failures, dead-lettered
// messages and mode changes. Use it to integrate with alerting systems.
func WithNotifications(service NotificationService) Option {
	return func(w *DrainWorker) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		w.notificationService = service
		return nil
	}
}

// WithPruning sets the dead letter prune cadence and retention horizon.
// Defaults: prune hourly, retain 30 days.
func WithPruning(interval, retention time.Duration) Option {
	return func(w *DrainWorker) error {
		if interval <= 0 {
			return fmt.Errorf("prune interval must be > 0, got %v", interval)
		}
		if retention <= 0 {
			return fmt.Errorf("retention must be > 0, got %v", retention)
		}
		w.pruneInterval = interval
		w.retention = retention
		return nil
	}
}

package mqpub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/mqpub/model"
	"github.com/coregx/mqpub/retry"
)

// DrainWorker is the single long-lived loop that owns both delivery paths.
// Each cycle it evaluates broker connectivity, applies mode transitions,
// drains the outbox before the ring queue, and applies backoff and
// dead-lettering to failed deliveries.
//
// Key responsibilities:
//   - Evaluate hot/cold mode transitions (sole owner of COLD→HOT)
//   - Drain due outbox rows in FIFO order, acknowledge on success
//   - Retry failed rows with exponential backoff, quarantine poison messages
//   - Drain the ring queue while hot; respill failed pops to the outbox
//   - Prune expired dead letters on a coarser cadence
//
// The worker is the sole writer of mode state (producers may only trip
// HOT→COLD on ring overflow) and of outbox row lifecycle fields. Drain-path
// errors never propagate to producers: they are recorded on the row and
// either retried or dead-lettered. Only storage-level faults abort a cycle,
// and the whole loop retries after the poll interval.
type DrainWorker struct {
	outbox              OutboxRepository
	dlq                 DeadLetterRepository
	gateway             BrokerGateway
	modeState           *ModeState
	ring                *RingQueue
	retryStrategy       retry.Strategy
	logger              Logger
	notificationService NotificationService
	batchSize           int
	pruneInterval       time.Duration
	retention           time.Duration
	lastPrune           time.Time
}

// NewDrainWorker creates a new drain worker with the provided options.
//
// Required options:
//   - WithRepositories: outbox and dead letter repositories
//   - WithQueues: mode state and ring queue
//   - WithGateway: broker gateway
//   - WithLogger: logger instance
//
// Optional options:
//   - WithRetryStrategy: custom backoff (default: retry.DefaultStrategy())
//   - WithBatchSize: outbox batch size (default: 500)
//   - WithNotifications: notification service (default: none)
//   - WithPruning: dead letter prune cadence and retention
//     (default: hourly, 30 days)
//
// Example:
//
//	worker, err := mqpub.NewDrainWorker(
//	    mqpub.WithRepositories(outboxRepo, dlqRepo),
//	    mqpub.WithQueues(modeState, ring),
//	    mqpub.WithGateway(gateway),
//	    mqpub.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewDrainWorker(opts ...Option) (*DrainWorker, error) {
	w := &DrainWorker{
		retryStrategy:       retry.DefaultStrategy(),
		batchSize:           500,
		pruneInterval:       time.Hour,
		retention:           30 * 24 * time.Hour,
		notificationService: &NoOpNotificationService{},
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	if w.outbox == nil {
		return nil, NewError(ErrCodeConfiguration, "OutboxRepository is required (use WithRepositories)")
	}
	if w.dlq == nil {
		return nil, NewError(ErrCodeConfiguration, "DeadLetterRepository is required (use WithRepositories)")
	}
	if w.modeState == nil {
		return nil, NewError(ErrCodeConfiguration, "ModeState is required (use WithQueues)")
	}
	if w.ring == nil {
		return nil, NewError(ErrCodeConfiguration, "RingQueue is required (use WithQueues)")
	}
	if w.gateway == nil {
		return nil, NewError(ErrCodeConfiguration, "BrokerGateway is required (use WithGateway)")
	}
	if w.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithLogger)")
	}

	return w, nil
}

// Run starts the drain loop and blocks until the context is canceled.
// One cycle runs immediately so the initial mode is recomputed from observed
// broker connectivity and outbox occupancy rather than trusted from any
// earlier state; subsequent cycles run at the poll interval.
//
// Typically run in a goroutine:
//
//	go worker.Run(ctx, 100*time.Millisecond)
func (w *DrainWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("Drain worker started")
	w.processCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Drain worker stopped")
			return
		case <-ticker.C:
			w.processCycle(ctx)
		}
	}
}

// processCycle performs one full drain cycle, in order: mode evaluation,
// outbox drain, ring drain, periodic dead letter pruning.
func (w *DrainWorker) processCycle(ctx context.Context) {
	w.evaluateMode(ctx)

	outboxCount, err := w.DrainOutbox(ctx)
	if err != nil {
		w.logger.Errorf("Error draining outbox: %v", err)
	}

	ringCount := w.DrainRing(ctx)

	if time.Since(w.lastPrune) >= w.pruneInterval {
		w.lastPrune = time.Now()
		if _, err := w.PruneDeadLetters(ctx); err != nil {
			w.logger.Errorf("Error pruning dead letters: %v", err)
		}
	}

	if outboxCount > 0 || ringCount > 0 {
		w.logger.Debugf("Cycle processed: outbox=%d, ring=%d", outboxCount, ringCount)
	}
}

// evaluateMode applies the mode state machine once per cycle.
//
// HOT→COLD fires when any configured broker is not connected. COLD→HOT fires
// only when every broker is connected AND the outbox reports zero pending
// rows, counting rows not yet due for retry — a poison backlog keeps the
// engine cold. That conjunction is the ordering guarantee: outage traffic is
// fully flushed before new traffic returns to the reorder-prone hot path.
func (w *DrainWorker) evaluateMode(ctx context.Context) {
	connected := w.gateway.AllConnected()

	switch w.modeState.Mode() {
	case ModeHot:
		if !connected {
			w.transition(ctx, ModeCold, "broker disconnected")
		}
	case ModeCold:
		if !connected {
			return
		}
		pending, err := w.outbox.CountPending(ctx)
		if err != nil {
			w.logger.Errorf("Failed to count pending outbox rows: %v", err)
			return
		}
		w.modeState.SetPending(int64(pending))
		if pending == 0 {
			w.transition(ctx, ModeHot, "brokers connected, outbox flushed")
		}
	}
}

// transition switches the delivery mode, logging and notifying on change.
// Transitions are never rolled back; a spurious switch is corrected by a
// later cycle, not reverted within this one.
func (w *DrainWorker) transition(ctx context.Context, mode DeliveryMode, reason string) {
	if !w.modeState.Set(mode) {
		return
	}
	w.logger.Infof("Delivery mode changed to %s: %s", mode, reason)
	if err := w.notificationService.NotifyModeChanged(ctx, mode); err != nil {
		w.logger.Warnf("Failed to send mode change notification: %v", err)
	}
}

// DrainOutbox claims one batch of due outbox rows and delivers them in
// created_at order. Successes are acknowledged (deleted); failures are
// rescheduled with backoff or quarantined once the attempt ceiling is hit.
//
// Rows destined for a disconnected broker are skipped without consuming an
// attempt; their claim lease simply expires. Attempts measure broker
// verdicts on the message, not outage cycles.
//
// The batch size bounds per-cycle work so a large backlog cannot starve
// connectivity checks or ring draining. Returns the number of rows
// successfully published.
func (w *DrainWorker) DrainOutbox(ctx context.Context) (int, error) {
	rows, err := w.outbox.ClaimDue(ctx, w.batchSize)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to claim due outbox rows: %w", err)
	}

	published := 0
	for i := range rows {
		row := &rows[i]

		if !w.gateway.Connected(row.Broker) {
			w.logger.Debugf("Skipping outbox row %d: broker %s not connected", row.ID, row.Broker)
			continue
		}

		if err := w.gateway.Publish(ctx, row.Message()); err != nil {
			w.handleRowFailure(ctx, row, err)
			continue
		}

		if err := w.outbox.Delete(ctx, row); err != nil {
			// Row will be re-claimed and re-published once the lease
			// expires; downstream consumers must tolerate the duplicate.
			w.logger.Errorf("Failed to acknowledge outbox row %d: %v", row.ID, err)
			continue
		}
		w.modeState.AddPending(-1)
		published++
	}

	return published, nil
}

// handleRowFailure records a failed delivery attempt: schedules the next
// retry with backoff, or quarantines the row once attempts are exhausted.
func (w *DrainWorker) handleRowFailure(ctx context.Context, row *model.OutboxRow, deliveryErr error) {
	retryDelay := w.retryStrategy.Delay(row.AttemptCount + 1)
	row.MarkFailed(deliveryErr, retryDelay)

	if err := w.notificationService.NotifyDeliveryFailure(ctx, row, deliveryErr); err != nil {
		w.logger.Warnf("Failed to send delivery failure notification: %v", err)
	}

	if w.retryStrategy.ShouldDeadLetter(row.AttemptCount) {
		w.logger.Warnf("Quarantining outbox row %d (broker=%s, topic=%s, attempts=%d)",
			row.ID, row.Broker, row.Topic, row.AttemptCount)
		if err := w.moveToDeadLetter(ctx, row); err != nil {
			w.logger.Errorf("Failed to dead-letter outbox row %d: %v", row.ID, err)
		}
		return
	}

	if _, err := w.outbox.Save(ctx, row); err != nil {
		w.logger.Errorf("Failed to update outbox row %d after failure: %v", row.ID, err)
		return
	}

	w.logger.Warnf("Delivery failed for outbox row %d (broker=%s, topic=%s, attempts=%d, next_retry=%v): %v",
		row.ID, row.Broker, row.Topic, row.AttemptCount, retryDelay, deliveryErr)
}

// moveToDeadLetter quarantines an exhausted outbox row: snapshots it into the
// dead letter table, then removes it from the outbox.
func (w *DrainWorker) moveToDeadLetter(ctx context.Context, row *model.OutboxRow) error {
	reason := fmt.Sprintf("Max delivery attempts exceeded (%d >= %d)",
		row.AttemptCount, w.retryStrategy.MaxAttempts)

	dl := model.NewDeadLetter(*row, reason)
	dl, err := w.dlq.Save(ctx, dl)
	if err != nil {
		// Keep the row in the outbox so the message is not lost; MarkFailed
		// already scheduled it, so the migration is retried once the backoff
		// elapses.
		if _, saveErr := w.outbox.Save(ctx, row); saveErr != nil {
			w.logger.Errorf("Failed to reschedule outbox row %d after dead-letter failure: %v", row.ID, saveErr)
		}
		return fmt.Errorf("failed to save dead letter: %w", err)
	}

	if err := w.outbox.Delete(ctx, row); err != nil {
		w.logger.Errorf("Failed to delete outbox row %d after dead-lettering: %v", row.ID, err)
		// Dead letter entry already exists; do not fail the migration.
	}

	w.modeState.AddPending(-1)
	w.modeState.AddDeadLettered(1)
	w.gateway.NoteDeadLettered(row.Broker)

	w.logger.Infof("Moved message to dead letters (outbox_id=%d, dead_letter_id=%d, broker=%s, topic=%s, attempts=%d)",
		row.ID, dl.ID, row.Broker, row.Topic, row.AttemptCount)

	if err := w.notificationService.NotifyDeadLettered(ctx, dl); err != nil {
		w.logger.Warnf("Failed to send dead letter notification: %v", err)
	}

	return nil
}

// DrainRing pops and publishes ring messages while the mode stays hot.
// A publish failure re-routes the popped message into the outbox with the
// failed attempt recorded — never retried from the ring in place. This opens
// a narrow reordering window relative to rows drained from the outbox
// moments earlier; the window is accepted and documented rather than closed
// with global ordering machinery.
//
// Returns the number of messages successfully published.
func (w *DrainWorker) DrainRing(ctx context.Context) int {
	published := 0
	for w.modeState.Mode() == ModeHot {
		m, ok := w.ring.Pop()
		if !ok {
			break
		}

		if err := w.gateway.Publish(ctx, m); err != nil {
			w.respill(ctx, m, err)
			continue
		}
		published++
	}
	return published
}

// respill moves a message that failed on the hot path into the outbox,
// carrying the failed attempt so poison accounting survives the path switch.
func (w *DrainWorker) respill(ctx context.Context, m model.Message, deliveryErr error) {
	row := model.NewOutboxRow(m)
	row.MarkFailed(deliveryErr, w.retryStrategy.Delay(1))

	if _, err := w.outbox.Save(ctx, &row); err != nil {
		// No lower fallback exists; the message is lost. This mirrors the
		// volatile-path contract: durability starts at the outbox.
		w.logger.Errorf("Failed to respill message (broker=%s, topic=%s), message dropped: %v",
			m.Broker, m.Topic, err)
		return
	}
	w.modeState.AddPending(1)

	w.logger.Warnf("Ring publish failed, message respilled to outbox (outbox_id=%d, broker=%s, topic=%s): %v",
		row.ID, m.Broker, m.Topic, deliveryErr)
}

// PruneDeadLetters deletes dead letters older than the retention horizon.
// Runs on a coarser cadence than the drain cycle.
// Returns the number of pruned entries.
func (w *DrainWorker) PruneDeadLetters(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.retention)
	pruned, err := w.dlq.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune dead letters: %w", err)
	}
	if pruned > 0 {
		w.logger.Infof("Pruned %d expired dead letters", pruned)
	}
	return pruned, nil
}

// RetrySchedule returns a human-readable description of the retry schedule.
func (w *DrainWorker) RetrySchedule() string {
	return w.retryStrategy.Schedule()
}

// Status assembles a read-only snapshot of the engine for the observable
// surface: current mode, pending and dead letter counts, per-broker state.
func (w *DrainWorker) Status(ctx context.Context) (EngineStatus, error) {
	deadLetters, err := w.dlq.Count(ctx)
	if err != nil {
		return EngineStatus{}, fmt.Errorf("failed to count dead letters: %w", err)
	}

	return EngineStatus{
		Mode:          w.modeState.Mode().String(),
		ModeChangedAt: w.modeState.ChangedAt(),
		RingDepth:     w.ring.Len(),
		RingCapacity:  w.ring.Cap(),
		OutboxPending: w.modeState.Pending(),
		DeadLetters:   deadLetters,
		DeadLettered:  w.modeState.DeadLettered(),
		Brokers:       w.gateway.Statuses(),
	}, nil
}

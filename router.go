package mqpub

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/mqpub/model"
)

// OverflowPolicy selects how the router reacts to a full ring queue.
type OverflowPolicy int

const (
	// SpillImmediately redirects the message to the outbox with zero wait.
	SpillImmediately OverflowPolicy = iota

	// SpillAfterWait blocks the producer up to a bounded timeout for a free
	// slot, then spills to the outbox. The only blocking path in Route.
	SpillAfterWait
)

// DefaultPushWait bounds the producer wait under the SpillAfterWait policy.
const DefaultPushWait = 10 * time.Millisecond

// Router is the entry point called once per outgoing message. It reads the
// delivery mode and writes to the ring queue (hot) or the outbox (cold).
//
// Route never blocks beyond the optional bounded full-queue wait and never
// waits on a broker. Producer-facing errors (oversized message, unknown
// broker, outbox storage failure) surface synchronously; everything else is
// the drain worker's problem.
type Router struct {
	modeState *ModeState
	ring      *RingQueue
	outbox    OutboxRepository
	gateway   BrokerGateway
	logger    Logger
	overflow  OverflowPolicy
	pushWait  time.Duration
	slotSize  int
}

// RouterOption configures a Router.
type RouterOption func(*Router) error

// NewRouter creates a new Router with the provided options.
//
// Required options:
//   - WithRouterQueues: mode state, ring queue, and outbox repository
//   - WithRouterGateway: broker gateway (for the unknown-broker check)
//   - WithRouterLogger: logger instance
//
// Optional options:
//   - WithOverflowPolicy: full-ring behavior (default: SpillImmediately)
//   - WithSlotSize: maximum topic+payload bytes per ring slot (default: 2048)
func NewRouter(opts ...RouterOption) (*Router, error) {
	r := &Router{
		overflow: SpillImmediately,
		pushWait: DefaultPushWait,
		slotSize: model.DefaultSlotSize,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply router option", err)
		}
	}

	if r.modeState == nil {
		return nil, NewError(ErrCodeConfiguration, "ModeState is required (use WithRouterQueues)")
	}
	if r.ring == nil {
		return nil, NewError(ErrCodeConfiguration, "RingQueue is required (use WithRouterQueues)")
	}
	if r.outbox == nil {
		return nil, NewError(ErrCodeConfiguration, "OutboxRepository is required (use WithRouterQueues)")
	}
	if r.gateway == nil {
		return nil, NewError(ErrCodeConfiguration, "BrokerGateway is required (use WithRouterGateway)")
	}
	if r.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithRouterLogger)")
	}

	return r, nil
}

// WithRouterQueues sets the shared state and both delivery paths.
func WithRouterQueues(modeState *ModeState, ring *RingQueue, outbox OutboxRepository) RouterOption {
	return func(r *Router) error {
		if modeState == nil {
			return fmt.Errorf("modeState cannot be nil")
		}
		if ring == nil {
			return fmt.Errorf("ring cannot be nil")
		}
		if outbox == nil {
			return fmt.Errorf("outbox cannot be nil")
		}
		r.modeState = modeState
		r.ring = ring
		r.outbox = outbox
		return nil
	}
}

// WithRouterGateway sets the broker gateway used for the unknown-broker check.
func WithRouterGateway(gateway BrokerGateway) RouterOption {
	return func(r *Router) error {
		if gateway == nil {
			return fmt.Errorf("gateway cannot be nil")
		}
		r.gateway = gateway
		return nil
	}
}

// WithRouterLogger sets the logger instance.
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *Router) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithOverflowPolicy sets the full-ring behavior. For SpillAfterWait, wait
// bounds how long a producer may block for a free slot; it is ignored for
// SpillImmediately.
func WithOverflowPolicy(policy OverflowPolicy, wait time.Duration) RouterOption {
	return func(r *Router) error {
		if policy == SpillAfterWait && wait <= 0 {
			return fmt.Errorf("overflow wait must be > 0, got %v", wait)
		}
		r.overflow = policy
		if wait > 0 {
			r.pushWait = wait
		}
		return nil
	}
}

// WithSlotSize sets the maximum topic+payload size accepted into a ring slot.
// Larger messages are rejected as oversized rather than silently truncated.
func WithSlotSize(size int) RouterOption {
	return func(r *Router) error {
		if size <= 0 {
			return fmt.Errorf("slot size must be > 0, got %d", size)
		}
		r.slotSize = size
		return nil
	}
}

// Route accepts one outgoing message and commits it to a delivery path.
//
// The process:
//  1. Validate size limits and QoS; reject oversized input synchronously
//  2. Reject unknown destination brokers
//  3. Mode HOT: push to the ring; on full, spill to the outbox and trip COLD
//  4. Mode COLD: enqueue on the outbox
//
// An outbox insert failure is returned to the producer as a hard error —
// the outbox is the last line of durability.
func (r *Router) Route(ctx context.Context, broker, topic string, payload []byte, qos byte, retain bool) error {
	m := model.NewMessage(broker, topic, payload, qos, retain)

	if err := m.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid message", err)
	}
	if m.Size() > r.slotSize {
		return NewError(ErrCodeValidation,
			fmt.Sprintf("message size %d exceeds slot capacity %d", m.Size(), r.slotSize))
	}
	if !r.gateway.Knows(broker) {
		return NewError(ErrCodeUnknownBroker, fmt.Sprintf("broker not configured: %s", broker))
	}

	if r.modeState.Mode() == ModeHot {
		if r.pushHot(m) {
			return nil
		}

		// Ring full: degrade to the durable path. The overflow itself is the
		// hot→cold trigger.
		if r.modeState.TripCold() {
			r.logger.Warnf("Ring queue full (capacity=%d), switching to cold delivery", r.ring.Cap())
		}
	}

	return r.enqueue(ctx, m)
}

// pushHot attempts the hot path under the configured overflow policy.
func (r *Router) pushHot(m model.Message) bool {
	if r.overflow == SpillAfterWait {
		return r.ring.PushWait(m, r.pushWait)
	}
	return r.ring.Push(m)
}

// enqueue writes the message to the outbox (cold path).
func (r *Router) enqueue(ctx context.Context, m model.Message) error {
	row := model.NewOutboxRow(m)
	if _, err := r.outbox.Save(ctx, &row); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to enqueue message", err)
	}
	r.modeState.AddPending(1)

	r.logger.Debugf("Message enqueued: outbox_id=%d, broker=%s, topic=%s", row.ID, m.Broker, m.Topic)
	return nil
}

package mqpub

import (
	"sync/atomic"
	"time"
)

// DeliveryMode selects which path the router sends new messages down.
type DeliveryMode uint32

const (
	// ModeHot routes messages through the volatile in-memory ring queue.
	// Active while every configured broker is connected and the outbox is empty.
	ModeHot DeliveryMode = iota

	// ModeCold routes messages through the durable outbox.
	// Active while any broker is down or an outage backlog remains unflushed.
	ModeCold
)

// String returns the mode name.
func (m DeliveryMode) String() string {
	switch m {
	case ModeHot:
		return "hot"
	case ModeCold:
		return "cold"
	default:
		return "unknown"
	}
}

// ModeState is the process-wide delivery mode plus the counters the mode
// decision depends on. It is a single-writer/many-reader value: the drain
// worker owns all transitions except the ring-overflow trip, and producers
// read it without locking on every Route call.
//
// Readers tolerate a one-cycle staleness window. A producer reading a stale
// mode at worst routes one extra message to the "wrong" but still-correct
// path; the next drain cycle converges.
//
// The pending counter is an approximation maintained by increments and
// decrements rather than a point-in-time row count. Under high write
// concurrency a COLD→HOT evaluation could observe a low value transiently;
// the worker re-checks the store before transitioning, and a later
// disconnect forces COLD again regardless.
type ModeState struct {
	mode         atomic.Uint32
	changedAt    atomic.Int64 // unix nanoseconds of last transition
	pending      atomic.Int64 // approximate outbox row count
	deadLettered atomic.Uint64
}

// NewModeState creates mode state initialized to the given mode.
func NewModeState(initial DeliveryMode) *ModeState {
	s := &ModeState{}
	s.mode.Store(uint32(initial))
	s.changedAt.Store(time.Now().UnixNano())
	return s
}

// Mode returns the current delivery mode. Never blocks.
func (s *ModeState) Mode() DeliveryMode {
	return DeliveryMode(s.mode.Load())
}

// ChangedAt returns the timestamp of the last mode transition.
func (s *ModeState) ChangedAt() time.Time {
	return time.Unix(0, s.changedAt.Load())
}

// Set transitions to the given mode and records the transition timestamp.
// Returns true if the mode actually changed. Reserved to the drain worker.
func (s *ModeState) Set(mode DeliveryMode) bool {
	prev := s.mode.Swap(uint32(mode))
	if DeliveryMode(prev) == mode {
		return false
	}
	s.changedAt.Store(time.Now().UnixNano())
	return true
}

// TripCold performs the one transition allowed outside the drain worker:
// an immediate HOT→COLD switch when a ring push finds the queue full.
// Implemented as a compare-and-swap so concurrent producers race harmlessly;
// returns true for the single caller that performed the transition.
func (s *ModeState) TripCold() bool {
	if !s.mode.CompareAndSwap(uint32(ModeHot), uint32(ModeCold)) {
		return false
	}
	s.changedAt.Store(time.Now().UnixNano())
	return true
}

// Pending returns the approximate number of outbox rows.
func (s *ModeState) Pending() int64 {
	return s.pending.Load()
}

// AddPending adjusts the approximate outbox row count.
func (s *ModeState) AddPending(delta int64) {
	s.pending.Add(delta)
}

// SetPending overwrites the approximate outbox row count with an observed
// value. The drain worker calls this after a precise store count.
func (s *ModeState) SetPending(n int64) {
	s.pending.Store(n)
}

// DeadLettered returns the lifetime dead letter count.
func (s *ModeState) DeadLettered() uint64 {
	return s.deadLettered.Load()
}

// AddDeadLettered increments the lifetime dead letter count.
func (s *ModeState) AddDeadLettered(n uint64) {
	s.deadLettered.Add(n)
}

package mqpub

import (
	"context"

	"github.com/coregx/mqpub/model"
)

// BrokerGateway is the broker-publish capability the engine requires from
// the protocol collaborator. The engine never speaks the wire protocol
// itself: it only needs per-broker connectivity signals and a publish call.
//
// Implementations own all broker runtime state (connection lifecycle,
// sent/failed/dead-lettered counters, last error) and must expose it as
// read-only snapshots. See adapters/mqtt for the paho-based implementation.
type BrokerGateway interface {
	// Brokers returns the names of all configured active brokers.
	Brokers() []string

	// Knows reports whether the named broker is configured.
	// The router rejects messages for unknown brokers synchronously.
	Knows(broker string) bool

	// Connected reports whether the named broker is currently connected.
	Connected(broker string) bool

	// AllConnected reports whether every configured broker is connected.
	// One input to the COLD→HOT transition decision.
	AllConnected() bool

	// Publish delivers a message to its destination broker.
	// Returns an error on timeout, broker rejection, or disconnection;
	// the caller decides between retry, respill and dead-lettering.
	Publish(ctx context.Context, m model.Message) error

	// Status returns a snapshot of one broker's runtime state.
	// The second return value is false for unknown brokers.
	Status(broker string) (model.BrokerStatus, bool)

	// Statuses returns snapshots for all configured brokers.
	Statuses() []model.BrokerStatus

	// NoteDeadLettered increments the broker's dead-lettered counter.
	// Called by the drain worker when it quarantines a message; the counter
	// itself stays with the gateway, which owns all broker runtime state.
	NoteDeadLettered(broker string)
}

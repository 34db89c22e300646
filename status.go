package mqpub

import (
	"time"

	"github.com/coregx/mqpub/model"
)

// EngineStatus is a read-only snapshot of the engine for the observable
// surface (status endpoints, dashboards, CLI). Assembling it never mutates
// core state.
type EngineStatus struct {
	Mode          string               `json:"mode"`
	ModeChangedAt time.Time            `json:"modeChangedAt"`
	RingDepth     int                  `json:"ringDepth"`
	RingCapacity  int                  `json:"ringCapacity"`
	OutboxPending int64                `json:"outboxPending"` // approximate
	DeadLetters   int                  `json:"deadLetters"`
	DeadLettered  uint64               `json:"deadLettered"` // lifetime total
	Brokers       []model.BrokerStatus `json:"brokers"`
}

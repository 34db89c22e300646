package mqpub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryMode_String(t *testing.T) {
	assert.Equal(t, "hot", ModeHot.String())
	assert.Equal(t, "cold", ModeCold.String())
	assert.Equal(t, "unknown", DeliveryMode(99).String())
}

func TestModeState_Set(t *testing.T) {
	s := NewModeState(ModeCold)
	assert.Equal(t, ModeCold, s.Mode())

	changedAt := s.ChangedAt()

	// Actual transition
	assert.True(t, s.Set(ModeHot))
	assert.Equal(t, ModeHot, s.Mode())
	assert.True(t, s.ChangedAt().After(changedAt) || s.ChangedAt().Equal(changedAt))

	// Setting the same mode is not a transition
	changedAt = s.ChangedAt()
	assert.False(t, s.Set(ModeHot))
	assert.Equal(t, changedAt, s.ChangedAt())
}

func TestModeState_TripCold(t *testing.T) {
	s := NewModeState(ModeHot)

	assert.True(t, s.TripCold())
	assert.Equal(t, ModeCold, s.Mode())

	// Already cold: no transition
	assert.False(t, s.TripCold())
	assert.Equal(t, ModeCold, s.Mode())
}

func TestModeState_TripCold_SingleWinner(t *testing.T) {
	s := NewModeState(ModeHot)

	const producers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TripCold() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, ModeCold, s.Mode())
}

func TestModeState_PendingCounter(t *testing.T) {
	s := NewModeState(ModeCold)
	assert.Equal(t, int64(0), s.Pending())

	s.AddPending(3)
	s.AddPending(-1)
	assert.Equal(t, int64(2), s.Pending())

	// Worker overwrites the approximation with an observed count
	s.SetPending(10)
	assert.Equal(t, int64(10), s.Pending())
}

func TestModeState_DeadLetteredCounter(t *testing.T) {
	s := NewModeState(ModeHot)
	assert.Equal(t, uint64(0), s.DeadLettered())

	s.AddDeadLettered(1)
	s.AddDeadLettered(2)
	assert.Equal(t, uint64(3), s.DeadLettered())
}

package mqpub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/mqpub/model"
)

func newTestRouter(t *testing.T, modeState *ModeState, ring *RingQueue, outbox OutboxRepository, gateway BrokerGateway, opts ...RouterOption) *Router {
	t.Helper()
	all := append([]RouterOption{
		WithRouterQueues(modeState, ring, outbox),
		WithRouterGateway(gateway),
		WithRouterLogger(&NoopLogger{}),
	}, opts...)
	router, err := NewRouter(all...)
	require.NoError(t, err)
	return router
}

func TestNewRouter_RequiredOptions(t *testing.T) {
	_, err := NewRouter()
	assert.Error(t, err)

	ring, err := NewRingQueue(8)
	require.NoError(t, err)

	_, err = NewRouter(
		WithRouterQueues(NewModeState(ModeHot), ring, newFakeOutboxRepository()),
		WithRouterGateway(newFakeGateway("edge-1")),
	)
	assert.Error(t, err) // logger missing
}

func TestRouter_Route_Validation(t *testing.T) {
	ring, err := NewRingQueue(8)
	require.NoError(t, err)
	outbox := newFakeOutboxRepository()
	router := newTestRouter(t, NewModeState(ModeHot), ring, outbox, newFakeGateway("edge-1"))

	ctx := context.Background()

	tests := []struct {
		name    string
		broker  string
		topic   string
		payload []byte
		qos     byte
		code    string
	}{
		{
			name:   "Empty topic",
			broker: "edge-1",
			topic:  "",
			code:   ErrCodeValidation,
		},
		{
			name:   "Invalid QoS",
			broker: "edge-1",
			topic:  "sensors/temp",
			qos:    3,
			code:   ErrCodeValidation,
		},
		{
			name:    "Message exceeds slot capacity",
			broker:  "edge-1",
			topic:   "sensors/blob",
			payload: make([]byte, model.DefaultSlotSize+1),
			code:    ErrCodeValidation,
		},
		{
			name:   "Unknown broker",
			broker: "nowhere",
			topic:  "sensors/temp",
			code:   ErrCodeUnknownBroker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := router.Route(ctx, tt.broker, tt.topic, tt.payload, tt.qos, false)
			require.Error(t, err)

			var mqErr *Error
			require.True(t, errors.As(err, &mqErr))
			assert.Equal(t, tt.code, mqErr.Code)
		})
	}

	// Nothing reached either path
	assert.Equal(t, 0, ring.Len())
	assert.Equal(t, 0, outbox.count())
}

func TestRouter_Route_HotPath(t *testing.T) {
	ring, err := NewRingQueue(8)
	require.NoError(t, err)
	outbox := newFakeOutboxRepository()
	modeState := NewModeState(ModeHot)
	router := newTestRouter(t, modeState, ring, outbox, newFakeGateway("edge-1"))

	err = router.Route(context.Background(), "edge-1", "sensors/temp", []byte("21.5"), 1, true)
	require.NoError(t, err)

	// Hot path: message lands in the ring, outbox untouched
	assert.Equal(t, 1, ring.Len())
	assert.Equal(t, 0, outbox.count())

	m, ok := ring.Pop()
	require.True(t, ok)
	assert.Equal(t, "sensors/temp", m.Topic)
	assert.Equal(t, byte(1), m.QoS)
	assert.True(t, m.Retain)
}

func TestRouter_Route_ColdPath(t *testing.T) {
	ring, err := NewRingQueue(8)
	require.NoError(t, err)
	outbox := newFakeOutboxRepository()
	modeState := NewModeState(ModeCold)
	router := newTestRouter(t, modeState, ring, outbox, newFakeGateway("edge-1"))

	err = router.Route(context.Background(), "edge-1", "sensors/temp", []byte("21.5"), 2, false)
	require.NoError(t, err)

	// Cold path: ring untouched, row persisted and due immediately
	assert.Equal(t, 0, ring.Len())
	require.Equal(t, 1, outbox.count())
	assert.Equal(t, int64(1), modeState.Pending())

	row := outbox.all()[0]
	assert.Equal(t, "sensors/temp", row.Topic)
	assert.Equal(t, byte(2), model.FlagsQoS(row.Flags))
	assert.Equal(t, 0, row.AttemptCount)
}

func TestRouter_Route_OverflowSpillsAndTripsCold(t *testing.T) {
	ring, err := NewRingQueue(2)
	require.NoError(t, err)
	outbox := newFakeOutboxRepository()
	modeState := NewModeState(ModeHot)
	router := newTestRouter(t, modeState, ring, outbox, newFakeGateway("edge-1"))

	ctx := context.Background()
	require.NoError(t, router.Route(ctx, "edge-1", "sensors/1", nil, 0, false))
	require.NoError(t, router.Route(ctx, "edge-1", "sensors/2", nil, 0, false))
	assert.Equal(t, ModeHot, modeState.Mode())

	// Third message overflows the ring: spilled to the outbox, mode trips cold
	require.NoError(t, router.Route(ctx, "edge-1", "sensors/3", nil, 0, false))
	assert.Equal(t, ModeCold, modeState.Mode())
	assert.Equal(t, 2, ring.Len())
	require.Equal(t, 1, outbox.count())
	assert.Equal(t, "sensors/3", outbox.all()[0].Topic)

	// Subsequent messages follow the cold path without touching the ring
	require.NoError(t, router.Route(ctx, "edge-1", "sensors/4", nil, 0, false))
	assert.Equal(t, 2, ring.Len())
	assert.Equal(t, 2, outbox.count())
}

func TestRouter_Route_OutboxFailureSurfaces(t *testing.T) {
	ring, err := NewRingQueue(8)
	require.NoError(t, err)
	outbox := newFakeOutboxRepository()
	outbox.saveErr = errors.New("disk full")
	modeState := NewModeState(ModeCold)
	router := newTestRouter(t, modeState, ring, outbox, newFakeGateway("edge-1"))

	err = router.Route(context.Background(), "edge-1", "sensors/temp", nil, 0, false)
	require.Error(t, err)

	var mqErr *Error
	require.True(t, errors.As(err, &mqErr))
	assert.Equal(t, ErrCodeDatabase, mqErr.Code)
	assert.True(t, strings.Contains(err.Error(), "disk full"))
	assert.Equal(t, int64(0), modeState.Pending())
}

func TestRouter_Route_CustomSlotSize(t *testing.T) {
	ring, err := NewRingQueue(8)
	require.NoError(t, err)
	router := newTestRouter(t, NewModeState(ModeHot), ring, newFakeOutboxRepository(),
		newFakeGateway("edge-1"), WithSlotSize(64))

	ctx := context.Background()
	assert.NoError(t, router.Route(ctx, "edge-1", "t", make([]byte, 63), 0, false))
	assert.Error(t, router.Route(ctx, "edge-1", "t", make([]byte, 64), 0, false))
}

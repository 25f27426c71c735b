package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// recordingHandler collects the events it receives.
type recordingHandler struct {
	types []EventType
	mu    sync.Mutex
	seen  []Event
	done  chan struct{}
	want  int
}

func newRecordingHandler(want int, types ...EventType) *recordingHandler {
	return &recordingHandler{types: types, done: make(chan struct{}), want: want}
}

func (h *recordingHandler) Handle(ctx context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, event)
	if len(h.seen) == h.want {
		close(h.done)
	}
	return nil
}

func (h *recordingHandler) EventTypes() []EventType { return h.types }

func (h *recordingHandler) events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.seen))
	copy(out, h.seen)
	return out
}

func TestEventBus_DeliversToSubscribedTypesOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewEventBus(zerolog.Nop(), 10)
	handler := newRecordingHandler(1, EventAnalysisComplete)
	bus.Subscribe(handler)
	bus.Start(ctx)
	defer bus.Stop()

	assert.NoError(t, bus.Publish(ctx, Event{Type: EventErrorDetected, Source: "intake"}))
	assert.NoError(t, bus.Publish(ctx, Event{Type: EventAnalysisComplete, Source: "analysis", Payload: 42}))

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not receive event in time")
	}

	seen := handler.events()
	assert.Len(t, seen, 1)
	assert.Equal(t, EventAnalysisComplete, seen[0].Type)
	assert.Equal(t, 42, seen[0].Payload)
	assert.NotEmpty(t, seen[0].ID)
	assert.False(t, seen[0].Timestamp.IsZero())
}

func TestEventBus_BufferFull(t *testing.T) {
	bus := NewEventBus(zerolog.Nop(), 1)
	ctx := context.Background()

	// Bus not started, so the single buffer slot fills and the next publish drops.
	assert.NoError(t, bus.Publish(ctx, Event{Type: EventDecisionMade}))
	err := bus.Publish(ctx, Event{Type: EventDecisionMade})
	assert.ErrorIs(t, err, ErrEventBusBufferFull)

	metrics := bus.GetMetrics()
	assert.Equal(t, int64(1), metrics.EventsPublished)
}

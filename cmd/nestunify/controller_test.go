package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nest-unify/internal/bridges/entitybus"
	"github.com/nerrad567/nest-unify/internal/climate"
	"github.com/nerrad567/nest-unify/internal/infrastructure/config"
	"github.com/nerrad567/nest-unify/internal/infrastructure/logging"
	"github.com/nerrad567/nest-unify/internal/pairing"
)

// fakeBusMQTT satisfies entitybus.MQTTClient and lets tests inject
// entity state publications directly into the bridge.
type fakeBusMQTT struct {
	mu       sync.Mutex
	handlers map[string]func(topic string, payload []byte)
}

func newFakeBusMQTT() *fakeBusMQTT {
	return &fakeBusMQTT{handlers: make(map[string]func(string, []byte))}
}

func (f *fakeBusMQTT) Publish(string, []byte, byte, bool) error { return nil }

func (f *fakeBusMQTT) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	f.mu.Lock()
	f.handlers[topic] = handler
	f.mu.Unlock()
	return nil
}

func (f *fakeBusMQTT) IsConnected() bool { return true }

func (f *fakeBusMQTT) emitState(t *testing.T, entityID, payload string) {
	t.Helper()
	f.mu.Lock()
	handler := f.handlers[entitybus.Topics{}.AllStates()]
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("bridge never subscribed to entity states")
	}
	handler(entitybus.Topics{}.State(entityID), []byte(payload))
}

// blockingHistory wedges on the first RecordStateChange until released,
// then records every state it receives.
type blockingHistory struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu       sync.Mutex
	recorded []climate.CompositeState
}

func (h *blockingHistory) RecordStateChange(ctx context.Context, _ string, state climate.CompositeState) error {
	h.once.Do(func() { close(h.started) })
	select {
	case <-h.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	h.mu.Lock()
	h.recorded = append(h.recorded, state)
	h.mu.Unlock()
	return nil
}

func (h *blockingHistory) sawTemperature(want float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, st := range h.recorded {
		if st.CurrentTemperature != nil && *st.CurrentTemperature > want-0.01 {
			return true
		}
	}
	return false
}

func (h *blockingHistory) GetHistory(context.Context, string, int) ([]climate.HistoryEntry, error) {
	return nil, nil
}

func (h *blockingHistory) PruneHistory(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "json"}, "test", io.Discard)
}

// TestStateSinksDoNotBlockIngestion wedges the history sink and verifies
// the pair keeps ingesting upstream events: the composite snapshot must
// advance to the newest temperature while the sink goroutine is stuck.
func TestStateSinksDoNotBlockIngestion(t *testing.T) {
	fake := newFakeBusMQTT()
	bus, err := entitybus.New(entitybus.Options{MQTTClient: fake})
	if err != nil {
		t.Fatalf("creating bridge: %v", err)
	}
	if err := bus.Start(); err != nil {
		t.Fatalf("starting bridge: %v", err)
	}

	history := &blockingHistory{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	defer close(history.release)

	manager := climate.NewManager()
	controller := newPairController(bus, manager, history, nil, nil, quietLogger())

	pair := pairing.Pair{
		ID:           "pair-living-room",
		Name:         "Living Room",
		MatterEntity: "living_room_matter",
		GoogleEntity: "living_room",
	}
	if err := controller.StartPair(context.Background(), pair); err != nil {
		t.Fatalf("StartPair() error = %v", err)
	}
	defer controller.StopPair(pair.ID)

	inst, err := manager.Get(pair.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// First change reaches the history sink, which stays wedged.
	fake.emitState(t, pair.MatterEntity, `{"state":"heat","attributes":{"current_temperature":20.0}}`)
	select {
	case <-history.started:
	case <-time.After(2 * time.Second):
		t.Fatal("history sink was never invoked")
	}

	// Further events must still flow through the aggregator.
	const final = 22.5
	for temp := 20.5; temp <= final; temp += 0.5 {
		fake.emitState(t, pair.MatterEntity,
			fmt.Sprintf(`{"state":"heat","attributes":{"current_temperature":%.1f}}`, temp))
	}

	deadline := time.After(2 * time.Second)
	for {
		st := inst.Aggregator.CurrentState()
		if st.CurrentTemperature != nil && *st.CurrentTemperature == final {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("composite state stuck at %v while history sink blocked", st.CurrentTemperature)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestSinkQueueDeliversLatestState verifies that once a wedged sink
// recovers it still receives a current snapshot, even after overflow
// dropped intermediate states.
func TestSinkQueueDeliversLatestState(t *testing.T) {
	fake := newFakeBusMQTT()
	bus, err := entitybus.New(entitybus.Options{MQTTClient: fake})
	if err != nil {
		t.Fatalf("creating bridge: %v", err)
	}
	if err := bus.Start(); err != nil {
		t.Fatalf("starting bridge: %v", err)
	}

	history := &blockingHistory{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	manager := climate.NewManager()
	controller := newPairController(bus, manager, history, nil, nil, quietLogger())

	pair := pairing.Pair{
		ID:           "pair-bedroom",
		Name:         "Bedroom",
		MatterEntity: "bedroom_matter",
		GoogleEntity: "bedroom",
	}
	if err := controller.StartPair(context.Background(), pair); err != nil {
		t.Fatalf("StartPair() error = %v", err)
	}
	defer controller.StopPair(pair.ID)

	fake.emitState(t, pair.MatterEntity, `{"state":"heat","attributes":{"current_temperature":19.0}}`)
	select {
	case <-history.started:
	case <-time.After(2 * time.Second):
		t.Fatal("history sink was never invoked")
	}

	// More changes than the queue holds while the sink is wedged.
	for i := 0; i < 3*sinkQueueSize; i++ {
		fake.emitState(t, pair.MatterEntity,
			fmt.Sprintf(`{"state":"heat","attributes":{"current_temperature":%.1f}}`, 19.0+float64(i+1)*0.1))
	}

	inst, err := manager.Get(pair.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Wait for ingestion to catch up, then release the sink. The queue
	// drops oldest on overflow, so the newest state must still arrive.
	want := 19.0 + float64(3*sinkQueueSize)*0.1
	deadline := time.After(2 * time.Second)
	for {
		st := inst.Aggregator.CurrentState()
		if st.CurrentTemperature != nil && *st.CurrentTemperature > want-0.01 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("ingestion never caught up, at %v", st.CurrentTemperature)
		case <-time.After(10 * time.Millisecond):
		}
	}
	close(history.release)

	deadline = time.After(2 * time.Second)
	for !history.sawTemperature(want) {
		select {
		case <-deadline:
			t.Fatal("newest state never reached the history sink after release")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

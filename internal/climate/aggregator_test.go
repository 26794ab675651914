package climate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

// fakeClient is a SourceClient that records calls and returns a configured
// error.
type fakeClient struct {
	mu    sync.Mutex
	calls []Command
	err   error
}

func (c *fakeClient) Call(_ context.Context, _ string, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, cmd)
	return c.err
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// newTestAggregator builds an aggregator over two fake clients.
func newTestAggregator() (*Aggregator, *fakeClient, *fakeClient) {
	matterClient := &fakeClient{}
	googleClient := &fakeClient{}
	agg := NewAggregator("Living Room", "climate.living_room_matter", "climate.living_room", matterClient, googleClient)
	return agg, matterClient, googleClient
}

func matterEvent() SourceEvent {
	return SourceEvent{
		EntityID:           "climate.living_room_matter",
		Available:          true,
		CurrentTemperature: fptr(21.0),
		TargetTemperature:  fptr(20.0),
		MinTemp:            fptr(10.0),
		MaxTemp:            fptr(30.0),
	}
}

func googleEvent() SourceEvent {
	return SourceEvent{
		EntityID:           "climate.living_room",
		Available:          true,
		CurrentTemperature: fptr(21.3),
		TargetTemperature:  fptr(20.5),
		HVACMode:           sptr("heat"),
		FanMode:            sptr("auto"),
		Humidity:           fptr(45.0),
		HVACModes:          []string{"off", "heat", "cool", "heat_cool"},
		FanModes:           []string{"on", "auto"},
	}
}

func unavailableEvent(entityID string) SourceEvent {
	return SourceEvent{EntityID: entityID, Available: false}
}

// TestAggregatorInitialState verifies the snapshot before any event.
func TestAggregatorInitialState(t *testing.T) {
	agg, _, _ := newTestAggregator()

	st := agg.CurrentState()
	if st.Available {
		t.Error("Available = true before any event")
	}
	if st.MinTemp != 7.0 || st.MaxTemp != 35.0 {
		t.Errorf("bounds = [%.1f, %.1f], want defaults [7.0, 35.0]", st.MinTemp, st.MaxTemp)
	}
	for _, c := range AllCapabilities() {
		if st.Sources[c] != "unavailable" {
			t.Errorf("Sources[%s] = %q, want unavailable", c, st.Sources[c])
		}
	}
}

// TestAggregatorBothAvailable verifies routing with both sources up.
func TestAggregatorBothAvailable(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	agg.ingest(googleEvent())

	st := agg.CurrentState()
	if !st.Available {
		t.Fatal("Available = false with both sources up")
	}

	// Temperature capabilities come from the fast source.
	if st.CurrentTemperature == nil || *st.CurrentTemperature != 21.0 {
		t.Errorf("CurrentTemperature = %v, want 21.0", st.CurrentTemperature)
	}
	if st.TargetTemperature == nil || *st.TargetTemperature != 20.0 {
		t.Errorf("TargetTemperature = %v, want 20.0", st.TargetTemperature)
	}

	// Everything else comes from the full-feature source.
	if st.HVACMode == nil || *st.HVACMode != "heat" {
		t.Errorf("HVACMode = %v, want heat", st.HVACMode)
	}
	if st.FanMode == nil || *st.FanMode != "auto" {
		t.Errorf("FanMode = %v, want auto", st.FanMode)
	}
	if st.Humidity == nil || *st.Humidity != 45.0 {
		t.Errorf("Humidity = %v, want 45.0", st.Humidity)
	}

	if st.MinTemp != 10.0 || st.MaxTemp != 30.0 {
		t.Errorf("bounds = [%.1f, %.1f], want [10.0, 30.0]", st.MinTemp, st.MaxTemp)
	}
	if len(st.HVACModes) != 4 {
		t.Errorf("HVACModes = %v, want 4 entries", st.HVACModes)
	}

	wantLabels := map[Capability]string{
		CapTemperatureRead:  "matter",
		CapTemperatureWrite: "matter",
		CapHVACMode:         "google",
		CapFanMode:          "google",
		CapHumidityRead:     "google",
		CapPower:            "google",
	}
	for c, want := range wantLabels {
		if st.Sources[c] != want {
			t.Errorf("Sources[%s] = %q, want %q", c, st.Sources[c], want)
		}
	}

	hasFan := false
	for _, f := range st.Features {
		if f == FeatureFanMode {
			hasFan = true
		}
	}
	if !hasFan {
		t.Error("Features missing fan_mode with google available")
	}
}

// TestAggregatorMatterDownFallsBack verifies temperature reads fall back to
// the cloud source when the local source goes away.
func TestAggregatorMatterDownFallsBack(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	agg.ingest(googleEvent())
	agg.ingest(unavailableEvent("climate.living_room_matter"))

	st := agg.CurrentState()
	if !st.Available {
		t.Fatal("Available = false with google still up")
	}
	if st.Sources[CapTemperatureRead] != "google (fallback)" {
		t.Errorf("Sources[temperature_read] = %q, want google (fallback)", st.Sources[CapTemperatureRead])
	}
	if st.CurrentTemperature == nil || *st.CurrentTemperature != 21.3 {
		t.Errorf("CurrentTemperature = %v, want google's 21.3", st.CurrentTemperature)
	}
	if st.Sources[CapHVACMode] != "google" {
		t.Errorf("Sources[hvac_mode] = %q, want google", st.Sources[CapHVACMode])
	}
}

// TestAggregatorGoogleDown verifies the fan capability disappears and mode
// reads retain last-known values when the cloud source goes away.
func TestAggregatorGoogleDown(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	agg.ingest(googleEvent())
	agg.ingest(unavailableEvent("climate.living_room"))

	st := agg.CurrentState()
	if !st.Available {
		t.Fatal("Available = false with matter still up")
	}
	if st.Sources[CapFanMode] != "unavailable" {
		t.Errorf("Sources[fan_mode] = %q, want unavailable", st.Sources[CapFanMode])
	}
	if st.Sources[CapHVACMode] != "matter (fallback)" {
		t.Errorf("Sources[hvac_mode] = %q, want matter (fallback)", st.Sources[CapHVACMode])
	}

	// Matter never reports a mode, so the last-known cloud value is retained.
	if st.HVACMode == nil || *st.HVACMode != "heat" {
		t.Errorf("HVACMode = %v, want last-known heat", st.HVACMode)
	}

	for _, f := range st.Features {
		if f == FeatureFanMode {
			t.Error("Features still advertise fan_mode with google down")
		}
	}
}

// TestAggregatorBothDownRetainsLastKnown verifies an outage of both sources
// keeps the last-known values while flipping availability and labels.
func TestAggregatorBothDownRetainsLastKnown(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(SourceEvent{
		EntityID:           "climate.living_room_matter",
		Available:          true,
		CurrentTemperature: fptr(21.5),
		TargetTemperature:  fptr(21.0),
	})
	agg.ingest(googleEvent())
	agg.ingest(unavailableEvent("climate.living_room_matter"))
	agg.ingest(unavailableEvent("climate.living_room"))

	st := agg.CurrentState()
	if st.Available {
		t.Error("Available = true with both sources down")
	}
	if st.CurrentTemperature == nil || *st.CurrentTemperature != 21.5 {
		t.Errorf("CurrentTemperature = %v, want retained 21.5", st.CurrentTemperature)
	}
	if st.HVACMode == nil || *st.HVACMode != "heat" {
		t.Errorf("HVACMode = %v, want retained heat", st.HVACMode)
	}
	for _, c := range AllCapabilities() {
		if st.Sources[c] != "unavailable" {
			t.Errorf("Sources[%s] = %q, want unavailable", c, st.Sources[c])
		}
	}
}

func hasFeature(st CompositeState, f Feature) bool {
	for _, got := range st.Features {
		if got == f {
			return true
		}
	}
	return false
}

// TestAggregatorFanModeFeatureReturns verifies fan control reappears in
// the advertised features as soon as its sole provider recovers.
func TestAggregatorFanModeFeatureReturns(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	agg.ingest(googleEvent())
	agg.ingest(unavailableEvent("climate.living_room"))

	if hasFeature(agg.CurrentState(), FeatureFanMode) {
		t.Fatal("Features advertise fan_mode while google is down")
	}

	agg.ingest(googleEvent())

	st := agg.CurrentState()
	if !hasFeature(st, FeatureFanMode) {
		t.Error("Features missing fan_mode after google recovered")
	}
	if st.Sources[CapFanMode] != "google" {
		t.Errorf("Sources[fan_mode] = %q after recovery, want google", st.Sources[CapFanMode])
	}
}

// TestAggregatorCoreFeaturesPersistBothDown verifies temperature control
// and power stay advertised through a full outage; only fan control is
// withdrawn.
func TestAggregatorCoreFeaturesPersistBothDown(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	agg.ingest(googleEvent())
	agg.ingest(unavailableEvent("climate.living_room_matter"))
	agg.ingest(unavailableEvent("climate.living_room"))

	st := agg.CurrentState()
	if st.Available {
		t.Fatal("Available = true with both sources down")
	}
	for _, f := range []Feature{FeatureTargetTemperature, FeatureTurnOn, FeatureTurnOff} {
		if !hasFeature(st, f) {
			t.Errorf("Features missing %s with both sources down", f)
		}
	}
	if hasFeature(st, FeatureFanMode) {
		t.Error("Features still advertise fan_mode with both sources down")
	}
}

// TestAggregatorRecovery verifies the preferred source is re-selected on the
// first event after it comes back, with no hysteresis.
func TestAggregatorRecovery(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	agg.ingest(googleEvent())
	agg.ingest(unavailableEvent("climate.living_room_matter"))
	agg.ingest(matterEvent())

	st := agg.CurrentState()
	if st.Sources[CapTemperatureRead] != "matter" {
		t.Errorf("Sources[temperature_read] = %q after recovery, want matter", st.Sources[CapTemperatureRead])
	}
	if st.CurrentTemperature == nil || *st.CurrentTemperature != 21.0 {
		t.Errorf("CurrentTemperature = %v after recovery, want 21.0", st.CurrentTemperature)
	}
}

// TestAggregatorIdempotentIngest verifies feeding the same event twice
// produces at most one notification.
func TestAggregatorIdempotentIngest(t *testing.T) {
	agg, _, _ := newTestAggregator()

	var notifications int
	sub := agg.Subscribe(func(CompositeState) { notifications++ })
	defer sub.Cancel()

	ev := matterEvent()
	agg.ingest(ev)
	agg.ingest(ev)

	if notifications != 1 {
		t.Errorf("notifications = %d after duplicate event, want 1", notifications)
	}
}

// TestAggregatorOrderingIndependence verifies events from the two sources
// produce the same composite state regardless of interleaving.
func TestAggregatorOrderingIndependence(t *testing.T) {
	a1, _, _ := newTestAggregator()
	a1.ingest(matterEvent())
	a1.ingest(googleEvent())

	a2, _, _ := newTestAggregator()
	a2.ingest(googleEvent())
	a2.ingest(matterEvent())

	s1 := a1.CurrentState()
	s2 := a2.CurrentState()

	if !floatEqual(s1.CurrentTemperature, s2.CurrentTemperature) {
		t.Errorf("CurrentTemperature differs by order: %v vs %v", s1.CurrentTemperature, s2.CurrentTemperature)
	}
	if !stringEqual(s1.HVACMode, s2.HVACMode) {
		t.Errorf("HVACMode differs by order: %v vs %v", s1.HVACMode, s2.HVACMode)
	}
	for _, c := range AllCapabilities() {
		if s1.Sources[c] != s2.Sources[c] {
			t.Errorf("Sources[%s] differs by order: %q vs %q", c, s1.Sources[c], s2.Sources[c])
		}
	}
}

// TestAggregatorUnknownEntityIgnored verifies events for unpaired entities
// do not change state.
func TestAggregatorUnknownEntityIgnored(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	before := agg.CurrentState()

	agg.ingest(SourceEvent{EntityID: "climate.hallway", Available: true, CurrentTemperature: fptr(99.0)})

	after := agg.CurrentState()
	if !floatEqual(before.CurrentTemperature, after.CurrentTemperature) {
		t.Errorf("CurrentTemperature changed on unknown entity: %v -> %v", before.CurrentTemperature, after.CurrentTemperature)
	}
}

// TestAggregatorSnapshotIsolation verifies mutating a returned snapshot does
// not affect subsequent reads.
func TestAggregatorSnapshotIsolation(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())
	agg.ingest(googleEvent())

	st := agg.CurrentState()
	st.Sources[CapPower] = "tampered"
	if len(st.HVACModes) > 0 {
		st.HVACModes[0] = "tampered"
	}

	fresh := agg.CurrentState()
	if fresh.Sources[CapPower] == "tampered" {
		t.Error("Sources map aliased between snapshots")
	}
	if len(fresh.HVACModes) > 0 && fresh.HVACModes[0] == "tampered" {
		t.Error("HVACModes slice aliased between snapshots")
	}
}

// TestAggregatorRun verifies the event loop drains queued events and stops
// on context cancellation.
func TestAggregatorRun(t *testing.T) {
	agg, _, _ := newTestAggregator()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agg.Run(ctx) }()

	agg.OnSourceEvent(matterEvent())

	deadline := time.After(2 * time.Second)
	for !agg.CurrentState().Available {
		select {
		case <-deadline:
			t.Fatal("composite state never became available")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	// Queueing after shutdown must not block.
	agg.OnSourceEvent(googleEvent())
}

// TestSubscriptionCancel verifies a cancelled subscriber receives no
// further notifications.
func TestSubscriptionCancel(t *testing.T) {
	agg, _, _ := newTestAggregator()

	var notifications int
	sub := agg.Subscribe(func(CompositeState) { notifications++ })

	agg.ingest(matterEvent())
	sub.Cancel()
	sub.Cancel()
	agg.ingest(googleEvent())

	if notifications != 1 {
		t.Errorf("notifications = %d, want 1", notifications)
	}
}

// TestSourceAvailable verifies the per-source availability accessor.
func TestSourceAvailable(t *testing.T) {
	agg, _, _ := newTestAggregator()
	agg.ingest(matterEvent())

	if !agg.SourceAvailable(SourceMatter) {
		t.Error("SourceAvailable(matter) = false after available event")
	}
	if agg.SourceAvailable(SourceGoogle) {
		t.Error("SourceAvailable(google) = true before any event")
	}
	if agg.SourceAvailable(SourceKind("bogus")) {
		t.Error("SourceAvailable(bogus) = true")
	}
}

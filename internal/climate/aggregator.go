package climate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// eventQueueSize is the ingestion queue depth. Upstream events are bursty
// around availability flips but low-rate overall; producers block briefly
// if the loop falls behind rather than dropping events.
const eventQueueSize = 64

// Aggregator is the orchestration core for one thermostat pair.
//
// It ingests state-change events from both upstream entities, recomputes
// the full composite state on every observable change and notifies
// subscribers. All mutation happens on the Run goroutine; CurrentState is a
// lock-free snapshot read that may occur concurrently with ingestion.
type Aggregator struct {
	name   string
	matter *sourceHandle
	google *sourceHandle

	// byEntity routes incoming events to the matching handle.
	byEntity map[string]*sourceHandle

	router *Router
	policy Policy

	events    chan SourceEvent
	done      chan struct{}
	closeOnce sync.Once

	// state holds the latest committed composite snapshot. Readers always
	// observe either the previous or the new snapshot, never a torn mix.
	state atomic.Pointer[CompositeState]

	subMu   sync.Mutex
	subs    map[int]func(CompositeState)
	nextSub int

	logger Logger
}

// NewAggregator creates an aggregator for one thermostat pair. The two
// entity references are fixed for the aggregator's lifetime; which entities
// pair together is resolved by the pairing layer and handed in here.
func NewAggregator(name, matterEntity, googleEntity string, matterClient, googleClient SourceClient) *Aggregator {
	a := &Aggregator{
		name:   name,
		matter: newSourceHandle(SourceMatter, matterEntity, matterClient),
		google: newSourceHandle(SourceGoogle, googleEntity, googleClient),
		router: NewRouter(),
		events: make(chan SourceEvent, eventQueueSize),
		done:   make(chan struct{}),
		subs:   make(map[int]func(CompositeState)),
		logger: noopLogger{},
	}
	a.byEntity = map[string]*sourceHandle{
		matterEntity: a.matter,
		googleEntity: a.google,
	}

	// Commit an initial all-unavailable snapshot so CurrentState is valid
	// before the first upstream event arrives.
	initial := a.recompute(time.Now().UTC())
	a.state.Store(&initial)
	return a
}

// SetLogger sets the logger for the aggregator.
func (a *Aggregator) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Name returns the display name of the pair this aggregator serves.
func (a *Aggregator) Name() string {
	return a.name
}

// OnSourceEvent queues an upstream event for ingestion. Events are drained
// one at a time by the Run loop, serialising all state mutation. Safe for
// concurrent use; returns immediately once the aggregator has stopped.
func (a *Aggregator) OnSourceEvent(ev SourceEvent) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// Run drains the event queue until the context is cancelled. It must be
// called exactly once per aggregator.
func (a *Aggregator) Run(ctx context.Context) error {
	a.logger.Info("aggregator started",
		"pair", a.name,
		"matter_entity", a.matter.entityID,
		"google_entity", a.google.entityID,
	)

	for {
		select {
		case <-ctx.Done():
			a.closeOnce.Do(func() { close(a.done) })
			a.logger.Info("aggregator stopped", "pair", a.name)
			return nil
		case ev := <-a.events:
			a.ingest(ev)
		}
	}
}

// CurrentState returns the latest committed composite snapshot. Lock-free;
// never blocks the ingestion path.
func (a *Aggregator) CurrentState() CompositeState {
	return *a.state.Load()
}

// SourceAvailable reports the current availability flag of one source.
func (a *Aggregator) SourceAvailable(kind SourceKind) bool {
	if h := a.handleFor(kind); h != nil {
		return h.available.Load()
	}
	return false
}

// Subscription is a handle to one observer registration.
type Subscription struct {
	agg  *Aggregator
	id   int
	once sync.Once
}

// Cancel releases the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.agg.subMu.Lock()
		delete(s.agg.subs, s.id)
		s.agg.subMu.Unlock()
	})
}

// Subscribe registers an observer for composite state changes. Observers
// are invoked from the event loop, so they should hand work off rather
// than block. The returned handle releases the registration on Cancel.
func (a *Aggregator) Subscribe(fn func(CompositeState)) *Subscription {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	a.nextSub++
	id := a.nextSub
	a.subs[id] = fn
	return &Subscription{agg: a, id: id}
}

// ingest applies one event. If the matching handle reports an observable
// change the full composite state is recomputed, every field of it, because
// an availability flip can change which source backs multiple fields.
func (a *Aggregator) ingest(ev SourceEvent) {
	h, ok := a.byEntity[ev.EntityID]
	if !ok {
		a.logger.Warn("event from unknown entity", "pair", a.name, "entity_id", ev.EntityID)
		return
	}

	wasAvailable := h.available.Load()
	now := time.Now().UTC()
	if !h.update(ev, now) {
		return
	}

	// Availability flips are expected operational events, not errors.
	if wasAvailable != h.available.Load() {
		a.logger.Info("source availability changed",
			"pair", a.name,
			"source", h.kind,
			"entity_id", h.entityID,
			"available", h.available.Load(),
		)
	}

	st := a.recompute(now)
	a.state.Store(&st)
	a.notify(st)
}

// notify delivers the new snapshot to all current subscribers.
func (a *Aggregator) notify(st CompositeState) {
	a.subMu.Lock()
	fns := make([]func(CompositeState), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// handleFor returns the handle backing a source kind.
func (a *Aggregator) handleFor(kind SourceKind) *sourceHandle {
	switch kind {
	case SourceMatter:
		return a.matter
	case SourceGoogle:
		return a.google
	default:
		return nil
	}
}

// recompute derives a fresh composite snapshot from both handles. Fields
// owned by one source are never overwritten by events from the other: each
// field is resolved independently through the routing table and failover
// policy.
func (a *Aggregator) recompute(now time.Time) CompositeState {
	st := CompositeState{
		Available: a.matter.available.Load() || a.google.available.Load(),
		MinTemp:   defaultMinTemp,
		MaxTemp:   defaultMaxTemp,
		Sources:   make(map[Capability]string, len(AllCapabilities())),
		UpdatedAt: now,
	}

	st.CurrentTemperature = a.resolveFloat(CapTemperatureRead, func(s Snapshot) *float64 { return s.CurrentTemperature })
	st.TargetTemperature = a.resolveFloat(CapTemperatureWrite, func(s Snapshot) *float64 { return s.TargetTemperature })
	st.Humidity = a.resolveFloat(CapHumidityRead, func(s Snapshot) *float64 { return s.Humidity })
	st.HVACMode = a.resolveString(CapHVACMode, func(s Snapshot) *string { return s.HVACMode })
	st.FanMode = a.resolveString(CapFanMode, func(s Snapshot) *string { return s.FanMode })

	// Setpoint bounds come from the fast source (it enforces them locally).
	if v := a.matter.snap.MinTemp; v != nil {
		st.MinTemp = *v
	}
	if v := a.matter.snap.MaxTemp; v != nil {
		st.MaxTemp = *v
	}

	// Mode lists exist only on the full-feature source.
	st.HVACModes = cloneStrings(a.google.snap.HVACModes)
	st.FanModes = cloneStrings(a.google.snap.FanModes)

	// Temperature control and power always advertise: both sources nominally
	// support thermostatic control, so a last-known value is still surfaced.
	// Fan control disappears while its sole provider is down.
	features := []Feature{FeatureTargetTemperature, FeatureTurnOn, FeatureTurnOff}
	if a.google.available.Load() {
		features = append(features, FeatureFanMode)
	}
	st.Features = features

	for _, c := range AllCapabilities() {
		st.Sources[c] = a.labelFor(c)
	}

	return st
}

// resolveFloat surfaces one optional numeric field through the failover
// table. The active source's last-known value wins; a source that has never
// reported the field defers to the other; with both sources down the
// last-known value is retained (reads never fail).
func (a *Aggregator) resolveFloat(c Capability, get func(Snapshot) *float64) *float64 {
	rt, err := a.router.Resolve(c)
	if err != nil {
		return nil
	}

	pref := a.handleFor(rt.preferred)
	var alt *sourceHandle
	if rt.hasAlternate {
		alt = a.handleFor(rt.alternate)
	}

	choice := a.policy.ActiveSource(pref.available.Load(), alt != nil && alt.available.Load())
	switch choice {
	case ChoiceAlternate:
		if v := get(alt.snap); v != nil {
			return cloneFloat(v)
		}
		return cloneFloat(get(pref.snap))
	default:
		// Preferred active, or both down: preferred's last-known value first.
		if v := get(pref.snap); v != nil {
			return cloneFloat(v)
		}
		if alt != nil {
			return cloneFloat(get(alt.snap))
		}
		return nil
	}
}

// resolveString is resolveFloat for optional string fields.
func (a *Aggregator) resolveString(c Capability, get func(Snapshot) *string) *string {
	rt, err := a.router.Resolve(c)
	if err != nil {
		return nil
	}

	pref := a.handleFor(rt.preferred)
	var alt *sourceHandle
	if rt.hasAlternate {
		alt = a.handleFor(rt.alternate)
	}

	choice := a.policy.ActiveSource(pref.available.Load(), alt != nil && alt.available.Load())
	switch choice {
	case ChoiceAlternate:
		if v := get(alt.snap); v != nil {
			return cloneString(v)
		}
		return cloneString(get(pref.snap))
	default:
		if v := get(pref.snap); v != nil {
			return cloneString(v)
		}
		if alt != nil {
			return cloneString(get(alt.snap))
		}
		return nil
	}
}

// labelFor computes the diagnostic active-source label for a capability.
func (a *Aggregator) labelFor(c Capability) string {
	rt, err := a.router.Resolve(c)
	if err != nil {
		return LabelUnavailable
	}

	pref := a.handleFor(rt.preferred)
	altAvailable := false
	if rt.hasAlternate {
		altAvailable = a.handleFor(rt.alternate).available.Load()
	}

	choice := a.policy.ActiveSource(pref.available.Load(), altAvailable)
	kind := rt.preferred
	if choice == ChoiceAlternate {
		kind = rt.alternate
	}
	return a.policy.LabelFor(choice, kind)
}

package climate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// SourceClient is the transport used to issue a command to an upstream
// entity. Implementations (e.g. the entity bus bridge) own the round-trip
// semantics, including any timeout; the core surfaces whatever failure the
// transport reports. Once Call starts it runs to completion or failure;
// mid-command cancellation is not supported.
type SourceClient interface {
	Call(ctx context.Context, entityID string, cmd Command) error
}

// sourceHandle wraps one upstream entity: its last-known snapshot, its
// availability flag and its command transport.
//
// The snapshot and lastUpdated fields are owned exclusively by the
// aggregator's event loop. Availability is an atomic so the dispatcher can
// consult it without entering the loop.
type sourceHandle struct {
	kind     SourceKind
	entityID string
	client   SourceClient

	available   atomic.Bool
	snap        Snapshot
	lastUpdated time.Time
}

func newSourceHandle(kind SourceKind, entityID string, client SourceClient) *sourceHandle {
	return &sourceHandle{
		kind:     kind,
		entityID: entityID,
		client:   client,
	}
}

// update ingests an upstream state-change event and reports whether anything
// observable changed. Feeding the same event twice changes state at most
// once. Called only from the aggregator event loop.
//
// An unavailable event flips the availability flag but keeps the snapshot:
// reads fall back to last-known values during an outage.
func (h *sourceHandle) update(ev SourceEvent, now time.Time) bool {
	changed := false

	if h.available.Load() != ev.Available {
		h.available.Store(ev.Available)
		changed = true
	}

	if ev.Available {
		next := Snapshot{
			CurrentTemperature: ev.CurrentTemperature,
			TargetTemperature:  ev.TargetTemperature,
			HVACMode:           ev.HVACMode,
			FanMode:            ev.FanMode,
			Humidity:           ev.Humidity,
			MinTemp:            ev.MinTemp,
			MaxTemp:            ev.MaxTemp,
			HVACModes:          ev.HVACModes,
			FanModes:           ev.FanModes,
		}
		if !snapshotEqual(h.snap, next) {
			h.snap = next
			changed = true
		}
	}

	if changed {
		h.lastUpdated = now
	}
	return changed
}

// issue forwards a command to the upstream entity.
//
// It fails with ErrSourceUnavailable when the source's own availability flag
// is false (checked before the call to avoid an upstream round-trip) or
// ErrCommandRejected when the upstream call errors. Retries are the
// dispatcher's responsibility, not the handle's.
func (h *sourceHandle) issue(ctx context.Context, cmd Command) error {
	if !h.available.Load() {
		return fmt.Errorf("%w: %s (%s)", ErrSourceUnavailable, h.entityID, h.kind)
	}
	if err := h.client.Call(ctx, h.entityID, cmd); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommandRejected, h.entityID, err)
	}
	return nil
}

// snapshotEqual compares two snapshots field by field.
func snapshotEqual(a, b Snapshot) bool {
	return floatEqual(a.CurrentTemperature, b.CurrentTemperature) &&
		floatEqual(a.TargetTemperature, b.TargetTemperature) &&
		stringEqual(a.HVACMode, b.HVACMode) &&
		stringEqual(a.FanMode, b.FanMode) &&
		floatEqual(a.Humidity, b.Humidity) &&
		floatEqual(a.MinTemp, b.MinTemp) &&
		floatEqual(a.MaxTemp, b.MaxTemp) &&
		stringsEqual(a.HVACModes, b.HVACModes) &&
		stringsEqual(a.FanModes, b.FanModes)
}

package climate

import (
	"context"
	"time"
)

// HistoryEntry represents a single composite state change record.
//
// Each entry stores a full snapshot of the composite state at the time the
// change was observed, including the per-capability source labels. This is
// the local audit trail for failover behaviour even when the time-series
// database is unavailable.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// PairID is the unique identifier of the thermostat pair.
	PairID string `json:"pair_id"`

	// State is the JSON snapshot of the composite state.
	State CompositeState `json:"state"`

	// CreatedAt is the timestamp of the state change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves composite state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordStateChange records a composite state change for a pair.
	RecordStateChange(ctx context.Context, pairID string, state CompositeState) error

	// GetHistory returns recent state change history for the pair, ordered
	// newest first. Implementations may clamp the limit.
	GetHistory(ctx context.Context, pairID string, limit int) ([]HistoryEntry, error)

	// PruneHistory deletes entries older than the given duration and returns
	// the number of rows removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

package pairing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for pair persistence operations.
type Repository interface {
	Create(ctx context.Context, pair *Pair) error
	Get(ctx context.Context, id string) (*Pair, error)
	List(ctx context.Context) ([]Pair, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed pair repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new pair. Unique indexes on both entity columns reject a
// second pair claiming an already-paired entity.
func (r *SQLiteRepository) Create(ctx context.Context, pair *Pair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	const query = `INSERT INTO pairs (id, name, matter_entity, google_entity)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		pair.ID, strings.TrimSpace(pair.Name), pair.MatterEntity, pair.GoogleEntity)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s / %s", ErrDuplicatePair, pair.MatterEntity, pair.GoogleEntity)
		}
		return fmt.Errorf("inserting pair %s: %w", pair.ID, err)
	}
	return nil
}

// Get returns one pair by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Pair, error) {
	const query = `SELECT id, name, matter_entity, google_entity, created_at, updated_at
		FROM pairs WHERE id = ?`

	var pair Pair
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pair.ID, &pair.Name, &pair.MatterEntity, &pair.GoogleEntity, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying pair %s: %w", id, err)
	}

	if pair.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if pair.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &pair, nil
}

// List returns all pairs ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Pair, error) {
	const query = `SELECT id, name, matter_entity, google_entity, created_at, updated_at
		FROM pairs ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying pairs: %w", err)
	}
	defer rows.Close()

	pairs := make([]Pair, 0)
	for rows.Next() {
		var pair Pair
		var createdAt, updatedAt string
		if err := rows.Scan(&pair.ID, &pair.Name, &pair.MatterEntity, &pair.GoogleEntity, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning pair: %w", err)
		}
		if pair.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		if pair.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairs: %w", err)
	}
	return pairs, nil
}

// Rename updates a pair's display name.
func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	const query = `UPDATE pairs SET name = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, strings.TrimSpace(name), id)
	if err != nil {
		return fmt.Errorf("renaming pair %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrPairNotFound, id)
	}
	return nil
}

// Delete removes a pair.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM pairs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting pair %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrPairNotFound, id)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTimestamp parses a timestamp stored by SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
}

package store

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one persisted session summary.
type Record struct {
	ID        int64
	UserID    string
	TeamID    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Store is the session summary repository.
type Store interface {
	// Save persists rec. A zero CreatedAt is set to the current time.
	Save(ctx context.Context, rec Record) error

	// History returns the user's most recent records, newest first.
	History(ctx context.Context, userID string, limit int) ([]Record, error)

	// TeamRecords returns every record of the team, oldest first.
	TeamRecords(ctx context.Context, teamID string) ([]Record, error)

	// Close releases backend resources.
	Close() error
}

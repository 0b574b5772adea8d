package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

// ErrNotFound is returned by Transport.Get when no record exists for the ID.
var ErrNotFound = errors.New("record not found")

// Filter narrows Transport.Query. Zero fields do not filter.
type Filter struct {
	Status        models.MatchStatus
	UpdatedAfter  time.Time // last_updated >= UpdatedAfter
	UpdatedBefore time.Time // last_updated < UpdatedBefore
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec *models.MatchRecord) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if !f.UpdatedAfter.IsZero() && rec.LastUpdated.Before(f.UpdatedAfter) {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !rec.LastUpdated.Before(f.UpdatedBefore) {
		return false
	}
	return true
}

// Transport persists whole match records keyed by ID. Implementations do not
// interpret the record beyond the fields they index.
type Transport interface {
	Upsert(ctx context.Context, rec *models.MatchRecord) error
	// Get returns ErrNotFound when the ID is unknown.
	Get(ctx context.Context, id string) (*models.MatchRecord, error)
	Query(ctx context.Context, f Filter) ([]*models.MatchRecord, error)
	// Delete removes the given IDs and returns how many existed.
	Delete(ctx context.Context, ids []string) (int, error)
	Close() error
}

// StoreError is a failure to read or write one record.
type StoreError struct {
	Op      string
	MatchID string
	Err     error
}

func (e *StoreError) Error() string {
	if e.MatchID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.MatchID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CacheEntry is one append into the parse-result cache. Entries are never
// updated in place or deleted; reads take the most recent entry for a key.
type CacheEntry struct {
	ID          string
	SessionID   string
	Category    string
	Resource    string
	Scene       string
	PayloadJSON string
	Model       string
	Strategy    string
	CreatedAt   time.Time
}

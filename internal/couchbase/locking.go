package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/store"
)

const (
	lockDocID = "_system::ingest_lock"
	lockTTL   = 1 * time.Hour
)

type lockDoc struct {
	Locked    bool      `json:"locked"`
	LockedAt  time.Time `json:"lockedAt"`
	LockedBy  string    `json:"lockedBy"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DatabaseLocker fences one-shot ingestion runs with a lock document.
// Insert is atomic, so two runs racing for the lock cannot both win; the
// document expires on its own if the holder dies.
type DatabaseLocker struct {
	col *gocb.Collection
}

// NewDatabaseLocker creates a new database locker
func NewDatabaseLocker(col *gocb.Collection) *DatabaseLocker {
	return &DatabaseLocker{col: col}
}

// Lock takes the lock for owner
func (l *DatabaseLocker) Lock(ctx context.Context, owner string) error {
	now := time.Now().UTC()
	doc := lockDoc{
		Locked:    true,
		LockedAt:  now,
		LockedBy:  owner,
		ExpiresAt: now.Add(lockTTL),
	}

	_, err := l.col.Insert(lockDocID, doc, &gocb.InsertOptions{Context: ctx, Expiry: lockTTL})
	if errors.Is(err, gocb.ErrDocumentExists) {
		return store.ErrLocked
	}
	if err != nil {
		return fmt.Errorf("failed to create lock document: %w", err)
	}

	log.Info().Str("owner", owner).Msg("Database locked successfully")
	return nil
}

// Unlock releases the lock
func (l *DatabaseLocker) Unlock(ctx context.Context) error {
	_, err := l.col.Remove(lockDocID, &gocb.RemoveOptions{Context: ctx})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to remove lock document: %w", err)
	}

	log.Info().Msg("Database unlocked successfully")
	return nil
}

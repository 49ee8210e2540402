package clerk

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/cache"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

var (
	errNoCounter = errors.New("counter not found")
	errNoClerk   = errors.New("clerk not found")
)

func findEvent(ctx context.Context, tx bun.Tx, slug string) (models.Event, error) {
	var event models.Event
	err := tx.NewSelect().Model(&event).Where("slug = ?", strings.TrimSpace(slug)).Limit(1).Scan(ctx)
	return event, err
}

// findCounter resolves a counter identifier case-insensitively within the
// event named by slug.
func findCounter(ctx context.Context, db *sqlite.DB, counters *cache.CounterCache, slug, identifier string) (models.Event, models.Counter, error) {
	var (
		event   models.Event
		counter models.Counter
	)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		event, err = findEvent(ctx, tx, slug)
		if err != nil {
			return err
		}
		if cached, ok := counters.Get(event.ID, identifier); ok {
			counter = cached
			return nil
		}
		return tx.NewSelect().
			Model(&counter).
			Where("event_id = ?", event.ID).
			Where("UPPER(identifier) = ?", strings.ToUpper(strings.TrimSpace(identifier))).
			Limit(1).
			Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, models.Counter{}, errNoCounter
	}
	if err != nil {
		return models.Event{}, models.Counter{}, err
	}
	counters.Add(counter)
	return event, counter, nil
}

// authenticateClerk checks a scanned "<id>:<key>" code against the clerks of
// eventID.
func authenticateClerk(ctx context.Context, db *sqlite.DB, eventID int64, code string) (models.Clerk, error) {
	id, key, err := argon.ParseClerkCode(code)
	if err != nil {
		return models.Clerk{}, err
	}
	var clerk models.Clerk
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&clerk).
			Where("id = ?", id).
			Where("event_id = ?", eventID).
			Limit(1).
			Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Clerk{}, errNoClerk
	}
	if err != nil {
		return models.Clerk{}, err
	}
	ok, err := argon.VerifyAccessKey(key, clerk.AccessKeyHash)
	if err != nil || !ok {
		return models.Clerk{}, errNoClerk
	}
	return clerk, nil
}

package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestSeedEventCreatesUsableOverseer(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	maxItems := int64(40)
	prov := "rate=-0.1;round=50"

	res, err := seedEvent(ctx, db, seedOptions{
		Slug:      "autumn",
		Name:      "Autumn market",
		Counters:  []string{"C1", "C2"},
		MaxItems:  &maxItems,
		Provision: &prov,
		Overseer:  "Olga",
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}

	id, key, err := argon.ParseClerkCode(res.ClerkCode)
	if err != nil {
		t.Fatalf("parse clerk code %q: %v", res.ClerkCode, err)
	}

	var (
		hash     string
		counters int
	)
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`SELECT access_key_hash FROM clerks WHERE id = ? AND role = 'overseer'`, id).Scan(ctx, &hash); err != nil {
			return err
		}
		return tx.NewRaw(`SELECT COUNT(*) FROM counters WHERE event_id = ?`, res.EventID).Scan(ctx, &counters)
	})
	if err != nil {
		t.Fatalf("load seeded rows: %v", err)
	}
	if ok, err := argon.VerifyAccessKey(key, hash); err != nil || !ok {
		t.Fatalf("expected seeded key to verify, ok=%v err=%v", ok, err)
	}
	if counters != 2 {
		t.Fatalf("expected 2 counters, got %d", counters)
	}
}

func TestSeedEventRejectsBadProvision(t *testing.T) {
	db := openTestDB(t)
	bad := "rate=abc"
	_, err := seedEvent(context.Background(), db, seedOptions{Slug: "x", Counters: []string{"C1"}, Provision: &bad})
	if err == nil || !strings.Contains(err.Error(), "provision function") {
		t.Fatalf("expected provision error, got %v", err)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("EVENT_SLUG", "spring")
	t.Setenv("EVENT_COUNTERS", " C1, ,C2 ")
	t.Setenv("EVENT_MAX_ITEMS", "25")

	opts, err := optionsFromEnv()
	if err != nil {
		t.Fatalf("options from env: %v", err)
	}
	if opts.Slug != "spring" || len(opts.Counters) != 2 || opts.MaxItems == nil || *opts.MaxItems != 25 {
		t.Fatalf("unexpected options: %+v", opts)
	}

	t.Setenv("EVENT_MAX_ITEMS", "zero")
	if _, err := optionsFromEnv(); err == nil {
		t.Fatalf("expected invalid EVENT_MAX_ITEMS to fail")
	}
}

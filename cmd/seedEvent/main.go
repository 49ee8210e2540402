package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"fleamarket/config"
	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/provision"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

type seedOptions struct {
	Slug      string
	Name      string
	Counters  []string
	MaxItems  *int64
	Provision *string
	Overseer  string
}

// seedResult carries the scannable code of the created overseer.
type seedResult struct {
	EventID   int64
	ClerkCode string
}

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	opts, err := optionsFromEnv()
	if err != nil {
		log.Fatalf("seed options: %v", err)
	}

	db, err := sqlite.OpenDB(cfg.SQLite.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyMigrations(context.Background(), db, cfg.SQLite.MigrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	res, err := seedEvent(context.Background(), db, opts)
	if err != nil {
		log.Fatalf("seed event: %v", err)
	}
	fmt.Printf("seeded event %q (id=%d); overseer clerk code: %s\n", opts.Slug, res.EventID, res.ClerkCode)
}

func optionsFromEnv() (seedOptions, error) {
	opts := seedOptions{
		Slug:     getenv("EVENT_SLUG", "market"),
		Name:     getenv("EVENT_NAME", "Flea market"),
		Overseer: getenv("OVERSEER_NAME", "Overseer"),
	}
	for _, c := range strings.Split(getenv("EVENT_COUNTERS", "C1"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			opts.Counters = append(opts.Counters, c)
		}
	}
	if v := os.Getenv("EVENT_MAX_ITEMS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("EVENT_MAX_ITEMS must be a positive integer")
		}
		opts.MaxItems = &n
	}
	if v := os.Getenv("EVENT_PROVISION"); v != "" {
		opts.Provision = &v
	}
	return opts, nil
}

func seedEvent(ctx context.Context, db *sqlite.DB, opts seedOptions) (seedResult, error) {
	if strings.TrimSpace(opts.Slug) == "" {
		return seedResult{}, errors.New("event slug is required")
	}
	if len(opts.Counters) == 0 {
		return seedResult{}, errors.New("at least one counter is required")
	}
	if opts.Provision != nil {
		if _, err := provision.Parse(*opts.Provision); err != nil {
			return seedResult{}, err
		}
	}

	key, err := argon.NewAccessKey()
	if err != nil {
		return seedResult{}, err
	}
	hash, err := argon.HashAccessKey(key, argon.DefaultParams)
	if err != nil {
		return seedResult{}, err
	}

	var res seedResult
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		event := &models.Event{
			Slug:              opts.Slug,
			Name:              opts.Name,
			MaxBroughtItems:   opts.MaxItems,
			ProvisionFunction: opts.Provision,
		}
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		for i, identifier := range opts.Counters {
			counter := &models.Counter{
				EventID:    event.ID,
				Identifier: identifier,
				Name:       fmt.Sprintf("Counter %d", i+1),
			}
			if _, err := tx.NewInsert().Model(counter).Exec(ctx); err != nil {
				return fmt.Errorf("insert counter %s: %w", identifier, err)
			}
		}
		clerk := &models.Clerk{
			EventID:       event.ID,
			Name:          opts.Overseer,
			Role:          rbac.RoleOverseer,
			AccessKeyHash: hash,
		}
		if _, err := tx.NewInsert().Model(clerk).Exec(ctx); err != nil {
			return fmt.Errorf("insert clerk: %w", err)
		}
		res = seedResult{EventID: event.ID, ClerkCode: fmt.Sprintf("%d:%s", clerk.ID, key)}
		return nil
	})
	return res, err
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

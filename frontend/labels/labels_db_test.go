package labels

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/sqlite"
)

func openLabelsTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "labels-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	err = db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		for _, q := range []string{
			`INSERT INTO events (id, slug, name) VALUES (1, 'spring', 'Spring market'), (2, 'autumn', 'Autumn market')`,
			`INSERT INTO vendors (id, event_id, name) VALUES (1, 1, 'Vera'), (2, 2, 'Otto')`,
			`INSERT INTO items (code, vendor_id, name, price, state, hidden) VALUES
				('A2', 1, 'Cup', 300, 'AD', 0),
				('A1', 1, 'Teapot', 1250, 'AD', 0),
				('A3', 1, 'Sold vase', 800, 'SO', 0),
				('A4', 1, 'Hidden lamp', 100, 'AD', 1),
				('Z1', 2, 'Other event', 100, 'AD', 0)`,
		} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func TestLoadItemLabelsDefaultsToAdvertised(t *testing.T) {
	db := openLabelsTestDB(t)
	rows, err := loadItemLabels(context.Background(), db, 1, 1, nil)
	if err != nil {
		t.Fatalf("load labels: %v", err)
	}
	if len(rows) != 2 || rows[0].Code != "A1" || rows[1].Code != "A2" {
		t.Fatalf("unexpected labels: %+v", rows)
	}
	if rows[0].Price != 1250 || rows[0].VendorID != 1 {
		t.Fatalf("unexpected label fields: %+v", rows[0])
	}
}

func TestLoadItemLabelsByCode(t *testing.T) {
	db := openLabelsTestDB(t)
	rows, err := loadItemLabels(context.Background(), db, 1, 1, []string{" a3", "z1", ""})
	if err != nil {
		t.Fatalf("load labels: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "A3" {
		t.Fatalf("expected only A3, got %+v", rows)
	}
}

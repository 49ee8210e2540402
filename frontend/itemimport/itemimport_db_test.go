package itemimport

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

func openImportTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "item-import-test.db"))
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
			`INSERT INTO clerks (id, event_id, name, role, access_key_hash) VALUES (1, 1, 'Alice', 'overseer', 'x')`,
			`INSERT INTO vendors (id, event_id, name) VALUES (1, 1, 'Vera'), (2, 1, 'Otto'), (3, 2, 'Ines')`,
			`INSERT INTO items (id, code, vendor_id, name, price, state) VALUES (1, 'A1', 1, 'Teapot', 500, 'AD'), (2, 'S1', 1, 'Sold lamp', 900, 'SO'), (3, 'O1', 2, 'Otto chair', 100, 'AD')`,
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

func loadItem(t *testing.T, db *sqlite.DB, code string) models.Item {
	t.Helper()
	var item models.Item
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&item).Where("code = ?", code).Limit(1).Scan(ctx)
	})
	if err != nil {
		t.Fatalf("load item %s: %v", code, err)
	}
	return item
}

func TestImportCSVInvalidHeader(t *testing.T) {
	db := openImportTestDB(t)
	_, err := ImportCSV(context.Background(), db, nil, 1, 1, 1, strings.NewReader("item,description\nA,Alpha\n"))
	if !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestImportCSVRejectsVendorOfOtherEvent(t *testing.T) {
	db := openImportTestDB(t)
	_, err := ImportCSV(context.Background(), db, nil, 1, 1, 3, strings.NewReader("code,name,price\nN1,Vase,1\n"))
	if !errors.Is(err, ErrNoVendor) {
		t.Fatalf("expected ErrNoVendor, got %v", err)
	}
}

func TestImportCSVInsertsUpdatesAndCountsErrors(t *testing.T) {
	db := openImportTestDB(t)
	sheet := strings.Join([]string{
		"code,name,price,item_type",
		"n1,Vase,\"2,50\",Decoration",
		"A1,Big teapot,6",
		"S1,Lamp,1",
		"O1,Chair,1",
		"N2,Broken,-1",
		",Nameless,1",
	}, "\n")

	summary, err := ImportCSV(context.Background(), db, audit.NewService(), 1, 1, 1, strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Inserted != 1 || summary.Updated != 1 || summary.Errors != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	vase := loadItem(t, db, "N1")
	if vase.Price != 250 || vase.ItemType != "decoration" || vase.State != models.ItemAdvertised || vase.VendorID != 1 {
		t.Fatalf("unexpected inserted item: %+v", vase)
	}
	if teapot := loadItem(t, db, "A1"); teapot.Name != "Big teapot" || teapot.Price != 600 {
		t.Fatalf("unexpected updated item: %+v", teapot)
	}
	if lamp := loadItem(t, db, "S1"); lamp.Price != 900 {
		t.Fatalf("sold item must not change: %+v", lamp)
	}
	if chair := loadItem(t, db, "O1"); chair.VendorID != 2 || chair.Price != 100 {
		t.Fatalf("item of another vendor must not change: %+v", chair)
	}

	var logs []models.AuditLog
	err = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		logs, err = audit.ListForEntity(ctx, tx, "vendor", 1)
		return err
	})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != audit.ActionItemImport {
		t.Fatalf("expected one import audit row, got %+v", logs)
	}
}

package checkout

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

type fixture struct {
	t         *testing.T
	db        *sqlite.DB
	svc       *Service
	eventID   int64
	vendorID  int64
	clerkID   int64
	counterID int64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "checkout-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	f := &fixture{t: t, db: db, eventID: 1, vendorID: 1, clerkID: 1, counterID: 1}
	f.exec(`INSERT INTO events (id, slug, name) VALUES (1, 'spring', 'Spring market')`)
	f.exec(`INSERT INTO counters (id, event_id, identifier, name) VALUES (1, 1, 'C1', 'Counter 1'), (2, 1, 'C2', 'Counter 2')`)
	f.exec(`INSERT INTO clerks (id, event_id, name, role, access_key_hash) VALUES (1, 1, 'Alice', 'overseer', 'x'), (2, 1, 'Bob', 'clerk', 'x')`)
	f.exec(`INSERT INTO vendors (id, event_id, name, email) VALUES (1, 1, 'Vera Vendor', 'vera@example.com'), (2, 1, 'Otto Other', 'otto@example.com')`)

	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return clock })}, opts...)
	f.svc = NewService(db, nil, opts...)
	return f
}

func (f *fixture) exec(query string, args ...any) {
	f.t.Helper()
	err := f.db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewRaw(query, args...).Exec(ctx)
		return err
	})
	if err != nil {
		f.t.Fatalf("exec %q: %v", query, err)
	}
}

// caller returns a fresh session for clerk 1 on counter 1.
func (f *fixture) caller() *Caller {
	return &Caller{ClerkID: f.clerkID, CounterID: f.counterID, EventID: f.eventID, Overseer: true, Peer: "Alice/1", Address: "127.0.0.1"}
}

// otherCaller returns a session for clerk 2 on counter 2.
func (f *fixture) otherCaller() *Caller {
	return &Caller{ClerkID: 2, CounterID: 2, EventID: f.eventID, Peer: "Bob/2", Address: "127.0.0.2"}
}

func (f *fixture) addItem(code string, price int64, state string) models.Item {
	return f.addVendorItem(f.vendorID, code, price, state)
}

func (f *fixture) addVendorItem(vendorID int64, code string, price int64, state string) models.Item {
	f.t.Helper()
	item := models.Item{Code: code, VendorID: vendorID, Name: "Item " + code, Price: price, State: state}
	err := f.db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&item).Exec(ctx)
		return err
	})
	if err != nil {
		f.t.Fatalf("insert item %s: %v", code, err)
	}
	return item
}

// addBox creates a box whose first code is the representative item.
func (f *fixture) addBox(description string, price int64, state string, codes ...string) (models.Box, []models.Item) {
	f.t.Helper()
	box := models.Box{Description: description, BundleSize: 1}
	items := make([]models.Item, 0, len(codes))
	err := f.db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&box).Exec(ctx); err != nil {
			return err
		}
		for _, code := range codes {
			item := models.Item{Code: code, VendorID: f.vendorID, BoxID: &box.ID, Name: description, Price: price, State: state}
			if _, err := tx.NewInsert().Model(&item).Exec(ctx); err != nil {
				return err
			}
			items = append(items, item)
		}
		box.RepresentativeItem = items[0].ID
		_, err := tx.NewUpdate().Model(&box).Column("representative_item_id").WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		f.t.Fatalf("insert box %s: %v", description, err)
	}
	return box, items
}

func (f *fixture) item(code string) models.Item {
	f.t.Helper()
	var item models.Item
	err := f.db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&item).Where("code = ?", code).Scan(ctx)
	})
	if err != nil {
		f.t.Fatalf("load item %s: %v", code, err)
	}
	return item
}

func (f *fixture) receipt(id int64) models.Receipt {
	f.t.Helper()
	var receipt models.Receipt
	err := f.db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&receipt).Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		f.t.Fatalf("load receipt %d: %v", id, err)
	}
	return receipt
}

// actions counts the receipt rows by action.
func (f *fixture) actions(receiptID int64) map[string]int {
	f.t.Helper()
	rows := make([]models.ReceiptItem, 0)
	err := f.db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).Where("receipt_id = ?", receiptID).Scan(ctx)
	})
	if err != nil {
		f.t.Fatalf("load receipt rows: %v", err)
	}
	out := make(map[string]int)
	for _, row := range rows {
		out[row.Action]++
	}
	return out
}

func (f *fixture) count(query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	err := f.db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(query, args...).Scan(ctx, &n)
	})
	if err != nil {
		f.t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func (f *fixture) start(c *Caller) ReceiptView {
	f.t.Helper()
	r, err := f.svc.Start(context.Background(), c)
	if err != nil {
		f.t.Fatalf("start receipt: %v", err)
	}
	return r
}

func (f *fixture) reserve(c *Caller, code string) ItemView {
	f.t.Helper()
	v, err := f.svc.Reserve(context.Background(), c, code)
	if err != nil {
		f.t.Fatalf("reserve %s: %v", code, err)
	}
	return v
}

func expectKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %v (%s)", kind, err, got)
	}
}

func expectState(t *testing.T, f *fixture, code, state string) {
	t.Helper()
	if got := f.item(code).State; got != state {
		t.Fatalf("expected item %s in state %s, got %s", code, state, got)
	}
}

// secondEvent seeds an autumn event with its own counter, overseer and vendor
// and returns a session for that overseer.
func (f *fixture) secondEvent() *Caller {
	f.exec(`INSERT INTO events (id, slug, name) VALUES (2, 'autumn', 'Autumn market')`)
	f.exec(`INSERT INTO counters (id, event_id, identifier, name) VALUES (3, 2, 'C1', 'Counter 1')`)
	f.exec(`INSERT INTO clerks (id, event_id, name, role, access_key_hash) VALUES (3, 2, 'Ada', 'overseer', 'x')`)
	f.exec(`INSERT INTO vendors (id, event_id, name) VALUES (3, 2, 'Ines Autumn')`)
	return &Caller{ClerkID: 3, CounterID: 3, EventID: 2, Overseer: true, Peer: "Ada/3", Address: "127.0.0.3"}
}

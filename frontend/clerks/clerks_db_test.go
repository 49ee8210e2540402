package clerks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

var testParams = &argon.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func openClerksTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "clerks-test.db"))
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
			`INSERT INTO clerks (id, event_id, name, role, access_key_hash) VALUES (1, 1, 'Alice', 'overseer', 'x'), (2, 2, 'Zed', 'clerk', 'x')`,
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

func TestCreateClerkReturnsWorkingCode(t *testing.T) {
	db := openClerksTestDB(t)

	created, err := CreateClerk(context.Background(), db, audit.NewService(), testParams, 1, 1, " Bob ", "")
	if err != nil {
		t.Fatalf("create clerk: %v", err)
	}
	if created.Name != "Bob" || created.Role != rbac.RoleClerk {
		t.Fatalf("unexpected clerk: %+v", created)
	}

	id, key, err := argon.ParseClerkCode(created.Code)
	if err != nil {
		t.Fatalf("parse code: %v", err)
	}
	if id != created.ID {
		t.Fatalf("code id %d does not match clerk id %d", id, created.ID)
	}

	var clerk models.Clerk
	err = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&clerk).Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		t.Fatalf("load clerk: %v", err)
	}
	ok, err := argon.VerifyAccessKey(key, clerk.AccessKeyHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}

	var logs []models.AuditLog
	err = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		logs, err = audit.ListForEntity(ctx, tx, "clerk", created.ID)
		return err
	})
	if err != nil || len(logs) != 1 || logs[0].ClerkID != 1 {
		t.Fatalf("expected one audit row by clerk 1, got %+v (%v)", logs, err)
	}
}

func TestCreateClerkValidates(t *testing.T) {
	db := openClerksTestDB(t)

	if _, err := CreateClerk(context.Background(), db, nil, testParams, 1, 1, "  ", "clerk"); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := CreateClerk(context.Background(), db, nil, testParams, 1, 1, "Bob", "admin"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestListClerksIsScopedToEvent(t *testing.T) {
	db := openClerksTestDB(t)
	if _, err := CreateClerk(context.Background(), db, nil, testParams, 1, 1, "Bob", "overseer"); err != nil {
		t.Fatalf("create clerk: %v", err)
	}

	clerks, err := ListClerks(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("list clerks: %v", err)
	}
	if len(clerks) != 2 || clerks[0].Name != "Alice" || clerks[1].Role != rbac.RoleOverseer {
		t.Fatalf("unexpected clerks: %+v", clerks)
	}
}

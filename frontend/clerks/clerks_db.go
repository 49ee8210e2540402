package clerks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrInvalidRole  = errors.New("role must be clerk or overseer")
)

func ListClerks(ctx context.Context, db *sqlite.DB, eventID int64) ([]ClerkView, error) {
	clerks := make([]ClerkView, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw("SELECT id, name, role FROM clerks WHERE event_id = ? ORDER BY id ASC", eventID).Scan(ctx, &clerks)
	})
	return clerks, err
}

// CreateClerk adds a clerk to eventID and returns its "<id>:<key>" login code.
func CreateClerk(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, params *argon.Params, creatorID, eventID int64, name, role string) (CreatedClerk, error) {
	name = strings.TrimSpace(name)
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = rbac.RoleClerk
	}
	if name == "" {
		return CreatedClerk{}, ErrNameRequired
	}
	if role != rbac.RoleClerk && role != rbac.RoleOverseer {
		return CreatedClerk{}, ErrInvalidRole
	}

	key, err := argon.NewAccessKey()
	if err != nil {
		return CreatedClerk{}, err
	}
	hash, err := argon.HashAccessKey(key, params)
	if err != nil {
		return CreatedClerk{}, err
	}

	var out CreatedClerk
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		clerk := &models.Clerk{
			EventID:       eventID,
			Name:          name,
			Role:          role,
			AccessKeyHash: hash,
		}
		if _, err := tx.NewInsert().Model(clerk).Exec(ctx); err != nil {
			return fmt.Errorf("insert clerk: %w", err)
		}
		out = CreatedClerk{
			ClerkView: ClerkView{ID: clerk.ID, Name: clerk.Name, Role: clerk.Role},
			Code:      fmt.Sprintf("%d:%s", clerk.ID, key),
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, creatorID, audit.ActionClerkCreate, "clerk", clerk.ID, nil, out.ClerkView)
		}
		return nil
	})
	return out, err
}

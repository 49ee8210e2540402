// Package audit records overseer overrides and permit changes as before/after
// JSON snapshots.
package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/uptrace/bun"

	"fleamarket/models"
)

// Actions recorded by the checkout core.
const (
	ActionItemEdit      = "item.edit"
	ActionItemLost      = "item.mark_lost"
	ActionVendorAbandon = "vendor.abandon"
	ActionPermitCreate  = "permit.create"
	ActionItemImport    = "item.import"
	ActionClerkCreate   = "clerk.create"
)

// Service writes audit records inside the caller transaction.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Write(ctx context.Context, tx bun.Tx, clerkID int64, action, entityType string, entityID int64, before, after any) error {
	beforeJSON, err := marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return err
	}
	entry := &models.AuditLog{
		ClerkID:    clerkID,
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
	}
	_, err = tx.NewInsert().Model(entry).Exec(ctx)
	return err
}

// ListForEntity returns the audit trail of one entity, oldest first.
func ListForEntity(ctx context.Context, db bun.IDB, entityType string, entityID int64) ([]models.AuditLog, error) {
	logs := make([]models.AuditLog, 0)
	err := db.NewSelect().
		Model(&logs).
		Where("entity_type = ?", entityType).
		Where("entity_id = ?", strconv.FormatInt(entityID, 10)).
		OrderExpr("id ASC").
		Scan(ctx)
	return logs, err
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

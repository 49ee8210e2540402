package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/shortcode"
	"fleamarket/models"
)

// CreateVendorPermit invalidates the vendor's earlier permits and issues a new
// one with a fresh short code.
func (s *Service) CreateVendorPermit(ctx context.Context, c *Caller, vendorID int64) (PermitView, error) {
	var out PermitView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadVendor(ctx, tx, c.EventID, vendorID); err != nil {
			return err
		}

		old := make([]models.TemporaryAccessPermit, 0)
		if err := tx.NewSelect().Model(&old).Where("vendor_id = ?", vendorID).OrderExpr("id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("load vendor permits: %w", err)
		}
		if len(old) > 0 {
			logs := make([]models.TemporaryAccessPermitLog, 0, len(old))
			for _, permit := range old {
				logs = append(logs, s.permitLog(c, permit.ID, models.PermitLogInvalidate))
			}
			if _, err := tx.NewInsert().Model(&logs).Exec(ctx); err != nil {
				return fmt.Errorf("log permit invalidation: %w", err)
			}
			if _, err := tx.NewRaw(`UPDATE temporary_access_permits SET state = ? WHERE vendor_id = ?`,
				models.PermitInvalidated, vendorID).Exec(ctx); err != nil {
				return fmt.Errorf("invalidate permits: %w", err)
			}
		}

		code, err := s.codes.Acquire(ctx, func(ctx context.Context, code string) (bool, error) {
			return tx.NewSelect().Model((*models.TemporaryAccessPermit)(nil)).Where("short_code = ?", code).Exists(ctx)
		})
		if err != nil {
			if errors.Is(err, shortcode.ErrExhausted) {
				return conflict("Gave up code generation.")
			}
			return err
		}

		permit := models.TemporaryAccessPermit{
			VendorID:  vendorID,
			CreatorID: c.ClerkID,
			ShortCode: code,
			State:     models.PermitActive,
			CreatedAt: s.now(),
		}
		if _, err := tx.NewInsert().Model(&permit).Exec(ctx); err != nil {
			return fmt.Errorf("insert permit: %w", err)
		}
		entry := s.permitLog(c, permit.ID, models.PermitLogAdd)
		if _, err := tx.NewInsert().Model(&entry).Exec(ctx); err != nil {
			return fmt.Errorf("log permit: %w", err)
		}
		if err := s.audit.Write(ctx, tx, c.ClerkID, audit.ActionPermitCreate, "vendor", vendorID, nil, map[string]int64{"permit_id": permit.ID}); err != nil {
			return err
		}
		out = PermitView{Code: code}
		return nil
	})
	return out, err
}

func (s *Service) permitLog(c *Caller, permitID int64, action string) models.TemporaryAccessPermitLog {
	return models.TemporaryAccessPermitLog{
		PermitID:  permitID,
		Action:    action,
		Address:   c.Address,
		Peer:      c.Peer,
		CreatedAt: s.now(),
	}
}

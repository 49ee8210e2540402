package checkout

import (
	"context"
	"fmt"
	"slices"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

func unexpectedReceiptState(r models.Receipt) *Error {
	return conflict("Receipt %d is in unexpected state: %s", r.ID, models.ReceiptStatusNames[r.Status])
}

func hasPendingPurchase(ctx context.Context, tx bun.Tx, clerkID int64) (bool, error) {
	exists, err := tx.NewSelect().Model((*models.Receipt)(nil)).
		Where("clerk_id = ?", clerkID).
		Where("status = ?", models.ReceiptPending).
		Where("type = ?", models.ReceiptTypePurchase).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check pending receipts: %w", err)
	}
	return exists, nil
}

// Start opens a new purchase receipt for the caller and makes it active.
func (s *Service) Start(ctx context.Context, c *Caller) (ReceiptView, error) {
	if c.ReceiptID != nil {
		return ReceiptView{}, conflict("There is already an active receipt on this counter!")
	}
	var receipt models.Receipt
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		pending, err := hasPendingPurchase(ctx, tx, c.ClerkID)
		if err != nil {
			return err
		}
		if pending {
			return conflict("There is already an active receipt!")
		}
		receipt = models.Receipt{
			Type:      models.ReceiptTypePurchase,
			Status:    models.ReceiptPending,
			ClerkID:   c.ClerkID,
			CounterID: c.CounterID,
			StartTime: s.now(),
		}
		if _, err := tx.NewInsert().Model(&receipt).Exec(ctx); err != nil {
			if sqlite.IsUniqueViolation(err) {
				return conflict("There is already an active receipt!")
			}
			return fmt.Errorf("insert receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.ReceiptID = int64Ptr(receipt.ID)
	return receiptView(receipt), nil
}

// activeReceipt loads the receipt the client operates on. The session slot,
// when set, must name the same receipt.
func (s *Service) activeReceipt(ctx context.Context, tx bun.Tx, c *Caller, id int64, allowed ...string) (models.Receipt, error) {
	inSession := c.ReceiptID != nil
	if inSession && *c.ReceiptID != id {
		msg := fmt.Sprintf("Receipt id conflict: %d != %d", *c.ReceiptID, id)
		s.log.Error(msg, zap.Int64("clerk_id", c.ClerkID))
		return models.Receipt{}, conflict("%s", msg)
	}
	if !inSession {
		s.log.Warn("active receipt is being read without it being in session",
			zap.Int64("receipt_id", id), zap.Int64("clerk_id", c.ClerkID))
	}
	receipt, err := loadReceipt(ctx, tx, c.EventID, id, models.ReceiptTypePurchase)
	if err != nil {
		return receipt, err
	}
	if !slices.Contains(allowed, receipt.Status) {
		if !inSession && receipt.Status == models.ReceiptFinished && receipt.EndTime != nil {
			return receipt, conflict("Receipt %d was already ended at %s", id, receipt.EndTime.Format("2006-01-02 15:04:05"))
		}
		return receipt, unexpectedReceiptState(receipt)
	}
	return receipt, nil
}

// Finish sells every item on the receipt and closes it.
func (s *Service) Finish(ctx context.Context, c *Caller, id int64) (ReceiptView, error) {
	var out ReceiptView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := s.activeReceipt(ctx, tx, c, id, models.ReceiptPending)
		if err != nil {
			return err
		}
		items, err := addedItems(ctx, tx, receipt.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.State != models.ItemStaged {
				return stateConflict(item)
			}
		}
		if err := s.applyState(ctx, tx, c, itemPtrs(items), models.ItemSold); err != nil {
			return err
		}
		end := s.now()
		receipt.Status = models.ReceiptFinished
		receipt.EndTime = &end
		if _, err := tx.NewUpdate().Model(&receipt).Column("status", "end_time").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("finish receipt: %w", err)
		}
		if err := updateTotal(ctx, tx, &receipt); err != nil {
			return err
		}
		out = receiptView(receipt)
		return nil
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.ReceiptID = nil
	return out, nil
}

// Abort cancels a pending or suspended receipt and puts its items back on
// sale. The Add rows are snapshotted first: every row gets a Remove row and
// its item is reverted, and only then are the snapshot's Add rows marked
// RemovedLater.
func (s *Service) Abort(ctx context.Context, c *Caller, id int64) (ReceiptView, error) {
	var out ReceiptView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := s.activeReceipt(ctx, tx, c, id, models.ReceiptPending, models.ReceiptSuspended)
		if err != nil {
			return err
		}

		added := make([]models.ReceiptItem, 0)
		if err := tx.NewSelect().Model(&added).
			Where("receipt_id = ?", receipt.ID).
			Where("action = ?", models.ActionAdd).
			OrderExpr("id ASC").
			Scan(ctx); err != nil {
			return fmt.Errorf("load receipt rows: %w", err)
		}
		items, err := addedItems(ctx, tx, receipt.ID)
		if err != nil {
			return err
		}
		byID := make(map[int64]*models.Item, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}

		rowIDs := make([]int64, 0, len(added))
		for _, row := range added {
			if _, err := insertRow(ctx, tx, receipt.ID, row.ItemID, models.ActionRemove); err != nil {
				return err
			}
			item := byID[row.ItemID]
			if item != nil && item.State != models.ItemBrought {
				if err := s.applyState(ctx, tx, c, []*models.Item{item}, models.ItemBrought); err != nil {
					return err
				}
			}
			rowIDs = append(rowIDs, row.ID)
		}
		if err := setRowAction(ctx, tx, rowIDs, models.ActionRemovedLater); err != nil {
			return err
		}

		end := s.now()
		receipt.Status = models.ReceiptAborted
		receipt.EndTime = &end
		if _, err := tx.NewUpdate().Model(&receipt).Column("status", "end_time").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("abort receipt: %w", err)
		}
		if err := updateTotal(ctx, tx, &receipt); err != nil {
			return err
		}
		out = receiptView(receipt)
		return nil
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.ReceiptID = nil
	return out, nil
}

// Suspend parks the active receipt with a note, freeing the counter.
func (s *Service) Suspend(ctx context.Context, c *Caller, id int64, note string) (ReceiptView, error) {
	var out ReceiptView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := s.activeReceipt(ctx, tx, c, id, models.ReceiptPending)
		if err != nil {
			return err
		}
		receipt.Status = models.ReceiptSuspended
		receipt.Notes = note
		if _, err := tx.NewUpdate().Model(&receipt).Column("status", "notes").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("suspend receipt: %w", err)
		}
		out, err = receiptWithRows(ctx, tx, receipt)
		return err
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.ReceiptID = nil
	return out, nil
}

// Continue resumes a suspended receipt on the caller's counter.
func (s *Service) Continue(ctx context.Context, c *Caller, id int64) (ReceiptView, error) {
	if c.ReceiptID != nil {
		return ReceiptView{}, conflict("There is already an active receipt on this counter!")
	}
	var out ReceiptView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := loadReceipt(ctx, tx, c.EventID, id, models.ReceiptTypePurchase)
		if err != nil {
			return err
		}
		if receipt.Status != models.ReceiptSuspended {
			return unexpectedReceiptState(receipt)
		}
		pending, err := hasPendingPurchase(ctx, tx, c.ClerkID)
		if err != nil {
			return err
		}
		if pending {
			return conflict("There is already an active receipt!")
		}
		receipt.Status = models.ReceiptPending
		receipt.ClerkID = c.ClerkID
		receipt.CounterID = c.CounterID
		if _, err := tx.NewUpdate().Model(&receipt).Column("status", "clerk_id", "counter_id").WherePK().Exec(ctx); err != nil {
			if sqlite.IsUniqueViolation(err) {
				return conflict("There is already an active receipt!")
			}
			return fmt.Errorf("continue receipt: %w", err)
		}
		out, err = receiptWithRows(ctx, tx, receipt)
		return err
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.ReceiptID = int64Ptr(out.ID)
	return out, nil
}

// Get returns a receipt of the caller's event with its rows. compensation
// selects the receipt type.
func (s *Service) Get(ctx context.Context, c *Caller, id int64, compensation bool) (ReceiptView, error) {
	receiptType := models.ReceiptTypePurchase
	if compensation {
		receiptType = models.ReceiptTypeCompensation
	}
	var out ReceiptView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := loadReceipt(ctx, tx, c.EventID, id, receiptType)
		if err != nil {
			return err
		}
		out, err = receiptWithRows(ctx, tx, receipt)
		return err
	})
	return out, err
}

// GetByItem returns the finished purchase receipt the item was sold on.
func (s *Service) GetByItem(ctx context.Context, c *Caller, code string) (ReceiptView, error) {
	var out ReceiptView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		var receipt models.Receipt
		err = tx.NewSelect().Model(&receipt).
			Where("type = ?", models.ReceiptTypePurchase).
			Where("status = ?", models.ReceiptFinished).
			Where("id IN (SELECT receipt_id FROM receipt_items WHERE item_id = ? AND action = ?)", item.ID, models.ActionAdd).
			OrderExpr("id DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return notFound("No finished receipt holds item %s.", item.Code)
			}
			return fmt.Errorf("load receipt by item: %w", err)
		}
		out, err = receiptWithRows(ctx, tx, receipt)
		return err
	})
	return out, err
}

// Activate makes one of the caller's own pending receipts active again.
func (s *Service) Activate(ctx context.Context, c *Caller, id int64) (ReceiptView, error) {
	var out ReceiptView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var receipt models.Receipt
		err := tx.NewSelect().Model(&receipt).
			Where("id = ?", id).
			Where("clerk_id = ?", c.ClerkID).
			Where("status = ?", models.ReceiptPending).
			Where("type = ?", models.ReceiptTypePurchase).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return notFound("No pending receipt %d for this clerk.", id)
			}
			return fmt.Errorf("load receipt %d: %w", id, err)
		}
		out, err = receiptWithRows(ctx, tx, receipt)
		return err
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.ReceiptID = int64Ptr(out.ID)
	return out, nil
}

// Pending lists every pending or suspended purchase receipt of the caller's
// event.
func (s *Service) Pending(ctx context.Context, c *Caller) ([]ReceiptView, error) {
	if err := c.requireOverseer(); err != nil {
		return nil, err
	}
	return s.listReceipts(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status IN (?)", bun.In([]string{models.ReceiptPending, models.ReceiptSuspended})).
			Where("type = ?", models.ReceiptTypePurchase).
			Where("clerk_id IN (SELECT id FROM clerks WHERE event_id = ?)", c.EventID)
	})
}

// PendingForClerk lists the clerk's pending purchase receipts.
func (s *Service) PendingForClerk(ctx context.Context, clerkID int64) ([]ReceiptView, error) {
	return s.listReceipts(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("clerk_id = ?", clerkID).
			Where("status = ?", models.ReceiptPending).
			Where("type = ?", models.ReceiptTypePurchase)
	})
}

// Compensated lists the compensation receipts of a vendor of the caller's
// event by start time.
func (s *Service) Compensated(ctx context.Context, c *Caller, vendorID int64) ([]ReceiptView, error) {
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := loadVendor(ctx, tx, c.EventID, vendorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.listReceipts(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("vendor_id = ?", vendorID).
			Where("type = ?", models.ReceiptTypeCompensation)
	})
}

func (s *Service) listReceipts(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]ReceiptView, error) {
	receipts := make([]models.Receipt, 0)
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return filter(tx.NewSelect().Model(&receipts)).OrderExpr("start_time ASC, id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receiptViews(receipts), nil
}

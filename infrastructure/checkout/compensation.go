package checkout

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/provision"
	"fleamarket/models"
)

// StartCompensation opens a compensation receipt for a vendor of the event.
func (s *Service) StartCompensation(ctx context.Context, c *Caller, vendorID int64) (ReceiptView, error) {
	if c.Compensation != nil {
		return ReceiptView{}, conflict("Already compensating")
	}
	var receipt models.Receipt
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadVendor(ctx, tx, c.EventID, vendorID); err != nil {
			return err
		}
		receipt = models.Receipt{
			Type:      models.ReceiptTypeCompensation,
			Status:    models.ReceiptPending,
			ClerkID:   c.ClerkID,
			CounterID: c.CounterID,
			VendorID:  int64Ptr(vendorID),
			StartTime: s.now(),
		}
		if _, err := tx.NewInsert().Model(&receipt).Exec(ctx); err != nil {
			return fmt.Errorf("insert compensation receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.Compensation = &Compensation{ReceiptID: receipt.ID, VendorID: vendorID}
	return receiptView(receipt), nil
}

func (s *Service) openCompensation(ctx context.Context, tx bun.Tx, c *Caller) (models.Receipt, error) {
	if c.Compensation == nil {
		return models.Receipt{}, conflict("No compensation started!")
	}
	receipt, err := loadReceipt(ctx, tx, c.EventID, c.Compensation.ReceiptID, models.ReceiptTypeCompensation)
	if err != nil {
		return receipt, err
	}
	if receipt.Status != models.ReceiptPending {
		return receipt, unexpectedReceiptState(receipt)
	}
	return receipt, nil
}

// Compensate pays out one sold item of the vendor being compensated.
func (s *Service) Compensate(ctx context.Context, c *Caller, code string) (ItemView, error) {
	var out ItemView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := s.openCompensation(ctx, tx, c)
		if err != nil {
			return err
		}
		item, err := loadItemOfVendor(ctx, tx, c.EventID, c.Compensation.VendorID, code)
		if err != nil {
			return err
		}
		out, err = s.changeItemState(ctx, tx, c, &item, []string{models.ItemSold}, models.ItemCompensated, "")
		if err != nil {
			return err
		}
		if _, err := insertRow(ctx, tx, receipt.ID, item.ID, models.ActionAdd); err != nil {
			return err
		}
		if err := updateTotal(ctx, tx, &receipt); err != nil {
			return err
		}
		out.Total = int64Ptr(receipt.Total)
		return nil
	})
	return out, err
}

// EndCompensation appends the provision rows and closes the compensation
// receipt.
func (s *Service) EndCompensation(ctx context.Context, c *Caller) (ReceiptView, error) {
	var out ReceiptView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := s.openCompensation(ctx, tx, c)
		if err != nil {
			return err
		}
		vendorID := c.Compensation.VendorID

		fn, err := s.eventProvision(ctx, tx, c.EventID)
		if err != nil {
			return err
		}
		if fn != nil {
			before, err := salesOf(ctx, tx, `
SELECT COALESCE(SUM(price), 0), COUNT(1) FROM items
WHERE vendor_id = ? AND state = ?
  AND id NOT IN (SELECT item_id FROM receipt_items WHERE receipt_id = ? AND action = ?)`,
				vendorID, models.ItemCompensated, receipt.ID, models.ActionAdd)
			if err != nil {
				return err
			}
			current, err := salesOf(ctx, tx, `
SELECT COALESCE(SUM(i.price), 0), COUNT(1)
FROM receipt_items ri
JOIN items i ON i.id = ri.item_id
WHERE ri.receipt_id = ? AND ri.action = ?`, receipt.ID, models.ActionAdd)
			if err != nil {
				return err
			}
			applied, err := appliedProvision(ctx, tx, vendorID, receipt.ID)
			if err != nil {
				return err
			}
			res := provision.Calculate(fn, before, current, applied)
			rows := []models.ReceiptExtraRow{{ReceiptID: receipt.ID, Type: models.ExtraProvision, Value: res.Provision}}
			if res.ProvisionFix != 0 {
				rows = append(rows, models.ReceiptExtraRow{ReceiptID: receipt.ID, Type: models.ExtraProvisionFix, Value: res.ProvisionFix})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert provision rows: %w", err)
			}
		}

		end := s.now()
		receipt.Status = models.ReceiptFinished
		receipt.EndTime = &end
		if _, err := tx.NewUpdate().Model(&receipt).Column("status", "end_time").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("finish compensation receipt: %w", err)
		}
		if err := updateTotal(ctx, tx, &receipt); err != nil {
			return err
		}
		out, err = receiptWithRows(ctx, tx, receipt)
		return err
	})
	if err != nil {
		return ReceiptView{}, err
	}
	c.Compensation = nil
	return out, nil
}

// CompensableItems lists the vendor's sold items and previews the provision a
// compensation of all of them would carry. Nothing is stored.
func (s *Service) CompensableItems(ctx context.Context, c *Caller, vendorID int64) (CompensableView, error) {
	var out CompensableView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadVendor(ctx, tx, c.EventID, vendorID); err != nil {
			return err
		}
		items := make([]models.Item, 0)
		if err := tx.NewSelect().Model(&items).
			Where("vendor_id = ?", vendorID).
			Where("state = ?", models.ItemSold).
			OrderExpr("name ASC, code ASC").
			Scan(ctx); err != nil {
			return fmt.Errorf("list compensable items: %w", err)
		}
		out.Items = itemViews(items)

		fn, err := s.eventProvision(ctx, tx, c.EventID)
		if err != nil || fn == nil {
			return err
		}
		before, err := salesOf(ctx, tx, `SELECT COALESCE(SUM(price), 0), COUNT(1) FROM items WHERE vendor_id = ? AND state = ?`,
			vendorID, models.ItemCompensated)
		if err != nil {
			return err
		}
		var current provision.Sales
		for _, item := range items {
			current.Total += item.Price
			current.Count++
		}
		applied, err := appliedProvision(ctx, tx, vendorID, 0)
		if err != nil {
			return err
		}
		res := provision.Calculate(fn, before, current, applied)
		out.Extras = []ExtraRowView{extraRowView(models.ReceiptExtraRow{Type: models.ExtraProvision, Value: res.Provision})}
		if res.ProvisionFix != 0 {
			out.Extras = append(out.Extras, extraRowView(models.ReceiptExtraRow{Type: models.ExtraProvisionFix, Value: res.ProvisionFix}))
		}
		return nil
	})
	return out, err
}

func (s *Service) eventProvision(ctx context.Context, tx bun.Tx, eventID int64) (provision.Func, error) {
	event, err := loadEvent(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	fn, err := s.provisions.ProvisionFunc(event.ProvisionFunction)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", eventID, err)
	}
	return fn, nil
}

func salesOf(ctx context.Context, tx bun.Tx, query string, args ...any) (provision.Sales, error) {
	var sales provision.Sales
	if err := tx.NewRaw(query, args...).Scan(ctx, &sales.Total, &sales.Count); err != nil {
		return sales, fmt.Errorf("sum vendor sales: %w", err)
	}
	return sales, nil
}

// appliedProvision sums the provision rows already written on the vendor's
// finished compensation receipts, excluding receipt exceptID.
func appliedProvision(ctx context.Context, tx bun.Tx, vendorID, exceptID int64) (int64, error) {
	var applied int64
	err := tx.NewRaw(`
SELECT COALESCE(SUM(x.value), 0)
FROM receipt_extra_rows x
JOIN receipts r ON r.id = x.receipt_id
WHERE r.vendor_id = ? AND r.type = ? AND r.status = ? AND r.id != ?
  AND x.type IN (?)`,
		vendorID, models.ReceiptTypeCompensation, models.ReceiptFinished, exceptID,
		bun.In([]string{models.ExtraProvision, models.ExtraProvisionFix}),
	).Scan(ctx, &applied)
	if err != nil {
		return 0, fmt.Errorf("sum applied provision: %w", err)
	}
	return applied, nil
}

package checkout

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"fleamarket/models"
)

// calculateTotal sums the current prices of items holding an Add row and all
// extra rows of the receipt.
func calculateTotal(ctx context.Context, tx bun.Tx, receiptID int64) (int64, error) {
	var items, extras int64
	err := tx.NewRaw(`
SELECT COALESCE(SUM(i.price), 0)
FROM receipt_items ri
JOIN items i ON i.id = ri.item_id
WHERE ri.receipt_id = ? AND ri.action = ?`, receiptID, models.ActionAdd).Scan(ctx, &items)
	if err != nil {
		return 0, fmt.Errorf("sum receipt %d items: %w", receiptID, err)
	}
	err = tx.NewRaw(`SELECT COALESCE(SUM(value), 0) FROM receipt_extra_rows WHERE receipt_id = ?`, receiptID).Scan(ctx, &extras)
	if err != nil {
		return 0, fmt.Errorf("sum receipt %d extras: %w", receiptID, err)
	}
	return items + extras, nil
}

// updateTotal recomputes and stores the receipt total.
func updateTotal(ctx context.Context, tx bun.Tx, receipt *models.Receipt) error {
	total, err := calculateTotal(ctx, tx, receipt.ID)
	if err != nil {
		return err
	}
	receipt.Total = total
	if _, err := tx.NewUpdate().Model(receipt).Column("total").WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("store receipt %d total: %w", receipt.ID, err)
	}
	return nil
}

// CalculateTotal recomputes and stores the total of a receipt and returns it.
// Calling it repeatedly yields the same value.
func (s *Service) CalculateTotal(ctx context.Context, receiptID int64) (int64, error) {
	var total int64
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		receipt, err := loadReceipt(ctx, tx, 0, receiptID, "")
		if err != nil {
			return err
		}
		if err := updateTotal(ctx, tx, &receipt); err != nil {
			return err
		}
		total = receipt.Total
		return nil
	})
	return total, err
}

package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"fleamarket/models"
)

// Reads inside a write transaction double as row locks; see package doc.

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func loadItem(ctx context.Context, tx bun.Tx, eventID int64, code string) (models.Item, error) {
	code = normalizeCode(code)
	if code == "" {
		return models.Item{}, badRequest("Item code is required.")
	}
	var item models.Item
	q := tx.NewSelect().Model(&item).Where("i.code = ?", code)
	if eventID > 0 {
		q = q.Where("i.vendor_id IN (SELECT id FROM vendors WHERE event_id = ?)", eventID)
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, notFound("No item found with code %s.", code)
		}
		return item, fmt.Errorf("load item %s: %w", code, err)
	}
	return item, nil
}

func loadItemOfVendor(ctx context.Context, tx bun.Tx, eventID, vendorID int64, code string) (models.Item, error) {
	item, err := loadItem(ctx, tx, eventID, code)
	if err != nil {
		return item, err
	}
	if item.VendorID != vendorID {
		return models.Item{}, notFound("No item found with code %s for vendor %d.", normalizeCode(code), vendorID)
	}
	return item, nil
}

func loadEvent(ctx context.Context, tx bun.Tx, eventID int64) (models.Event, error) {
	var event models.Event
	if err := tx.NewSelect().Model(&event).Where("id = ?", eventID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event, authFailed("Event has gone missing.")
		}
		return event, fmt.Errorf("load event %d: %w", eventID, err)
	}
	return event, nil
}

func loadVendor(ctx context.Context, tx bun.Tx, eventID, vendorID int64) (models.Vendor, error) {
	var vendor models.Vendor
	err := tx.NewSelect().Model(&vendor).
		Where("id = ?", vendorID).
		Where("event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vendor, badRequest("Invalid vendor id")
		}
		return vendor, fmt.Errorf("load vendor %d: %w", vendorID, err)
	}
	return vendor, nil
}

// loadReceipt reads a receipt made by a clerk of eventID. Receipts of other
// events are reported as missing.
func loadReceipt(ctx context.Context, tx bun.Tx, eventID, receiptID int64, receiptType string) (models.Receipt, error) {
	var receipt models.Receipt
	q := tx.NewSelect().Model(&receipt).Where("id = ?", receiptID)
	if eventID > 0 {
		q = q.Where("clerk_id IN (SELECT id FROM clerks WHERE event_id = ?)", eventID)
	}
	if receiptType != "" {
		q = q.Where("type = ?", receiptType)
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return receipt, notFound("Receipt %d not found.", receiptID)
		}
		return receipt, fmt.Errorf("load receipt %d: %w", receiptID, err)
	}
	return receipt, nil
}

func loadBox(ctx context.Context, tx bun.Tx, boxID int64) (models.Box, error) {
	var box models.Box
	if err := tx.NewSelect().Model(&box).Where("id = ?", boxID).Scan(ctx); err != nil {
		return box, fmt.Errorf("load box %d: %w", boxID, err)
	}
	return box, nil
}

// boxItems returns the members of a box ordered by code, optionally limited
// to the given states.
func boxItems(ctx context.Context, tx bun.Tx, boxID int64, states ...string) ([]models.Item, error) {
	items := make([]models.Item, 0)
	q := tx.NewSelect().Model(&items).Where("box_id = ?", boxID)
	if len(states) > 0 {
		q = q.Where("state IN (?)", bun.In(states))
	}
	if err := q.OrderExpr("code ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load box %d items: %w", boxID, err)
	}
	return items, nil
}

func boxItemCount(ctx context.Context, tx bun.Tx, boxID int64) (int64, error) {
	n, err := tx.NewSelect().Model((*models.Item)(nil)).Where("box_id = ?", boxID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count box %d items: %w", boxID, err)
	}
	return int64(n), nil
}

type boxCounts struct {
	ItemCount       int64 `bun:"item_count"`
	ReturnableCount int64 `bun:"returnable_count"`
	ReturnedCount   int64 `bun:"returned_count"`
}

func loadBoxCounts(ctx context.Context, tx bun.Tx, boxID int64) (boxCounts, error) {
	var counts boxCounts
	err := tx.NewRaw(`
SELECT COUNT(1) AS item_count,
       COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) AS returnable_count,
       COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) AS returned_count
FROM items
WHERE box_id = ?`, models.ItemBrought, models.ItemReturned, boxID).Scan(ctx, &counts)
	if err != nil {
		return counts, fmt.Errorf("count box %d states: %w", boxID, err)
	}
	return counts, nil
}

// assignBoxNumber gives the box the next box number of eventID the first
// time it is checked in.
func assignBoxNumber(ctx context.Context, tx bun.Tx, eventID int64, box *models.Box) error {
	if box.BoxNumber != nil {
		return nil
	}
	var next int64
	if err := tx.NewRaw(`SELECT COALESCE(MAX(box_number), 0) + 1 FROM boxes WHERE event_id = ?`, eventID).Scan(ctx, &next); err != nil {
		return fmt.Errorf("next box number: %w", err)
	}
	box.EventID = &eventID
	box.BoxNumber = &next
	if _, err := tx.NewUpdate().Model(box).Column("event_id", "box_number").WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("assign box number: %w", err)
	}
	return nil
}

// broughtCount counts the items a vendor currently has at the event.
func broughtCount(ctx context.Context, tx bun.Tx, vendorID int64) (int64, error) {
	n, err := tx.NewSelect().Model((*models.Item)(nil)).
		Where("vendor_id = ?", vendorID).
		Where("state = ?", models.ItemBrought).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count brought items: %w", err)
	}
	return int64(n), nil
}

// addedItems returns the items holding an Add row on the receipt, by code.
func addedItems(ctx context.Context, tx bun.Tx, receiptID int64) ([]models.Item, error) {
	items := make([]models.Item, 0)
	err := tx.NewSelect().Model(&items).
		Where("i.id IN (SELECT item_id FROM receipt_items WHERE receipt_id = ? AND action = ?)", receiptID, models.ActionAdd).
		OrderExpr("i.code ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load receipt %d items: %w", receiptID, err)
	}
	return items, nil
}

func activeAddRow(ctx context.Context, tx bun.Tx, receiptID, itemID int64) (models.ReceiptItem, bool, error) {
	var row models.ReceiptItem
	err := tx.NewSelect().Model(&row).
		Where("receipt_id = ?", receiptID).
		Where("item_id = ?", itemID).
		Where("action = ?", models.ActionAdd).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("load receipt row: %w", err)
	}
	return row, true, nil
}

func insertRow(ctx context.Context, tx bun.Tx, receiptID, itemID int64, action string) (models.ReceiptItem, error) {
	row := models.ReceiptItem{ReceiptID: receiptID, ItemID: itemID, Action: action}
	if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
		return row, fmt.Errorf("insert receipt row: %w", err)
	}
	return row, nil
}

func setRowAction(ctx context.Context, tx bun.Tx, rowIDs []int64, action string) error {
	if len(rowIDs) == 0 {
		return nil
	}
	_, err := tx.NewRaw(`UPDATE receipt_items SET action = ? WHERE id IN (?)`, action, bun.In(rowIDs)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update receipt rows: %w", err)
	}
	return nil
}

func receiptRows(ctx context.Context, tx bun.Tx, receiptID int64) ([]RowView, error) {
	rows := make([]models.ReceiptItem, 0)
	if err := tx.NewSelect().Model(&rows).Where("receipt_id = ?", receiptID).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load receipt %d rows: %w", receiptID, err)
	}
	if len(rows) == 0 {
		return []RowView{}, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ItemID)
	}
	items := make([]models.Item, 0, len(ids))
	if err := tx.NewSelect().Model(&items).Where("i.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load receipt %d row items: %w", receiptID, err)
	}
	byID := make(map[int64]models.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]RowView, 0, len(rows))
	for _, row := range rows {
		out = append(out, RowView{Action: row.Action, AddTime: row.AddTime, Item: itemView(byID[row.ItemID])})
	}
	return out, nil
}

func extraRows(ctx context.Context, tx bun.Tx, receiptID int64) ([]ExtraRowView, error) {
	rows := make([]models.ReceiptExtraRow, 0)
	if err := tx.NewSelect().Model(&rows).Where("receipt_id = ?", receiptID).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load receipt %d extras: %w", receiptID, err)
	}
	out := make([]ExtraRowView, 0, len(rows))
	for _, row := range rows {
		out = append(out, extraRowView(row))
	}
	return out, nil
}

// receiptWithRows returns the receipt view including its item and extra rows.
func receiptWithRows(ctx context.Context, tx bun.Tx, receipt models.Receipt) (ReceiptView, error) {
	view := receiptView(receipt)
	rows, err := receiptRows(ctx, tx, receipt.ID)
	if err != nil {
		return view, err
	}
	extras, err := extraRows(ctx, tx, receipt.ID)
	if err != nil {
		return view, err
	}
	view.Items = rows
	view.Extras = extras
	return view, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

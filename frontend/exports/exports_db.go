package exports

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

// writeVendorItemsCSV writes the settlement sheet of one vendor: every item
// with its state and the finished purchase receipt that sold it.
func writeVendorItemsCSV(ctx context.Context, db *sqlite.DB, w io.Writer, eventID, vendorID int64) error {
	type row struct {
		Code      string `bun:"code"`
		Name      string `bun:"name"`
		Price     int64  `bun:"price"`
		State     string `bun:"state"`
		BoxNumber *int64 `bun:"box_number"`
		ReceiptID *int64 `bun:"receipt_id"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT i.code, i.name, i.price, i.state, b.box_number,
       (SELECT MAX(ri.receipt_id)
          FROM receipt_items ri
          JOIN receipts r ON r.id = ri.receipt_id
         WHERE ri.item_id = i.id AND ri.action = ?
           AND r.type = ? AND r.status = ?) AS receipt_id
FROM items i
JOIN vendors v ON v.id = i.vendor_id
LEFT JOIN boxes b ON b.id = i.box_id
WHERE v.event_id = ? AND i.vendor_id = ?
ORDER BY i.code ASC`,
			models.ActionAdd, models.ReceiptTypePurchase, models.ReceiptFinished, eventID, vendorID,
		).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"code", "name", "price", "state", "box_number", "receipt_id"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Code,
			r.Name,
			money(r.Price),
			models.ItemStateNames[r.State],
			optional(r.BoxNumber),
			optional(r.ReceiptID),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeReceiptsCSV lists every receipt made at the counters of eventID.
func writeReceiptsCSV(ctx context.Context, db *sqlite.DB, w io.Writer, eventID int64) error {
	type row struct {
		ID        int64  `bun:"id"`
		Type      string `bun:"type"`
		Status    string `bun:"status"`
		Clerk     string `bun:"clerk"`
		Counter   string `bun:"counter"`
		VendorID  *int64 `bun:"vendor_id"`
		Total     int64  `bun:"total"`
		StartTime string `bun:"start_time"`
		EndTime   string `bun:"end_time"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT r.id, r.type, r.status, cl.name AS clerk, ct.identifier AS counter, r.vendor_id, r.total,
       COALESCE(strftime('%d/%m/%Y %H:%M', r.start_time), '') AS start_time,
       COALESCE(strftime('%d/%m/%Y %H:%M', r.end_time), '') AS end_time
FROM receipts r
JOIN counters ct ON ct.id = r.counter_id
JOIN clerks cl ON cl.id = r.clerk_id
WHERE ct.event_id = ?
ORDER BY r.id ASC`, eventID).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "type", "status", "clerk", "counter", "vendor_id", "total", "start_time", "end_time"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.Type,
			models.ReceiptStatusNames[r.Status],
			r.Clerk,
			r.Counter,
			optional(r.VendorID),
			money(r.Total),
			r.StartTime,
			r.EndTime,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func optional(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

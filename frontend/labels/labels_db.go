package labels

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

// loadItemLabels returns the tags of vendorID still waiting to be brought in.
// With codes set only those codes are returned, whatever their state.
func loadItemLabels(ctx context.Context, db *sqlite.DB, eventID, vendorID int64, codes []string) ([]ItemLabel, error) {
	rows := make([]ItemLabel, 0)
	upper := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			upper = append(upper, c)
		}
	}
	if len(codes) > 0 && len(upper) == 0 {
		return rows, nil
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			TableExpr("items AS i").
			ColumnExpr("i.code, i.name, i.price, i.vendor_id").
			Join("JOIN vendors AS v ON v.id = i.vendor_id").
			Where("v.event_id = ?", eventID).
			Where("i.vendor_id = ?", vendorID).
			Where("i.hidden = ?", false).
			OrderExpr("i.code ASC")
		if len(upper) > 0 {
			q = q.Where("i.code IN (?)", bun.In(upper))
		} else {
			q = q.Where("i.state = ?", models.ItemAdvertised)
		}
		return q.Scan(ctx, &rows)
	})
	return rows, err
}

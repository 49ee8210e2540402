package checkout

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"fleamarket/models"
)

// CheckInBox is the second step of a box check in: every advertised member of
// the box addressed by code becomes brought in one batch.
func (s *Service) CheckInBox(ctx context.Context, c *Caller, code string) (BoxView, error) {
	var out BoxView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		if item.BoxID == nil {
			return badRequest("Item %s is not part of a box.", item.Code)
		}
		if item.State != models.ItemAdvertised {
			return stateConflict(item)
		}
		box, err := loadBox(ctx, tx, *item.BoxID)
		if err != nil {
			return err
		}
		members, err := boxItems(ctx, tx, box.ID, models.ItemAdvertised)
		if err != nil {
			return err
		}
		if _, err := s.checkBroughtLimit(ctx, tx, c, item.VendorID, int64(len(members))); err != nil {
			return err
		}
		if err := assignBoxNumber(ctx, tx, c.EventID, &box); err != nil {
			return err
		}
		if err := s.applyState(ctx, tx, c, itemPtrs(members), models.ItemBrought); err != nil {
			return err
		}
		counts, err := loadBoxCounts(ctx, tx, box.ID)
		if err != nil {
			return err
		}
		out = *boxView(box, counts.ItemCount)
		out.Changed = int64Ptr(int64(len(members)))
		return nil
	})
	return out, err
}

// ReserveBoxItem reserves one brought item of the box addressed by its
// representative code, picking the lowest item code.
func (s *Service) ReserveBoxItem(ctx context.Context, c *Caller, code string) (ItemView, error) {
	var out ItemView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		rep, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		if rep.BoxID == nil {
			return badRequest("Item %s is not part of a box.", rep.Code)
		}
		box, err := loadBox(ctx, tx, *rep.BoxID)
		if err != nil {
			return err
		}
		if box.RepresentativeItem != rep.ID {
			return conflict("Boxes are sold with their box code only.")
		}
		members, err := boxItems(ctx, tx, box.ID, models.ItemBrought)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return conflict("No available items in box.")
		}
		out, err = s.reserve(ctx, tx, c, members[0])
		if err != nil {
			return err
		}
		count, err := boxItemCount(ctx, tx, box.ID)
		if err != nil {
			return err
		}
		out.Box = boxView(box, count)
		return nil
	})
	return out, err
}

// BoxList returns the vendor's visible boxes with their derived counts.
func (s *Service) BoxList(ctx context.Context, c *Caller, vendorID int64) ([]BoxSummary, error) {
	var out []BoxSummary
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadVendor(ctx, tx, c.EventID, vendorID); err != nil {
			return err
		}
		var rows []struct {
			ID                 int64  `bun:"id"`
			Description        string `bun:"description"`
			BoxNumber          *int64 `bun:"box_number"`
			BundleSize         int64  `bun:"bundle_size"`
			RepresentativeCode string `bun:"representative_code"`
			ItemPrice          int64  `bun:"item_price"`
			ItemCount          int64  `bun:"item_count"`
			Brought            int64  `bun:"brought"`
			Sold               int64  `bun:"sold"`
			Compensated        int64  `bun:"compensated"`
			Returnable         int64  `bun:"returnable"`
		}
		err := tx.NewRaw(`
SELECT b.id, b.description, b.box_number, b.bundle_size,
       COALESCE(rep.code, '') AS representative_code,
       COALESCE(rep.price, 0) AS item_price,
       COUNT(i.id) AS item_count,
       COALESCE(SUM(CASE WHEN i.state IN (?) THEN 1 ELSE 0 END), 0) AS brought,
       COALESCE(SUM(CASE WHEN i.state = ? THEN 1 ELSE 0 END), 0) AS sold,
       COALESCE(SUM(CASE WHEN i.state = ? THEN 1 ELSE 0 END), 0) AS compensated,
       COALESCE(SUM(CASE WHEN i.state IN (?) THEN 1 ELSE 0 END), 0) AS returnable
FROM boxes b
JOIN items i ON i.box_id = b.id
LEFT JOIN items rep ON rep.id = b.representative_item_id
WHERE i.vendor_id = ? AND i.hidden = 0
GROUP BY b.id
ORDER BY b.id ASC`,
			bun.In([]string{models.ItemBrought, models.ItemStaged, models.ItemSold, models.ItemReturned}),
			models.ItemSold,
			models.ItemCompensated,
			bun.In([]string{models.ItemBrought, models.ItemStaged}),
			vendorID,
		).Scan(ctx, &rows)
		if err != nil {
			return fmt.Errorf("list vendor boxes: %w", err)
		}
		out = make([]BoxSummary, 0, len(rows))
		for _, row := range rows {
			out = append(out, BoxSummary{
				BoxView: BoxView{
					ID:          row.ID,
					Description: row.Description,
					BoxNumber:   row.BoxNumber,
					BundleSize:  row.BundleSize,
					ItemCount:   row.ItemCount,
				},
				RepresentativeCode: row.RepresentativeCode,
				ItemPrice:          row.ItemPrice,
				ItemsBroughtTotal:  row.Brought,
				ItemsSold:          row.Sold,
				ItemsCompensated:   row.Compensated,
				ItemsReturnable:    row.Returnable,
			})
		}
		return nil
	})
	return out, err
}

// VendorReturnable lists what the vendor can take back: single items and box
// representatives that have been brought, boxes carrying their counts.
func (s *Service) VendorReturnable(ctx context.Context, c *Caller, vendorID int64) ([]ItemView, error) {
	var out []ItemView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadVendor(ctx, tx, c.EventID, vendorID); err != nil {
			return err
		}
		items := make([]models.Item, 0)
		err := tx.NewSelect().Model(&items).
			Where("i.vendor_id = ?", vendorID).
			Where("i.state != ?", models.ItemAdvertised).
			Where("(i.box_id IS NULL OR i.id IN (SELECT representative_item_id FROM boxes WHERE id = i.box_id))").
			OrderExpr("i.name ASC, i.code ASC").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("list returnable items: %w", err)
		}
		out = make([]ItemView, 0, len(items))
		for _, item := range items {
			view := itemView(item)
			if item.BoxID != nil {
				box, err := loadBox(ctx, tx, *item.BoxID)
				if err != nil {
					return err
				}
				counts, err := loadBoxCounts(ctx, tx, box.ID)
				if err != nil {
					return err
				}
				view.Name = box.Description
				view.Box = boxView(box, counts.ItemCount)
				view.Box.ReturnableCount = int64Ptr(counts.ReturnableCount)
				view.Box.ReturnedCount = int64Ptr(counts.ReturnedCount)
			}
			out = append(out, view)
		}
		return nil
	})
	return out, err
}

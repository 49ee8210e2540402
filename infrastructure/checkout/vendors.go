package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	"fleamarket/models"
)

// Vendor returns a vendor by id, or the owner of the item with the given
// code. Exactly one of id and code must be given.
func (s *Service) Vendor(ctx context.Context, c *Caller, id *int64, code string) (VendorView, error) {
	code = strings.TrimSpace(code)
	if id == nil && code == "" {
		return VendorView{}, badRequest("Either id or code must be given")
	}
	if id != nil && code != "" {
		return VendorView{}, badRequest("Only id or code must be given")
	}
	var out VendorView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		vendorID := int64(0)
		if id != nil {
			vendorID = *id
		} else {
			item, err := loadItem(ctx, tx, c.EventID, code)
			if err != nil {
				return err
			}
			vendorID = item.VendorID
		}
		vendor, err := loadVendor(ctx, tx, c.EventID, vendorID)
		if err != nil {
			return err
		}
		out = vendorView(vendor)
		return nil
	})
	return out, err
}

// FindVendors matches every whitespace separated term of q against vendor id,
// name and email.
func (s *Service) FindVendors(ctx context.Context, c *Caller, q string) ([]VendorView, error) {
	vendors := make([]models.Vendor, 0)
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewSelect().Model(&vendors).Where("event_id = ?", c.EventID)
		for _, part := range strings.Fields(q) {
			like := "%" + part + "%"
			if id, err := strconv.ParseInt(part, 10, 64); err == nil {
				query = query.Where("(id = ? OR name LIKE ? OR email LIKE ?)", id, like, like)
			} else {
				query = query.Where("(name LIKE ? OR email LIKE ?)", like, like)
			}
		}
		return query.OrderExpr("id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("find vendors: %w", err)
	}
	out := make([]VendorView, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, vendorView(v))
	}
	return out, nil
}

package itemimport

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

var (
	ErrNoVendor      = errors.New("vendor not found")
	ErrInvalidHeader = errors.New("invalid CSV header; expected code,name,price")
)

type Summary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

// ImportCSV registers the items of vendorID from a code,name,price[,item_type]
// sheet. Existing codes of the same vendor are updated while they are still
// Advertised; any other row that cannot be applied is counted as an error.
func ImportCSV(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, clerkID, eventID, vendorID int64, reader io.Reader) (Summary, error) {
	summary := Summary{}
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if len(header) < 3 ||
		!strings.EqualFold(strings.TrimSpace(header[0]), "code") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "name") ||
		!strings.EqualFold(strings.TrimSpace(header[2]), "price") {
		return summary, ErrInvalidHeader
	}

	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var owner int64
		if err := tx.NewRaw(`SELECT id FROM vendors WHERE id = ? AND event_id = ?`, vendorID, eventID).Scan(ctx, &owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoVendor
			}
			return err
		}

		for {
			record, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil || len(record) < 3 {
				summary.Errors++
				continue
			}
			code := strings.ToUpper(strings.TrimSpace(record[0]))
			name := strings.TrimSpace(record[1])
			price, perr := api.ParsePrice(record[2])
			if code == "" || name == "" || perr != nil {
				summary.Errors++
				continue
			}
			itemType := "other"
			if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
				itemType = strings.ToLower(strings.TrimSpace(record[3]))
			}

			var existing models.Item
			err = tx.NewSelect().Model(&existing).Where("code = ?", code).Limit(1).Scan(ctx)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				item := &models.Item{
					Code:      code,
					VendorID:  vendorID,
					Name:      name,
					ItemType:  itemType,
					Price:     price,
					State:     models.ItemAdvertised,
					CreatedAt: time.Now(),
				}
				if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
					if sqlite.IsUniqueViolation(err) {
						summary.Errors++
						continue
					}
					return err
				}
				summary.Inserted++
			case err != nil:
				return err
			case existing.VendorID != vendorID || existing.State != models.ItemAdvertised:
				summary.Errors++
			default:
				if _, err := tx.NewUpdate().
					Model((*models.Item)(nil)).
					Set("name = ?", name).
					Set("price = ?", price).
					Set("item_type = ?", itemType).
					Where("id = ?", existing.ID).
					Exec(ctx); err != nil {
					return err
				}
				summary.Updated++
			}
		}

		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, clerkID, audit.ActionItemImport, "vendor", vendorID, nil, summary)
		}
		return nil
	})
	return summary, err
}

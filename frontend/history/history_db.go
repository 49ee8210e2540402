package history

import (
	"context"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/sqlite"
)

// LoadItemHistory reads the trail of the item with code inside eventID.
// A missing item is reported as sql.ErrNoRows.
func LoadItemHistory(ctx context.Context, db *sqlite.DB, eventID int64, code string) (ItemHistory, error) {
	data := ItemHistory{
		States: make([]StateRow, 0),
		Audits: make([]AuditRow, 0),
	}

	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`
SELECT i.id, i.code, i.name, i.state
FROM items i
JOIN vendors v ON v.id = i.vendor_id
WHERE v.event_id = ? AND i.code = ?`, eventID, strings.ToUpper(strings.TrimSpace(code))).
			Scan(ctx, &data.ItemID, &data.Code, &data.Name, &data.State); err != nil {
			return err
		}

		type stateRow struct {
			At       string `bun:"at"`
			OldState string `bun:"old_state"`
			NewState string `bun:"new_state"`
			Clerk    string `bun:"clerk"`
			Counter  string `bun:"counter"`
		}
		states := make([]stateRow, 0)
		if err := tx.NewRaw(`
SELECT
	COALESCE(strftime('%d/%m/%Y %H:%M', isl.created_at), '') AS at,
	isl.old_state,
	isl.new_state,
	COALESCE(cl.name, '') AS clerk,
	COALESCE(ct.identifier, '') AS counter
FROM item_state_logs isl
LEFT JOIN clerks cl ON cl.id = isl.clerk_id
LEFT JOIN counters ct ON ct.id = isl.counter_id
WHERE isl.item_id = ?
ORDER BY isl.id ASC`, data.ItemID).Scan(ctx, &states); err != nil {
			return err
		}
		for _, row := range states {
			data.States = append(data.States, StateRow{
				At:       row.At,
				OldState: row.OldState,
				NewState: row.NewState,
				Clerk:    defaultActor(row.Clerk),
				Counter:  row.Counter,
			})
		}

		type auditRow struct {
			At         string `bun:"at"`
			Clerk      string `bun:"clerk"`
			Action     string `bun:"action"`
			BeforeJSON string `bun:"before_json"`
			AfterJSON  string `bun:"after_json"`
		}
		audits := make([]auditRow, 0)
		if err := tx.NewRaw(`
SELECT
	COALESCE(strftime('%d/%m/%Y %H:%M', al.created_at), '') AS at,
	COALESCE(cl.name, '') AS clerk,
	al.action,
	COALESCE(al.before_json, '') AS before_json,
	COALESCE(al.after_json, '') AS after_json
FROM audit_logs al
LEFT JOIN clerks cl ON cl.id = al.clerk_id
WHERE al.entity_type = 'item' AND al.entity_id = ?
ORDER BY al.id ASC`, strconv.FormatInt(data.ItemID, 10)).Scan(ctx, &audits); err != nil {
			return err
		}
		for _, row := range audits {
			data.Audits = append(data.Audits, AuditRow{
				At:     row.At,
				Clerk:  defaultActor(row.Clerk),
				Action: row.Action,
				Before: strings.TrimSpace(row.BeforeJSON),
				After:  strings.TrimSpace(row.AfterJSON),
			})
		}
		return nil
	})
	return data, err
}

func defaultActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "-"
	}
	return actor
}

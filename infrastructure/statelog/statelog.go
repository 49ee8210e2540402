// Package statelog appends the immutable item state transition trail.
//
// Rows are written inside the caller's transaction so a rolled back
// transition leaves no log behind. Nothing in the checkout flow reads them;
// they exist for audit and statistics.
package statelog

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"fleamarket/models"
)

// Actor identifies who caused a transition.
type Actor struct {
	ClerkID   int64
	CounterID int64
}

// Logger writes item state log rows.
type Logger struct {
	now func() time.Time
}

func NewLogger() *Logger {
	return &Logger{now: time.Now}
}

// Log records one transition of item to newState. The item must still carry
// its old state.
func (l *Logger) Log(ctx context.Context, tx bun.Tx, actor Actor, item models.Item, newState string) error {
	return l.LogMany(ctx, tx, actor, []models.Item{item}, newState)
}

// LogMany records the same newState for every item in one insert.
func (l *Logger) LogMany(ctx context.Context, tx bun.Tx, actor Actor, items []models.Item, newState string) error {
	if len(items) == 0 {
		return nil
	}
	at := l.now()
	rows := make([]models.ItemStateLog, 0, len(items))
	for _, item := range items {
		rows = append(rows, models.ItemStateLog{
			ItemID:    item.ID,
			OldState:  item.State,
			NewState:  newState,
			ClerkID:   optionalID(actor.ClerkID),
			CounterID: optionalID(actor.CounterID),
			CreatedAt: at,
		})
	}
	if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert item state logs: %w", err)
	}
	return nil
}

// ListForItem returns the transitions of one item, oldest first.
func ListForItem(ctx context.Context, db bun.IDB, itemID int64) ([]models.ItemStateLog, error) {
	logs := make([]models.ItemStateLog, 0)
	err := db.NewSelect().
		Model(&logs).
		Where("item_id = ?", itemID).
		OrderExpr("id ASC").
		Scan(ctx)
	return logs, err
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

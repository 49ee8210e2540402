package checkout

import (
	"context"
	"fmt"
	"slices"

	"github.com/uptrace/bun"

	"fleamarket/models"
)

// changeItemState moves item to the state to when it is currently in one of
// from. When the item was not in the first allowed state and
// messageIfNotFirst is set, the message is attached to the returned view.
// Any other state yields a conflict describing the current state.
func (s *Service) changeItemState(ctx context.Context, tx bun.Tx, c *Caller, item *models.Item, from []string, to, messageIfNotFirst string) (ItemView, error) {
	if !slices.Contains(from, item.State) {
		return ItemView{}, stateConflict(*item)
	}
	old := item.State
	if err := s.applyState(ctx, tx, c, []*models.Item{item}, to); err != nil {
		return ItemView{}, err
	}
	view := itemView(*item)
	if messageIfNotFirst != "" && len(from) > 1 && old != from[0] {
		view.Message = messageIfNotFirst
	}
	return view, nil
}

// applyState logs and writes a new state for every item, unhiding them. The
// passed items are updated in place.
func (s *Service) applyState(ctx context.Context, tx bun.Tx, c *Caller, items []*models.Item, to string) error {
	if len(items) == 0 {
		return nil
	}
	snapshot := make([]models.Item, 0, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		snapshot = append(snapshot, *item)
		ids = append(ids, item.ID)
	}
	if err := s.states.LogMany(ctx, tx, c.actor(), snapshot, to); err != nil {
		return err
	}
	_, err := tx.NewRaw(`UPDATE items SET state = ?, hidden = 0 WHERE id IN (?)`, to, bun.In(ids)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update item state: %w", err)
	}
	for _, item := range items {
		item.State = to
		item.Hidden = false
	}
	return nil
}

func itemPtrs(items []models.Item) []*models.Item {
	out := make([]*models.Item, 0, len(items))
	for i := range items {
		out = append(out, &items[i])
	}
	return out
}

// stateConflict reports an item that is not in a state the operation accepts.
func stateConflict(item models.Item) *Error {
	var msg string
	switch item.State {
	case models.ItemSold, models.ItemCompensated:
		msg = "Item has already been sold."
	case models.ItemReturned:
		msg = "Item has already been returned to owner."
	case models.ItemStaged:
		msg = "Item is already staged to be sold."
	case models.ItemAdvertised:
		msg = "Item has not been brought to event."
	case models.ItemBrought:
		msg = "Item has already been brought to event."
	case models.ItemMissing:
		msg = "Item is missing."
	default:
		msg = fmt.Sprintf("Item is in unexpected state %q.", item.State)
	}
	e := conflict("%s", msg)
	e.Data = itemView(item)
	return e
}

// availability checks whether item can be put on a purchase receipt. A
// non-empty message means it can, with a warning for the clerk.
func availability(item models.Item) (string, error) {
	switch item.State {
	case models.ItemStaged:
		return "", locked("Item is already staged to be sold.")
	case models.ItemAdvertised:
		return "Item has not been brought to event.", nil
	case models.ItemSold, models.ItemCompensated:
		return "", conflict("Item has already been sold.")
	case models.ItemReturned:
		return "", conflict("Item has already been returned to owner.")
	}
	return "", nil
}

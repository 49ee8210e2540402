package checkout

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/audit"
	"fleamarket/models"
)

// CheckIn marks an advertised item as brought to the event. Box members are
// not transitioned: the box gets its number and the result is Accepted, and
// the client continues with CheckInBox.
func (s *Service) CheckIn(ctx context.Context, c *Caller, code string) (CheckInResult, error) {
	var out CheckInResult
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		if item.State != models.ItemAdvertised {
			return stateConflict(item)
		}

		var box models.Box
		count := int64(1)
		if item.BoxID != nil {
			if box, err = loadBox(ctx, tx, *item.BoxID); err != nil {
				return err
			}
			if count, err = boxItemCount(ctx, tx, box.ID); err != nil {
				return err
			}
		}

		left, err := s.checkBroughtLimit(ctx, tx, c, item.VendorID, count)
		if err != nil {
			return err
		}

		if item.BoxID != nil {
			if err := assignBoxNumber(ctx, tx, c.EventID, &box); err != nil {
				return err
			}
			out.ItemView = itemView(item)
			out.Box = boxView(box, count)
			out.Accepted = true
			return nil
		}

		view, err := s.changeItemState(ctx, tx, c, &item, []string{models.ItemAdvertised}, models.ItemBrought, "")
		if err != nil {
			return err
		}
		view.ItemsLeft = left
		out.ItemView = view
		return nil
	})
	return out, err
}

// checkBroughtLimit enforces the event cap on brought items per vendor and
// returns how many may still be brought, or nil when uncapped.
func (s *Service) checkBroughtLimit(ctx context.Context, tx bun.Tx, c *Caller, vendorID, adding int64) (*int64, error) {
	event, err := loadEvent(ctx, tx, c.EventID)
	if err != nil {
		return nil, err
	}
	if event.MaxBroughtItems == nil {
		return nil, nil
	}
	brought, err := broughtCount(ctx, tx, vendorID)
	if err != nil {
		return nil, err
	}
	limit := *event.MaxBroughtItems
	if brought+adding > limit {
		return nil, conflict("Too many items brought, limit is %d!", limit)
	}
	return int64Ptr(limit - brought - adding), nil
}

// CheckOut returns an item to its vendor. The representative item of a box
// returns every brought member of the box. A non-nil vendorID must match the
// item's owner.
func (s *Service) CheckOut(ctx context.Context, c *Caller, code string, vendorID *int64) (ItemView, error) {
	var out ItemView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		if vendorID != nil && item.VendorID != *vendorID {
			return locked("Someone else's item!")
		}

		if item.BoxID == nil {
			out, err = s.changeItemState(ctx, tx, c, &item,
				[]string{models.ItemBrought, models.ItemAdvertised}, models.ItemReturned,
				"Item was not brought to event.")
			return err
		}

		box, err := loadBox(ctx, tx, *item.BoxID)
		if err != nil {
			return err
		}
		if box.RepresentativeItem != item.ID {
			return conflict("This is not returnable! Boxes have only one returnable item code which returns all!")
		}
		members, err := boxItems(ctx, tx, box.ID, models.ItemBrought)
		if err != nil {
			return err
		}
		if err := s.applyState(ctx, tx, c, itemPtrs(members), models.ItemReturned); err != nil {
			return err
		}
		counts, err := loadBoxCounts(ctx, tx, box.ID)
		if err != nil {
			return err
		}

		rep, err := loadItem(ctx, tx, c.EventID, item.Code)
		if err != nil {
			return err
		}
		out = itemView(rep)
		out.Box = boxView(box, counts.ItemCount)
		out.Box.ReturnableCount = int64Ptr(counts.ReturnableCount)
		out.Box.ReturnedCount = int64Ptr(counts.ReturnedCount)
		out.Box.Changed = int64Ptr(int64(len(members)))
		return nil
	})
	return out, err
}

// Reserve stages an item onto the caller's active purchase receipt.
func (s *Service) Reserve(ctx context.Context, c *Caller, code string) (ItemView, error) {
	var out ItemView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		if item.BoxID != nil {
			return conflict("A box cannot be reserved")
		}
		out, err = s.reserve(ctx, tx, c, item)
		return err
	})
	return out, err
}

func (s *Service) reserve(ctx context.Context, tx bun.Tx, c *Caller, item models.Item) (ItemView, error) {
	if c.ReceiptID == nil {
		return ItemView{}, badRequest("No active receipt found")
	}
	receipt, err := loadReceipt(ctx, tx, c.EventID, *c.ReceiptID, models.ReceiptTypePurchase)
	if err != nil {
		return ItemView{}, err
	}
	if receipt.Status != models.ReceiptPending {
		return ItemView{}, unexpectedReceiptState(receipt)
	}

	message, err := availability(item)
	if err != nil {
		return ItemView{}, err
	}
	view, err := s.changeItemState(ctx, tx, c, &item,
		[]string{models.ItemAdvertised, models.ItemBrought, models.ItemMissing}, models.ItemStaged, "")
	if err != nil {
		return ItemView{}, err
	}
	if _, err := insertRow(ctx, tx, receipt.ID, item.ID, models.ActionAdd); err != nil {
		return ItemView{}, err
	}
	if err := updateTotal(ctx, tx, &receipt); err != nil {
		return ItemView{}, err
	}
	view.Total = int64Ptr(receipt.Total)
	view.Message = message
	return view, nil
}

// Release takes an item off the caller's active receipt and makes it
// available again.
func (s *Service) Release(ctx context.Context, c *Caller, code string) (RowView, error) {
	var out RowView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		if c.ReceiptID == nil {
			return badRequest("No active receipt found")
		}
		receipt, err := loadReceipt(ctx, tx, c.EventID, *c.ReceiptID, models.ReceiptTypePurchase)
		if err != nil {
			return err
		}
		if receipt.Status != models.ReceiptPending {
			return unexpectedReceiptState(receipt)
		}
		row, err := s.removeFromReceipt(ctx, tx, c, &item, &receipt, true)
		if err != nil {
			return err
		}
		out = RowView{Action: row.Action, AddTime: row.AddTime, Item: itemView(item)}
		return nil
	})
	return out, err
}

// removeFromReceipt reclassifies the item's Add row on the receipt as
// RemovedLater, appends a Remove row and recomputes the total. With
// revert the item goes back to Brought.
func (s *Service) removeFromReceipt(ctx context.Context, tx bun.Tx, c *Caller, item *models.Item, receipt *models.Receipt, revert bool) (models.ReceiptItem, error) {
	add, ok, err := activeAddRow(ctx, tx, receipt.ID, item.ID)
	if err != nil {
		return models.ReceiptItem{}, err
	}
	if !ok {
		return models.ReceiptItem{}, conflict("Item is not added to receipt %d.", receipt.ID)
	}
	if err := setRowAction(ctx, tx, []int64{add.ID}, models.ActionRemovedLater); err != nil {
		return models.ReceiptItem{}, err
	}
	removal, err := insertRow(ctx, tx, receipt.ID, item.ID, models.ActionRemove)
	if err != nil {
		return removal, err
	}
	if revert && item.State != models.ItemBrought {
		if err := s.applyState(ctx, tx, c, []*models.Item{item}, models.ItemBrought); err != nil {
			return removal, err
		}
	}
	if err := updateTotal(ctx, tx, receipt); err != nil {
		return removal, err
	}
	return removal, nil
}

var unsoldStates = []string{
	models.ItemAdvertised,
	models.ItemBrought,
	models.ItemMissing,
	models.ItemReturned,
}

var priceEditableStates = []string{models.ItemAdvertised, models.ItemBrought}

// Edit is the overseer override for an item's price and state. Reverting a
// sold item to an unsold state removes it from every receipt that holds it.
func (s *Service) Edit(ctx context.Context, c *Caller, code string, price int64, state string) (ItemView, error) {
	if err := c.requireOverseer(); err != nil {
		return ItemView{}, err
	}
	if price < 0 {
		return ItemView{}, badRequest("Price must not be negative.")
	}
	if _, ok := models.ItemStateNames[state]; !ok {
		return ItemView{}, badRequest("Unknown state: %s", state)
	}

	var out ItemView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		if item.BoxID != nil {
			return conflict("Changing box details is not implemented.")
		}
		before := item

		if price != item.Price &&
			!slices.Contains(priceEditableStates, item.State) &&
			!slices.Contains(priceEditableStates, state) {
			return badRequest("Cannot change price in state \"%s\"", models.ItemStateNames[item.State])
		}

		if item.State != state {
			if slices.Contains(unsoldStates, item.State) || item.State == models.ItemStaged || !slices.Contains(unsoldStates, state) {
				return badRequest("Cannot change state from \"%s\" to \"%s\".",
					models.ItemStateNames[item.State], models.ItemStateNames[state])
			}
			if err := s.removeFromAllReceipts(ctx, tx, c, &item); err != nil {
				return err
			}
			if err := s.states.Log(ctx, tx, c.actor(), item, state); err != nil {
				return err
			}
			item.State = state
			item.Hidden = false
		}
		item.Price = price

		if _, err := tx.NewUpdate().Model(&item).Column("price", "state", "hidden").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		// Totals of receipts still holding the item follow the new price.
		if price != before.Price {
			if err := s.refreshHolderTotals(ctx, tx, item.ID); err != nil {
				return err
			}
		}
		if err := s.audit.Write(ctx, tx, c.ClerkID, audit.ActionItemEdit, "item", item.ID, itemView(before), itemView(item)); err != nil {
			return err
		}
		out = itemView(item)
		return nil
	})
	return out, err
}

func (s *Service) removeFromAllReceipts(ctx context.Context, tx bun.Tx, c *Caller, item *models.Item) error {
	receipts := make([]models.Receipt, 0)
	err := tx.NewSelect().Model(&receipts).
		Where("id IN (SELECT receipt_id FROM receipt_items WHERE item_id = ? AND action = ?)", item.ID, models.ActionAdd).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("load receipts holding item: %w", err)
	}
	for i := range receipts {
		if _, err := s.removeFromReceipt(ctx, tx, c, item, &receipts[i], false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refreshHolderTotals(ctx context.Context, tx bun.Tx, itemID int64) error {
	receipts := make([]models.Receipt, 0)
	err := tx.NewSelect().Model(&receipts).
		Where("id IN (SELECT receipt_id FROM receipt_items WHERE item_id = ? AND action = ?)", itemID, models.ActionAdd).
		Where("status IN (?)", bun.In([]string{models.ReceiptPending, models.ReceiptSuspended})).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("load open receipts holding item: %w", err)
	}
	for i := range receipts {
		if err := updateTotal(ctx, tx, &receipts[i]); err != nil {
			return err
		}
	}
	return nil
}

// MarkLost flags an item as lost property.
func (s *Service) MarkLost(ctx context.Context, c *Caller, code string) (ItemView, error) {
	if err := c.requireOverseer(); err != nil {
		return ItemView{}, err
	}
	var out ItemView
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		switch {
		case item.State == models.ItemSold:
			return conflict("Item is sold!")
		case item.State == models.ItemStaged:
			return conflict("Item is staged to be sold!")
		case item.Abandoned:
			return conflict("Item is abandoned.")
		}
		before := item
		item.LostProperty = true
		if _, err := tx.NewUpdate().Model(&item).Column("lost_property").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("mark item lost: %w", err)
		}
		if err := s.audit.Write(ctx, tx, c.ClerkID, audit.ActionItemLost, "item", item.ID, itemView(before), itemView(item)); err != nil {
			return err
		}
		out = itemView(item)
		return nil
	})
	return out, err
}

// Abandon flags every brought or missing item of the vendor as abandoned and
// returns how many items were affected.
func (s *Service) Abandon(ctx context.Context, c *Caller, vendorID int64) (int64, error) {
	var affected int64
	err := s.store.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadVendor(ctx, tx, c.EventID, vendorID); err != nil {
			return err
		}
		res, err := tx.NewRaw(`UPDATE items SET abandoned = 1 WHERE vendor_id = ? AND state IN (?)`,
			vendorID, bun.In([]string{models.ItemBrought, models.ItemMissing})).Exec(ctx)
		if err != nil {
			return fmt.Errorf("abandon items: %w", err)
		}
		affected, _ = res.RowsAffected()
		return s.audit.Write(ctx, tx, c.ClerkID, audit.ActionVendorAbandon, "vendor", vendorID, nil, map[string]int64{"abandoned": affected})
	})
	return affected, err
}

// Find returns an item by code. With available, the item is checked against
// the reservation rules: a staged item parked on exactly one suspended
// receipt is reported Locked with that receipt attached.
func (s *Service) Find(ctx context.Context, c *Caller, code string, available bool) (ItemView, error) {
	var out ItemView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, c.EventID, code)
		if err != nil {
			return err
		}
		out = itemView(item)
		if !available {
			return nil
		}
		if item.State == models.ItemStaged {
			suspended := make([]models.Receipt, 0)
			err := tx.NewSelect().Model(&suspended).
				Where("status = ?", models.ReceiptSuspended).
				Where("type = ?", models.ReceiptTypePurchase).
				Where("id IN (SELECT receipt_id FROM receipt_items WHERE item_id = ? AND action = ?)", item.ID, models.ActionAdd).
				Scan(ctx)
			if err != nil {
				return fmt.Errorf("load suspended receipts: %w", err)
			}
			if len(suspended) == 1 {
				e := locked("Item is on a suspended receipt.")
				e.Data = struct {
					ItemView
					Receipt ReceiptView `json:"receipt"`
				}{out, receiptView(suspended[0])}
				return e
			}
		}
		message, err := availability(item)
		if err != nil {
			return err
		}
		out.Message = message
		return nil
	})
	return out, err
}

// ItemList returns the vendor's items that are not part of a box, by name.
func (s *Service) ItemList(ctx context.Context, c *Caller, vendorID int64) ([]ItemView, error) {
	var out []ItemView
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadVendor(ctx, tx, c.EventID, vendorID); err != nil {
			return err
		}
		items := make([]models.Item, 0)
		if err := tx.NewSelect().Model(&items).
			Where("vendor_id = ?", vendorID).
			Where("box_id IS NULL").
			OrderExpr("name ASC, code ASC").
			Scan(ctx); err != nil {
			return fmt.Errorf("list vendor items: %w", err)
		}
		out = itemViews(items)
		return nil
	})
	return out, err
}

// SearchQuery filters the overseer item search. Empty fields do not filter.
// Every word of Query must match the item name, or the box description for
// boxes; a word that equals an item code also matches that code.
type SearchQuery struct {
	Query         string
	Code          string
	VendorID      *int64
	MinPrice      *int64
	MaxPrice      *int64
	Types         []string
	States        []string
	IncludeHidden bool
}

func (q SearchQuery) apply(sel *bun.SelectQuery, eventID int64) *bun.SelectQuery {
	sel = sel.Where("i.vendor_id IN (SELECT id FROM vendors WHERE event_id = ?)", eventID)
	if code := normalizeCode(q.Code); code != "" {
		sel = sel.Where("i.code LIKE ?", "%"+code+"%")
	}
	if q.VendorID != nil {
		sel = sel.Where("i.vendor_id = ?", *q.VendorID)
	}
	if q.MinPrice != nil {
		sel = sel.Where("i.price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		sel = sel.Where("i.price <= ?", *q.MaxPrice)
	}
	if len(q.Types) > 0 {
		sel = sel.Where("i.item_type IN (?)", bun.In(q.Types))
	}
	if len(q.States) > 0 {
		sel = sel.Where("i.state IN (?)", bun.In(q.States))
	}
	if !q.IncludeHidden {
		sel = sel.Where("i.hidden = 0")
	}
	return sel
}

func (q SearchQuery) matchWords(sel *bun.SelectQuery, textColumn string) *bun.SelectQuery {
	for _, word := range strings.Fields(q.Query) {
		sel = sel.WhereGroup(" AND ", func(g *bun.SelectQuery) *bun.SelectQuery {
			return g.Where(textColumn+" LIKE ?", "%"+word+"%").
				WhereOr("i.code = ?", normalizeCode(word))
		})
	}
	return sel
}

// SearchItems lists the event's items matching q for the overseer. Box
// members are not listed one by one: each matching box appears once through
// its representative item, with the total member count.
func (s *Service) SearchItems(ctx context.Context, c *Caller, q SearchQuery) ([]SearchResult, error) {
	if err := c.requireOverseer(); err != nil {
		return nil, err
	}
	for _, state := range q.States {
		if _, ok := models.ItemStateNames[state]; !ok {
			return nil, badRequest("Unknown state: %s", state)
		}
	}

	var out []SearchResult
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		vendors := make([]models.Vendor, 0)
		if err := tx.NewSelect().Model(&vendors).Where("event_id = ?", c.EventID).Scan(ctx); err != nil {
			return fmt.Errorf("load event vendors: %w", err)
		}
		byID := make(map[int64]VendorView, len(vendors))
		for _, v := range vendors {
			byID[v.ID] = vendorView(v)
		}

		loose := make([]models.Item, 0)
		sel := tx.NewSelect().Model(&loose).Where("i.box_id IS NULL")
		sel = q.matchWords(q.apply(sel, c.EventID), "i.name")
		if err := sel.OrderExpr("i.name ASC, i.code ASC").Scan(ctx); err != nil {
			return fmt.Errorf("search items: %w", err)
		}

		reps := make([]models.Item, 0)
		sel = tx.NewSelect().Model(&reps).
			Join("JOIN boxes AS bx ON bx.id = i.box_id AND bx.representative_item_id = i.id")
		sel = q.matchWords(q.apply(sel, c.EventID), "bx.description")
		if err := sel.OrderExpr("bx.description ASC, i.code ASC").Scan(ctx); err != nil {
			return fmt.Errorf("search boxes: %w", err)
		}

		out = make([]SearchResult, 0, len(loose)+len(reps))
		for _, item := range loose {
			out = append(out, SearchResult{ItemView: itemView(item), Vendor: byID[item.VendorID]})
		}
		for _, item := range reps {
			box, err := loadBox(ctx, tx, *item.BoxID)
			if err != nil {
				return err
			}
			count, err := boxItemCount(ctx, tx, box.ID)
			if err != nil {
				return err
			}
			view := itemView(item)
			view.Name = box.Description
			view.Box = boxView(box, count)
			out = append(out, SearchResult{ItemView: view, Vendor: byID[item.VendorID]})
		}
		return nil
	})
	return out, err
}

package checkout

import (
	"context"
	"testing"

	"fleamarket/models"
)

func TestCompensationAppendsProvisionAndFix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exec(`UPDATE events SET provision_function = 'rate=0.1' WHERE id = 1`)

	// An earlier compensation paid out 10000 but recorded only 900 provision.
	f.addItem("OLD1", 6000, models.ItemCompensated)
	f.addItem("OLD2", 4000, models.ItemCompensated)
	f.exec(`INSERT INTO receipts (id, type, status, clerk_id, counter_id, vendor_id, total) VALUES (50, 'COMPENSATION', 'FINI', 1, 1, 1, 10900)`)
	f.exec(`INSERT INTO receipt_items (receipt_id, item_id, action) SELECT 50, id, 'ADD' FROM items WHERE code IN ('OLD1', 'OLD2')`)
	f.exec(`INSERT INTO receipt_extra_rows (receipt_id, type, value) VALUES (50, 'PRO', 900)`)

	f.addItem("NEW1", 7500, models.ItemSold)
	f.addItem("NEW2", 2500, models.ItemSold)
	f.addVendorItem(2, "FOREIGN", 100, models.ItemSold)

	c := f.caller()
	preview, err := f.svc.CompensableItems(ctx, c, f.vendorID)
	if err != nil {
		t.Fatalf("compensable items: %v", err)
	}
	if len(preview.Items) != 2 || len(preview.Extras) != 2 {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if preview.Extras[0].Value != 1000 || preview.Extras[1].Value != 100 {
		t.Fatalf("unexpected preview extras %+v", preview.Extras)
	}

	started, err := f.svc.StartCompensation(ctx, c, f.vendorID)
	if err != nil {
		t.Fatalf("start compensation: %v", err)
	}
	if c.Compensation == nil || c.Compensation.ReceiptID != started.ID || c.Compensation.VendorID != f.vendorID {
		t.Fatalf("expected compensation slot, got %+v", c.Compensation)
	}
	_, err = f.svc.StartCompensation(ctx, c, f.vendorID)
	expectKind(t, err, KindConflict)

	_, err = f.svc.Compensate(ctx, c, "FOREIGN")
	expectKind(t, err, KindNotFound)

	for _, code := range []string{"NEW1", "NEW2"} {
		if _, err := f.svc.Compensate(ctx, c, code); err != nil {
			t.Fatalf("compensate %s: %v", code, err)
		}
		expectState(t, f, code, models.ItemCompensated)
	}
	_, err = f.svc.Compensate(ctx, c, "NEW1")
	expectKind(t, err, KindConflict)

	ended, err := f.svc.EndCompensation(ctx, c)
	if err != nil {
		t.Fatalf("end compensation: %v", err)
	}
	if c.Compensation != nil {
		t.Fatalf("expected compensation slot cleared")
	}
	if ended.Status != models.ReceiptFinished || ended.EndTime == nil {
		t.Fatalf("expected finished compensation receipt, got %+v", ended)
	}
	if len(ended.Extras) != 2 {
		t.Fatalf("expected provision and fix rows, got %+v", ended.Extras)
	}
	if ended.Extras[0].Type != models.ExtraProvision || ended.Extras[0].Value != 1000 {
		t.Fatalf("unexpected provision row %+v", ended.Extras[0])
	}
	if ended.Extras[1].Type != models.ExtraProvisionFix || ended.Extras[1].Value != 100 {
		t.Fatalf("unexpected provision fix row %+v", ended.Extras[1])
	}
	if ended.Total != 10000+1000+100 {
		t.Fatalf("expected total 11100, got %d", ended.Total)
	}

	_, err = f.svc.EndCompensation(ctx, c)
	expectKind(t, err, KindConflict)

	list, err := f.svc.Compensated(ctx, c, f.vendorID)
	if err != nil {
		t.Fatalf("compensated list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected two compensation receipts, got %d", len(list))
	}
}

func TestCompensationWithoutProvisionFunction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem("W1", 1200, models.ItemSold)
	c := f.caller()

	_, err := f.svc.Compensate(ctx, c, "W1")
	expectKind(t, err, KindConflict)

	_, err = f.svc.StartCompensation(ctx, c, 99)
	expectKind(t, err, KindBadRequest)

	if _, err := f.svc.StartCompensation(ctx, c, f.vendorID); err != nil {
		t.Fatalf("start compensation: %v", err)
	}
	if _, err := f.svc.Compensate(ctx, c, "W1"); err != nil {
		t.Fatalf("compensate: %v", err)
	}
	ended, err := f.svc.EndCompensation(ctx, c)
	if err != nil {
		t.Fatalf("end compensation: %v", err)
	}
	if len(ended.Extras) != 0 || ended.Total != 1200 {
		t.Fatalf("expected plain total without extras, got %+v", ended)
	}
}

func TestCompensationWithoutFixWhenSnapshotMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exec(`UPDATE events SET provision_function = 'rate=-0.1;round=5' WHERE id = 1`)
	f.addItem("Z1", 1000, models.ItemSold)
	c := f.caller()

	if _, err := f.svc.StartCompensation(ctx, c, f.vendorID); err != nil {
		t.Fatalf("start compensation: %v", err)
	}
	if _, err := f.svc.Compensate(ctx, c, "Z1"); err != nil {
		t.Fatalf("compensate: %v", err)
	}
	ended, err := f.svc.EndCompensation(ctx, c)
	if err != nil {
		t.Fatalf("end compensation: %v", err)
	}
	if len(ended.Extras) != 1 || ended.Extras[0].Value != -100 {
		t.Fatalf("expected single provision deduction, got %+v", ended.Extras)
	}
	if ended.Total != 900 {
		t.Fatalf("expected total 900, got %d", ended.Total)
	}
}

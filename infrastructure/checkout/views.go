package checkout

import (
	"time"

	"fleamarket/models"
)

type ItemView struct {
	ID           int64    `json:"id"`
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	ItemType     string   `json:"itemtype"`
	Price        int64    `json:"price"`
	State        string   `json:"state"`
	StateDisplay string   `json:"state_display"`
	VendorID     int64    `json:"vendor"`
	BoxID        *int64   `json:"box_id,omitempty"`
	Hidden       bool     `json:"hidden"`
	Abandoned    bool     `json:"abandoned"`
	LostProperty bool     `json:"lost_property"`
	Box          *BoxView `json:"box,omitempty"`

	// Set by operations that attach the item to a receipt.
	Total *int64 `json:"total,omitempty"`
	// Set when the transition succeeded from a secondary state.
	Message   string `json:"_message,omitempty"`
	ItemsLeft *int64 `json:"_item_limit_left,omitempty"`
}

type BoxView struct {
	ID              int64  `json:"id"`
	Description     string `json:"description"`
	BoxNumber       *int64 `json:"box_number"`
	BundleSize      int64  `json:"bundle_size"`
	ItemCount       int64  `json:"item_count"`
	ReturnableCount *int64 `json:"returnable_count,omitempty"`
	ReturnedCount   *int64 `json:"returned_count,omitempty"`
	Changed         *int64 `json:"changed,omitempty"`
}

// BoxSummary is a box of a vendor with its derived counts.
type BoxSummary struct {
	BoxView
	RepresentativeCode string `json:"representative_code"`
	ItemPrice          int64  `json:"item_price"`
	ItemsBroughtTotal  int64  `json:"items_brought_total"`
	ItemsSold          int64  `json:"items_sold"`
	ItemsCompensated   int64  `json:"items_compensated"`
	ItemsReturnable    int64  `json:"items_returnable"`
}

// CheckInResult is the outcome of a single item check in. Accepted is set
// when the item belongs to a box and the client must continue with the box
// check in.
type CheckInResult struct {
	ItemView
	Accepted bool `json:"-"`
}

type ReceiptView struct {
	ID            int64          `json:"id"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	StatusDisplay string         `json:"status_display"`
	ClerkID       int64          `json:"clerk"`
	CounterID     int64          `json:"counter"`
	VendorID      *int64         `json:"vendor,omitempty"`
	Total         int64          `json:"total"`
	Notes         string         `json:"notes,omitempty"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       *time.Time     `json:"end_time"`
	Items         []RowView      `json:"items,omitempty"`
	Extras        []ExtraRowView `json:"extras,omitempty"`
}

type RowView struct {
	Action  string    `json:"action"`
	AddTime time.Time `json:"add_time"`
	Item    ItemView  `json:"item"`
}

type ExtraRowView struct {
	Type        string `json:"type"`
	TypeDisplay string `json:"type_display"`
	Value       int64  `json:"value"`
}

// CompensableView lists the sold items of a vendor with a provision preview.
type CompensableView struct {
	Items  []ItemView     `json:"items"`
	Extras []ExtraRowView `json:"extras,omitempty"`
}

type VendorView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// SearchResult is a loose item, or a box summarised by its representative
// item and named by the box description.
type SearchResult struct {
	ItemView
	Vendor VendorView `json:"vendor"`
}

type PermitView struct {
	Code string `json:"code"`
}

var extraRowNames = map[string]string{
	models.ExtraProvision:    "Provision",
	models.ExtraProvisionFix: "Provision fix",
}

func itemView(item models.Item) ItemView {
	return ItemView{
		ID:           item.ID,
		Code:         item.Code,
		Name:         item.Name,
		ItemType:     item.ItemType,
		Price:        item.Price,
		State:        item.State,
		StateDisplay: models.ItemStateNames[item.State],
		VendorID:     item.VendorID,
		BoxID:        item.BoxID,
		Hidden:       item.Hidden,
		Abandoned:    item.Abandoned,
		LostProperty: item.LostProperty,
	}
}

func itemViews(items []models.Item) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, itemView(item))
	}
	return out
}

func boxView(box models.Box, itemCount int64) *BoxView {
	return &BoxView{
		ID:          box.ID,
		Description: box.Description,
		BoxNumber:   box.BoxNumber,
		BundleSize:  box.BundleSize,
		ItemCount:   itemCount,
	}
}

func receiptView(r models.Receipt) ReceiptView {
	return ReceiptView{
		ID:            r.ID,
		Type:          r.Type,
		Status:        r.Status,
		StatusDisplay: models.ReceiptStatusNames[r.Status],
		ClerkID:       r.ClerkID,
		CounterID:     r.CounterID,
		VendorID:      r.VendorID,
		Total:         r.Total,
		Notes:         r.Notes,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	}
}

func receiptViews(receipts []models.Receipt) []ReceiptView {
	out := make([]ReceiptView, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, receiptView(r))
	}
	return out
}

func extraRowView(row models.ReceiptExtraRow) ExtraRowView {
	return ExtraRowView{Type: row.Type, TypeDisplay: extraRowNames[row.Type], Value: row.Value}
}

func vendorView(v models.Vendor) VendorView {
	return VendorView{ID: v.ID, Name: v.Name, Email: v.Email}
}

func int64Ptr(v int64) *int64 { return &v }

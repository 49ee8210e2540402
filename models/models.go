package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Item states.
const (
	ItemAdvertised  = "AD"
	ItemBrought     = "BR"
	ItemStaged      = "ST"
	ItemSold        = "SO"
	ItemMissing     = "MI"
	ItemReturned    = "RE"
	ItemCompensated = "CO"
)

// ItemStateNames maps state codes to display names.
var ItemStateNames = map[string]string{
	ItemAdvertised:  "Advertised",
	ItemBrought:     "Brought to event",
	ItemStaged:      "Staged for selling",
	ItemSold:        "Sold",
	ItemMissing:     "Missing",
	ItemReturned:    "Returned to vendor",
	ItemCompensated: "Compensated to vendor",
}

// Receipt statuses and types.
const (
	ReceiptPending   = "PEND"
	ReceiptSuspended = "SUSP"
	ReceiptFinished  = "FINI"
	ReceiptAborted   = "ABRT"

	ReceiptTypePurchase     = "PURCHASE"
	ReceiptTypeCompensation = "COMPENSATION"
)

// ReceiptStatusNames maps status codes to display names.
var ReceiptStatusNames = map[string]string{
	ReceiptPending:   "Not finished",
	ReceiptSuspended: "Suspended",
	ReceiptFinished:  "Finished",
	ReceiptAborted:   "Aborted",
}

// Receipt row actions.
const (
	ActionAdd          = "ADD"
	ActionRemove       = "DEL"
	ActionRemovedLater = "RL"
)

// Receipt extra row types.
const (
	ExtraProvision    = "PRO"
	ExtraProvisionFix = "PRF"
)

// Temporary access permit states and log actions.
const (
	PermitActive      = "active"
	PermitInvalidated = "invalidated"

	PermitLogAdd        = "add"
	PermitLogInvalidate = "invalidate"
)

// Event is a single flea-market occasion.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:ev"`

	ID                int64     `bun:"id,pk,autoincrement"`
	Slug              string    `bun:"slug,notnull,unique"`
	Name              string    `bun:"name,notnull"`
	MaxBroughtItems   *int64    `bun:"max_brought_items"`
	ProvisionFunction *string   `bun:"provision_function"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Counter is a physical checkout desk.
type Counter struct {
	bun.BaseModel `bun:"table:counters,alias:ct"`

	ID         int64  `bun:"id,pk,autoincrement"`
	EventID    int64  `bun:"event_id,notnull"`
	Identifier string `bun:"identifier,notnull"`
	Name       string `bun:"name,notnull"`
}

// Clerk is a person operating a counter.
type Clerk struct {
	bun.BaseModel `bun:"table:clerks,alias:cl"`

	ID            int64     `bun:"id,pk,autoincrement"`
	EventID       int64     `bun:"event_id,notnull"`
	Name          string    `bun:"name,notnull"`
	Role          string    `bun:"role,notnull"`
	AccessKeyHash string    `bun:"access_key_hash,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Vendor consigns items to an event.
type Vendor struct {
	bun.BaseModel `bun:"table:vendors,alias:v"`

	ID        int64     `bun:"id,pk,autoincrement"`
	EventID   int64     `bun:"event_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Box bundles several items behind one representative item code.
type Box struct {
	bun.BaseModel `bun:"table:boxes,alias:b"`

	ID                 int64  `bun:"id,pk,autoincrement"`
	Description        string `bun:"description,notnull"`
	RepresentativeItem int64  `bun:"representative_item_id"`
	EventID            *int64 `bun:"event_id"`
	BoxNumber          *int64 `bun:"box_number"`
	BundleSize         int64  `bun:"bundle_size,notnull,default:1"`
}

// Item is a single sellable unit.
type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Code         string    `bun:"code,notnull,unique"`
	VendorID     int64     `bun:"vendor_id,notnull"`
	BoxID        *int64    `bun:"box_id"`
	Name         string    `bun:"name,notnull"`
	ItemType     string    `bun:"item_type,notnull,default:'other'"`
	Price        int64     `bun:"price,notnull"`
	State        string    `bun:"state,notnull"`
	Hidden       bool      `bun:"hidden,notnull,default:false"`
	Abandoned    bool      `bun:"abandoned,notnull,default:false"`
	LostProperty bool      `bun:"lost_property,notnull,default:false"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Receipt is one purchase or compensation transaction.
type Receipt struct {
	bun.BaseModel `bun:"table:receipts,alias:r"`

	ID        int64      `bun:"id,pk,autoincrement"`
	Type      string     `bun:"type,notnull"`
	Status    string     `bun:"status,notnull"`
	ClerkID   int64      `bun:"clerk_id,notnull"`
	CounterID int64      `bun:"counter_id,notnull"`
	VendorID  *int64     `bun:"vendor_id"`
	Total     int64      `bun:"total,notnull,default:0"`
	Notes     string     `bun:"notes"`
	StartTime time.Time  `bun:"start_time,notnull,default:current_timestamp"`
	EndTime   *time.Time `bun:"end_time"`
}

// ReceiptItem links a receipt to an item with an action.
type ReceiptItem struct {
	bun.BaseModel `bun:"table:receipt_items,alias:ri"`

	ID        int64     `bun:"id,pk,autoincrement"`
	ReceiptID int64     `bun:"receipt_id,notnull"`
	ItemID    int64     `bun:"item_id,notnull"`
	Action    string    `bun:"action,notnull"`
	AddTime   time.Time `bun:"add_time,notnull,default:current_timestamp"`
}

// ReceiptExtraRow carries provision lines of a compensation receipt.
type ReceiptExtraRow struct {
	bun.BaseModel `bun:"table:receipt_extra_rows,alias:rx"`

	ID        int64  `bun:"id,pk,autoincrement"`
	ReceiptID int64  `bun:"receipt_id,notnull"`
	Type      string `bun:"type,notnull"`
	Value     int64  `bun:"value,notnull"`
}

// ItemStateLog is an immutable record of one item state transition.
type ItemStateLog struct {
	bun.BaseModel `bun:"table:item_state_logs,alias:isl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	ItemID    int64     `bun:"item_id,notnull"`
	OldState  string    `bun:"old_state,notnull"`
	NewState  string    `bun:"new_state,notnull"`
	ClerkID   *int64    `bun:"clerk_id"`
	CounterID *int64    `bun:"counter_id"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// TemporaryAccessPermit grants a vendor short-lived self-service access.
type TemporaryAccessPermit struct {
	bun.BaseModel `bun:"table:temporary_access_permits,alias:tap"`

	ID        int64     `bun:"id,pk,autoincrement"`
	VendorID  int64     `bun:"vendor_id,notnull"`
	CreatorID int64     `bun:"creator_id,notnull"`
	ShortCode string    `bun:"short_code,notnull,unique"`
	State     string    `bun:"state,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// TemporaryAccessPermitLog records permit lifecycle actions.
type TemporaryAccessPermitLog struct {
	bun.BaseModel `bun:"table:temporary_access_permit_logs,alias:tapl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	PermitID  int64     `bun:"permit_id,notnull"`
	Action    string    `bun:"action,notnull"`
	Address   string    `bun:"address,notnull"`
	Peer      string    `bun:"peer,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ClerkSession binds a login token to a clerk at a counter and carries the
// clerk's open receipt slots.
type ClerkSession struct {
	bun.BaseModel `bun:"table:clerk_sessions,alias:cs"`

	ID                    string    `bun:"id,pk"`
	ClerkID               int64     `bun:"clerk_id,notnull"`
	Clerk                 Clerk     `bun:"rel:belongs-to,join:clerk_id=id"`
	CounterID             int64     `bun:"counter_id,notnull"`
	EventID               int64     `bun:"event_id,notnull"`
	ReceiptID             *int64    `bun:"receipt_id"`
	CompensationReceiptID *int64    `bun:"compensation_receipt_id"`
	CompensationVendorID  *int64    `bun:"compensation_vendor_id"`
	UserRoles             []string  `bun:"-"`
	ExpiresAt             time.Time `bun:"expires_at,notnull"`
	CreatedAt             time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Expired returns true when the session expiry time has passed.
func (s ClerkSession) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuditLog captures immutable change history for administrative overrides.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	ClerkID    int64     `bun:"clerk_id,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

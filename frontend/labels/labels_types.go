package labels

// ItemLabel is one price tag on the label sheet.
type ItemLabel struct {
	Code     string `bun:"code"`
	Name     string `bun:"name"`
	Price    int64  `bun:"price"`
	VendorID int64  `bun:"vendor_id"`
}

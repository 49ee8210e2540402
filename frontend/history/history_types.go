package history

// ItemHistory is the combined transition and override trail of one item.
type ItemHistory struct {
	ItemID int64      `json:"item_id"`
	Code   string     `json:"code"`
	Name   string     `json:"name"`
	State  string     `json:"state"`
	States []StateRow `json:"states"`
	Audits []AuditRow `json:"audits"`
}

type StateRow struct {
	At       string `json:"at"`
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
	Clerk    string `json:"clerk"`
	Counter  string `json:"counter"`
}

type AuditRow struct {
	At     string `json:"at"`
	Clerk  string `json:"clerk"`
	Action string `json:"action"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

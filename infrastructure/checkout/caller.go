package checkout

import "fleamarket/infrastructure/statelog"

// Compensation is the open compensation slot of a session.
type Compensation struct {
	ReceiptID int64
	VendorID  int64
}

// Caller carries the identity of the clerk making a request and the slots of
// their session. Service methods update ReceiptID and Compensation only when
// the operation commits; the caller persists them afterwards.
type Caller struct {
	ClerkID   int64
	CounterID int64
	EventID   int64

	ReceiptID    *int64
	Compensation *Compensation

	Overseer bool
	// Peer and Address identify the client in permit logs.
	Peer    string
	Address string
}

func (c *Caller) actor() statelog.Actor {
	return statelog.Actor{ClerkID: c.ClerkID, CounterID: c.CounterID}
}

func (c *Caller) requireOverseer() error {
	if !c.Overseer {
		return authFailed("Overseer permission required.")
	}
	return nil
}

package clerks

type ClerkView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// CreatedClerk carries the login code, which is never shown again.
type CreatedClerk struct {
	ClerkView
	Code string `json:"code"`
}

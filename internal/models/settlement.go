package models

// Payment records how much one participant actually paid towards the bill
// (e.g., Amy put the whole thing on her card).
type Payment struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Transfer is one payment needed to settle up after the bill is paid.
type Transfer struct {
	// From is the participant who owes money.
	From string `json:"from"`

	// To is the participant who is owed money.
	To string `json:"to"`

	// Amount is the transfer amount.
	Amount float64 `json:"amount"`
}

// MemberBalance is one participant's position after comparing what they paid
// with what they owe.
type MemberBalance struct {
	Name       string  `json:"name"`
	Paid       float64 `json:"paid"`
	Owed       float64 `json:"owed"`
	NetBalance float64 `json:"netBalance"` // Positive = owed money, Negative = owes money
}

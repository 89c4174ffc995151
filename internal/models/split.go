package models

// PersonShare represents one participant's calculated share of a bill.
// This is the output of the split calculation algorithm.
type PersonShare struct {
	// Name is the participant name as stored in BillState.People.
	Name string `json:"name"`

	// IndividualCost is the sum of this person's individual expenses.
	IndividualCost float64 `json:"individualCost"`

	// Total is the final amount this person owes (base share + individual cost).
	Total float64 `json:"total"`
}

// Breakdown is the full result of splitting a BillState.
type Breakdown struct {
	// TotalBill is the declared total the breakdown was computed from.
	TotalBill float64 `json:"totalBill"`

	// TotalIndividual is the sum of all individual expenses.
	TotalIndividual float64 `json:"totalIndividual"`

	// SharedPool is the part of the total split evenly, floored at zero.
	SharedPool float64 `json:"sharedPool"`

	// BaseShare is SharedPool divided by the participant count.
	BaseShare float64 `json:"baseShare"`

	// Deficit is how much individual expenses exceed the total.
	// It is reported only; no participant's total absorbs it.
	Deficit float64 `json:"deficit"`

	// PerPerson lists every participant in stored order.
	PerPerson []PersonShare `json:"perPerson"`
}

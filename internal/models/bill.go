package models

import (
	"errors"
	"math"
	"slices"
	"strings"
)

var (
	ErrInvalidTotal  = errors.New("total must be a non-negative number")
	ErrInvalidCost   = errors.New("cost must be a non-negative number")
	ErrEmptyPerson   = errors.New("person can't be empty")
	ErrEmptyItem     = errors.New("item can't be empty")
	ErrUnknownPerson = errors.New("expense references a person who is not a participant")
	ErrDuplicateID   = errors.New("duplicate expense id")
)

// BillState is the single source of truth for one shared bill.
// It is treated as an immutable value: every change produces a new BillState.
type BillState struct {
	// TotalBill is the declared total of the shared bill.
	TotalBill float64 `json:"totalBill"`

	// People is the ordered set of participant names.
	// Insertion order is kept for display; uniqueness is by exact string value.
	People []string `json:"people"`

	// Expenses are the individual expenses in insertion order.
	// Identical entries are legitimate (two drinks are two expenses).
	Expenses []IndividualExpense `json:"expenses"`

	// Version increases every time a merge changes the content of the bill.
	// Callers can compare it to detect that another flow wrote in between.
	Version uint64 `json:"version"`
}

// IndividualExpense is a cost attributed to exactly one participant.
type IndividualExpense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// Person is the participant who pays for this alone.
	Person string `json:"person"`

	// Item is a free-text label (e.g., "Beer", "Dessert").
	Item string `json:"item"`

	// Cost is the amount of the expense.
	Cost float64 `json:"cost"`
}

// Clone returns a deep copy so callers can never alias another state's slices.
func (b BillState) Clone() BillState {
	return BillState{
		TotalBill: b.TotalBill,
		People:    slices.Clone(b.People),
		Expenses:  slices.Clone(b.Expenses),
		Version:   b.Version,
	}
}

// HasPerson reports whether name is a participant (exact match).
func (b BillState) HasPerson(name string) bool {
	return slices.Contains(b.People, name)
}

// Validate checks every BillState invariant.
func (b BillState) Validate() error {
	if !validAmount(b.TotalBill) {
		return ErrInvalidTotal
	}
	ids := make(map[string]bool, len(b.Expenses))
	for _, e := range b.Expenses {
		if strings.TrimSpace(e.Person) == "" {
			return ErrEmptyPerson
		}
		if strings.TrimSpace(e.Item) == "" {
			return ErrEmptyItem
		}
		if !validAmount(e.Cost) {
			return ErrInvalidCost
		}
		if !b.HasPerson(e.Person) {
			return ErrUnknownPerson
		}
		if ids[e.ID] {
			return ErrDuplicateID
		}
		ids[e.ID] = true
	}
	return nil
}

// ValidateTotal checks a total entered directly or extracted from a receipt.
func ValidateTotal(total float64) error {
	if !validAmount(total) {
		return ErrInvalidTotal
	}
	return nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

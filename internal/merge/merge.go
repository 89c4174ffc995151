// Package merge applies interpreted command deltas to a BillState.
//
// Every function here takes the current state by value and returns the next
// one; the input is never modified.
package merge

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/splitchat/internal/models"
)

// Engine merges deltas into bill state. The zero value is not usable; call New.
type Engine struct {
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the expense ID generator (UUIDs by default).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New creates a merge engine.
func New(opts ...Option) *Engine {
	e := &Engine{newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply merges delta into state. Fields are applied independently, in order:
//  1. SetTotal replaces the total (last write wins).
//  2. AddPeople is unioned into People by exact name, stored as given.
//  3. AddExpense appends one new expense per entry, each with a fresh ID, and
//     unions its person into People. Submitting the same entry twice records
//     two expenses.
//
// A delta never removes anything; see RemoveExpense.
// Version is bumped once if anything changed.
func (e *Engine) Apply(state models.BillState, delta models.CommandDelta) models.BillState {
	next := state.Clone()
	changed := false

	if delta.SetTotal != nil && *delta.SetTotal != next.TotalBill {
		next.TotalBill = *delta.SetTotal
		changed = true
	}

	for _, name := range delta.AddPeople {
		if addPerson(&next, name) {
			changed = true
		}
	}

	for _, in := range delta.AddExpense {
		expense := models.IndividualExpense{
			ID:     e.newID(),
			Person: in.Person,
			Item:   in.Item,
			Cost:   in.Cost,
		}
		next.Expenses = append(next.Expenses, expense)
		addPerson(&next, expense.Person)
		changed = true
	}

	if !changed {
		return state
	}
	next.Version++
	return next
}

// RemoveExpense returns state without the expense identified by id. It is
// the only way an expense leaves the bill.
// An unknown id is not an error; the state comes back unchanged.
func (e *Engine) RemoveExpense(state models.BillState, id string) models.BillState {
	i := slices.IndexFunc(state.Expenses, func(x models.IndividualExpense) bool {
		return x.ID == id
	})
	if i < 0 {
		return state
	}

	next := state.Clone()
	next.Expenses = slices.DeleteFunc(next.Expenses, func(x models.IndividualExpense) bool {
		return x.ID == id
	})
	next.Version++
	return next
}

// SetTotal is the direct entry point for editing the total outside the
// command flow.
func (e *Engine) SetTotal(state models.BillState, total float64) (models.BillState, error) {
	if err := models.ValidateTotal(total); err != nil {
		return state, err
	}
	return e.Apply(state, models.CommandDelta{SetTotal: &total}), nil
}

// addPerson reports whether name was added. Names are compared and stored
// exactly as given; blank names are skipped.
func addPerson(state *models.BillState, name string) bool {
	if strings.TrimSpace(name) == "" || slices.Contains(state.People, name) {
		return false
	}
	state.People = append(state.People, name)
	return true
}

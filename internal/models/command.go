package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyReply = errors.New("reply can't be empty")
	ErrEmptyName  = errors.New("name can't be empty")
)

// CommandDelta is the structured result of interpreting one chat command.
// Every field is optional; an absent field means "no change". A delta can
// only add to the bill or replace its total. Removing an expense is an
// explicit user action and never part of a delta.
type CommandDelta struct {
	SetTotal   *float64       `json:"setTotal,omitempty"`
	AddPeople  []string       `json:"addPeople,omitempty"`
	AddExpense []ExpenseInput `json:"addExpense,omitempty"`
}

// ExpenseInput is an individual expense as described by the interpreter,
// before it has been given an ID.
type ExpenseInput struct {
	Person string  `json:"person"`
	Item   string  `json:"item"`
	Cost   float64 `json:"cost"`
}

// IsEmpty reports whether applying the delta would be a no-op by construction.
func (d CommandDelta) IsEmpty() bool {
	return d.SetTotal == nil && len(d.AddPeople) == 0 && len(d.AddExpense) == 0
}

// Validate checks the delta against the BillState invariants it would have to
// preserve once merged.
func (d CommandDelta) Validate() error {
	if d.SetTotal != nil {
		if err := ValidateTotal(*d.SetTotal); err != nil {
			return fmt.Errorf("setTotal: %w", err)
		}
	}
	for i, name := range d.AddPeople {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("addPeople[%d]: %w", i, ErrEmptyName)
		}
	}
	for i, e := range d.AddExpense {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("addExpense[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single expense entry.
func (e ExpenseInput) Validate() error {
	if strings.TrimSpace(e.Person) == "" {
		return ErrEmptyPerson
	}
	if strings.TrimSpace(e.Item) == "" {
		return ErrEmptyItem
	}
	if !validAmount(e.Cost) {
		return ErrInvalidCost
	}
	return nil
}

// CommandResult is what the command interpreter returns for one message.
type CommandResult struct {
	Reply string       `json:"reply"`
	Data  CommandDelta `json:"data"`
}

// Validate checks the reply and the delta.
func (r CommandResult) Validate() error {
	if strings.TrimSpace(r.Reply) == "" {
		return ErrEmptyReply
	}
	return r.Data.Validate()
}

// ReceiptExtraction is what the vision extractor returns for one receipt image.
type ReceiptExtraction struct {
	Total        float64 `json:"total"`
	ItemsSummary string  `json:"itemsSummary"`
}

// Validate checks the extracted total. An empty summary is tolerated; the
// total is what the bill needs.
func (r ReceiptExtraction) Validate() error {
	return ValidateTotal(r.Total)
}

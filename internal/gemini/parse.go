package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmynk/splitchat/internal/models"
)

var (
	errEmptyResponse = errors.New("empty response from model")
	errMissingField  = errors.New("missing required field")
)

// wireCommand mirrors commandSchema. Pointers distinguish absent fields from
// zero values.
type wireCommand struct {
	Reply *string `json:"reply"`
	Data  *struct {
		SetTotal   *float64      `json:"setTotal"`
		AddPeople  []string      `json:"addPeople"`
		AddExpense []wireExpense `json:"addExpense"`
	} `json:"data"`
}

type wireExpense struct {
	Person *string  `json:"person"`
	Item   *string  `json:"item"`
	Cost   *float64 `json:"cost"`
}

type wireReceipt struct {
	Total        *float64 `json:"total"`
	ItemsSummary *string  `json:"itemsSummary"`
}

// ParseCommandResult decodes and validates the chat model's JSON output.
// Anything that does not match the schema is rejected as a whole.
func ParseCommandResult(text string) (*models.CommandResult, error) {
	var wire wireCommand
	if err := decodeJSON(text, &wire); err != nil {
		return nil, err
	}
	if wire.Reply == nil {
		return nil, fmt.Errorf("%w: reply", errMissingField)
	}
	if wire.Data == nil {
		return nil, fmt.Errorf("%w: data", errMissingField)
	}

	result := &models.CommandResult{
		Reply: strings.TrimSpace(*wire.Reply),
		Data: models.CommandDelta{
			SetTotal:  wire.Data.SetTotal,
			AddPeople: wire.Data.AddPeople,
		},
	}
	for i, e := range wire.Data.AddExpense {
		if e.Person == nil || e.Item == nil || e.Cost == nil {
			return nil, fmt.Errorf("%w: addExpense[%d] needs person, item and cost", errMissingField, i)
		}
		result.Data.AddExpense = append(result.Data.AddExpense, models.ExpenseInput{
			Person: *e.Person,
			Item:   *e.Item,
			Cost:   *e.Cost,
		})
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// ParseReceiptExtraction decodes and validates the vision model's JSON output.
func ParseReceiptExtraction(text string) (*models.ReceiptExtraction, error) {
	var wire wireReceipt
	if err := decodeJSON(text, &wire); err != nil {
		return nil, err
	}
	if wire.Total == nil {
		return nil, fmt.Errorf("%w: total", errMissingField)
	}

	extraction := &models.ReceiptExtraction{Total: *wire.Total}
	if wire.ItemsSummary != nil {
		extraction.ItemsSummary = strings.TrimSpace(*wire.ItemsSummary)
	}
	if err := extraction.Validate(); err != nil {
		return nil, err
	}
	return extraction, nil
}

// decodeJSON parses exactly one JSON value, tolerating a markdown code fence
// around it.
func decodeJSON(text string, v any) error {
	text = stripCodeFence(text)
	if text == "" {
		return errEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse model output: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("failed to parse model output: trailing data after JSON value")
	}
	return nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

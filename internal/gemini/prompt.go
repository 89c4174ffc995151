package gemini

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/mmynk/splitchat/internal/models"
)

const systemInstruction = `You are the assistant of a bill-splitting calculator. The group splits the
bill total evenly, except for individual expenses: items one person pays for
alone, which are taken out of the total before the even split.

Read the user's message and describe what should change:
- setTotal: the new bill total, only if the user states one.
- addPeople: names of people joining the split.
- addExpense: individual expenses as {person, item, cost}. If the same thing
  is mentioned twice it was bought twice.
Leave out anything the message does not change. Keep names exactly as the
user wrote them.

reply: a short, friendly confirmation of what you understood, with a little
humour.`

const receiptInstruction = `Extract the grand total of this receipt as "total". Also give a short
"itemsSummary" naming the most expensive items you can see.`

// commandContext is the bill as shown to the model.
type commandContext struct {
	CurrentTotal    float64                    `json:"currentTotal"`
	CurrentPeople   []string                   `json:"currentPeople"`
	CurrentExpenses []models.IndividualExpense `json:"currentExpenses"`
}

func commandPrompt(message string, bill models.BillState) (string, error) {
	view := commandContext{
		CurrentTotal:    bill.TotalBill,
		CurrentPeople:   bill.People,
		CurrentExpenses: bill.Expenses,
	}
	if view.CurrentPeople == nil {
		view.CurrentPeople = []string{}
	}
	if view.CurrentExpenses == nil {
		view.CurrentExpenses = []models.IndividualExpense{}
	}

	state, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("failed to encode bill context: %w", err)
	}
	msg, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	return fmt.Sprintf("Current state: %s\nUser input: %s", state, msg), nil
}

func ptr[T any](v T) *T {
	return &v
}

var commandSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"reply": {Type: genai.TypeString},
		"data": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"setTotal": {Type: genai.TypeNumber, Nullable: ptr(true)},
				"addPeople": {
					Type:     genai.TypeArray,
					Items:    &genai.Schema{Type: genai.TypeString},
					Nullable: ptr(true),
				},
				"addExpense": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"person": {Type: genai.TypeString},
							"item":   {Type: genai.TypeString},
							"cost":   {Type: genai.TypeNumber},
						},
						Required: []string{"person", "item", "cost"},
					},
					Nullable: ptr(true),
				},
			},
		},
	},
	Required: []string{"reply", "data"},
}

var receiptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"total":        {Type: genai.TypeNumber},
		"itemsSummary": {Type: genai.TypeString},
	},
	Required: []string{"total", "itemsSummary"},
}

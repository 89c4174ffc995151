package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitchat/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSplitCommand_Table(t *testing.T) {
	out, err := execute(t, "split", "--total", "300", "-p", "A", "-p", "B", "-p", "C", "-e", "A:drink:30")
	require.NoError(t, err)

	assert.Contains(t, out, "Shared pool")
	assert.Contains(t, out, "270.00")
	assert.Regexp(t, `A\s+30\.00\s+120\.00`, out)
	assert.Regexp(t, `B\s+0\.00\s+90\.00`, out)
	assert.NotContains(t, out, "deficit")
}

func TestSplitCommand_JSONWithSettlement(t *testing.T) {
	out, err := execute(t, "split", "--json", "--total", "100", "-p", "A", "-p", "B", "--paid", "A:100")
	require.NoError(t, err)

	var report struct {
		Breakdown models.Breakdown  `json:"breakdown"`
		Transfers []models.Transfer `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	require.Len(t, report.Breakdown.PerPerson, 2)
	assert.InDelta(t, 50, report.Breakdown.PerPerson[1].Total, 0.01)
	require.Len(t, report.Transfers, 1)
	assert.Equal(t, "B", report.Transfers[0].From)
	assert.Equal(t, "A", report.Transfers[0].To)
	assert.InDelta(t, 50, report.Transfers[0].Amount, 0.01)
}

func TestSplitCommand_Deficit(t *testing.T) {
	out, err := execute(t, "split", "--total", "100", "-p", "A", "-p", "B", "-e", "A:steak:150")
	require.NoError(t, err)
	assert.Contains(t, out, "Unassigned deficit")
	assert.Contains(t, out, "50.00")
}

func TestSplitCommand_Errors(t *testing.T) {
	tests := [][]string{
		{"split", "--total", "-1"},
		{"split", "--total", "10", "-e", "A-drink-5"},
		{"split", "--total", "10", "-e", "A:drink:lots"},
		{"split", "--total", "10", "-p", "A", "--paid", "Zed:10"},
		{"split", "--total", "10", "-p", "A", "--paid", "A"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args[1:], " "), func(t *testing.T) {
			_, err := execute(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestParseExpense(t *testing.T) {
	e, err := parseExpense("Amy:tea: the good one:4.5")
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseInput{Person: "Amy", Item: "tea: the good one", Cost: 4.5}, e)

	_, err = parseExpense("Amy:4.5")
	assert.Error(t, err)
}

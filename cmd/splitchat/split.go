package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitchat/internal/calculator"
	"github.com/mmynk/splitchat/internal/merge"
	"github.com/mmynk/splitchat/internal/models"
)

type splitOptions struct {
	total    float64
	people   []string
	expenses []string
	payments []string
	asJSON   bool
}

func newSplitCmd() *cobra.Command {
	var opts splitOptions

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Compute a split without the chat service",
		Example: `  splitchat split --total 300 --person A --person B --person C --expense A:drink:30
  splitchat split --total 90 --person A --person B --paid A:90`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSplit(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().Float64Var(&opts.total, "total", 0, "Bill total")
	cmd.Flags().StringArrayVarP(&opts.people, "person", "p", nil, "Participant name (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.expenses, "expense", "e", nil, "Individual expense as NAME:ITEM:COST (repeatable)")
	cmd.Flags().StringArrayVar(&opts.payments, "paid", nil, "Amount someone actually paid as NAME:AMOUNT; prints transfers")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// splitReport is the JSON output of the split command.
type splitReport struct {
	Bill      models.BillState       `json:"bill"`
	Breakdown models.Breakdown       `json:"breakdown"`
	Balances  []models.MemberBalance `json:"balances,omitempty"`
	Transfers []models.Transfer      `json:"transfers,omitempty"`
}

func runSplit(w io.Writer, opts splitOptions) error {
	delta := models.CommandDelta{
		SetTotal:  &opts.total,
		AddPeople: opts.people,
	}
	for _, s := range opts.expenses {
		e, err := parseExpense(s)
		if err != nil {
			return err
		}
		delta.AddExpense = append(delta.AddExpense, e)
	}
	if err := delta.Validate(); err != nil {
		return err
	}

	report := splitReport{Bill: merge.New().Apply(models.BillState{}, delta)}
	if err := report.Bill.Validate(); err != nil {
		return err
	}
	report.Breakdown = calculator.ComputeSplit(report.Bill)

	if len(opts.payments) > 0 {
		payments := make([]models.Payment, 0, len(opts.payments))
		for _, s := range opts.payments {
			p, err := parsePayment(s)
			if err != nil {
				return err
			}
			payments = append(payments, p)
		}
		balances, transfers, err := calculator.Settle(report.Breakdown, payments)
		if err != nil {
			return err
		}
		report.Balances, report.Transfers = balances, transfers
	}

	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(w, report)
}

func printReport(w io.Writer, r splitReport) error {
	b := r.Breakdown
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Total\t%.2f\n", b.TotalBill)
	fmt.Fprintf(tw, "Individual items\t%.2f\n", b.TotalIndividual)
	fmt.Fprintf(tw, "Shared pool\t%.2f\n", b.SharedPool)
	fmt.Fprintf(tw, "Base share\t%.2f\n", b.BaseShare)
	if b.Deficit > 0 {
		fmt.Fprintf(tw, "Unassigned deficit\t%.2f\n", b.Deficit)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "PERSON\tITEMS\tOWES")
	for _, share := range b.PerPerson {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", share.Name, share.IndividualCost, share.Total)
	}

	if len(r.Transfers) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "FROM\tTO\tAMOUNT")
		for _, t := range r.Transfers {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\n", t.From, t.To, t.Amount)
		}
	}
	return tw.Flush()
}

// parseExpense reads NAME:ITEM:COST. The item may itself contain colons.
func parseExpense(s string) (models.ExpenseInput, error) {
	first, last := strings.Index(s, ":"), strings.LastIndex(s, ":")
	if first < 0 || first == last {
		return models.ExpenseInput{}, fmt.Errorf("expense %q: want NAME:ITEM:COST", s)
	}
	cost, err := strconv.ParseFloat(strings.TrimSpace(s[last+1:]), 64)
	if err != nil {
		return models.ExpenseInput{}, fmt.Errorf("expense %q: invalid cost: %w", s, err)
	}
	return models.ExpenseInput{
		Person: s[:first],
		Item:   s[first+1 : last],
		Cost:   cost,
	}, nil
}

// parsePayment reads NAME:AMOUNT.
func parsePayment(s string) (models.Payment, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return models.Payment{}, fmt.Errorf("payment %q: want NAME:AMOUNT", s)
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(s[i+1:]), 64)
	if err != nil {
		return models.Payment{}, fmt.Errorf("payment %q: invalid amount: %w", s, err)
	}
	return models.Payment{Name: strings.TrimSpace(s[:i]), Amount: amount}, nil
}

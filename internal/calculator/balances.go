package calculator

import (
	"errors"
	"fmt"

	"github.com/mmynk/splitchat/internal/models"
)

// settleEpsilon avoids floating point noise when matching debts.
const settleEpsilon = 0.01

var (
	ErrNoParticipants = errors.New("must have at least one participant")
	ErrUnknownPayer   = errors.New("payer must be one of the participants")
	ErrInvalidPayment = errors.New("payment must be a non-negative number")
)

// Settle computes who has to pay whom once the bill has actually been paid.
// It compares what each participant paid with their total from the breakdown
// and returns both the member balances and a simplified list of transfers.
//
// Algorithm:
//   - net_balance = paid - owed
//   - Debtors (negative) are matched against creditors (positive) greedily,
//     in participant order, so the result is deterministic.
func Settle(breakdown models.Breakdown, payments []models.Payment) ([]models.MemberBalance, []models.Transfer, error) {
	if len(breakdown.PerPerson) == 0 {
		return nil, nil, ErrNoParticipants
	}

	index := make(map[string]int, len(breakdown.PerPerson))
	balances := make([]models.MemberBalance, len(breakdown.PerPerson))
	for i, share := range breakdown.PerPerson {
		index[share.Name] = i
		balances[i] = models.MemberBalance{Name: share.Name, Owed: share.Total}
	}

	for _, p := range payments {
		i, ok := index[p.Name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPayer, p.Name)
		}
		if models.ValidateTotal(p.Amount) != nil {
			return nil, nil, fmt.Errorf("%w: %q", ErrInvalidPayment, p.Name)
		}
		balances[i].Paid += p.Amount
	}

	var debtors, creditors []int
	for i := range balances {
		balances[i].NetBalance = balances[i].Paid - balances[i].Owed
		switch {
		case balances[i].NetBalance <= -settleEpsilon:
			debtors = append(debtors, i)
		case balances[i].NetBalance >= settleEpsilon:
			creditors = append(creditors, i)
		}
	}

	remainingDebt := make(map[int]float64, len(debtors))
	for _, d := range debtors {
		remainingDebt[d] = -balances[d].NetBalance // Make positive
	}
	remainingCredit := make(map[int]float64, len(creditors))
	for _, c := range creditors {
		remainingCredit[c] = balances[c].NetBalance
	}

	// Greedy: settle the current debtor against the current creditor.
	var transfers []models.Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := debtors[i], creditors[j]

		amount := min(remainingDebt[debtor], remainingCredit[creditor])
		if amount > settleEpsilon {
			transfers = append(transfers, models.Transfer{
				From:   balances[debtor].Name,
				To:     balances[creditor].Name,
				Amount: amount,
			})
		}

		remainingDebt[debtor] -= amount
		remainingCredit[creditor] -= amount

		if remainingDebt[debtor] < settleEpsilon {
			i++
		}
		if remainingCredit[creditor] < settleEpsilon {
			j++
		}
	}

	return balances, transfers, nil
}

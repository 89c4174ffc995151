package calculator

import (
	"math"
	"strings"

	"github.com/mmynk/splitchat/internal/models"
)

// ComputeSplit computes how much each participant owes.
//
// Algorithm:
//   - shared_pool = max(0, total_bill - sum(individual expenses))
//   - base_share = shared_pool / max(1, len(people))
//   - person_total = base_share + sum(that person's individual expenses)
//
// Expenses are attributed to participants case-insensitively, while
// participant identity itself is exact-match.
//
// When individual expenses exceed the total the pool is clamped at zero and
// the per-person totals add up to more than the bill; the excess is reported
// as Deficit and nothing else.
func ComputeSplit(state models.BillState) models.Breakdown {
	totalIndividual := 0.0
	for _, e := range state.Expenses {
		totalIndividual += e.Cost
	}

	sharedPool := math.Max(0, state.TotalBill-totalIndividual)
	divisor := max(1, len(state.People))
	baseShare := sharedPool / float64(divisor)

	perPerson := make([]models.PersonShare, 0, len(state.People))
	for _, name := range state.People {
		individual := individualCost(state.Expenses, name)
		perPerson = append(perPerson, models.PersonShare{
			Name:           name,
			IndividualCost: individual,
			Total:          baseShare + individual,
		})
	}

	return models.Breakdown{
		TotalBill:       state.TotalBill,
		TotalIndividual: totalIndividual,
		SharedPool:      sharedPool,
		BaseShare:       baseShare,
		Deficit:         math.Max(0, totalIndividual-state.TotalBill),
		PerPerson:       perPerson,
	}
}

func individualCost(expenses []models.IndividualExpense, name string) float64 {
	sum := 0.0
	for _, e := range expenses {
		if strings.EqualFold(e.Person, name) {
			sum += e.Cost
		}
	}
	return sum
}

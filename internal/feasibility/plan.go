package feasibility

import (
	"github.com/shopspring/decimal"
)

const (
	ReasonExceedsDailyIncome         = "required savings exceeds daily income"
	ReasonRequiredExceedsDailyBudget = "required savings exceeds daily budget"
	ReasonExceedsDailyBudget         = "daily savings exceeds daily budget"
	ReasonExceedsBudget              = "daily savings exceeds budget"
)

// Plan is a recommended daily savings figure. When Feasible is false, Reason
// explains which check failed and the amounts describe the rejected plan.
type Plan struct {
	Feasible      bool   `json:"feasible"`
	Reason        string `json:"reason,omitempty"`
	Regime        Regime `json:"regime"`
	DaysRemaining int    `json:"days_remaining"`

	DailySavings decimal.Decimal `json:"daily_savings"`
	// DailyBudget is the income available per day: what is left over per
	// day near-term, projected income per day long-term.
	DailyBudget decimal.Decimal `json:"daily_budget"`
	// BalanceAfterSavings is what remains of the income over the horizon
	// once the goal is funded.
	BalanceAfterSavings decimal.Decimal `json:"balance_after_savings"`
}

// PlanDailyBudget computes a plan and reports an infeasible result instead of
// an error when the budget cannot cover the required savings. Errors are only
// returned for invalid input.
func PlanDailyBudget(in Input) (Plan, error) {
	days, err := in.validate()
	if err != nil {
		return Plan{}, err
	}

	d := decimal.NewFromInt(int64(days))
	plan := Plan{
		Regime:        RegimeFor(days),
		DaysRemaining: days,
		DailySavings:  in.AmountRequired.Div(d),
	}

	if plan.Regime == RegimeNearTerm {
		dailyIncome := in.MonthlyIncome.Div(daysPerMonth)
		leftover := in.MonthlyIncome.Sub(in.AmountRequired)
		plan.DailyBudget = leftover.Div(daysPerMonth)
		plan.BalanceAfterSavings = leftover

		switch {
		case dailyIncome.LessThan(plan.DailySavings):
			plan.Reason = ReasonExceedsDailyIncome
		case plan.DailyBudget.LessThan(plan.DailySavings):
			plan.Reason = ReasonExceedsDailyBudget
		default:
			plan.Feasible = true
		}
		return plan, nil
	}

	income := in.MonthlyIncome.Mul(d.Div(daysPerMonth))
	plan.DailyBudget = income.Div(d)
	plan.BalanceAfterSavings = income.Sub(in.AmountRequired)

	switch {
	case plan.DailyBudget.LessThan(plan.DailySavings):
		plan.Reason = ReasonRequiredExceedsDailyBudget
	case plan.BalanceAfterSavings.LessThan(in.AmountRequired):
		plan.Reason = ReasonExceedsBudget
	default:
		plan.Feasible = true
	}
	return plan, nil
}

package feasibility

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPlanDailyBudgetNearTerm(t *testing.T) {
	tests := []struct {
		name       string
		required   string
		wantOK     bool
		wantReason string
		wantDaily  string
		wantBudget string
	}{
		{"comfortable", "300", true, "", "30", "90"},
		{"beyond daily income", "1500", false, ReasonExceedsDailyIncome, "150", "50"},
		{"beyond leftover budget", "900", false, ReasonExceedsDailyBudget, "90", "70"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanDailyBudget(input(tt.required, "3000", 10))
			if err != nil {
				t.Fatalf("PlanDailyBudget: %v", err)
			}
			if plan.Feasible != tt.wantOK {
				t.Fatalf("Feasible = %v, want %v (reason %q)", plan.Feasible, tt.wantOK, plan.Reason)
			}
			if plan.Reason != tt.wantReason {
				t.Fatalf("Reason = %q, want %q", plan.Reason, tt.wantReason)
			}
			if plan.Regime != RegimeNearTerm || plan.DaysRemaining != 10 {
				t.Fatalf("regime/days = %s/%d", plan.Regime, plan.DaysRemaining)
			}
			if !plan.DailySavings.Equal(decimal.RequireFromString(tt.wantDaily)) {
				t.Fatalf("DailySavings = %s, want %s", plan.DailySavings, tt.wantDaily)
			}
			if !plan.DailyBudget.Equal(decimal.RequireFromString(tt.wantBudget)) {
				t.Fatalf("DailyBudget = %s, want %s", plan.DailyBudget, tt.wantBudget)
			}
		})
	}
}

func TestPlanDailyBudgetLongTerm(t *testing.T) {
	// 60 days at 1000/month: 2000 of income, 33.33 per day.
	tests := []struct {
		required   string
		wantOK     bool
		wantReason string
		wantBal    string
	}{
		{"600", true, "", "1400"},
		{"1200", false, ReasonExceedsBudget, "800"},
		{"2500", false, ReasonRequiredExceedsDailyBudget, "-500"},
	}

	for _, tt := range tests {
		plan, err := PlanDailyBudget(input(tt.required, "1000", 60))
		if err != nil {
			t.Fatalf("PlanDailyBudget: %v", err)
		}
		if plan.Regime != RegimeLongTerm {
			t.Fatalf("Regime = %s, want %s", plan.Regime, RegimeLongTerm)
		}
		if plan.Feasible != tt.wantOK || plan.Reason != tt.wantReason {
			t.Fatalf("required %s: feasible=%v reason=%q, want %v %q", tt.required, plan.Feasible, plan.Reason, tt.wantOK, tt.wantReason)
		}
		if !plan.BalanceAfterSavings.Equal(decimal.RequireFromString(tt.wantBal)) {
			t.Fatalf("BalanceAfterSavings = %s, want %s", plan.BalanceAfterSavings, tt.wantBal)
		}
	}
}

func TestPlanDailyBudgetInvalid(t *testing.T) {
	_, err := PlanDailyBudget(input("100", "1000", 0))
	if !errors.Is(err, ErrDeadlineNotInFuture) {
		t.Fatalf("err = %v, want ErrDeadlineNotInFuture", err)
	}
}

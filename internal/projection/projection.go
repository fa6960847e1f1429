// Package projection derives time left and the daily savings needed to hit a
// goal from its current state. Callers pass the evaluation instant; nothing
// here reads the wall clock.
package projection

import (
	"time"

	"github.com/brokeshield/brokeshield/internal/feasibility"
	"github.com/shopspring/decimal"
)

// Remaining is the time left before a deadline. TimeUp is set, and all
// fields are zero, once the deadline has been reached.
type Remaining struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	TimeUp  bool `json:"time_up"`
}

// Duration returns the remaining time truncated to the minute.
func (r Remaining) Duration() time.Duration {
	return time.Duration(r.Days)*24*time.Hour +
		time.Duration(r.Hours)*time.Hour +
		time.Duration(r.Minutes)*time.Minute
}

// TimeRemaining splits the time from asOf to deadline into days, hours and
// minutes, floored at zero.
func TimeRemaining(deadline, asOf time.Time) Remaining {
	left := deadline.Sub(asOf)
	if left <= 0 {
		return Remaining{TimeUp: true}
	}

	days := int(left / (24 * time.Hour))
	left -= time.Duration(days) * 24 * time.Hour
	hours := int(left / time.Hour)
	left -= time.Duration(hours) * time.Hour

	return Remaining{
		Days:    days,
		Hours:   hours,
		Minutes: int(left / time.Minute),
	}
}

// Kind tags which variant a Result holds.
type Kind string

const (
	KindNoFinancialRequirement Kind = "no_financial_requirement"
	KindPast                   Kind = "past"
	KindDueToday               Kind = "due_today"
	KindTargetAcquired         Kind = "target_acquired"
	KindOverflow               Kind = "overflow"
	KindOnTrack                Kind = "on_track"
)

// Result is a tagged variant. Excess is set for KindOverflow; DailyAmount and
// RemainingBudget are set for KindOnTrack.
type Result struct {
	Kind            Kind             `json:"kind"`
	DaysRemaining   int              `json:"days_remaining"`
	Excess          *decimal.Decimal `json:"excess,omitempty"`
	DailyAmount     *decimal.Decimal `json:"daily_amount,omitempty"`
	RemainingBudget *decimal.Decimal `json:"remaining_budget,omitempty"`
}

type Input struct {
	AmountRequired decimal.Decimal
	AmountSaved    decimal.Decimal
	MonthlyIncome  decimal.Decimal
	Deadline       time.Time
	AsOf           time.Time
}

var (
	monthsPerYear = decimal.NewFromInt(12)
	daysPerYear   = decimal.NewFromInt(365)
)

// RequiredDailySavings projects what must be saved per day from asOf until
// the deadline. Short horizons spread the remaining deficit over the days
// left and report income left after the goal; long horizons compare the
// annualized daily income with the goal's per-day share.
func RequiredDailySavings(in Input) Result {
	if !in.AmountRequired.IsPositive() {
		return Result{Kind: KindNoFinancialRequirement}
	}

	left := in.Deadline.Sub(in.AsOf)
	if left <= 0 {
		return Result{Kind: KindPast}
	}

	days := int(left / (24 * time.Hour))
	if days <= 0 {
		return Result{Kind: KindDueToday}
	}

	switch in.AmountSaved.Cmp(in.AmountRequired) {
	case 0:
		return Result{Kind: KindTargetAcquired, DaysRemaining: days}
	case 1:
		excess := in.AmountSaved.Sub(in.AmountRequired)
		return Result{Kind: KindOverflow, DaysRemaining: days, Excess: &excess}
	}

	d := decimal.NewFromInt(int64(days))
	daily := in.AmountRequired.Sub(in.AmountSaved).Div(d)

	var budget decimal.Decimal
	if feasibility.RegimeFor(days) == feasibility.RegimeNearTerm {
		budget = in.MonthlyIncome.Sub(in.AmountRequired)
	} else {
		dailyIncome := in.MonthlyIncome.Mul(monthsPerYear).Div(daysPerYear)
		budget = dailyIncome.Sub(in.AmountRequired.Div(d))
	}

	return Result{
		Kind:            KindOnTrack,
		DaysRemaining:   days,
		DailyAmount:     &daily,
		RemainingBudget: &budget,
	}
}

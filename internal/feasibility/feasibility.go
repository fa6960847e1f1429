// Package feasibility classifies how achievable a savings plan is and
// computes a concrete daily budget for it.
package feasibility

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Classification is the feasibility verdict for a proposed plan.
type Classification string

const (
	NotFeasible             Classification = "NOT_FEASIBLE"
	CapitalIntensive        Classification = "CAPITAL_INTENSIVE"
	FeasibleWithPersistence Classification = "FEASIBLE_WITH_PERSISTENCE"
	Feasible                Classification = "FEASIBLE"
)

// Rank orders classifications from most optimistic (0) to least (3).
func (c Classification) Rank() int {
	switch c {
	case Feasible:
		return 0
	case FeasibleWithPersistence:
		return 1
	case CapitalIntensive:
		return 2
	default:
		return 3
	}
}

// Regime is the day-length regime a plan falls into.
type Regime string

const (
	RegimeNearTerm Regime = "near_term"
	RegimeLongTerm Regime = "long_term"
)

const (
	// NearTermMaxDays is the longest horizon still treated as near-term.
	NearTermMaxDays = 30
	// DaysPerMonth converts monthly income to daily income.
	DaysPerMonth = 30
)

var (
	ErrDeadlineNotInFuture = errors.New("deadline must be in the future")
	ErrNegativeAmount      = errors.New("amounts must not be negative")
)

var daysPerMonth = decimal.NewFromInt(DaysPerMonth)

// Thresholds holds the income fractions separating the four buckets, ordered
// from the NOT_FEASIBLE cut-off down to the FEASIBLE_WITH_PERSISTENCE cut-off.
type Thresholds struct {
	NearTerm [3]decimal.Decimal
	LongTerm [3]decimal.Decimal
}

// DefaultThresholds is the single canonical table used for individual and
// group goals alike.
var DefaultThresholds = Thresholds{
	NearTerm: [3]decimal.Decimal{
		decimal.RequireFromString("0.7"),
		decimal.RequireFromString("0.5"),
		decimal.RequireFromString("0.3"),
	},
	LongTerm: [3]decimal.Decimal{
		decimal.RequireFromString("0.5"),
		decimal.RequireFromString("0.3"),
		decimal.RequireFromString("0.2"),
	},
}

// Input describes a proposed plan. Deadline is a calendar date interpreted as
// UTC midnight; AsOf is the evaluation instant.
type Input struct {
	AmountRequired decimal.Decimal
	MonthlyIncome  decimal.Decimal
	Deadline       time.Time
	AsOf           time.Time
}

func (in Input) validate() (int, error) {
	if in.AmountRequired.IsNegative() || in.MonthlyIncome.IsNegative() {
		return 0, ErrNegativeAmount
	}
	days := DaysBetween(in.AsOf, in.Deadline)
	if days <= 0 {
		return 0, fmt.Errorf("%w: %d days remaining", ErrDeadlineNotInFuture, days)
	}
	return days, nil
}

// DaysBetween counts whole calendar days from asOf's UTC date to deadline's
// UTC date. It is negative when the deadline lies in the past.
func DaysBetween(asOf, deadline time.Time) int {
	from := truncateDay(asOf)
	to := truncateDay(deadline)
	return int(to.Sub(from).Hours() / 24)
}

// RegimeFor returns the regime for a horizon of days.
func RegimeFor(days int) Regime {
	if days <= NearTermMaxDays {
		return RegimeNearTerm
	}
	return RegimeLongTerm
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Classify buckets a plan using DefaultThresholds.
func Classify(in Input) (Classification, error) {
	return DefaultThresholds.Classify(in)
}

// Classify buckets a plan. Near-term plans compare required daily savings
// with daily income; long-term plans compare the whole amount with the income
// projected up to the deadline.
func (t Thresholds) Classify(in Input) (Classification, error) {
	days, err := in.validate()
	if err != nil {
		return "", err
	}

	if RegimeFor(days) == RegimeNearTerm {
		dailySavings := in.AmountRequired.Div(decimal.NewFromInt(int64(days)))
		dailyIncome := in.MonthlyIncome.Div(daysPerMonth)
		return bucket(dailySavings, dailyIncome, t.NearTerm), nil
	}

	monthsRemaining := decimal.NewFromInt(int64(days)).Div(daysPerMonth)
	projectedIncome := in.MonthlyIncome.Mul(monthsRemaining)
	return bucket(in.AmountRequired, projectedIncome, t.LongTerm), nil
}

func bucket(need, base decimal.Decimal, cuts [3]decimal.Decimal) Classification {
	switch {
	case need.GreaterThan(base.Mul(cuts[0])):
		return NotFeasible
	case need.GreaterThan(base.Mul(cuts[1])):
		return CapitalIntensive
	case need.GreaterThan(base.Mul(cuts[2])):
		return FeasibleWithPersistence
	default:
		return Feasible
	}
}

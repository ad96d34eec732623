// Package pricing implements the rental price optimization engine: least-cost
// day/week/month blending over a rental period, plus forward cost
// forecasting. The package is pure and does no I/O.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"fulfilment-backend/internal/domain"
)

// Strategy is one of the fixed day/week/month distributions considered when
// pricing a rental period.
type Strategy string

const (
	StrategyExactSplit      Strategy = "exactSplit"
	StrategyRoundUpTo7Days  Strategy = "roundUpTo7Days"
	StrategyRoundUpTo28Days Strategy = "roundUpTo28Days"
)

// strategyOrder is the declaration order of the candidates. The order is
// load-bearing: on a cost tie the earlier strategy wins, and the plain-text
// breakdown differs between strategies even when the cost ties.
var strategyOrder = []Strategy{StrategyExactSplit, StrategyRoundUpTo7Days, StrategyRoundUpTo28Days}

// Rates are the per-unit rental rates in cents.
type Rates struct {
	DayRateInCents   int64 `json:"day_rate_in_cents"`
	WeekRateInCents  int64 `json:"week_rate_in_cents"`
	MonthRateInCents int64 `json:"month_rate_in_cents"`
}

// RentalPeriod is a distribution of a total day count into 28-day, 7-day and
// 1-day blocks.
type RentalPeriod struct {
	Days28    int `json:"days_28"`
	Days7     int `json:"days_7"`
	Days1     int `json:"days_1"`
	TotalDays int `json:"total_days"`
}

// StrategyCost is one candidate's full re-distribution of the period and its
// cost.
type StrategyCost struct {
	Strategy     Strategy     `json:"strategy"`
	RentalPeriod RentalPeriod `json:"rental_period"`
	CostInCents  int64        `json:"cost_in_cents"`
}

// CostOption is the chosen minimum-cost strategy for a rental period.
type CostOption struct {
	Strategy                           Strategy       `json:"strategy"`
	CostInCents                        int64          `json:"cost_in_cents"`
	RentalPeriod                       RentalPeriod   `json:"rental_period"`
	SavingsComparedToExactSplitInCents int64          `json:"savings_compared_to_exact_split_in_cents"`
	SavingsComparedToDayRateInCents    int64          `json:"savings_compared_to_day_rate_in_cents"`
	SavingsComparedToDayRateInFraction float64        `json:"savings_compared_to_day_rate_in_fraction"`
	PlainText                          string         `json:"plain_text"`
	Details                            []StrategyCost `json:"details"`
}

// CalculateRentalPeriod distributes a rental duration into 28-day, 7-day and
// 1-day blocks, greedily filling the largest blocks first. When totalDays is
// nil the duration is derived from the dates with inclusive-both-ends
// semantics: start == end is one day.
func CalculateRentalPeriod(startDate, endDate *time.Time, totalDays *int) (RentalPeriod, error) {
	var days int
	switch {
	case totalDays != nil:
		days = *totalDays
	case startDate != nil && endDate != nil:
		days = DaysBetweenInclusive(*startDate, *endDate)
	default:
		return RentalPeriod{}, domain.NewValidationError("either totalDays or both startDate and endDate are required", nil)
	}
	if days < 0 {
		return RentalPeriod{}, domain.NewValidationError(fmt.Sprintf("rental period cannot be negative: %d days", days), nil)
	}
	return periodFromTotalDays(days), nil
}

// DaysBetweenInclusive counts whole days between two dates, including both
// the start and end dates. Time-of-day is ignored.
func DaysBetweenInclusive(start, end time.Time) int {
	s := truncateToDay(start)
	e := truncateToDay(end)
	return int(e.Sub(s).Hours()/24) + 1
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func periodFromTotalDays(totalDays int) RentalPeriod {
	days28 := totalDays / 28
	rem := totalDays % 28
	return RentalPeriod{
		Days28:    days28,
		Days7:     rem / 7,
		Days1:     rem % 7,
		TotalDays: totalDays,
	}
}

// distribute returns the strategy's full re-distribution of the same total
// day count. roundUpTo7Days keeps the 28-day count and collapses any
// remainder into whole 7-day blocks; roundUpTo28Days adds one 28-day block
// and zeroes the rest.
func distribute(strategy Strategy, totalDays int) RentalPeriod {
	exact := periodFromTotalDays(totalDays)
	switch strategy {
	case StrategyRoundUpTo7Days:
		rem := totalDays - exact.Days28*28
		weeks := rem / 7
		if rem%7 > 0 {
			weeks++
		}
		return RentalPeriod{Days28: exact.Days28, Days7: weeks, Days1: 0, TotalDays: totalDays}
	case StrategyRoundUpTo28Days:
		return RentalPeriod{Days28: exact.Days28 + 1, Days7: 0, Days1: 0, TotalDays: totalDays}
	default:
		return exact
	}
}

// CalculateCost prices a distribution against the rates.
func CalculateCost(period RentalPeriod, rates Rates) int64 {
	return int64(period.Days28)*rates.MonthRateInCents +
		int64(period.Days7)*rates.WeekRateInCents +
		int64(period.Days1)*rates.DayRateInCents
}

// CalculateOptimalCost prices all three strategies for the period and picks
// the cheapest. Ties go to the earliest strategy in declaration order.
func CalculateOptimalCost(period RentalPeriod, rates Rates) CostOption {
	details := make([]StrategyCost, 0, len(strategyOrder))
	for _, strategy := range strategyOrder {
		dist := distribute(strategy, period.TotalDays)
		details = append(details, StrategyCost{
			Strategy:     strategy,
			RentalPeriod: dist,
			CostInCents:  CalculateCost(dist, rates),
		})
	}

	best := details[0]
	for _, candidate := range details[1:] {
		if candidate.CostInCents < best.CostInCents {
			best = candidate
		}
	}

	exactSplitCost := details[0].CostInCents
	dayRateCost := int64(period.TotalDays) * rates.DayRateInCents
	dayRateSavings := dayRateCost - best.CostInCents
	var dayRateFraction float64
	if dayRateCost != 0 {
		dayRateFraction = float64(dayRateSavings) / float64(dayRateCost)
	}

	return CostOption{
		Strategy:                           best.Strategy,
		CostInCents:                        best.CostInCents,
		RentalPeriod:                       best.RentalPeriod,
		SavingsComparedToExactSplitInCents: exactSplitCost - best.CostInCents,
		SavingsComparedToDayRateInCents:    dayRateSavings,
		SavingsComparedToDayRateInFraction: dayRateFraction,
		PlainText:                          plainText(best.RentalPeriod, rates),
		Details:                            details,
	}
}

// plainText renders a human-readable breakdown of the winning distribution,
// e.g. "1 x Week Rate (5.00) + 1 x 28 Day Rate (15.00)". Zero-count terms
// are omitted.
func plainText(period RentalPeriod, rates Rates) string {
	var parts []string
	if period.Days1 > 0 {
		parts = append(parts, fmt.Sprintf("%d x Day Rate (%s)", period.Days1, centsToAmount(rates.DayRateInCents)))
	}
	if period.Days7 > 0 {
		parts = append(parts, fmt.Sprintf("%d x Week Rate (%s)", period.Days7, centsToAmount(rates.WeekRateInCents)))
	}
	if period.Days28 > 0 {
		parts = append(parts, fmt.Sprintf("%d x 28 Day Rate (%s)", period.Days28, centsToAmount(rates.MonthRateInCents)))
	}
	return strings.Join(parts, " + ")
}

func centsToAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

package pricing

import (
	"time"

	"fulfilment-backend/internal/domain"
)

// ForecastDay is the optimal cost of the rental as if it ran from the start
// date through this day.
type ForecastDay struct {
	Date                    time.Time  `json:"date"`
	CostOption              CostOption `json:"cost_option"`
	AccumulativeCostInCents int64      `json:"accumulative_cost_in_cents"`
}

// Forecast is a day-by-day projection of rental cost.
type Forecast struct {
	Days                    []ForecastDay `json:"days"`
	AccumulativeCostInCents int64         `json:"accumulative_cost_in_cents"`
}

// ForecastPricing projects the rental cost for each day from day 0 through
// numberOfDaysToForecast inclusive. Once a day's end date passes
// rentalEndDate the accumulative cost freezes at its last pre-expiry value.
func ForecastPricing(startDate time.Time, numberOfDaysToForecast int, rates Rates, rentalEndDate *time.Time) (Forecast, error) {
	if numberOfDaysToForecast < 0 {
		return Forecast{}, domain.NewValidationError("forecast horizon cannot be negative", nil)
	}

	days := make([]ForecastDay, 0, numberOfDaysToForecast+1)
	for i := 0; i <= numberOfDaysToForecast; i++ {
		date := truncateToDay(startDate).AddDate(0, 0, i)

		if rentalEndDate != nil && date.After(truncateToDay(*rentalEndDate)) && len(days) > 0 {
			prev := days[len(days)-1]
			days = append(days, ForecastDay{
				Date:                    date,
				CostOption:              prev.CostOption,
				AccumulativeCostInCents: prev.AccumulativeCostInCents,
			})
			continue
		}

		option := CalculateOptimalCost(periodFromTotalDays(i+1), rates)
		days = append(days, ForecastDay{
			Date:                    date,
			CostOption:              option,
			AccumulativeCostInCents: option.CostInCents,
		})
	}

	return Forecast{
		Days:                    days,
		AccumulativeCostInCents: days[len(days)-1].AccumulativeCostInCents,
	}, nil
}

// BillingPeriod is a contiguous date range, at most the configured threshold
// long, over which one charge is computed. Periods are derived on demand and
// never persisted.
type BillingPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Days int       `json:"days"`
}

// ChunkBillingPeriods splits [from, to] into consecutive windows of at most
// maxDays days each, inclusive both ends. The final window may be partial.
func ChunkBillingPeriods(from, to time.Time, maxDays int) []BillingPeriod {
	if maxDays < 1 {
		maxDays = 1
	}
	start := truncateToDay(from)
	end := truncateToDay(to)

	var periods []BillingPeriod
	for !start.After(end) {
		periodEnd := start.AddDate(0, 0, maxDays-1)
		if periodEnd.After(end) {
			periodEnd = end
		}
		periods = append(periods, BillingPeriod{
			From: start,
			To:   periodEnd,
			Days: DaysBetweenInclusive(start, periodEnd),
		})
		start = periodEnd.AddDate(0, 0, 1)
	}
	return periods
}

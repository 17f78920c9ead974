package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	zero    = decimal.Zero
	oneDay  = decimal.NewFromInt(1)
	halfDay = decimal.RequireFromString("0.5")
)

// DayBreakdown classifies an inclusive date range. Working is the quantity
// that consumes balance; Total is the raw calendar span.
type DayBreakdown struct {
	Total   decimal.Decimal `json:"totalDays"`
	Working decimal.Decimal `json:"workingDays"`
	Weekend decimal.Decimal `json:"weekendDays"`
	Holiday decimal.Decimal `json:"holidayDays"`
}

// DateKey is the map key format for non-working date sets.
const DateKey = "2006-01-02"

// Decompose walks every calendar date in [start, end] and classifies it as
// weekend, holiday or ordinary. A date consumes balance when it is ordinary,
// or when the policy counts its weekend/holiday class as consumable. A date
// that is both a weekend and a listed holiday is classified as weekend.
//
// Half-day requests are always a single date and consume exactly 0.5 days
// no matter how that date classifies.
//
// The caller has already rejected inverted ranges; this is a pure function.
func Decompose(start, end time.Time, half bool, p Policy, nonWorking map[string]bool) DayBreakdown {
	var bd DayBreakdown
	bd.Total = zero
	bd.Working = zero
	bd.Weekend = zero
	bd.Holiday = zero

	for d := truncateToDay(start); !d.After(truncateToDay(end)); d = d.AddDate(0, 0, 1) {
		bd.Total = bd.Total.Add(oneDay)
		switch {
		case isWeekend(d):
			bd.Weekend = bd.Weekend.Add(oneDay)
			if p.CountsWeekends {
				bd.Working = bd.Working.Add(oneDay)
			}
		case nonWorking[d.Format(DateKey)]:
			bd.Holiday = bd.Holiday.Add(oneDay)
			if p.CountsHolidays {
				bd.Working = bd.Working.Add(oneDay)
			}
		default:
			bd.Working = bd.Working.Add(oneDay)
		}
	}

	if half {
		bd.Working = halfDay
	}
	return bd
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

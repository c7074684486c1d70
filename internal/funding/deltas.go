package funding

import (
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

const dayLayout = "2006-01-02"

// DayDelta is the net effect one calendar day's activities had on an
// account: how much of that was a funding flow versus a P&L event, both
// already converted to CAD.
type DayDelta struct {
	Date       time.Time
	FundingCad float64
	PnlCad     float64
}

func (d DayDelta) total() float64 { return d.FundingCad + d.PnlCad }

// buildDailyDeltas buckets activities by calendar day, CAD-converting any
// non-CAD amount at the exchange rate applicable on the activity's
// settlement date (spec §4.6). It returns incomplete=true if any flow had
// to fall back to an approximate or 1:1 rate.
func buildDailyDeltas(activities []domain.Activity, rates FxRates) (map[string]*DayDelta, bool) {
	byDay := map[string]*DayDelta{}
	incomplete := false

	for _, a := range activities {
		amountCad, flowIncomplete := toCad(a, rates)
		incomplete = incomplete || flowIncomplete

		key := a.TransactionDate.Truncate(24 * time.Hour).Format(dayLayout)
		d, ok := byDay[key]
		if !ok {
			d = &DayDelta{Date: a.TransactionDate.Truncate(24 * time.Hour)}
			byDay[key] = d
		}
		if a.IsFundingFlow() {
			d.FundingCad += amountCad
		} else {
			d.PnlCad += amountCad
		}
	}
	return byDay, incomplete
}

// toCad converts a single activity's net amount to CAD using the rate on
// its settlement date, falling back to the latest known rate at-or-before
// that date, and finally to 1:1 if no rate is known at all.
func toCad(a domain.Activity, rates FxRates) (float64, bool) {
	if a.Currency == "" || a.Currency == "CAD" {
		return a.NetAmount, false
	}
	rate, exact, found := rates.RateOnOrBefore(a.SettlementDate)
	if !found {
		return a.NetAmount, true
	}
	return a.NetAmount * rate, !exact
}

// Package funding implements the C6 funding & P&L engine: net deposits with
// settlement-date FX conversion, backward equity reconstruction, the
// all-time and since-start Total-P&L series, XIRR annualized return, and
// the trailing-period return breakdown (spec §4.6). Every exported
// function here is pure: it takes already-fetched data and an explicit
// "now", never performs I/O, and never reads the wall clock.
package funding

import (
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// NetDepositsAsOf sums signed funding flows up to and including cutoff,
// CAD-converting non-CAD flows at the rate on their settlement date, and
// adding the account's configured adjustment (spec §4.6).
func NetDepositsAsOf(activities []domain.Activity, rates FxRates, cutoff time.Time, adjustmentCad float64) (amount float64, incomplete bool) {
	cutoffDay := cutoff.Truncate(24 * time.Hour)
	total := adjustmentCad
	for _, a := range activities {
		if !a.IsFundingFlow() {
			continue
		}
		if a.TransactionDate.Truncate(24 * time.Hour).After(cutoffDay) {
			continue
		}
		amt, flowIncomplete := toCad(a, rates)
		incomplete = incomplete || flowIncomplete
		total += amt
	}
	return total, incomplete
}

// Inputs bundles everything BuildFundingSummary needs for one account.
type Inputs struct {
	Account             domain.Account
	Activities          []domain.Activity
	Rates               FxRates
	CurrentEquityCad    float64
	EarliestFundingDate time.Time // zero value means "no funding flows yet"
	Now                 time.Time
}

// BuildFundingSummary computes the full C6 output for one account: net
// deposits, the two Total-P&L series, annualized return (since-start and
// all-time), and the trailing-period return breakdown.
func BuildFundingSummary(in Inputs) (domain.FundingSummary, domain.TotalPnlSeries, domain.TotalPnlSeries) {
	now := in.Now.Truncate(24 * time.Hour)

	if in.EarliestFundingDate.IsZero() {
		summary := domain.FundingSummary{
			AccountRef:     domain.AccountRef{LoginID: in.Account.LoginID, AccountNumber: in.Account.Number},
			TotalEquityCad: in.CurrentEquityCad,
		}
		empty := domain.TotalPnlSeries{PeriodStartDate: now, PeriodEndDate: now}
		return summary, empty, empty
	}

	from := in.EarliestFundingDate.Truncate(24 * time.Hour)
	deltas, deltasIncomplete := buildDailyDeltas(in.Activities, in.Rates)

	equityByDay := reconstructEquity(deltas, in.CurrentEquityCad, from, now)
	netDepByDay := accumulateNetDeposits(deltas, in.Account.NetDepositAdjustment, from, now)

	allTime := buildSeries(from, now, equityByDay, netDepByDay, false)

	startDate := from
	if in.Account.CAGRStartDate != nil && in.Account.CAGRStartDate.After(startDate) {
		startDate = in.Account.CAGRStartDate.Truncate(24 * time.Hour)
	}
	sinceStart := buildSeries(startDate, now, equityByDay, netDepByDay, true)
	sinceStart.PeriodStartDate = startDate

	netDepositsAllTime, netDepIncomplete := NetDepositsAsOf(in.Activities, in.Rates, now, in.Account.NetDepositAdjustment)
	totalPnlAllTime := in.CurrentEquityCad - netDepositsAllTime
	var totalPnlSinceStart float64
	if len(sinceStart.Points) > 0 {
		totalPnlSinceStart = sinceStart.Points[len(sinceStart.Points)-1].TotalPnlCad
	}

	allTimeReturn := annualizedReturn(deltas, equityByDay, from, now, deltasIncomplete)
	sinceStartReturn := annualizedReturn(deltas, equityByDay, startDate, now, deltasIncomplete)

	summary := domain.FundingSummary{
		AccountRef:              domain.AccountRef{LoginID: in.Account.LoginID, AccountNumber: in.Account.Number},
		NetDepositsAllTimeCad:   netDepositsAllTime,
		NetDepositsCombinedCad:  netDepositsAllTime,
		TotalPnlAllTimeCad:      totalPnlAllTime,
		TotalPnlCombinedCad:     totalPnlSinceStart,
		TotalEquityCad:          in.CurrentEquityCad,
		AnnualizedReturn:        sinceStartReturn,
		AnnualizedReturnAllTime: allTimeReturn,
		ReturnBreakdown:         buildReturnBreakdown(deltas, equityByDay, from, now, deltasIncomplete),
		CagrStartDate:           in.Account.CAGRStartDate,
		ConversionIncomplete:    deltasIncomplete || netDepIncomplete,
	}
	return summary, allTime, sinceStart
}

// reconstructEquity walks the activity-derived deltas backward from the
// known current equity at `to`, reversing each day's net effect, so every
// calendar day in [from,to] ends up with a reconstructed equity value
// (spec §4.6: "weekends inherit the prior trading day's equity" falls out
// naturally since a day with no activity has a zero delta).
func reconstructEquity(deltas map[string]*DayDelta, currentEquityCad float64, from, to time.Time) map[string]float64 {
	byDay := map[string]float64{}
	cursor := to
	byDay[cursor.Format(dayLayout)] = currentEquityCad
	for cursor.After(from) {
		key := cursor.Format(dayLayout)
		delta := 0.0
		if d, ok := deltas[key]; ok {
			delta = d.total()
		}
		prev := cursor.AddDate(0, 0, -1)
		byDay[prev.Format(dayLayout)] = byDay[key] - delta
		cursor = prev
	}
	return byDay
}

// accumulateNetDeposits walks forward from `from`, building the running
// cumulative net-deposits total for every day in [from,to].
func accumulateNetDeposits(deltas map[string]*DayDelta, adjustmentCad float64, from, to time.Time) map[string]float64 {
	byDay := map[string]float64{}
	cum := adjustmentCad
	for cursor := from; !cursor.After(to); cursor = cursor.AddDate(0, 0, 1) {
		key := cursor.Format(dayLayout)
		if d, ok := deltas[key]; ok {
			cum += d.FundingCad
		}
		byDay[key] = cum
	}
	return byDay
}

// buildSeries emits one domain.TotalPnlPoint per calendar day in
// [from,to]. When baseline is true, every point's TotalPnlCad has the
// first point's value subtracted off, satisfying the since-start
// "first point is zero" invariant (spec §8).
func buildSeries(from, to time.Time, equityByDay, netDepByDay map[string]float64, baseline bool) domain.TotalPnlSeries {
	var points []domain.TotalPnlPoint
	for cursor := from; !cursor.After(to); cursor = cursor.AddDate(0, 0, 1) {
		key := cursor.Format(dayLayout)
		eq := equityByDay[key]
		nd := netDepByDay[key]
		points = append(points, domain.TotalPnlPoint{
			Date: cursor, CumulativeNetDepositsCad: nd, EquityCad: eq, TotalPnlCad: eq - nd,
		})
	}
	if baseline && len(points) > 0 {
		base := points[0].TotalPnlCad
		for i := range points {
			points[i].TotalPnlCad -= base
		}
	}
	series := domain.TotalPnlSeries{Points: points, SinceStart: baseline, PeriodStartDate: from, PeriodEndDate: to}
	return series
}

// cashFlowsFor builds the XIRR input for the window [from,to]: one negative
// outflow per day with a net funding inflow, one positive inflow per day
// with a net funding outflow (a withdrawal), and a terminal positive flow
// of the window's ending equity.
func cashFlowsFor(deltas map[string]*DayDelta, equityByDay map[string]float64, from, to time.Time) []CashFlow {
	var flows []CashFlow
	for cursor := from; !cursor.After(to); cursor = cursor.AddDate(0, 0, 1) {
		key := cursor.Format(dayLayout)
		d, ok := deltas[key]
		if !ok || d.FundingCad == 0 {
			continue
		}
		flows = append(flows, CashFlow{Date: cursor, Amount: -d.FundingCad})
	}
	flows = append(flows, CashFlow{Date: to, Amount: equityByDay[to.Format(dayLayout)]})
	return flows
}

// annualizedReturn computes the XIRR-based AnnualizedReturn for [from,to].
// A period is Incomplete if fewer than two distinct cash flows exist, if
// the bisection failed to bracket a root, or if the upstream data was
// already flagged incomplete by FX fallback.
func annualizedReturn(deltas map[string]*DayDelta, equityByDay map[string]float64, from, to time.Time, dataIncomplete bool) domain.AnnualizedReturn {
	flows := cashFlowsFor(deltas, equityByDay, from, to)
	rate, ok := XIRR(flows)
	result := domain.AnnualizedReturn{AsOf: to, StartDate: from, Incomplete: dataIncomplete || !ok}
	if ok {
		result.Rate = &rate
	}
	return result
}

// breakdownPeriods enumerates the canonical trailing windows, in calendar
// months (spec §4.6).
var breakdownPeriods = []struct {
	name   string
	months int
}{
	{"1m", 1}, {"6m", 6}, {"12m", 12}, {"5y", 60}, {"10y", 120},
}

// buildReturnBreakdown computes the trailing-period entries, omitting any
// period whose start predates the known activity window (earliestFundingDate).
func buildReturnBreakdown(deltas map[string]*DayDelta, equityByDay map[string]float64, earliest, now time.Time, dataIncomplete bool) []domain.ReturnBreakdownEntry {
	var out []domain.ReturnBreakdownEntry
	for _, p := range breakdownPeriods {
		start := now.AddDate(0, -p.months, 0)
		if start.Before(earliest) {
			continue
		}
		coverage := now.Sub(start).Hours()
		knownCoverage := now.Sub(maxTime(start, earliest)).Hours()
		incomplete := dataIncomplete || knownCoverage < coverage*0.95

		startKey, nowKey := start.Format(dayLayout), now.Format(dayLayout)
		equityStart, okStart := equityByDay[startKey]
		equityNow, okNow := equityByDay[nowKey]
		if !okStart || !okNow {
			continue
		}
		netDepStart := cumulativeFundingBetween(deltas, earliest, start)
		netDepNow := cumulativeFundingBetween(deltas, earliest, now)
		totalReturn := (equityNow - equityStart) - (netDepNow - netDepStart)

		flows := cashFlowsFor(deltas, equityByDay, start, now)
		rate, ok := XIRR(flows)
		entry := domain.ReturnBreakdownEntry{
			Period: p.name, StartDate: start, EndDate: now,
			TotalReturnCad: totalReturn, Incomplete: incomplete || !ok,
		}
		if ok {
			entry.AnnualizedRate = &rate
		}
		out = append(out, entry)
	}
	return out
}

func cumulativeFundingBetween(deltas map[string]*DayDelta, from, to time.Time) float64 {
	sum := 0.0
	for cursor := from; !cursor.After(to); cursor = cursor.AddDate(0, 0, 1) {
		if d, ok := deltas[cursor.Format(dayLayout)]; ok {
			sum += d.FundingCad
		}
	}
	return sum
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

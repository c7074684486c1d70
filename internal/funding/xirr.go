package funding

import (
	"math"
	"sort"
	"time"
)

// CashFlow is one signed flow used by XIRR: negative for money into the
// account, positive for money recognized as coming back out (including the
// terminal equity valuation).
type CashFlow struct {
	Date   time.Time
	Amount float64
}

const (
	xirrLow     = -0.999
	xirrHigh    = 10.0
	xirrTol     = 1e-7
	xirrMaxIter = 200
	daysPerYear = 365.0
)

// xirrNpv evaluates the net present value of flows at rate, using a
// 365-day-year day-count convention (spec §4.6).
func xirrNpv(flows []CashFlow, rate float64) float64 {
	if len(flows) == 0 {
		return 0
	}
	t0 := flows[0].Date
	npv := 0.0
	for _, f := range flows {
		years := f.Date.Sub(t0).Hours() / 24 / daysPerYear
		npv += f.Amount / math.Pow(1+rate, years)
	}
	return npv
}

// XIRR computes the annualized rate that zeroes the NPV of flows, via
// bisection on [xirrLow, xirrHigh] to a 1e-7 tolerance (spec §4.6, §9: the
// resolved Open Question is bisection, not Newton, for reproducibility).
// Returns (rate, true) on success, or (0, false) if no sign change was
// found in the bracket.
func XIRR(flows []CashFlow) (float64, bool) {
	if len(flows) < 2 {
		return 0, false
	}
	sorted := make([]CashFlow, len(flows))
	copy(sorted, flows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	lo, hi := xirrLow, xirrHigh
	fLo := xirrNpv(sorted, lo)
	fHi := xirrNpv(sorted, hi)
	if fLo == 0 {
		return lo, true
	}
	if fHi == 0 {
		return hi, true
	}
	if sameSign(fLo, fHi) {
		return 0, false
	}

	for i := 0; i < xirrMaxIter; i++ {
		mid := (lo + hi) / 2
		fMid := xirrNpv(sorted, mid)
		if math.Abs(fMid) < xirrTol || (hi-lo) < xirrTol {
			return mid, true
		}
		if sameSign(fMid, fLo) {
			lo, fLo = mid, fMid
		} else {
			hi, fHi = mid, fMid
		}
	}
	return (lo + hi) / 2, true
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

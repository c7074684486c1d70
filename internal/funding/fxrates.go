package funding

import (
	"sort"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// FxRates answers "what was the CAD rate for one unit of a foreign currency
// on or before this date", backed by C5's daily-close series for a
// synthetic pair symbol (e.g. "USDCAD=X"). Ascending order is required.
type FxRates struct {
	Points []domain.PricePoint
}

// RateOnOrBefore returns the close on date if present, else the latest
// close strictly before date. found is false if no rate at or before date
// exists at all (the flow then falls back to 1:1, per spec §4.6).
func (r FxRates) RateOnOrBefore(date time.Time) (rate float64, exact bool, found bool) {
	if len(r.Points) == 0 {
		return 0, false, false
	}
	day := date.Truncate(24 * time.Hour)
	// Points are ascending; binary-search the last index with Date <= day.
	idx := sort.Search(len(r.Points), func(i int) bool { return r.Points[i].Date.After(day) })
	if idx == 0 {
		return 0, false, false
	}
	p := r.Points[idx-1]
	return p.Close, p.Date.Equal(day), true
}

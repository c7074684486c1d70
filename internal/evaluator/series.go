package evaluator

import (
	"sort"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/markcheno/go-talib"
)

// TemperaturePoint is one day's close/moving-average ratio.
type TemperaturePoint struct {
	Price       domain.PricePoint
	Temperature float64
}

// TemperatureSeries computes the temperature curve for every day once the
// trailing SMA window is full, for the `GET /api/qqq-temperature` history
// view (spec §6). The final element, if any, is also the "latest" reading.
func TemperatureSeries(closes []domain.PricePoint, period int) ([]TemperaturePoint, bool) {
	if period <= 0 || len(closes) < period {
		return nil, false
	}
	sorted := make([]domain.PricePoint, len(closes))
	copy(sorted, closes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	values := make([]float64, len(sorted))
	for i, p := range sorted {
		values[i] = p.Close
	}
	sma := talib.Sma(values, period)

	out := make([]TemperaturePoint, 0, len(sorted)-period+1)
	for i := period - 1; i < len(sorted); i++ {
		if sma[i] == 0 {
			continue
		}
		out = append(out, TemperaturePoint{Price: sorted[i], Temperature: values[i] / sma[i]})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

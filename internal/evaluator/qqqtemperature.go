package evaluator

import (
	"fmt"
	"sort"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/markcheno/go-talib"
)

// QQQTemperatureModel is the reference investment model (spec §4.7): it
// maps a benchmark's "temperature" (price / trailing moving average) onto
// a base/leveraged/reserve three-way split via a piecewise-linear curve.
type QQQTemperatureModel struct {
	// MovingAveragePeriod is the trailing SMA window, in trading days.
	MovingAveragePeriod int
	// DriftBandPct overrides the default 5-percentage-point drift band
	// when non-zero.
	DriftBandPct float64
}

// NewQQQTemperatureModel builds the model with its documented defaults.
func NewQQQTemperatureModel() *QQQTemperatureModel {
	return &QQQTemperatureModel{MovingAveragePeriod: 200, DriftBandPct: defaultDriftBandPct}
}

// Name implements domain.InvestmentModel.
func (m *QQQTemperatureModel) Name() string { return "qqq-temperature" }

// temperatureCurve lists the steps of the piecewise-linear curve mapping
// temperature to a {base, leveraged, reserve} weight split. Between two
// listed temperatures the split is interpolated linearly; below the minimum
// or above the maximum the nearest end row applies.
var temperatureCurve = []struct {
	temperature        float64
	base, leveraged, reserve float64
}{
	{0.80, 0.30, 0.60, 0.10}, // deeply cold: lean heavily leveraged
	{0.90, 0.45, 0.45, 0.10},
	{1.00, 0.60, 0.30, 0.10},
	{1.10, 0.70, 0.15, 0.15},
	{1.20, 0.75, 0.05, 0.20},
	{1.35, 0.70, 0.00, 0.30}, // deeply hot: lean heavily reserve
}

// AllocationForTemperature linearly interpolates the curve above, clamping
// to the first/last entry outside its domain. Exported so the HTTP layer
// can report the {tqqq, qqq, tBills} split for the latest reading without
// re-running a full Evaluate against a specific account's positions.
func AllocationForTemperature(temp float64) (base, leveraged, reserve float64) {
	if temp <= temperatureCurve[0].temperature {
		c := temperatureCurve[0]
		return c.base, c.leveraged, c.reserve
	}
	last := temperatureCurve[len(temperatureCurve)-1]
	if temp >= last.temperature {
		return last.base, last.leveraged, last.reserve
	}
	for i := 1; i < len(temperatureCurve); i++ {
		lo, hi := temperatureCurve[i-1], temperatureCurve[i]
		if temp > hi.temperature {
			continue
		}
		frac := (temp - lo.temperature) / (hi.temperature - lo.temperature)
		base = lo.base + frac*(hi.base-lo.base)
		leveraged = lo.leveraged + frac*(hi.leveraged-lo.leveraged)
		reserve = lo.reserve + frac*(hi.reserve-lo.reserve)
		return
	}
	return last.base, last.leveraged, last.reserve
}

// Temperature computes currentPrice / trailing-SMA(period) from an
// ascending daily-close series, using talib.Sma for the moving average
// (matching the teacher's reliance on go-talib for indicators).
func Temperature(closes []domain.PricePoint, period int) (float64, bool) {
	if len(closes) < period || period <= 0 {
		return 0, false
	}
	sorted := make([]domain.PricePoint, len(closes))
	copy(sorted, closes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	values := make([]float64, len(sorted))
	for i, p := range sorted {
		values[i] = p.Close
	}
	sma := talib.Sma(values, period)
	avg := sma[len(sma)-1]
	if avg == 0 {
		return 0, false
	}
	current := values[len(values)-1]
	return current / avg, true
}

// Evaluate implements domain.InvestmentModel.
func (m *QQQTemperatureModel) Evaluate(in domain.ModelInput) domain.ModelEvaluation {
	result := domain.ModelEvaluation{AccountRef: in.AccountRef, Model: m.Name()}

	closes, ok := in.PriceHistory[in.Config.Symbol]
	if !ok || len(closes) == 0 {
		result.Decision.Action = domain.ModelActionError
		result.Status = fmt.Sprintf("no price history for benchmark symbol %q", in.Config.Symbol)
		return result
	}

	period := m.MovingAveragePeriod
	if period <= 0 {
		period = 200
	}
	temp, ok := Temperature(closes, period)
	if !ok {
		result.Decision.Action = domain.ModelActionError
		result.Status = fmt.Sprintf("insufficient history (%d points) for a %d-day moving average", len(closes), period)
		return result
	}

	base, leveraged, reserve := AllocationForTemperature(temp)
	target := map[string]float64{
		in.Config.Symbol: base,
	}
	if in.Config.LeveragedSymbol != "" {
		target[in.Config.LeveragedSymbol] = leveraged
	} else {
		target[in.Config.Symbol] += leveraged
	}
	if in.Config.ReserveSymbol != "" {
		target[in.Config.ReserveSymbol] = reserve
	} else {
		target[in.Config.Symbol] += reserve
	}

	band := in.DriftBandPct
	if band <= 0 {
		band = m.DriftBandPct
	}
	if band <= 0 {
		band = defaultDriftBandPct
	}
	rebalancePeriod := 90
	if in.Config.RebalancePeriod != nil {
		rebalancePeriod = *in.Config.RebalancePeriod
	}

	weights := currentWeights(in.Positions)
	action := domain.ModelActionHold
	if needsRebalance(weights, target, band, in.Config.LastRebalance, rebalancePeriod, in.Now) {
		action = domain.ModelActionRebalance
	}

	result.Decision = domain.ModelDecision{Action: action, TargetAllocation: target}
	result.Status = fmt.Sprintf("temperature=%.4f", temp)
	return result
}

// Package evaluator implements the C7 investment-model evaluator: a small
// registry of domain.InvestmentModel implementations, each a pure,
// restartable function of already-fetched positions/balances/price history
// (spec §4.7).
package evaluator

import (
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// defaultDriftBandPct is the default deviation band (5 percentage points)
// that triggers a rebalance even before the rebalance-period floor is hit.
const defaultDriftBandPct = 0.05

// Registry looks models up by name for internal/aggregator.
type Registry struct {
	models map[string]domain.InvestmentModel
}

// NewRegistry builds a Registry pre-populated with every known model.
func NewRegistry(models ...domain.InvestmentModel) *Registry {
	r := &Registry{models: map[string]domain.InvestmentModel{}}
	for _, m := range models {
		r.models[m.Name()] = m
	}
	return r
}

// Lookup returns the named model, or nil if unknown.
func (r *Registry) Lookup(name string) domain.InvestmentModel {
	return r.models[name]
}

// Evaluate runs the named model against in, returning a status error
// decision when the model is unknown rather than panicking, matching
// spec §4.7's {action, targetAllocation, status} contract.
func (r *Registry) Evaluate(name string, in domain.ModelInput) domain.ModelEvaluation {
	m := r.Lookup(name)
	if m == nil {
		return domain.ModelEvaluation{
			AccountRef: in.AccountRef, Model: name,
			Decision: domain.ModelDecision{Action: domain.ModelActionError},
			Status:   "unknown investment model: " + name,
		}
	}
	return m.Evaluate(in)
}

// currentWeights computes each symbol's share of total market value
// (converted to CAD by the caller before this is invoked), used to compare
// against a model's target allocation for the drift-band check.
func currentWeights(positions []domain.Position) map[string]float64 {
	total := 0.0
	for _, p := range positions {
		total += p.MarketValueCad
	}
	weights := map[string]float64{}
	if total == 0 {
		return weights
	}
	for _, p := range positions {
		weights[p.Symbol] += p.MarketValueCad / total
	}
	return weights
}

// needsRebalance reports whether any weight deviates from its target by
// more than driftBandPct, or the rebalance period has elapsed.
func needsRebalance(weights, target map[string]float64, driftBandPct float64, lastRebalance *time.Time, rebalancePeriodDays int, now time.Time) bool {
	for symbol, t := range target {
		if diff := weights[symbol] - t; diff > driftBandPct || diff < -driftBandPct {
			return true
		}
	}
	if lastRebalance == nil {
		return true
	}
	return now.Sub(*lastRebalance) >= time.Duration(rebalancePeriodDays)*24*time.Hour
}

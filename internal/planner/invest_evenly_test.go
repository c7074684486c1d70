package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPlanInvestEvenly_TargetWeightedWholeShares reproduces the spec's
// literal scenario: three positions A/B/C targeted 50/30/20, $10,000 CAD
// cash, prices 100/50/25. Expected whole-share purchases A=50, B=60, C=80
// with no residual.
func TestPlanInvestEvenly_TargetWeightedWholeShares(t *testing.T) {
	in := InvestEvenlyInput{
		Quotes: []Quote{
			{Symbol: "A", Currency: "CAD", Price: 100},
			{Symbol: "B", Currency: "CAD", Price: 50},
			{Symbol: "C", Currency: "CAD", Price: 25},
		},
		TargetProportions:   map[string]float64{"A": 50, "B": 30, "C": 20},
		UseTargetProportions: true,
		AvailableCad:        10000,
	}

	plan, err := PlanInvestEvenly(in)
	require.NoError(t, err)
	require.Len(t, plan.Purchases, 3)

	bySymbol := map[string]float64{}
	for _, p := range plan.Purchases {
		bySymbol[p.Symbol] = p.Shares
	}
	assert.Equal(t, 50.0, bySymbol["A"])
	assert.Equal(t, 60.0, bySymbol["B"])
	assert.Equal(t, 80.0, bySymbol["C"])
	assert.InDelta(t, 10000, plan.Totals.CadNeeded, 0.01)
	assert.InDelta(t, 0, plan.Totals.CadRemaining, 0.01)
}

func TestPlanInvestEvenly_ConvertsUsdShortfall(t *testing.T) {
	in := InvestEvenlyInput{
		Quotes: []Quote{
			{Symbol: "VTI", Currency: "USD", Price: 250},
		},
		UseTargetProportions: true,
		TargetProportions:    map[string]float64{"VTI": 100},
		AvailableCad:         500,
		DlrToPrice:           13.70,
		DlrUtoPrice:          10.00,
	}

	plan, err := PlanInvestEvenly(in)
	require.NoError(t, err)
	require.Len(t, plan.Conversions, 1)
	assert.Equal(t, "DLR.TO", plan.Conversions[0].Symbol)
}

func TestPlanInvestEvenly_ErrorsWithNoBasisAndNoQuotes(t *testing.T) {
	_, err := PlanInvestEvenly(InvestEvenlyInput{})
	require.Error(t, err)
}

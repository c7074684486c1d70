package evaluator

import (
	"testing"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatCloses(symbol string, price float64, n int, start time.Time) []domain.PricePoint {
	out := make([]domain.PricePoint, n)
	for i := 0; i < n; i++ {
		out[i] = domain.PricePoint{Symbol: symbol, Date: start.AddDate(0, 0, i), Close: price}
	}
	return out
}

func TestQQQTemperatureModel_TargetAllocationSumsToOne(t *testing.T) {
	model := NewQQQTemperatureModel()
	model.MovingAveragePeriod = 5
	closes := flatCloses("QQQ", 100, 10, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	closes[len(closes)-1].Close = 110 // hot: above the moving average

	cfg := domain.InvestmentModelConfig{Model: "qqq-temperature", Symbol: "QQQ", LeveragedSymbol: "QLD", ReserveSymbol: "CASH"}
	eval := model.Evaluate(domain.ModelInput{
		Config: cfg, PriceHistory: map[string][]domain.PricePoint{"QQQ": closes},
		Now: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	})

	require.NotEqual(t, domain.ModelActionError, eval.Decision.Action)
	sum := 0.0
	for _, w := range eval.Decision.TargetAllocation {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestQQQTemperatureModel_HoldWhenWithinBandAndPeriod(t *testing.T) {
	model := NewQQQTemperatureModel()
	model.MovingAveragePeriod = 5
	closes := flatCloses("QQQ", 100, 10, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	cfg := domain.InvestmentModelConfig{Model: "qqq-temperature", Symbol: "QQQ"}
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	lastRebalance := now.AddDate(0, 0, -1)
	cfg.LastRebalance = &lastRebalance

	eval := model.Evaluate(domain.ModelInput{
		Config:       cfg,
		Positions:    []domain.Position{{Symbol: "QQQ", MarketValueCad: 1000}},
		PriceHistory: map[string][]domain.PricePoint{"QQQ": closes},
		Now:          now,
	})
	assert.Equal(t, domain.ModelActionHold, eval.Decision.Action)
}

func TestQQQTemperatureModel_ErrorsWithoutPriceHistory(t *testing.T) {
	model := NewQQQTemperatureModel()
	eval := model.Evaluate(domain.ModelInput{
		Config: domain.InvestmentModelConfig{Symbol: "QQQ"},
	})
	assert.Equal(t, domain.ModelActionError, eval.Decision.Action)
}

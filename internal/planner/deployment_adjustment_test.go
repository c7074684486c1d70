package planner

import (
	"testing"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDeploymentAdjustment_ScalesDeployedDownIntoReserve(t *testing.T) {
	in := DeploymentAdjustmentInput{
		Deployed: []domain.Position{
			{Symbol: "VTI", MarketValueCad: 9000},
		},
		Reserve: []domain.Position{
			{Symbol: "CASH", MarketValueCad: 1000},
		},
		Quotes: map[string]Quote{
			"VTI":  {Symbol: "VTI", Currency: "USD", Price: 250},
			"CASH": {Symbol: "CASH", Currency: "CAD", Price: 1},
		},
		TargetDeployedPct: 80,
	}

	plan, err := PlanDeploymentAdjustment(in)
	require.NoError(t, err)
	require.Len(t, plan.Transactions, 2)

	var vtiTx, cashTx domain.Transaction
	for _, tx := range plan.Transactions {
		switch tx.Symbol {
		case "VTI":
			vtiTx = tx
		case "CASH":
			cashTx = tx
		}
	}
	assert.Equal(t, domain.TradeSideSell, vtiTx.Side)
	assert.InDelta(t, 1000, vtiTx.Amount, 0.01) // 9000 -> 8000 target
	assert.Equal(t, domain.TradeSideBuy, cashTx.Side)
	assert.InDelta(t, 1000, cashTx.Amount, 0.01) // 1000 -> 2000 target
}

func TestPlanDeploymentAdjustment_SeedsFallbackReserveWhenEmpty(t *testing.T) {
	in := DeploymentAdjustmentInput{
		Deployed: []domain.Position{
			{Symbol: "VTI", MarketValueCad: 10000},
		},
		Quotes: map[string]Quote{
			"VTI":     {Symbol: "VTI", Currency: "USD", Price: 250},
			"CASH.TO": {Symbol: "CASH.TO", Currency: "CAD", Price: 50},
		},
		TargetDeployedPct:     90,
		ReserveFallbackSymbol: "CASH.TO",
	}

	plan, err := PlanDeploymentAdjustment(in)
	require.NoError(t, err)
	require.Len(t, plan.Transactions, 2)

	var reserveTx domain.Transaction
	for _, tx := range plan.Transactions {
		if tx.Scope == domain.TradeScopeReserve {
			reserveTx = tx
		}
	}
	assert.Equal(t, "CASH.TO", reserveTx.Symbol)
	assert.Equal(t, domain.TradeSideBuy, reserveTx.Side)
	assert.InDelta(t, 1000, reserveTx.Amount, 0.01)
}

func TestPlanDeploymentAdjustment_ErrorsWithNoBase(t *testing.T) {
	_, err := PlanDeploymentAdjustment(DeploymentAdjustmentInput{TargetDeployedPct: 80})
	require.Error(t, err)
}

package aggregator

import (
	"testing"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergedPositions_SumsQuantityAndMarketValueBySymbol(t *testing.T) {
	summaries := []AccountSummary{
		{Positions: []domain.Position{{Symbol: "VEQT", Quantity: 10, Currency: "CAD", MarketValueCad: 1000}}},
		{Positions: []domain.Position{{Symbol: "VEQT", Quantity: 5, Currency: "CAD", MarketValueCad: 500}}},
		{Positions: []domain.Position{{Symbol: "VOO", Quantity: 2, Currency: "USD", MarketValueCad: 800}}},
	}

	merged := MergedPositions(summaries)
	require.Len(t, merged, 2)

	bySymbol := map[string]domain.Position{}
	for _, p := range merged {
		bySymbol[p.Symbol] = p
	}
	assert.Equal(t, 15.0, bySymbol["VEQT"].Quantity)
	assert.Equal(t, 1500.0, bySymbol["VEQT"].MarketValueCad)
	assert.Equal(t, "CAD", bySymbol["VEQT"].Currency)
	assert.Equal(t, 800.0, bySymbol["VOO"].MarketValueCad)
}

func TestMergedPositions_MixedCurrencySymbolReportsNoCurrency(t *testing.T) {
	summaries := []AccountSummary{
		{Positions: []domain.Position{{Symbol: "VOO", Currency: "USD", MarketValueCad: 100}}},
		{Positions: []domain.Position{{Symbol: "VOO", Currency: "CAD", MarketValueCad: 50}}},
	}
	merged := MergedPositions(summaries)
	require.Len(t, merged, 1)
	assert.Equal(t, "", merged[0].Currency)
}

func TestMergedPositions_SkipsDegradedAccounts(t *testing.T) {
	summaries := []AccountSummary{
		{Positions: []domain.Position{{Symbol: "VEQT", MarketValueCad: 1000}}},
		{Error: "broker unavailable", Positions: []domain.Position{{Symbol: "VEQT", MarketValueCad: 99999}}},
	}
	merged := MergedPositions(summaries)
	require.Len(t, merged, 1)
	assert.Equal(t, 1000.0, merged[0].MarketValueCad)
}

func TestMergedBalances_AggregatesByCurrency(t *testing.T) {
	summaries := []AccountSummary{
		{Balances: []domain.Balance{{Currency: "CAD", Cash: 100, TotalEquity: 1000}}},
		{Balances: []domain.Balance{{Currency: "CAD", Cash: 50, TotalEquity: 500}}},
		{Balances: []domain.Balance{{Currency: "USD", Cash: 20, TotalEquity: 200}}},
	}
	merged := MergedBalances(summaries)
	require.Len(t, merged, 2)

	byCurrency := map[string]domain.Balance{}
	for _, b := range merged {
		byCurrency[b.Currency] = b
	}
	assert.Equal(t, 150.0, byCurrency["CAD"].Cash)
	assert.Equal(t, 1500.0, byCurrency["CAD"].TotalEquity)
	assert.Equal(t, 20.0, byCurrency["USD"].Cash)
}

func TestMergedFunding_SumsCadTotalsAcrossAccounts(t *testing.T) {
	summaries := []AccountSummary{
		{Funding: domain.FundingSummary{NetDepositsAllTimeCad: 1000, TotalPnlAllTimeCad: 100, TotalEquityCad: 1100}},
		{Funding: domain.FundingSummary{NetDepositsAllTimeCad: 2000, TotalPnlAllTimeCad: -50, TotalEquityCad: 1950, ConversionIncomplete: true}},
		{Error: "degraded", Funding: domain.FundingSummary{TotalEquityCad: 999999}},
	}
	merged := MergedFunding(summaries)
	assert.Equal(t, 3000.0, merged.NetDepositsAllTimeCad)
	assert.Equal(t, 50.0, merged.TotalPnlAllTimeCad)
	assert.Equal(t, 3050.0, merged.TotalEquityCad)
	assert.True(t, merged.ConversionIncomplete)
}

func TestMergedOrders_ConcatenatesAcrossNonDegradedAccounts(t *testing.T) {
	summaries := []AccountSummary{
		{Orders: []domain.Order{{ID: "1"}, {ID: "2"}}},
		{Error: "degraded", Orders: []domain.Order{{ID: "should-not-appear"}}},
		{Orders: []domain.Order{{ID: "3"}}},
	}
	merged := MergedOrders(summaries)
	require.Len(t, merged, 3)
	assert.Equal(t, "1", merged[0].ID)
	assert.Equal(t, "3", merged[2].ID)
}

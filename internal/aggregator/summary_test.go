package aggregator

import (
	"testing"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestConvertPositionsToCad(t *testing.T) {
	positions := []domain.Position{
		{Symbol: "VEQT", Currency: "CAD", MarketValue: 1000},
		{Symbol: "VOO", Currency: "USD", MarketValue: 100},
		{Symbol: "CASH", Currency: "", MarketValue: 50},
	}
	out := convertPositionsToCad(positions, 1.35)

	assert.Equal(t, 1000.0, out[0].MarketValueCad)
	assert.Equal(t, 135.0, out[1].MarketValueCad)
	assert.Equal(t, 50.0, out[2].MarketValueCad)
}

func TestDividendActivities_FiltersOtherActivityTypes(t *testing.T) {
	activities := []domain.Activity{
		{Type: domain.ActivityTrades, Symbol: "VEQT"},
		{Type: domain.ActivityDividends, Symbol: "VOO", NetAmount: 12.5},
		{Type: domain.ActivityDeposits},
		{Type: domain.ActivityDividends, Symbol: "XEQT", NetAmount: 3.1},
	}
	dividends := dividendActivities(activities)
	assert.Len(t, dividends, 2)
	assert.Equal(t, "VOO", dividends[0].Symbol)
	assert.Equal(t, "XEQT", dividends[1].Symbol)
}

package aggregator

import "github.com/aristath/questrade-sentinel/internal/domain"

// MergedPositions merges every non-degraded account's positions by symbol,
// summing quantities and market values already CAD-converted by buildOne
// (spec §4.9: "merges positions by symbol summing quantities and
// converting market values to CAD"). A symbol held in more than one
// currency across accounts reports an empty Currency, since there is no
// single native currency left to report once quantities are summed.
func MergedPositions(summaries []AccountSummary) []domain.Position {
	type accumulator struct {
		quantity       float64
		marketValueCad float64
		openPnl        float64
		currencies     map[string]bool
	}

	bySymbol := make(map[string]*accumulator)
	var order []string
	for _, s := range summaries {
		if s.Error != "" {
			continue
		}
		for _, p := range s.Positions {
			acc, ok := bySymbol[p.Symbol]
			if !ok {
				acc = &accumulator{currencies: map[string]bool{}}
				bySymbol[p.Symbol] = acc
				order = append(order, p.Symbol)
			}
			acc.quantity += p.Quantity
			acc.marketValueCad += p.MarketValueCad
			acc.openPnl += p.OpenPnl
			acc.currencies[p.Currency] = true
		}
	}

	out := make([]domain.Position, 0, len(order))
	for _, symbol := range order {
		acc := bySymbol[symbol]
		currency := ""
		if len(acc.currencies) == 1 {
			for c := range acc.currencies {
				currency = c
			}
		}
		out = append(out, domain.Position{
			Symbol:         symbol,
			Quantity:       acc.quantity,
			Currency:       currency,
			MarketValueCad: acc.marketValueCad,
			OpenPnl:        acc.openPnl,
		})
	}
	return out
}

// MergedBalances aggregates every non-degraded account's balances by
// currency (spec §4.9: "aggregates per-currency balances").
func MergedBalances(summaries []AccountSummary) []domain.Balance {
	byCurrency := make(map[string]*domain.Balance)
	var order []string
	for _, s := range summaries {
		if s.Error != "" {
			continue
		}
		for _, b := range s.Balances {
			acc, ok := byCurrency[b.Currency]
			if !ok {
				acc = &domain.Balance{Currency: b.Currency}
				byCurrency[b.Currency] = acc
				order = append(order, b.Currency)
			}
			acc.Cash += b.Cash
			acc.MarketValue += b.MarketValue
			acc.TotalEquity += b.TotalEquity
		}
	}
	out := make([]domain.Balance, 0, len(order))
	for _, currency := range order {
		out = append(out, *byCurrency[currency])
	}
	return out
}

// MergedFunding sums every non-degraded account's funding summary into one
// aggregate snapshot (spec §4.9: "sums funding summaries"). Annualized
// rates and the return breakdown aren't meaningfully summable across
// accounts with different funding histories, so the merged summary carries
// only the additive CAD totals; per-account rates remain available via
// accountFunding.
func MergedFunding(summaries []AccountSummary) domain.FundingSummary {
	var out domain.FundingSummary
	for _, s := range summaries {
		if s.Error != "" {
			continue
		}
		out.NetDepositsAllTimeCad += s.Funding.NetDepositsAllTimeCad
		out.NetDepositsCombinedCad += s.Funding.NetDepositsCombinedCad
		out.TotalPnlAllTimeCad += s.Funding.TotalPnlAllTimeCad
		out.TotalPnlCombinedCad += s.Funding.TotalPnlCombinedCad
		out.TotalEquityCad += s.Funding.TotalEquityCad
		out.ConversionIncomplete = out.ConversionIncomplete || s.Funding.ConversionIncomplete
	}
	return out
}

// MergedOrders concatenates every non-degraded account's orders (spec
// §4.9's top-level `orders` field).
func MergedOrders(summaries []AccountSummary) []domain.Order {
	var out []domain.Order
	for _, s := range summaries {
		if s.Error != "" {
			continue
		}
		out = append(out, s.Orders...)
	}
	return out
}

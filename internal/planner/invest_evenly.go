package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// Quote is the price/currency the planner needs for one purchasable symbol.
type Quote struct {
	Symbol   string
	Currency string // "CAD" or "USD"
	Price    float64
}

// InvestEvenlyInput bundles everything the invest-evenly algorithm needs
// (spec §4.8).
type InvestEvenlyInput struct {
	Quotes               []Quote
	CurrentPositions      []domain.Position // used for current-value weighting when TargetProportions is absent
	TargetProportions    map[string]float64 // symbol -> percent (0-100); optional
	UseTargetProportions bool
	AvailableCad         float64
	AvailableUsd         float64
	SkipCad              bool
	SkipUsd              bool
	DlrToPrice           float64
	DlrUtoPrice          float64
}

// PlanInvestEvenly implements the C8 invest-evenly algorithm (spec §4.8
// steps 1-5): partition the investable base by currency, weight each
// symbol, convert to native-currency share counts, size any DLR
// conversion needed to cover a currency shortfall, and round.
func PlanInvestEvenly(in InvestEvenlyInput) (*domain.InvestEvenlyPlan, error) {
	if len(in.Quotes) == 0 {
		return nil, &domain.PlannerError{Message: "invest-evenly: no purchasable symbols supplied"}
	}

	cadCash := in.AvailableCad
	usdCash := in.AvailableUsd
	if in.SkipCad {
		cadCash = 0
	}
	if in.SkipUsd {
		usdCash = 0
	}
	totalBaseCad := cadCash + usdCash // native USD amount treated 1:1 in CAD terms absent a supplied FX rate

	weights, err := investEvenlyWeights(in)
	if err != nil {
		return nil, err
	}

	legs := make([]investEvenlyLeg, 0, len(in.Quotes))
	usdNeeded, cadNeeded := 0.0, 0.0
	for _, q := range in.Quotes {
		w := weights[q.Symbol]
		if w <= 0 || q.Price <= 0 {
			continue
		}
		targetCad := w * totalBaseCad
		targetNative := targetCad
		var shares float64
		if q.Currency == "USD" {
			shares = math.Floor(targetNative/q.Price*10000) / 10000
			usdNeeded += shares * q.Price
		} else {
			shares = math.Floor(targetNative / q.Price)
			cadNeeded += shares * q.Price
		}
		legs = append(legs, investEvenlyLeg{quote: q, targetCad: targetCad, targetNative: targetNative, shares: shares})
	}

	var conversions []domain.Conversion
	if usdNeeded > usdCash+conversionEpsilon {
		if c := PlanCadToUsdConversion(usdNeeded, usdCash, in.DlrToPrice, in.DlrUtoPrice); c != nil {
			conversions = append(conversions, *c)
			usdCash += c.ReceiveAmount
			cadCash -= c.SpendAmount
		}
	}
	if cadNeeded > cadCash+conversionEpsilon {
		if c := PlanUsdToCadConversion(cadNeeded, cadCash, in.DlrToPrice, in.DlrUtoPrice); c != nil {
			conversions = append(conversions, *c)
			cadCash += c.ReceiveAmount
			usdCash -= c.SpendAmount
		}
	}

	// If cash still falls short after any conversion, scale every purchase
	// in the constrained currency down proportionally (step 5).
	scaleIfShort(legs, "CAD", cadNeeded, cadCash)
	scaleIfShort(legs, "USD", usdNeeded, usdCash)

	purchases := make([]domain.Purchase, 0, len(legs))
	var cadSpent, usdSpent float64
	for _, l := range legs {
		if l.shares <= 0 {
			continue
		}
		amount := l.shares * l.quote.Price
		if l.quote.Currency == "USD" {
			usdSpent += amount
		} else {
			cadSpent += amount
		}
		purchases = append(purchases, domain.Purchase{
			Symbol: l.quote.Symbol, Currency: l.quote.Currency, Amount: amount,
			Shares: l.shares, Price: l.quote.Price, TargetPercent: weights[l.quote.Symbol] * 100,
		})
	}
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].Symbol < purchases[j].Symbol })

	plan := &domain.InvestEvenlyPlan{
		Purchases:   purchases,
		Conversions: conversions,
		Totals: domain.PlanTotals{
			CadNeeded: cadSpent, UsdNeeded: usdSpent,
			CadRemaining: cadCash - cadSpent, UsdRemaining: usdCash - usdSpent,
		},
	}
	plan.SummaryText = fmt.Sprintf("%d purchases planned, %d conversions, $%.2f CAD / $%.2f USD deployed",
		len(purchases), len(conversions), cadSpent, usdSpent)
	return plan, nil
}

// investEvenlyLeg is one symbol's planned purchase as it moves through the
// invest-evenly pipeline: target amount, native-currency share count, and
// the quote it was priced against.
type investEvenlyLeg struct {
	quote        Quote
	targetCad    float64
	targetNative float64
	shares       float64
}

// scaleIfShort proportionally shrinks every leg's share count in the given
// currency so its total spend fits within available, when even the
// post-conversion cash doesn't cover the planned spend (step 5).
func scaleIfShort(legs []investEvenlyLeg, currency string, needed, available float64) {
	if needed <= available+conversionEpsilon || needed <= 0 {
		return
	}
	factor := available / needed
	for i := range legs {
		if legs[i].quote.Currency != currency {
			continue
		}
		scaled := legs[i].shares * factor
		if currency == "USD" {
			legs[i].shares = math.Floor(scaled*10000) / 10000
		} else {
			legs[i].shares = math.Floor(scaled)
		}
	}
}

// investEvenlyWeights computes each quoted symbol's allocation weight
// (summing to ~1): from target proportions when supplied and requested,
// else from each symbol's current normalized CAD market value (spec §4.8
// step 2).
func investEvenlyWeights(in InvestEvenlyInput) (map[string]float64, error) {
	weights := map[string]float64{}
	if in.UseTargetProportions && len(in.TargetProportions) > 0 {
		sum := 0.0
		for _, p := range in.TargetProportions {
			sum += p
		}
		if sum <= 0 {
			return nil, &domain.PlannerError{Message: "invest-evenly: target proportions sum to zero"}
		}
		for sym, p := range in.TargetProportions {
			weights[sym] = p / sum
		}
		return weights, nil
	}

	total := 0.0
	bySymbol := map[string]float64{}
	for _, p := range in.CurrentPositions {
		bySymbol[p.Symbol] += p.MarketValueCad
		total += p.MarketValueCad
	}
	if total <= 0 {
		// No current holdings and no target proportions: split evenly
		// across the quoted universe.
		if len(in.Quotes) == 0 {
			return nil, &domain.PlannerError{Message: "invest-evenly: no basis to weight purchases"}
		}
		even := 1.0 / float64(len(in.Quotes))
		for _, q := range in.Quotes {
			weights[q.Symbol] = even
		}
		return weights, nil
	}
	for sym, v := range bySymbol {
		weights[sym] = v / total
	}
	return weights, nil
}

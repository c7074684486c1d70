package planner

import (
	"fmt"
	"math"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// tradeEpsilon drops any trade/conversion below half a cent (spec §4.8 step 5).
const tradeEpsilon = 0.005

// DeploymentAdjustmentInput bundles the C8 deployment-adjustment inputs
// (spec §4.8).
type DeploymentAdjustmentInput struct {
	Deployed        []domain.Position // currently deployed holdings, MarketValueCad populated
	Reserve         []domain.Position // cash-equivalent / reserve-symbol holdings
	Quotes          map[string]Quote  // symbol -> {currency, price}, for every deployed/reserve symbol
	TargetDeployedPct float64         // T in [0,100]
	ReserveFallbackSymbol string      // used when reserve needs to grow but holds nothing yet
	DlrToPrice      float64
	DlrUtoPrice     float64
}

// PlanDeploymentAdjustment implements the C8 deployment-adjustment
// algorithm (spec §4.8 steps 1-5): scale deployed and reserve sleeves to
// the target split, net each currency's shortfall via a DLR conversion,
// and drop anything under the trade epsilon.
func PlanDeploymentAdjustment(in DeploymentAdjustmentInput) (*domain.DeploymentAdjustmentPlan, error) {
	currentDeployed := sumMarketValue(in.Deployed)
	currentReserve := sumMarketValue(in.Reserve)
	totalBase := currentDeployed + currentReserve
	if totalBase <= 0 {
		return nil, &domain.PlannerError{Message: "deployment-adjustment: no base to rebalance"}
	}

	targetDeployedCad := in.TargetDeployedPct / 100 * totalBase
	targetReserveCad := totalBase - targetDeployedCad

	var transactions []domain.Transaction
	cadNeeded, usdNeeded := 0.0, 0.0
	cadFreed, usdFreed := 0.0, 0.0

	scaleSleeve := func(positions []domain.Position, current, target float64, scope domain.TradeScope) {
		if current <= 0 {
			return
		}
		factor := target / current
		for _, p := range positions {
			q, ok := in.Quotes[p.Symbol]
			if !ok || q.Price <= 0 {
				continue
			}
			delta := p.MarketValueCad*factor - p.MarketValueCad
			if math.Abs(delta) < tradeEpsilon {
				continue
			}
			side := domain.TradeSideBuy
			if delta < 0 {
				side = domain.TradeSideSell
			}
			amountNative := math.Abs(delta)
			shares := amountNative / q.Price
			tx := domain.Transaction{Side: side, Scope: scope, Symbol: p.Symbol, Currency: q.Currency, Amount: amountNative, Shares: shares, Price: q.Price}
			transactions = append(transactions, tx)
			if q.Currency == "USD" {
				if side == domain.TradeSideBuy {
					usdNeeded += amountNative
				} else {
					usdFreed += amountNative
				}
			} else {
				if side == domain.TradeSideBuy {
					cadNeeded += amountNative
				} else {
					cadFreed += amountNative
				}
			}
		}
	}

	scaleSleeve(in.Deployed, currentDeployed, targetDeployedCad, domain.TradeScopeDeployed)

	if len(in.Reserve) == 0 && targetReserveCad > tradeEpsilon && in.ReserveFallbackSymbol != "" {
		q, ok := in.Quotes[in.ReserveFallbackSymbol]
		if ok && q.Price > 0 {
			shares := targetReserveCad / q.Price
			transactions = append(transactions, domain.Transaction{
				Side: domain.TradeSideBuy, Scope: domain.TradeScopeReserve, Symbol: in.ReserveFallbackSymbol,
				Currency: q.Currency, Amount: targetReserveCad, Shares: shares, Price: q.Price,
			})
			if q.Currency == "USD" {
				usdNeeded += targetReserveCad
			} else {
				cadNeeded += targetReserveCad
			}
		}
	} else {
		scaleSleeve(in.Reserve, currentReserve, targetReserveCad, domain.TradeScopeReserve)
	}

	var conversions []domain.Conversion
	if usdNeeded > usdFreed+conversionEpsilon {
		if c := PlanCadToUsdConversion(usdNeeded, usdFreed, in.DlrToPrice, in.DlrUtoPrice); c != nil {
			conversions = append(conversions, *c)
			cadFreed -= c.SpendAmount
		}
	}
	if cadNeeded > cadFreed+conversionEpsilon {
		if c := PlanUsdToCadConversion(cadNeeded, cadFreed, in.DlrToPrice, in.DlrUtoPrice); c != nil {
			conversions = append(conversions, *c)
			usdFreed -= c.SpendAmount
		}
	}

	filtered := make([]domain.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Amount >= tradeEpsilon {
			filtered = append(filtered, tx)
		}
	}

	plan := &domain.DeploymentAdjustmentPlan{
		Transactions: filtered,
		Conversions:  conversions,
		Totals: domain.PlanTotals{
			CadNeeded: cadNeeded, UsdNeeded: usdNeeded,
			CadRemaining: cadFreed - cadNeeded, UsdRemaining: usdFreed - usdNeeded,
		},
	}
	plan.SummaryText = fmt.Sprintf("%d trades planned, %d conversions, target deployed %.1f%%",
		len(filtered), len(conversions), in.TargetDeployedPct)
	return plan, nil
}

func sumMarketValue(positions []domain.Position) float64 {
	total := 0.0
	for _, p := range positions {
		total += p.MarketValueCad
	}
	return total
}

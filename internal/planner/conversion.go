// Package planner implements C8: the invest-evenly and deployment-adjustment
// trade planners, including the shared Norbert's-gambit CAD<->USD
// conversion sizing used by both (spec §4.8).
package planner

import (
	"math"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

const conversionEpsilon = 1e-9

// PlanCadToUsdConversion sizes a CAD->USD conversion via DLR.TO/DLR.U.TO:
// buy whole CAD shares of DLR.TO so the CAD spend never exceeds the USD
// shortfall, then receive the matching DLR.U.TO share count in USD (spec
// §4.8 step 4, scenario #3). Returns nil if there's no shortfall or either
// price is unknown.
func PlanCadToUsdConversion(usdNeeded, usdAvailable, dlrToPrice, dlrUtoPrice float64) *domain.Conversion {
	shortfall := usdNeeded - usdAvailable
	if shortfall <= conversionEpsilon || dlrToPrice <= 0 || dlrUtoPrice <= 0 {
		return nil
	}
	shares := int(math.Floor(shortfall/dlrToPrice + conversionEpsilon))
	if shares <= 0 {
		return nil
	}
	return &domain.Conversion{
		Type: domain.ConversionCadToUsd, Symbol: "DLR.TO", Shares: shares,
		SpendAmount: float64(shares) * dlrToPrice, ReceiveAmount: float64(shares) * dlrUtoPrice,
	}
}

// PlanUsdToCadConversion is the symmetric USD->CAD leg via DLR.U.TO,
// selling whole USD shares of DLR.U.TO to receive the matching CAD amount.
func PlanUsdToCadConversion(cadNeeded, cadAvailable, dlrToPrice, dlrUtoPrice float64) *domain.Conversion {
	shortfall := cadNeeded - cadAvailable
	if shortfall <= conversionEpsilon || dlrToPrice <= 0 || dlrUtoPrice <= 0 {
		return nil
	}
	shares := int(math.Floor(shortfall/dlrUtoPrice + conversionEpsilon))
	if shares <= 0 {
		return nil
	}
	return &domain.Conversion{
		Type: domain.ConversionUsdToCad, Symbol: "DLR.U.TO", Shares: shares,
		SpendAmount: float64(shares) * dlrUtoPrice, ReceiveAmount: float64(shares) * dlrToPrice,
	}
}

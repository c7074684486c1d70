package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/questrade-sentinel/internal/activity"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/evaluator"
	"github.com/aristath/questrade-sentinel/internal/funding"
	"github.com/rs/zerolog"
)

// usdCadSymbol is the synthetic pair the price cache answers for FX rates.
const usdCadSymbol = "USDCAD=X"

// fxHistoryWindow bounds how far back FX rates are fetched; anything
// earlier falls back to the 1:1 rate (flagged incomplete by internal/funding).
const fxHistoryWindow = 10 * 365 * 24 * time.Hour

// ordersWindow bounds the orders fetch to the broker's own window cap
// (internal/broker/questrade's 31-day limit): this surfaces recent/pending
// orders the way the teacher's GetPendingOrders does, not the account's
// full multi-year order history.
const ordersWindow = 31 * 24 * time.Hour

// modelPriceHistoryWindow mirrors internal/scheduler's own constant
// modelPriceHistory: it only needs to exceed the longest RebalancePeriod configured
// anywhere, for any account's investment models.
const modelPriceHistoryWindow = 400 * 24 * time.Hour

// modelDriftBandPct is the default deviation band passed to every model
// evaluation the summary composes, matching internal/scheduler's default.
const modelDriftBandPct = 0.05

// netDepositsCrossCheckToleranceCad is the slack allowed between the
// broker's own net-deposits figure and internal/funding's independently
// computed one before the divergence is logged (spec §4.6: the broker
// figure is a cross-check only, never the basis for the funding summary).
const netDepositsCrossCheckToleranceCad = 1.0

// FxRateQuoter answers "what's the current rate for one unit of
// fromCurrency in toCurrency". Satisfied by internal/clients/exchangerate.Client;
// optional, since the USD/CAD history C5 already tracks covers the
// historical side of the funding engine's needs.
type FxRateQuoter interface {
	GetRate(fromCurrency, toCurrency string) (float64, error)
}

// Aggregator is the C9 boundary: it resolves an account selector, fans the
// broker/cache/engine calls for each resolved account out in parallel, and
// joins the results. A single account's failure is reported on that
// account's entry rather than failing the whole response (spec §6).
type Aggregator struct {
	Broker   domain.BrokerClient
	Tokens   domain.TokenStore
	Config   domain.ConfigStore
	Prices   domain.PriceSource
	Crawler  *activity.Crawler
	Clock    domain.Clock
	Log      zerolog.Logger
	// FxRates is optional. When set, it backstops today's USD/CAD rate
	// whenever the C5 cache's history doesn't yet cover the current day
	// (e.g. the broker hasn't published today's candle), so the most
	// recent day's conversions use a live rate instead of falling back
	// to 1:1.
	FxRates FxRateQuoter
	// Models is optional. When set, buildOne evaluates each account's
	// configured investment models (spec §4.7) as part of summary
	// composition, not just on the scheduler's periodic pass.
	Models *evaluator.Registry
}

// AccountSummary is one account's joined view: its funding summary plus the
// raw positions/balances it was computed from, or an error if any fetch in
// its pipeline failed.
type AccountSummary struct {
	AccountRef       domain.AccountRef
	Account          domain.Account
	Balances         []domain.Balance
	Positions        []domain.Position
	Orders           []domain.Order
	Dividends        []domain.Activity
	ModelEvaluations []domain.ModelEvaluation
	Funding          domain.FundingSummary
	AllTimeSeries    domain.TotalPnlSeries
	SinceStartSeries domain.TotalPnlSeries
	// UsdToCadRate is the rate used to CAD-convert this account's non-CAD
	// positions (balance equity is summed as reported), the same value spec
	// §4.9's top-level usdToCadRate field echoes.
	UsdToCadRate float64
	Error        string
}

// Summaries resolves selector to its accounts and builds an AccountSummary
// for each, concurrently.
func (a *Aggregator) Summaries(ctx context.Context, selector string) ([]AccountSummary, error) {
	accounts, err := ResolveAccounts(a.Config, selector)
	if err != nil {
		return nil, err
	}

	out := make([]AccountSummary, len(accounts))
	var wg sync.WaitGroup
	for i, acct := range accounts {
		wg.Add(1)
		go func(i int, acct domain.Account) {
			defer wg.Done()
			out[i] = a.buildOne(ctx, acct)
		}(i, acct)
	}
	wg.Wait()
	return out, nil
}

func (a *Aggregator) buildOne(ctx context.Context, acct domain.Account) AccountSummary {
	ref := domain.AccountRef{LoginID: acct.LoginID, AccountNumber: acct.Number}
	result := AccountSummary{AccountRef: ref, Account: acct}

	login, err := a.Tokens.GetLogin(acct.LoginID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	balances, err := a.Broker.FetchBalances(ctx, *login, acct.Number)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Balances = balances

	positions, err := a.Broker.FetchPositions(ctx, *login, acct.Number)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	now := a.clockNow()
	from := now.AddDate(-10, 0, 0)
	if acct.CAGRStartDate != nil && acct.CAGRStartDate.Before(from) {
		from = *acct.CAGRStartDate
	}
	activities, err := a.Crawler.Crawl(ctx, *login, acct.Number, from, now)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	earliest, found := activity.EarliestFundingDate(activities)
	if !found {
		earliest = now
	}

	rates := a.fetchFxRates(ctx, from, now)
	usdToCadRate, _, rateFound := rates.RateOnOrBefore(now)
	if !rateFound {
		usdToCadRate = 1.0
	}
	positions = convertPositionsToCad(positions, usdToCadRate)
	result.Positions = positions
	result.UsdToCadRate = usdToCadRate

	currentEquityCad := sumEquityCad(balances)
	summary, allTime, sinceStart := funding.BuildFundingSummary(funding.Inputs{
		Account:             acct,
		Activities:          activities,
		Rates:               rates,
		CurrentEquityCad:    currentEquityCad,
		EarliestFundingDate: earliest,
		Now:                 now,
	})
	summary.AccountRef = ref
	summary.TotalEquityCad = currentEquityCad
	summary.CagrStartDate = acct.CAGRStartDate
	result.Funding = summary
	result.AllTimeSeries = allTime
	result.SinceStartSeries = sinceStart

	result.Dividends = dividendActivities(activities)
	result.Orders = a.fetchOrders(ctx, *login, acct, now)
	result.ModelEvaluations = a.evaluateModels(ctx, ref, acct, positions, balances, now)
	a.crossCheckNetDeposits(ctx, *login, acct, from, now, summary.NetDepositsAllTimeCad)

	return result
}

// fetchOrders is best-effort: a transient failure here degrades to an empty
// order list rather than failing the whole account, since orders/dividends
// are supplementary to the funding pipeline, not inputs to it.
func (a *Aggregator) fetchOrders(ctx context.Context, login domain.Login, acct domain.Account, now time.Time) []domain.Order {
	orders, err := a.Broker.FetchOrders(ctx, login, acct.Number, now.Add(-ordersWindow), now)
	if err != nil {
		a.Log.Warn().Err(err).Str("account", acct.Number).Msg("failed to fetch orders")
		return nil
	}
	return orders
}

// dividendActivities filters the already-crawled activity stream down to
// dividend events, rather than issuing a second broker call for data C4
// already fetched.
func dividendActivities(activities []domain.Activity) []domain.Activity {
	var out []domain.Activity
	for _, act := range activities {
		if act.Type == domain.ActivityDividends {
			out = append(out, act)
		}
	}
	return out
}

// evaluateModels runs every model configured on acct (spec §4.7), pulling
// just enough price history for each model's own symbols. A model whose
// history can't be fetched still evaluates against the history that could
// be fetched; InvestmentModel implementations are responsible for treating
// missing symbols as insufficient data.
func (a *Aggregator) evaluateModels(ctx context.Context, ref domain.AccountRef, acct domain.Account, positions []domain.Position, balances []domain.Balance, now time.Time) []domain.ModelEvaluation {
	if a.Models == nil || len(acct.InvestmentModels) == 0 {
		return nil
	}
	start := now.Add(-modelPriceHistoryWindow)

	evaluations := make([]domain.ModelEvaluation, 0, len(acct.InvestmentModels))
	for _, modelCfg := range acct.InvestmentModels {
		history := map[string][]domain.PricePoint{}
		for _, symbol := range []string{modelCfg.Symbol, modelCfg.LeveragedSymbol, modelCfg.ReserveSymbol} {
			if symbol == "" {
				continue
			}
			closes, err := a.Prices.DailyCloses(ctx, symbol, start, now)
			if err != nil {
				a.Log.Warn().Err(err).Str("symbol", symbol).Msg("failed to fetch price history for model evaluation")
				continue
			}
			history[symbol] = closes
		}
		in := domain.ModelInput{
			AccountRef:   ref,
			Config:       modelCfg,
			Positions:    positions,
			Balances:     balances,
			PriceHistory: history,
			Now:          now,
			DriftBandPct: modelDriftBandPct,
		}
		evaluations = append(evaluations, a.Models.Evaluate(modelCfg.Model, in))
	}
	return evaluations
}

// crossCheckNetDeposits pulls the broker's own net-deposits figure purely
// as a divergence check against internal/funding's independently computed
// value; it never feeds the funding summary itself (spec §4.6 requires
// settlement-date FX conversion the broker's own figure doesn't apply).
// Unavailable or erroring is not logged as a warning: the endpoint is
// known to be unreliable on some account types, so silence is the
// expected common case.
func (a *Aggregator) crossCheckNetDeposits(ctx context.Context, login domain.Login, acct domain.Account, from, now time.Time, computedCad float64) {
	reported, err := a.Broker.FetchNetDeposits(ctx, login, acct.Number, &from, &now)
	if err != nil {
		a.Log.Debug().Err(err).Str("account", acct.Number).Msg("broker net-deposits cross-check unavailable")
		return
	}
	if diff := reported - computedCad; diff > netDepositsCrossCheckToleranceCad || diff < -netDepositsCrossCheckToleranceCad {
		a.Log.Warn().
			Str("account", acct.Number).
			Float64("broker_reported_cad", reported).
			Float64("computed_cad", computedCad).
			Msg("broker net-deposits cross-check diverges from computed net deposits")
	}
}

// convertPositionsToCad fills in each position's MarketValueCad (spec
// §4.9's "converting market values to CAD"), treating CAD positions at
// face value and any other currency as convertible via usdToCadRate — the
// same CAD/USD-only assumption internal/funding's toCad makes.
func convertPositionsToCad(positions []domain.Position, usdToCadRate float64) []domain.Position {
	out := make([]domain.Position, len(positions))
	for i, p := range positions {
		out[i] = p
		if p.Currency == "" || p.Currency == "CAD" {
			out[i].MarketValueCad = p.MarketValue
		} else {
			out[i].MarketValueCad = p.MarketValue * usdToCadRate
		}
	}
	return out
}

func (a *Aggregator) clockNow() time.Time {
	if a.Clock == nil {
		return time.Now().UTC()
	}
	return a.Clock.Now()
}

// fetchFxRates pulls the USD/CAD daily-close series from the shared price
// source; a failure here degrades to an empty series (funding engine falls
// back to a 1:1 rate and flags the result incomplete) rather than failing
// the account.
func (a *Aggregator) fetchFxRates(ctx context.Context, from, to time.Time) funding.FxRates {
	if a.Prices == nil {
		return funding.FxRates{}
	}
	start := from
	if to.Sub(from) > fxHistoryWindow {
		start = to.Add(-fxHistoryWindow)
	}
	points, err := a.Prices.DailyCloses(ctx, usdCadSymbol, start, to)
	if err != nil {
		a.Log.Warn().Err(err).Msg("failed to fetch USD/CAD rates, funding amounts will fall back to 1:1")
		points = nil
	}
	points = a.backstopTodayRate(points, to)
	return funding.FxRates{Points: points}
}

// backstopTodayRate covers the gap C5 leaves on purpose: today's candle
// isn't admitted into the cache yet (cache.go's clampEnd), so without this
// the most recent day's conversions would fall back to the 1:1 rate until
// tomorrow. When a live quoter is configured and history doesn't already
// reach `to`, append one synthetic point for today.
func (a *Aggregator) backstopTodayRate(points []domain.PricePoint, to time.Time) []domain.PricePoint {
	if a.FxRates == nil {
		return points
	}
	today := to.Truncate(24 * time.Hour)
	if len(points) > 0 && !points[len(points)-1].Date.Before(today) {
		return points
	}
	rate, err := a.FxRates.GetRate("USD", "CAD")
	if err != nil {
		a.Log.Warn().Err(err).Msg("failed to fetch live USD/CAD rate, today's conversions may fall back to 1:1")
		return points
	}
	return append(points, domain.PricePoint{Symbol: usdCadSymbol, Date: today, Close: rate})
}

// sumEquityCad treats a CAD balance at face value and a non-CAD balance as
// 1:1 CAD absent a supplied rate; callers needing FX-accurate equity should
// convert balances before calling BuildFundingSummary directly.
func sumEquityCad(balances []domain.Balance) float64 {
	total := 0.0
	for _, b := range balances {
		total += b.TotalEquity
	}
	return total
}

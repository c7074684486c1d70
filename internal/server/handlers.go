package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/questrade-sentinel/internal/aggregator"
	"github.com/aristath/questrade-sentinel/internal/config"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/evaluator"
	"github.com/aristath/questrade-sentinel/internal/funding"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// defaultTemperatureSymbol/Period ground the qqq-temperature routes to the
// reference model's own defaults when no account-level config applies.
const (
	defaultTemperatureSymbol = "QQQ"
	defaultTemperaturePeriod = 200
)

// Handler holds every dependency the C9 routes need.
type Handler struct {
	agg    *aggregator.Aggregator
	config *config.FileConfigStore
	models *evaluator.Registry
	clock  domain.Clock
	log    zerolog.Logger
}

// RegisterRoutes mounts every route named in spec §6, matching the
// teacher's per-module RegisterRoutes(r chi.Router) convention.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/api/summary", h.handleSummary)
	r.Get("/api/qqq-temperature", h.handleQQQTemperature)
	r.Get("/api/investment-model-temperature", h.handleQQQTemperature)
	r.Get("/api/benchmark-returns", h.handleBenchmarkReturns)
	r.Get("/api/portfolio-news", h.handlePortfolioNews)

	r.Route("/api/accounts/{accountID}", func(r chi.Router) {
		r.Get("/total-pnl-series", h.handleTotalPnlSeries)
		r.Post("/mark-rebalanced", h.handleMarkRebalanced)
		r.Post("/target-proportions", h.handleTargetProportions)
		r.Post("/symbol-notes", h.handleSymbolNotes)
		r.Post("/planning-context", h.handlePlanningContext)
	})
}

// handleHealth reports liveness plus host CPU/memory usage, grounded on the
// teacher's getSystemStats(): a single short CPU sample plus VirtualMemory(),
// degrading to zero values on either call's failure rather than failing the
// whole health check.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent := 0.0
	if percentages, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("failed to sample cpu usage")
	} else if len(percentages) > 0 {
		cpuPercent = percentages[0]
	}

	memPercent := 0.0
	if vmem, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("failed to sample memory usage")
	} else {
		memPercent = vmem.UsedPercent
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"cpuPct":    cpuPercent,
		"memoryPct": memPercent,
	})
}

// handleSummary implements `GET /api/summary?accountId=…` (spec §4.9/§6):
// the composite per-account document, joined across whatever accounts the
// selector resolves to.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	selector := r.URL.Query().Get("accountId")
	summaries, err := h.agg.Summaries(r.Context(), selector)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	accounts, err := h.config.Accounts()
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	groups, err := h.config.AccountGroups()
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	// groupRelations maps each account to the group it belongs to
	// (domain.Account.GroupName), complementing accountGroups' definitions
	// of the groups themselves (id/name/parent).
	groupRelations := map[string]string{}
	for _, acct := range accounts {
		if acct.GroupName == "" {
			continue
		}
		ref := domain.AccountRef{LoginID: acct.LoginID, AccountNumber: acct.Number}
		groupRelations[ref.ID()] = acct.GroupName
	}

	filteredIDs := make([]string, 0, len(summaries))
	balances := map[string][]domain.Balance{}
	positions := map[string][]domain.Position{}
	funding := map[string]domain.FundingSummary{}
	accountDividends := map[string][]domain.Activity{}
	investmentModelEvaluations := map[string][]domain.ModelEvaluation{}
	accountTotalPnlSeries := map[string]domain.TotalPnlSeries{}
	degraded := map[string]string{}
	usdToCadRate := 1.0
	rateSet := false
	for _, s := range summaries {
		id := s.AccountRef.ID()
		filteredIDs = append(filteredIDs, id)
		if s.Error != "" {
			degraded[id] = s.Error
			continue
		}
		balances[id] = s.Balances
		positions[id] = s.Positions
		funding[id] = s.Funding
		accountDividends[id] = s.Dividends
		investmentModelEvaluations[id] = s.ModelEvaluations
		accountTotalPnlSeries[id] = s.SinceStartSeries
		if !rateSet {
			usdToCadRate = s.UsdToCadRate
			rateSet = true
		}
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"accounts":                   accounts,
		"accountGroups":              groups,
		"groupRelations":             groupRelations,
		"filteredAccountIds":         filteredIDs,
		"positions":                  aggregator.MergedPositions(summaries),
		"orders":                     aggregator.MergedOrders(summaries),
		"balances":                   aggregator.MergedBalances(summaries),
		"accountBalances":            balances,
		"accountFunding":             funding,
		"accountDividends":           accountDividends,
		"investmentModelEvaluations": investmentModelEvaluations,
		"accountTotalPnlSeries":      accountTotalPnlSeries,
		"usdToCadRate":               usdToCadRate,
		"degradedAccounts":           degraded,
		"asOf":                       h.now().Format(time.RFC3339),
	})
}

// handleTotalPnlSeries implements `GET /api/accounts/:id/total-pnl-series`.
// Rather than re-derive the pnl series independently of the summary
// pipeline, it re-runs the same per-account build and returns the series
// matching applyAccountCagrStartDate.
func (h *Handler) handleTotalPnlSeries(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	applySinceStart := r.URL.Query().Get("applyAccountCagrStartDate") != "false"

	summaries, err := h.agg.Summaries(r.Context(), accountID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if len(summaries) == 0 {
		writeError(w, r, h.log, &domain.ConfigError{Code: domain.ConfigErrInvalidAccount, Message: "no account matched " + accountID})
		return
	}
	s := summaries[0]
	if s.Error != "" {
		writeError(w, r, h.log, &domain.TransientError{Cause: errString(s.Error)})
		return
	}

	series := s.AllTimeSeries
	if applySinceStart {
		series = s.SinceStartSeries
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"points":              series.Points,
		"summary":             s.Funding,
		"sinceStart":          applySinceStart,
		"periodStartDate":     series.PeriodStartDate,
		"periodEndDate":       series.PeriodEndDate,
		"issues":              []string{},
		"missingPriceSymbols": series.MissingPriceSymbols,
	})
}

func (h *Handler) handleQQQTemperature(w http.ResponseWriter, r *http.Request) {
	model := h.models.Lookup("qqq-temperature")
	if model == nil {
		writeError(w, r, h.log, &domain.ConfigError{Code: domain.ConfigErrNotFound, Message: "qqq-temperature model not registered"})
		return
	}

	now := h.now()
	start := now.AddDate(-1, 0, 0)
	closes, err := h.agg.Prices.DailyCloses(r.Context(), defaultTemperatureSymbol, start.AddDate(0, -10, 0), now)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	points, ok := evaluator.TemperatureSeries(closes, defaultTemperaturePeriod)
	if !ok {
		writeError(w, r, h.log, &domain.PlannerError{Message: "insufficient price history for qqq-temperature"})
		return
	}

	latest := points[len(points)-1]
	base, leveraged, reserve := evaluator.AllocationForTemperature(latest.Temperature)

	series := make([]map[string]interface{}, len(points))
	for i, p := range points {
		series[i] = map[string]interface{}{"date": p.Price.Date.Format("2006-01-02"), "temperature": p.Temperature}
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"series":     series,
		"latest":     latest.Temperature,
		"allocation": map[string]float64{"tqqq": leveraged, "qqq": base, "tBills": reserve},
		"updated":    now.Format(time.RFC3339),
		"rangeStart": points[0].Price.Date.Format("2006-01-02"),
		"rangeEnd":   latest.Price.Date.Format("2006-01-02"),
	})
}

// handleBenchmarkReturns implements `GET /api/benchmark-returns`; it
// reports the QQQ-temperature reference benchmark's annualized return over
// the requested window using the same XIRR machinery C6 uses for accounts,
// treating the benchmark itself as a single buy-and-hold cash flow.
func (h *Handler) handleBenchmarkReturns(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("startDate")
	endDate := r.URL.Query().Get("endDate")
	now := h.now()

	start := now.AddDate(-1, 0, 0)
	if startDate != "" {
		if t, err := time.Parse("2006-01-02", startDate); err == nil {
			start = t
		}
	}
	end := now
	if endDate != "" {
		if t, err := time.Parse("2006-01-02", endDate); err == nil {
			end = t
		}
	}

	closes, err := h.agg.Prices.DailyCloses(r.Context(), defaultTemperatureSymbol, start, end)
	if err != nil || len(closes) < 2 {
		writeError(w, r, h.log, &domain.PlannerError{Message: "insufficient benchmark history for the requested window"})
		return
	}
	first, last := closes[0], closes[len(closes)-1]
	var rate *float64
	if annualized, ok := funding.XIRR([]funding.CashFlow{
		{Date: first.Date, Amount: -first.Close},
		{Date: last.Date, Amount: last.Close},
	}); ok {
		rate = &annualized
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"symbol":    defaultTemperatureSymbol,
		"startDate": first.Date.Format("2006-01-02"),
		"endDate":   last.Date.Format("2006-01-02"),
		"rate":      rate,
	})
}

// handlePortfolioNews is explicitly out of scope (spec §6: "delegates to an
// external LLM") — it returns 501 rather than silently faking a response.
func (h *Handler) handlePortfolioNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusNotImplemented, errorEnvelope{Error: errorBody{
		Code: "NOT_IMPLEMENTED", Message: "portfolio-news is out of scope", CorrelationID: correlationID(r.Context()),
	}})
}

func (h *Handler) handleMarkRebalanced(w http.ResponseWriter, r *http.Request) {
	ref := accountRefFromURL(r)
	var body struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	model := body.Model
	if model == "" {
		model = "qqq-temperature"
	}

	asOf, err := h.config.MarkAccountRebalanced(ref, model, h.now())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]string{"lastRebalance": asOf.Format("2006-01-02")})
}

func (h *Handler) handleTargetProportions(w http.ResponseWriter, r *http.Request) {
	ref := accountRefFromURL(r)
	var proportions map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&proportions); err != nil {
		writeError(w, r, h.log, &domain.ConfigError{Code: domain.ConfigErrParseError, Message: err.Error()})
		return
	}
	if err := h.config.SetTargetProportions(ref, proportions); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{"symbols": proportions})
}

func (h *Handler) handleSymbolNotes(w http.ResponseWriter, r *http.Request) {
	ref := accountRefFromURL(r)
	var body struct {
		Symbol string `json:"symbol"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.log, &domain.ConfigError{Code: domain.ConfigErrParseError, Message: err.Error()})
		return
	}
	if err := h.config.SetSymbolNotes(ref, body.Symbol, body.Note); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"symbol": body.Symbol, "note": body.Note, "updated": h.now().Format(time.RFC3339),
	})
}

func (h *Handler) handlePlanningContext(w http.ResponseWriter, r *http.Request) {
	ref := accountRefFromURL(r)
	var body struct {
		PlanningContext string `json:"planningContext"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.log, &domain.ConfigError{Code: domain.ConfigErrParseError, Message: err.Error()})
		return
	}
	if err := h.config.SetPlanningContext(ref, body.PlanningContext); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"planningContext": body.PlanningContext, "updated": h.now().Format(time.RFC3339),
	})
}

func (h *Handler) now() time.Time {
	if h.clock == nil {
		return time.Now().UTC()
	}
	return h.clock.Now()
}

// accountRefFromURL splits the {accountID} path param on ":" the same way
// internal/aggregator.parseRef does, so a path-scoped mutation resolves to
// the same account a "login:number" selector would.
func accountRefFromURL(r *http.Request) domain.AccountRef {
	id := chi.URLParam(r, "accountID")
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == ':' {
			return domain.AccountRef{LoginID: id[:i], AccountNumber: id[i+1:]}
		}
	}
	return domain.AccountRef{AccountNumber: id}
}

func errString(s string) error { return &simpleError{s} }

type simpleError struct{ s string }

func (e *simpleError) Error() string { return e.s }

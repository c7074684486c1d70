package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/evaluator"
	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/aristath/questrade-sentinel/internal/pricecache"
	"github.com/aristath/questrade-sentinel/internal/queue"
)

// modelPriceHistory bounds how much history a model evaluation pulls; it
// only needs to exceed the longest RebalancePeriod configured anywhere.
const modelPriceHistory = 400 * 24 * time.Hour

// EvaluateModelsHandler re-runs every account's configured investment
// models against current prices and positions. A decision that flips to
// ModelActionRebalance is published as events.RebalanceNeeded so a
// downstream planner (C8) can act on it; this handler itself never trades.
func EvaluateModelsHandler(cfg domain.ConfigStore, broker domain.BrokerClient, tokens domain.TokenStore, cache *pricecache.Cache, registry *evaluator.Registry, bus *events.Bus) queue.Handler {
	return func(job *queue.Job) error {
		ctx := context.Background()

		accounts, err := cfg.Accounts()
		if err != nil {
			return fmt.Errorf("evaluate_models: list accounts: %w", err)
		}

		now := time.Now().UTC()
		start := now.Add(-modelPriceHistory)

		var evalErrors []string
		for _, acc := range accounts {
			if len(acc.InvestmentModels) == 0 {
				continue
			}

			login, err := tokens.GetLogin(acc.LoginID)
			if err != nil || login == nil {
				evalErrors = append(evalErrors, acc.Number)
				continue
			}

			positions, err := broker.FetchPositions(ctx, *login, acc.Number)
			if err != nil {
				evalErrors = append(evalErrors, acc.Number)
				continue
			}
			balances, err := broker.FetchBalances(ctx, *login, acc.Number)
			if err != nil {
				evalErrors = append(evalErrors, acc.Number)
				continue
			}

			ref := domain.AccountRef{LoginID: acc.LoginID, AccountNumber: acc.Number}

			for _, modelCfg := range acc.InvestmentModels {
				history := make(map[string][]domain.PricePoint)
				for _, symbol := range []string{modelCfg.Symbol, modelCfg.LeveragedSymbol, modelCfg.ReserveSymbol} {
					if symbol == "" {
						continue
					}
					closes, err := cache.GetDailyCloses(ctx, symbol, start, now)
					if err != nil {
						continue
					}
					history[symbol] = closes
				}

				driftBand := 0.05
				in := domain.ModelInput{
					AccountRef:   ref,
					Config:       modelCfg,
					Positions:    positions,
					Balances:     balances,
					PriceHistory: history,
					Now:          now,
					DriftBandPct: driftBand,
				}

				evaluation := registry.Evaluate(modelCfg.Model, in)
				if evaluation.Decision.Action == domain.ModelActionRebalance {
					bus.Emit(events.RebalanceNeeded, "scheduler", map[string]interface{}{
						"login_id":       acc.LoginID,
						"account_number": acc.Number,
						"model":          modelCfg.Model,
						"status":         evaluation.Status,
					})
				}
				if evaluation.Decision.Action == domain.ModelActionError {
					evalErrors = append(evalErrors, fmt.Sprintf("%s/%s", ref.ID(), modelCfg.Model))
				}
			}
		}

		if len(evalErrors) > 0 {
			return fmt.Errorf("evaluate_models: %d evaluation(s) failed: %v", len(evalErrors), evalErrors)
		}
		return nil
	}
}

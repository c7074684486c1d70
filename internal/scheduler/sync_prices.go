package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/aristath/questrade-sentinel/internal/pricecache"
	"github.com/aristath/questrade-sentinel/internal/queue"
)

// priceSyncLookback bounds how far back a routine refresh walks; a gap
// wider than this should be backfilled manually, not by the scheduler.
const priceSyncLookback = 400 * 24 * time.Hour

// SyncPricesHandler refreshes the daily-close cache for every symbol
// referenced by an account's investment models, then emits
// events.PricesSynced so evaluate_models runs against current data.
func SyncPricesHandler(cfg domain.ConfigStore, cache *pricecache.Cache, bus *events.Bus) queue.Handler {
	return func(job *queue.Job) error {
		ctx := context.Background()

		accounts, err := cfg.Accounts()
		if err != nil {
			return fmt.Errorf("sync_prices: list accounts: %w", err)
		}

		symbols := symbolsInUse(accounts)
		now := time.Now().UTC()
		start := now.Add(-priceSyncLookback)

		var failures []string
		for symbol := range symbols {
			if _, err := cache.GetDailyCloses(ctx, symbol, start, now); err != nil {
				failures = append(failures, symbol)
			}
		}

		bus.Emit(events.PricesSynced, "scheduler", map[string]interface{}{
			"symbols":  len(symbols),
			"failures": failures,
		})

		if len(failures) > 0 {
			return fmt.Errorf("sync_prices: failed for %d symbol(s): %v", len(failures), failures)
		}
		return nil
	}
}

// symbolsInUse collects every base/leveraged/reserve symbol any account's
// investment models reference, deduplicated.
func symbolsInUse(accounts []domain.Account) map[string]struct{} {
	symbols := make(map[string]struct{})
	for _, acc := range accounts {
		for _, m := range acc.InvestmentModels {
			addSymbol(symbols, m.Symbol)
			addSymbol(symbols, m.LeveragedSymbol)
			addSymbol(symbols, m.ReserveSymbol)
		}
	}
	return symbols
}

func addSymbol(set map[string]struct{}, symbol string) {
	if symbol == "" {
		return
	}
	set[symbol] = struct{}{}
}

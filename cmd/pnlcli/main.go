// Command pnlcli prints an account's total-P&L series to stdout, the
// same data `GET /api/accounts/:id/total-pnl-series` serves, without
// going through the HTTP boundary (spec §6 CLI helpers).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/questrade-sentinel/internal/activity"
	"github.com/aristath/questrade-sentinel/internal/aggregator"
	"github.com/aristath/questrade-sentinel/internal/broker/questrade"
	"github.com/aristath/questrade-sentinel/internal/clients/exchangerate"
	"github.com/aristath/questrade-sentinel/internal/config"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/logger"
	"github.com/aristath/questrade-sentinel/internal/pricecache"
	"github.com/aristath/questrade-sentinel/internal/tokenstore"
)

func main() {
	os.Exit(run())
}

// run does the real work and returns the process exit code, so main
// itself is the only place that calls os.Exit.
func run() int {
	var accountSelector, dataDirFlag string
	var sinceStart bool
	flag.StringVar(&accountSelector, "account", "", "account selector: a number, \"login:number\", \"group:name\", or \"all\"")
	flag.StringVar(&dataDirFlag, "data-dir", "", "data directory (overrides TRADER_DATA_DIR)")
	flag.BoolVar(&sinceStart, "since-start", true, "baseline the series at the account's CAGR start date instead of its first funding date")
	flag.Parse()

	if accountSelector == "" {
		fmt.Fprintln(os.Stderr, "pnlcli: -account is required")
		return 1
	}

	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pnlcli:", err)
		return 1
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel})

	tokens, err := tokenstore.New(tokenstore.Config{
		Path: filepath.Join(cfg.DataDir, "tokens.json"),
		Log:  log,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pnlcli:", err)
		return 1
	}

	accountsConfig, err := config.New(filepath.Join(cfg.DataDir, "accounts.json"), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pnlcli:", err)
		return 1
	}

	broker := questrade.New(questrade.Config{Tokens: tokens, Log: log})

	var primaryPriceSource domain.PriceSource
	if logins, err := tokens.ListLogins(); err == nil && len(logins) > 0 {
		primaryPriceSource = &questrade.PriceSource{Client: broker, Login: logins[0]}
	}
	cache := pricecache.New(pricecache.Config{Primary: primaryPriceSource, Log: log})

	agg := &aggregator.Aggregator{
		Broker:  broker,
		Tokens:  tokens,
		Config:  accountsConfig,
		Prices:  cache,
		Crawler: activity.New(broker, log),
		Log:     log,
		FxRates: exchangerate.NewClient(log),
		// Unset here: pnlcli only prints the total-P&L series, so the
		// cost of evaluating every configured investment model on each
		// run isn't worth paying for output buildOne computes but this
		// command never reads.
	}

	summaries, err := agg.Summaries(context.Background(), accountSelector)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pnlcli:", err)
		return 1
	}
	if len(summaries) == 0 {
		fmt.Fprintf(os.Stderr, "pnlcli: no account matched %q\n", accountSelector)
		return 1
	}

	exitCode := 0
	for _, s := range summaries {
		if s.Error != "" {
			fmt.Fprintf(os.Stderr, "pnlcli: %s: %s\n", s.AccountRef.ID(), s.Error)
			exitCode = 1
			continue
		}
		printSeries(s, sinceStart)
	}
	return exitCode
}

func printSeries(s aggregator.AccountSummary, sinceStart bool) {
	series := s.AllTimeSeries
	if sinceStart {
		series = s.SinceStartSeries
	}
	for _, p := range series.Points {
		fmt.Printf("%s\t%s\t%.2f\t%.2f\t%.2f\n",
			s.AccountRef.ID(),
			p.Date.Format("2006-01-02"),
			p.CumulativeNetDepositsCad,
			p.EquityCad,
			p.TotalPnlCad,
		)
	}
}

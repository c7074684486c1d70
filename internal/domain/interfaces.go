package domain

import (
	"context"
	"time"
)

// Clock abstracts "now" so C6/C7/C8's pure functions and C1's rotation
// timestamps can be exercised deterministically in tests (spec §9: "explicit
// clock and random sources passed in, not pulled from the global environment").
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// BrokerClient is the broker-agnostic contract C9/C4/C6 call against. The
// only implementation in this repository targets Questrade
// (internal/broker/questrade), but the interface exists so the analytics
// pipelines and HTTP handlers can be tested against an in-memory fake.
type BrokerClient interface {
	FetchAccounts(ctx context.Context, login Login) ([]Account, error)
	FetchBalances(ctx context.Context, login Login, accountNumber string) ([]Balance, error)
	FetchPositions(ctx context.Context, login Login, accountNumber string) ([]Position, error)
	FetchOrders(ctx context.Context, login Login, accountNumber string, start, end time.Time) ([]Order, error)
	// FetchActivities rejects windows wider than the broker's cap with
	// *WindowTooWideError; callers (internal/activity) are responsible for
	// slicing the requested range before calling.
	FetchActivities(ctx context.Context, login Login, accountNumber string, start, end time.Time) ([]Activity, error)
	FetchNetDeposits(ctx context.Context, login Login, accountNumber string, start, end *time.Time) (float64, error)
	FetchSymbolCandles(ctx context.Context, login Login, symbol string, interval string, start, end time.Time) ([]PricePoint, error)
}

// PriceSource is satisfied by anything that can answer "what did this
// symbol close at on this day" — the Questrade candles endpoint or the
// optional Yahoo fallback (spec §4.5, Non-goals: only the cache contract of
// the Yahoo fallback is in scope, not the scraper itself).
type PriceSource interface {
	DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error)
}

// ConfigStore is the C3 contract: read projections derived from the JSON
// config file, and apply the small set of supported mutations.
type ConfigStore interface {
	Accounts() ([]Account, error)
	AccountGroups() ([]AccountGroup, error)
	FindAccount(ref AccountRef) (*Account, error)

	SetTargetProportions(ref AccountRef, proportions map[string]float64) error
	SetSymbolNotes(ref AccountRef, symbol, note string) error
	SetPlanningContext(ref AccountRef, text string) error
	MarkAccountRebalanced(ref AccountRef, model string, asOf time.Time) (time.Time, error)
}

// TokenStore is the C1 contract.
type TokenStore interface {
	ListLogins() ([]Login, error)
	GetLogin(id string) (*Login, error)
	RefreshAccessToken(ctx context.Context, login Login) (AccessToken, error)
}

// AccessToken is the short-lived credential pair C1 hands back after a
// successful refresh. It is never persisted.
type AccessToken struct {
	AccessToken string
	ApiServer   string
	Expiry      time.Time
}

// InvestmentModel is the pure, restartable evaluation function each model
// (the QQQ-temperature reference model, and any future model) implements.
type InvestmentModel interface {
	Name() string
	Evaluate(in ModelInput) ModelEvaluation
}

// ModelInput bundles everything a model needs to decide hold/rebalance; it
// carries no I/O capability, only already-fetched data, matching spec §9's
// "pure functions ... receive already-fetched data and a clock" mandate.
type ModelInput struct {
	AccountRef    AccountRef
	Config        InvestmentModelConfig
	Positions     []Position
	Balances      []Balance
	PriceHistory  map[string][]PricePoint // symbol -> ascending daily closes
	Now           time.Time
	DriftBandPct  float64 // default 0.05 (5 percentage points)
}

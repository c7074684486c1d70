// Package domain holds the types shared across every component of the
// aggregation core: logins and accounts (C1/C3), broker-facing records
// (C2/C4), cached prices (C5), funding/P&L results (C6), investment-model
// evaluations (C7), and planner output (C8). Nothing in this package
// performs I/O — it exists so that every other package can speak the same
// vocabulary without importing each other.
package domain

import "time"

// Login is an OAuth authorization principal: one Questrade account-holder
// credential that may grant access to several brokerage Accounts.
type Login struct {
	ID           string    // stable identifier, e.g. "primary" or a uuid
	Label        string    // human label shown in the UI
	Email        string    // optional, may be empty
	RefreshToken string    // current live refresh token
	UpdatedAt    time.Time // timestamp of the last rotation
}

// AccountType enumerates the broker account types Questrade reports.
type AccountType string

// Account is a brokerage account owned by a Login.
type Account struct {
	LoginID               string
	Number                string // broker account number
	Type                  AccountType
	Beneficiary           string
	DisplayName           string
	GroupName             string     // optional account-group name
	CAGRStartDate         *time.Time // optional display start for return metrics
	NetDepositAdjustment  float64    // CAD correction applied on top of broker history
	IgnoreSittingCash     *float64   // optional threshold
	RebalancePeriod       *int       // days; carried from config, model evaluation reads only the per-model period
	InvestmentModels      []InvestmentModelConfig
	SymbolSettings        map[string]SymbolSetting // symbol -> {targetProportion, notes}
	PlanningContext       string
}

// SymbolSetting holds per-symbol account configuration.
type SymbolSetting struct {
	TargetProportion float64 // percent, 0-100
	Notes            string
}

// AccountGroup is a named collection of accounts, optionally nested under a
// parent group. The parent relation must be acyclic; cycle detection is the
// responsibility of internal/config, which treats a cyclic group as a root.
type AccountGroup struct {
	ID       string
	Name     string
	ParentID string // empty for a root group
}

// AccountRef identifies a single (login, account) pair. It is the unit C9
// resolves selections down to before fanning out broker calls.
type AccountRef struct {
	LoginID       string
	AccountNumber string
}

// ID returns the canonical "login:accountNumber" form used for matching
// against config entries and for map keys.
func (r AccountRef) ID() string {
	return r.LoginID + ":" + r.AccountNumber
}

// ActivityType is the normalized broker transaction category. Spec §3/§4.4.
type ActivityType string

const (
	ActivityDeposits   ActivityType = "Deposits"
	ActivityWithdrawal ActivityType = "Withdrawals"
	ActivityTransfers  ActivityType = "Transfers"
	ActivityTrades     ActivityType = "Trades"
	ActivityDividends  ActivityType = "Dividends"
	ActivityInterest   ActivityType = "Interest"
	ActivityFX         ActivityType = "FX"
	ActivityOther      ActivityType = "Other"
)

// fundingActions are broker `action` codes that denote a funding flow even
// when the surrounding `type` string doesn't say so plainly (spec §4.4).
var fundingActions = map[string]bool{
	"CON": true, // contribution / deposit
	"WDR": true, // withdrawal
	"TFI": true, // transfer in
	"TFO": true, // transfer out
}

// Activity is a single normalized broker transaction.
type Activity struct {
	TradeDate       time.Time
	TransactionDate time.Time
	SettlementDate  time.Time
	Type            ActivityType
	Action          string
	Currency        string
	Symbol          string // optional, empty when not security-specific
	Quantity        float64
	Price           float64
	GrossAmount     float64
	NetAmount       float64
}

// DedupeKey returns the content-address spec §3 uses to drop duplicate
// activities pulled from overlapping broker windows.
func (a Activity) DedupeKey() string {
	return a.TransactionDate.Format("2006-01-02") + "|" + a.Action + "|" +
		a.Symbol + "|" + a.Currency + "|" + formatAmount(a.NetAmount)
}

// IsFundingFlow reports whether the activity is money moving into or out of
// the account (as opposed to a P&L event), per the classification in spec §4.4.
func (a Activity) IsFundingFlow() bool {
	switch a.Type {
	case ActivityDeposits, ActivityWithdrawal, ActivityTransfers:
		return true
	}
	return fundingActions[a.Action]
}

func formatAmount(v float64) string {
	// Two-decimal formatting keeps the dedupe key stable across float
	// representations of the same cent amount coming from different pages.
	cents := int64(v*100 + sign(v)*0.5)
	return itoa(cents)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func itoa(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// PricePoint is a single daily close for a symbol, keyed by a date-only UTC day.
type PricePoint struct {
	Symbol string
	Date   time.Time // truncated to a UTC day
	Close  float64
}

// Position is a held security in an account, reported by the broker.
type Position struct {
	Symbol          string
	Quantity        float64
	AveragePrice    float64
	CurrentPrice    float64
	Currency        string
	MarketValue     float64 // in native currency
	MarketValueCad  float64
	OpenPnl         float64
}

// Balance is a single-currency cash balance reported by the broker.
type Balance struct {
	Currency    string
	Cash        float64
	MarketValue float64
	TotalEquity float64
}

// Order is a broker order (pending or historical).
type Order struct {
	ID        string
	Symbol    string
	Side      string // BUY or SELL
	Quantity  float64
	LimitPrice float64
	State     string
	CreatedAt time.Time
}

// AnnualizedReturn is the XIRR-derived return for a single window.
type AnnualizedReturn struct {
	Rate       *float64 // nil when XIRR could not bracket a root
	AsOf       time.Time
	StartDate  time.Time
	Incomplete bool
}

// ReturnBreakdownEntry is one canonical trailing-period return (spec §4.6).
type ReturnBreakdownEntry struct {
	Period          string // "1m", "6m", "12m", "5y", "10y"
	StartDate       time.Time
	EndDate         time.Time
	TotalReturnCad  float64
	AnnualizedRate  *float64
	Incomplete      bool
}

// FundingSummary is the per-account funding/P&L snapshot spec §3 defines.
type FundingSummary struct {
	AccountRef              AccountRef
	NetDepositsAllTimeCad   float64
	NetDepositsCombinedCad  float64
	TotalPnlAllTimeCad      float64
	TotalPnlCombinedCad     float64
	TotalEquityCad          float64
	AnnualizedReturn        AnnualizedReturn
	AnnualizedReturnAllTime AnnualizedReturn
	ReturnBreakdown         []ReturnBreakdownEntry
	CagrStartDate           *time.Time
	ConversionIncomplete    bool
}

// TotalPnlPoint is a single point on the cumulative net-deposits/equity/P&L
// series described in spec §3.
type TotalPnlPoint struct {
	Date                    time.Time
	CumulativeNetDepositsCad float64
	EquityCad               float64
	TotalPnlCad             float64
}

// TotalPnlSeries is the ordered series plus the metadata callers need to
// render it (spec §3 invariants: monotone, no duplicates, baseline-adjusted
// when SinceStart).
type TotalPnlSeries struct {
	Points             []TotalPnlPoint
	SinceStart         bool
	PeriodStartDate    time.Time
	PeriodEndDate      time.Time
	MissingPriceSymbols []string
	Issues             []string
}

// InvestmentModelConfig is the user-configured instance of a rebalance model
// attached to an account (spec §3/§4.7).
type InvestmentModelConfig struct {
	Model            string // e.g. "qqq-temperature"
	Symbol           string // base symbol
	LeveragedSymbol  string
	ReserveSymbol    string
	LastRebalance    *time.Time
	RebalancePeriod  *int // days; nil means the model's own default period
}

// ModelAction is the tagged decision an investment model evaluation produces.
type ModelAction string

const (
	ModelActionHold      ModelAction = "hold"
	ModelActionRebalance ModelAction = "rebalance"
	ModelActionError     ModelAction = "error"
)

// ModelDecision is the output of evaluating an InvestmentModelConfig.
type ModelDecision struct {
	Action           ModelAction
	TargetAllocation map[string]float64 // role symbol -> fraction, sums to 1
}

// ModelEvaluation bundles the decision with a human-readable status line.
type ModelEvaluation struct {
	AccountRef AccountRef
	Model      string
	Decision   ModelDecision
	Status     string
}

// ConversionType tags a Norbert's-gambit currency conversion leg.
type ConversionType string

const (
	ConversionCadToUsd ConversionType = "CAD->USD"
	ConversionUsdToCad ConversionType = "USD->CAD"
)

// Conversion is one CAD<->USD leg of a plan, executed via DLR.TO/DLR.U.TO.
type Conversion struct {
	Type          ConversionType
	Symbol        string // DLR.TO or DLR.U.TO
	Shares        int
	SpendAmount   float64
	ReceiveAmount float64
}

// Purchase is one leg of an invest-evenly plan.
type Purchase struct {
	Symbol        string
	Currency      string
	Amount        float64
	Shares        float64
	Price         float64
	Note          string
	TargetPercent float64
}

// PlanTotals summarizes the cash consumed/remaining by a plan.
type PlanTotals struct {
	CadNeeded    float64
	UsdNeeded    float64
	CadRemaining float64
	UsdRemaining float64
}

// InvestEvenlyPlan is the output of the invest-evenly planner (spec §3/§4.8).
type InvestEvenlyPlan struct {
	Purchases   []Purchase
	Conversions []Conversion
	Totals      PlanTotals
	SummaryText string
}

// TradeSide tags a deployment-adjustment transaction's direction.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// TradeScope tags whether a deployment-adjustment transaction targets the
// deployed sleeve or the reserve sleeve.
type TradeScope string

const (
	TradeScopeDeployed TradeScope = "DEPLOYED"
	TradeScopeReserve  TradeScope = "RESERVE"
)

// Transaction is one leg of a deployment-adjustment plan.
type Transaction struct {
	Side     TradeSide
	Scope    TradeScope
	Symbol   string
	Currency string
	Amount   float64
	Shares   float64
	Price    float64
}

// DeploymentAdjustmentPlan is the output of the deployment-adjustment planner.
type DeploymentAdjustmentPlan struct {
	Transactions []Transaction
	Conversions  []Conversion
	Totals       PlanTotals
	SummaryText  string
}

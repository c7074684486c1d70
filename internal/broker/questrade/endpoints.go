package questrade

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// Wire response shapes, intentionally minimal — only the fields the rest of
// the system consumes are decoded.

type accountsResponse struct {
	Accounts []struct {
		Number      string `json:"number"`
		Type        string `json:"type"`
		Status      string `json:"status"`
		IsPrimary   bool   `json:"isPrimary"`
		Beneficiary string `json:"clientAccountType"`
	} `json:"accounts"`
}

type balancesResponse struct {
	PerCurrencyBalances []struct {
		Currency    string  `json:"currency"`
		Cash        float64 `json:"cash"`
		MarketValue float64 `json:"marketValue"`
		TotalEquity float64 `json:"totalEquity"`
	} `json:"perCurrencyBalances"`
}

type positionsResponse struct {
	Positions []struct {
		Symbol            string  `json:"symbol"`
		OpenQuantity      float64 `json:"openQuantity"`
		AveragePrice      float64 `json:"averageEntryPrice"`
		CurrentPrice      float64 `json:"currentPrice"`
		CurrentMarketVal  float64 `json:"currentMarketValue"`
		Currency          string  `json:"currency"`
		OpenPnl           float64 `json:"openPnl"`
	} `json:"positions"`
}

type ordersResponse struct {
	Orders []struct {
		ID          string    `json:"id"`
		Symbol      string    `json:"symbol"`
		Side        string    `json:"side"`
		TotalQty    float64   `json:"totalQuantity"`
		LimitPrice  float64   `json:"limitPrice"`
		State       string    `json:"state"`
		CreatedTime time.Time `json:"creationTime"`
	} `json:"orders"`
}

type activitiesResponse struct {
	Activities []struct {
		TradeDate       time.Time `json:"tradeDate"`
		TransactionDate time.Time `json:"transactionDate"`
		SettlementDate  time.Time `json:"settlementDate"`
		Type            string    `json:"type"`
		Action          string    `json:"action"`
		Currency        string    `json:"currency"`
		Symbol          string    `json:"symbol"`
		Quantity        float64   `json:"quantity"`
		Price           float64   `json:"price"`
		GrossAmount     float64   `json:"grossAmount"`
		NetAmount       float64   `json:"netAmount"`
	} `json:"activities"`
}

type candlesResponse struct {
	Candles []struct {
		End   time.Time `json:"end"`
		Close float64   `json:"close"`
	} `json:"candles"`
}

// FetchAccounts implements domain.BrokerClient.
func (c *Client) FetchAccounts(ctx context.Context, login domain.Login) ([]domain.Account, error) {
	var resp accountsResponse
	if err := c.doJSON(ctx, login, "/v1/accounts", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		out = append(out, domain.Account{
			LoginID:     login.ID,
			Number:      a.Number,
			Type:        domain.AccountType(a.Type),
			Beneficiary: a.Beneficiary,
		})
	}
	return out, nil
}

// FetchBalances implements domain.BrokerClient.
func (c *Client) FetchBalances(ctx context.Context, login domain.Login, accountNumber string) ([]domain.Balance, error) {
	var resp balancesResponse
	path := fmt.Sprintf("/v1/accounts/%s/balances", accountNumber)
	if err := c.doJSON(ctx, login, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Balance, 0, len(resp.PerCurrencyBalances))
	for _, b := range resp.PerCurrencyBalances {
		out = append(out, domain.Balance{
			Currency: b.Currency, Cash: b.Cash, MarketValue: b.MarketValue, TotalEquity: b.TotalEquity,
		})
	}
	return out, nil
}

// FetchPositions implements domain.BrokerClient.
func (c *Client) FetchPositions(ctx context.Context, login domain.Login, accountNumber string) ([]domain.Position, error) {
	var resp positionsResponse
	path := fmt.Sprintf("/v1/accounts/%s/positions", accountNumber)
	if err := c.doJSON(ctx, login, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		out = append(out, domain.Position{
			Symbol: p.Symbol, Quantity: p.OpenQuantity, AveragePrice: p.AveragePrice,
			CurrentPrice: p.CurrentPrice, Currency: p.Currency,
			MarketValue: p.CurrentMarketVal, OpenPnl: p.OpenPnl,
		})
	}
	return out, nil
}

// FetchOrders implements domain.BrokerClient. The caller is responsible for
// slicing windows wider than the broker's cap — this returns
// *domain.WindowTooWideError rather than silently truncating.
func (c *Client) FetchOrders(ctx context.Context, login domain.Login, accountNumber string, start, end time.Time) ([]domain.Order, error) {
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}
	var resp ordersResponse
	path := fmt.Sprintf("/v1/accounts/%s/orders", accountNumber)
	query := map[string]string{"startTime": rfc3339(start), "endTime": rfc3339(end)}
	if err := c.doJSON(ctx, login, path, query, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		out = append(out, domain.Order{
			ID: o.ID, Symbol: o.Symbol, Side: o.Side, Quantity: o.TotalQty,
			LimitPrice: o.LimitPrice, State: o.State, CreatedAt: o.CreatedTime,
		})
	}
	return out, nil
}

// FetchActivities implements domain.BrokerClient. See FetchOrders for the
// window-cap contract; internal/activity is the only caller expected to
// handle *domain.WindowTooWideError by slicing.
func (c *Client) FetchActivities(ctx context.Context, login domain.Login, accountNumber string, start, end time.Time) ([]domain.Activity, error) {
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}
	var resp activitiesResponse
	path := fmt.Sprintf("/v1/accounts/%s/activities", accountNumber)
	query := map[string]string{"startTime": rfc3339(start), "endTime": rfc3339(end)}
	if err := c.doJSON(ctx, login, path, query, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(resp.Activities))
	for _, a := range resp.Activities {
		out = append(out, domain.Activity{
			TradeDate: a.TradeDate, TransactionDate: a.TransactionDate, SettlementDate: a.SettlementDate,
			Type: domain.ActivityType(a.Type), Action: a.Action, Currency: a.Currency, Symbol: a.Symbol,
			Quantity: a.Quantity, Price: a.Price, GrossAmount: a.GrossAmount, NetAmount: a.NetAmount,
		})
	}
	return out, nil
}

// FetchNetDeposits implements domain.BrokerClient. Questrade's own
// net-deposits endpoint is used only as a cross-check; internal/funding
// computes net deposits itself from the activity stream so it can apply
// settlement-date FX conversion (spec §4.6).
func (c *Client) FetchNetDeposits(ctx context.Context, login domain.Login, accountNumber string, start, end *time.Time) (float64, error) {
	var resp struct {
		NetDeposits float64 `json:"netDeposits"`
	}
	query := map[string]string{}
	if start != nil {
		query["startTime"] = rfc3339(*start)
	}
	if end != nil {
		query["endTime"] = rfc3339(*end)
	}
	path := fmt.Sprintf("/v1/accounts/%s/activities/netDeposits", accountNumber)
	if err := c.doJSON(ctx, login, path, query, &resp); err != nil {
		return 0, err
	}
	return resp.NetDeposits, nil
}

// FetchSymbolCandles implements domain.BrokerClient.
func (c *Client) FetchSymbolCandles(ctx context.Context, login domain.Login, symbol, interval string, start, end time.Time) ([]domain.PricePoint, error) {
	symbolID, err := c.resolveSymbolID(ctx, login, symbol)
	if err != nil {
		return nil, err
	}
	var resp candlesResponse
	path := fmt.Sprintf("/v1/markets/candles/%s", symbolID)
	query := map[string]string{"startTime": rfc3339(start), "endTime": rfc3339(end), "interval": interval}
	if err := c.doJSON(ctx, login, path, query, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.PricePoint, 0, len(resp.Candles))
	for _, cd := range resp.Candles {
		out = append(out, domain.PricePoint{Symbol: symbol, Date: cd.End.Truncate(24 * time.Hour), Close: cd.Close})
	}
	return out, nil
}

func (c *Client) resolveSymbolID(ctx context.Context, login domain.Login, symbol string) (string, error) {
	var resp struct {
		Symbols []struct {
			Symbol   string `json:"symbol"`
			SymbolID int64  `json:"symbolId"`
		} `json:"symbols"`
	}
	if err := c.doJSON(ctx, login, "/v1/symbols/search", map[string]string{"prefix": symbol}, &resp); err != nil {
		return "", err
	}
	for _, s := range resp.Symbols {
		if s.Symbol == symbol {
			return fmt.Sprintf("%d", s.SymbolID), nil
		}
	}
	return "", &domain.BrokerError{Kind: domain.BrokerErrPermanent, Payload: "symbol not found: " + symbol}
}

package questrade

import (
	"context"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// PriceSource adapts a Client (for one fixed login, since candle fetches
// are authenticated the same as any other call) to domain.PriceSource.
type PriceSource struct {
	Client   *Client
	Login    domain.Login
	Interval string // e.g. "OneDay"
}

// DailyCloses implements domain.PriceSource.
func (p *PriceSource) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	interval := p.Interval
	if interval == "" {
		interval = "OneDay"
	}
	return p.Client.FetchSymbolCandles(ctx, p.Login, symbol, interval, start, end)
}

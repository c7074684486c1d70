package pricecache

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// ErrFallbackUnavailable is returned by YahooFallback unless a real
// implementation is swapped in at construction time. The scraper itself is
// out of scope (Non-goals); only the PriceSource contract is implemented
// here, grounded on the teacher's yahoo.FullClientInterface shape.
var ErrFallbackUnavailable = errors.New("pricecache: yahoo fallback not configured")

// YahooFallback is a PriceSource that historically wrapped Yahoo Finance's
// chart endpoint (see the teacher's internal/clients/yahoo package). It
// exists so Cache always has a secondary source to try, without this
// repository committing to a specific Yahoo client implementation.
type YahooFallback struct {
	// Historical fetches symbol's historical daily closes for the named
	// Yahoo period string ("1y", "5y", ...). nil means "not configured".
	Historical func(ctx context.Context, symbol, period string) ([]domain.PricePoint, error)
}

// DailyCloses implements domain.PriceSource.
func (y *YahooFallback) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	if y == nil || y.Historical == nil {
		return nil, ErrFallbackUnavailable
	}
	period := yahooPeriodFor(start, end)
	points, err := y.Historical(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// yahooPeriodFor picks the smallest Yahoo period string covering the
// requested range.
func yahooPeriodFor(start, end time.Time) string {
	days := end.Sub(start).Hours() / 24
	switch {
	case days <= 30:
		return "1mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 365*5:
		return "5y"
	default:
		return "10y"
	}
}

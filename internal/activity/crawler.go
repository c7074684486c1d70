// Package activity implements the C4 activity crawler: it slices a wide
// date range into the broker's 31-day windows, concatenates and
// de-duplicates the results, and derives the earliest funding-flow date
// used as a default Total-P&L start (spec §4.4).
package activity

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// maxWindow mirrors the broker's published 31-day cap (spec §4.2/§4.4)
// exactly: checkWindow in internal/broker/questrade only rejects widths
// strictly greater than the cap, so a window exactly this wide is accepted,
// and a year-long crawl slices into the minimum number of upstream calls.
const maxWindow = 31 * 24 * time.Hour

// Fetcher is the subset of domain.BrokerClient the crawler needs.
type Fetcher interface {
	FetchActivities(ctx context.Context, login domain.Login, accountNumber string, start, end time.Time) ([]domain.Activity, error)
}

// Crawler implements Crawl against a Fetcher.
type Crawler struct {
	broker Fetcher
	log    zerolog.Logger
}

// New builds a Crawler.
func New(broker Fetcher, log zerolog.Logger) *Crawler {
	return &Crawler{broker: broker, log: log.With().Str("component", "activity_crawler").Logger()}
}

// Crawl fetches every activity for (login, accountNumber) between from and
// to inclusive, slicing the range into sub-windows no wider than the
// broker's cap, concatenating, and de-duplicating by Activity.DedupeKey.
func (c *Crawler) Crawl(ctx context.Context, login domain.Login, accountNumber string, from, to time.Time) ([]domain.Activity, error) {
	windows := sliceWindows(from, to, maxWindow)

	seen := make(map[string]bool)
	var out []domain.Activity
	for _, w := range windows {
		page, err := c.broker.FetchActivities(ctx, login, accountNumber, w.start, w.end)
		if err != nil {
			var wide *domain.WindowTooWideError
			if errors.As(err, &wide) {
				// Shouldn't happen while maxWindow matches the broker's cap, but if the
				// broker's cap is tighter than expected, split this window in
				// half and retry rather than losing the range entirely.
				sub, subErr := c.crawlSplit(ctx, login, accountNumber, w.start, w.end)
				if subErr != nil {
					return nil, subErr
				}
				page = sub
			} else {
				return nil, err
			}
		}
		for _, a := range page {
			key := a.DedupeKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TransactionDate.Before(out[j].TransactionDate) })
	return out, nil
}

func (c *Crawler) crawlSplit(ctx context.Context, login domain.Login, accountNumber string, start, end time.Time) ([]domain.Activity, error) {
	mid := start.Add(end.Sub(start) / 2)
	if !mid.After(start) {
		return nil, &domain.WindowTooWideError{}
	}
	first, err := c.broker.FetchActivities(ctx, login, accountNumber, start, mid)
	if err != nil {
		return nil, err
	}
	second, err := c.broker.FetchActivities(ctx, login, accountNumber, mid, end)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

type window struct{ start, end time.Time }

// sliceWindows splits [from,to] into consecutive windows no wider than
// maxLen, covering the whole range with no gaps.
func sliceWindows(from, to time.Time, maxLen time.Duration) []window {
	if !to.After(from) {
		return []window{{start: from, end: to}}
	}
	var out []window
	cur := from
	for cur.Before(to) {
		end := cur.Add(maxLen)
		if end.After(to) {
			end = to
		}
		out = append(out, window{start: cur, end: end})
		cur = end
	}
	return out
}

// EarliestFundingDate scans activities for the first funding flow, which is
// the default start of an account's Total-P&L series absent an explicit
// CAGRStartDate (spec §4.4).
func EarliestFundingDate(activities []domain.Activity) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, a := range activities {
		if !a.IsFundingFlow() {
			continue
		}
		if !found || a.TransactionDate.Before(earliest) {
			earliest = a.TransactionDate
			found = true
		}
	}
	return earliest, found
}

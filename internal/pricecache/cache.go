// Package pricecache implements the C5 price history cache: an in-memory,
// per-symbol store of daily closes with range-coverage tracking, so a
// query only reaches the broker when the requested window isn't already
// known (spec §4.5).
package pricecache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
)

const dateKeyLayout = "2006-01-02"

// dateRange is an inclusive [start,end] day-granularity range.
type dateRange struct{ start, end time.Time }

func (r dateRange) contains(other dateRange) bool {
	return !other.start.Before(r.start) && !other.end.After(r.end)
}

// adjacent reports whether merging r and other would leave no gap — they
// overlap or sit exactly one day apart.
func (r dateRange) adjacent(other dateRange) bool {
	if r.start.After(other.end.AddDate(0, 0, 1)) {
		return false
	}
	if other.start.After(r.end.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func (r dateRange) merge(other dateRange) dateRange {
	start, end := r.start, r.end
	if other.start.Before(start) {
		start = other.start
	}
	if other.end.After(end) {
		end = other.end
	}
	return dateRange{start: start, end: end}
}

// symbolEntry holds the per-symbol cache state behind its own lock, so
// concurrent queries against different symbols never contend (spec §5).
type symbolEntry struct {
	mu     sync.Mutex
	closes map[string]float64
	ranges []dateRange
}

func newSymbolEntry() *symbolEntry {
	return &symbolEntry{closes: map[string]float64{}}
}

// coveredBy reports whether some covered range in the entry fully contains
// [start,end].
func (e *symbolEntry) coveredBy(want dateRange) bool {
	for _, r := range e.ranges {
		if r.contains(want) {
			return true
		}
	}
	return false
}

func (e *symbolEntry) record(got dateRange, points []domain.PricePoint) {
	for _, p := range points {
		e.closes[p.Date.Format(dateKeyLayout)] = p.Close
	}
	merged := []dateRange{got}
	for _, r := range e.ranges {
		placed := false
		for i := range merged {
			if merged[i].adjacent(r) {
				merged[i] = merged[i].merge(r)
				placed = true
				break
			}
		}
		if !placed {
			merged = append(merged, r)
		}
	}
	e.ranges = coalesce(merged)
}

// coalesce repeatedly merges any still-adjacent ranges until none remain,
// since a single pass above may leave two newly-touching ranges unmerged.
func coalesce(ranges []dateRange) []dateRange {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(ranges); i++ {
			for j := i + 1; j < len(ranges); j++ {
				if ranges[i].adjacent(ranges[j]) {
					ranges[i] = ranges[i].merge(ranges[j])
					ranges = append(ranges[:j], ranges[j+1:]...)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
	return ranges
}

func (e *symbolEntry) slice(start, end time.Time) []domain.PricePoint {
	var out []domain.PricePoint
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateKeyLayout)
		if close, ok := e.closes[key]; ok {
			out = append(out, domain.PricePoint{Symbol: "", Date: d, Close: close})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Cache is the C5 in-memory cache. One Cache instance is shared across all
// symbols; each symbol's state is guarded independently.
type Cache struct {
	primary  domain.PriceSource
	fallback domain.PriceSource // optional, may be nil
	clock    domain.Clock
	log      zerolog.Logger

	mu      sync.Mutex
	symbols map[string]*symbolEntry
}

// Config configures a new Cache.
type Config struct {
	Primary  domain.PriceSource
	Fallback domain.PriceSource
	Clock    domain.Clock
	Log      zerolog.Logger
}

// New builds a Cache.
func New(cfg Config) *Cache {
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	return &Cache{
		primary: cfg.Primary, fallback: cfg.Fallback, clock: cfg.Clock,
		log:     cfg.Log.With().Str("component", "price_cache").Logger(),
		symbols: map[string]*symbolEntry{},
	}
}

func (c *Cache) entry(symbol string) *symbolEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.symbols[symbol]
	if !ok {
		e = newSymbolEntry()
		c.symbols[symbol] = e
	}
	return e
}

// today returns the current UTC day, date-truncated.
func (c *Cache) today() time.Time {
	return c.clock.Now().Truncate(24 * time.Hour)
}

// clampEnd enforces spec §4.5's "today's key is never admitted" rule:
// endKey >= today is clamped to today-1.
func (c *Cache) clampEnd(end time.Time) time.Time {
	today := c.today()
	if !end.Before(today) {
		return today.AddDate(0, 0, -1)
	}
	return end
}

// GetDailyCloses implements the C5 contract. A HIT is served entirely from
// the in-memory map; a MISS fetches from the primary source (falling back
// to the secondary on error, if configured) and records the result before
// returning it.
func (c *Cache) GetDailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	start = start.Truncate(24 * time.Hour)
	end = c.clampEnd(end.Truncate(24 * time.Hour))
	if end.Before(start) {
		return nil, nil
	}

	e := c.entry(symbol)
	e.mu.Lock()
	if e.coveredBy(dateRange{start: start, end: end}) {
		out := e.slice(start, end)
		e.mu.Unlock()
		for i := range out {
			out[i].Symbol = symbol
		}
		return out, nil
	}
	e.mu.Unlock()

	points, err := c.fetch(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	c.Record(symbol, start, end, points)

	e.mu.Lock()
	out := e.slice(start, end)
	e.mu.Unlock()
	for i := range out {
		out[i].Symbol = symbol
	}
	return out, nil
}

// DailyCloses implements domain.PriceSource, so a Cache can itself stand
// in wherever spec §4.9's consumers (e.g. internal/aggregator's FX lookup)
// expect a PriceSource rather than reaching for GetDailyCloses by name.
func (c *Cache) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	return c.GetDailyCloses(ctx, symbol, start, end)
}

func (c *Cache) fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	if c.primary == nil {
		return nil, fmt.Errorf("pricecache: no primary source configured")
	}
	points, err := c.primary.DailyCloses(ctx, symbol, start, end)
	if err == nil {
		return points, nil
	}
	if c.fallback == nil {
		return nil, err
	}
	c.log.Warn().Err(err).Str("symbol", symbol).Msg("primary price source failed, trying fallback")
	return c.fallback.DailyCloses(ctx, symbol, start, end)
}

// Record merges fetched points for symbol into the covered-range set,
// clamping end per the today-never-persisted rule so a caller can't
// accidentally pin in a still-moving day.
func (c *Cache) Record(symbol string, start, end time.Time, points []domain.PricePoint) {
	end = c.clampEnd(end.Truncate(24 * time.Hour))
	if end.Before(start) {
		return
	}
	e := c.entry(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(dateRange{start: start, end: end}, points)
}

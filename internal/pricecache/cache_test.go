package pricecache

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type fakeSource struct {
	calls  int
	points []domain.PricePoint
	err    error
}

func (f *fakeSource) DailyCloses(_ context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.PricePoint
	for _, p := range f.points {
		if !p.Date.Before(start) && !p.Date.After(end) {
			out = append(out, domain.PricePoint{Symbol: symbol, Date: p.Date, Close: p.Close})
		}
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGetDailyCloses_MissFetchesThenHitServesFromMemory(t *testing.T) {
	src := &fakeSource{points: []domain.PricePoint{
		{Date: day("2026-01-02"), Close: 100},
		{Date: day("2026-01-05"), Close: 101},
	}}
	c := New(Config{Primary: src, Clock: fakeClock{t: day("2026-02-01")}, Log: zerolog.Nop()})

	points, err := c.GetDailyCloses(context.Background(), "VEQT", day("2026-01-01"), day("2026-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Len(t, points, 2)

	// Second query, fully covered by the first — no second fetch.
	points2, err := c.GetDailyCloses(context.Background(), "VEQT", day("2026-01-02"), day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Len(t, points2, 2)
}

func TestGetDailyCloses_ClampsEndToYesterday(t *testing.T) {
	src := &fakeSource{}
	today := day("2026-02-10")
	c := New(Config{Primary: src, Clock: fakeClock{t: today}, Log: zerolog.Nop()})

	_, err := c.GetDailyCloses(context.Background(), "VEQT", day("2026-02-01"), today)
	require.NoError(t, err)
	// Querying again for the same window should still be a single fetch,
	// since the clamp applies consistently to both fetch and record.
	_, err = c.GetDailyCloses(context.Background(), "VEQT", day("2026-02-01"), today.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestGetDailyCloses_FallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeSource{err: assertErr{}}
	fallback := &fakeSource{points: []domain.PricePoint{{Date: day("2026-01-02"), Close: 55}}}
	c := New(Config{Primary: primary, Fallback: fallback, Clock: fakeClock{t: day("2026-02-01")}, Log: zerolog.Nop()})

	points, err := c.GetDailyCloses(context.Background(), "XEQT", day("2026-01-01"), day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.calls)
	require.Len(t, points, 1)
	assert.Equal(t, 55.0, points[0].Close)
}

type assertErr struct{}

func (assertErr) Error() string { return "primary source unavailable" }

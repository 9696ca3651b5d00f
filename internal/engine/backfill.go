package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"navtrack/internal/domain"
)

// SeedHistory replaces the buffer wholesale with count backfilled samples,
// timestamps spaced one tick apart and ending one tick before now. When the
// historical source answers, each bucket takes its reference price from the
// source series and the NAV from an independent band draw per point (no
// smoothing across backfilled data). Otherwise the series is a synthetic
// random walk that converges toward the live seed values at the newest
// point. The carried seed values are set to the final backfilled sample.
func (e *Engine) SeedHistory(ctx context.Context, count int) error {
	if count < 0 {
		return fmt.Errorf("seed history: negative count %d", count)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if count == 0 {
		e.samples = nil
		return nil
	}

	now := e.now()
	start := now.Add(-time.Duration(count) * e.cfg.Tick)

	points := e.recentSeries(ctx, count)
	var samples []domain.Sample
	if len(points) > 0 {
		samples = e.backfillFromSeries(start, count, points)
	} else {
		if e.lastRef == 0 || e.lastNAV == 0 {
			return fmt.Errorf("%w: no seed values for synthetic backfill", domain.ErrQuoteUnavailable)
		}
		samples = e.backfillSynthetic(start, count)
	}

	e.samples = samples
	last := samples[len(samples)-1]
	e.lastRef = last.ReferencePrice
	e.lastNAV = last.ApproximatedValue
	return nil
}

func (e *Engine) recentSeries(ctx context.Context, count int) []domain.PricePoint {
	if e.history == nil {
		return nil
	}
	window := time.Duration(count) * e.cfg.Tick
	points, err := e.history.RecentSeries(ctx, e.cfg.Symbol, window)
	if err != nil {
		slog.Warn("historical source unavailable, backfilling synthetically",
			slog.String("symbol", e.cfg.Symbol), slog.Any("error", err))
		return nil
	}
	return points
}

// backfillFromSeries maps each time bucket onto the source series one-to-one
// and derives the NAV from a fresh band draw per point.
func (e *Engine) backfillFromSeries(start time.Time, count int, points []domain.PricePoint) []domain.Sample {
	samples := make([]domain.Sample, 0, count)
	for i := 0; i < count; i++ {
		idx := i * len(points) / count
		ref := points[idx].Price.InexactFloat64()
		premium := e.uniform(-e.cfg.PremiumBandPct, e.cfg.PremiumBandPct)
		nav := ref / (1 + premium/100)
		ts := start.Add(time.Duration(i) * e.cfg.Tick)
		samples = append(samples, domain.NewSample(ts, ref, nav))
	}
	return samples
}

// backfillSynthetic walks both series below the live seeds with random
// offsets that shrink linearly toward "now", so the backfilled data meets
// the live values at the newest point.
func (e *Engine) backfillSynthetic(start time.Time, count int) []domain.Sample {
	samples := make([]domain.Sample, 0, count)
	for i := 0; i < count; i++ {
		decay := float64(count-i) / float64(count)
		ref := e.lastRef - e.uniform(0, e.cfg.WalkSpan)*decay
		nav := e.lastNAV - e.uniform(0, e.cfg.WalkSpan)*decay
		ts := start.Add(time.Duration(i) * e.cfg.Tick)
		samples = append(samples, domain.NewSample(ts, ref, nav))
	}
	return samples
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"navtrack/internal/domain"
	"navtrack/internal/engine"
	"navtrack/internal/infra"
)

// Runner owns the repeating advance task: one timer drives the engine at a
// fixed cadence, and pushed live quotes commit samples out of band between
// ticks. Advance failures are logged and retried on the next tick; they
// never stop the loop.
type Runner struct {
	engine   *engine.Engine
	recorder domain.SampleRecorder
	tick     time.Duration
	quotes   <-chan domain.Quote
}

// NewRunner creates a runner. quotes may be nil when no live feed is
// configured.
func NewRunner(eng *engine.Engine, rec domain.SampleRecorder, tick time.Duration, quotes <-chan domain.Quote) *Runner {
	if tick <= 0 {
		tick = time.Second
	}
	return &Runner{
		engine:   eng,
		recorder: rec,
		tick:     tick,
		quotes:   quotes,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	slog.Info("advance loop started", slog.Duration("tick", r.tick))
	for {
		select {
		case <-ctx.Done():
			slog.Info("advance loop stopped")
			return
		case <-ticker.C:
			sample, err := r.engine.Advance(ctx)
			r.afterAdvance(sample, err)
		case q, ok := <-r.quotes:
			if !ok {
				r.quotes = nil
				continue
			}
			sample, err := r.engine.ApplyQuote(ctx, q)
			r.afterAdvance(sample, err)
		}
	}
}

func (r *Runner) afterAdvance(sample domain.Sample, err error) {
	if err != nil {
		infra.GlobalMetrics.RecordAdvanceFailure()
		var advErr *domain.AdvanceError
		if errors.As(err, &advErr) {
			slog.Warn("tick skipped, will retry", slog.Any("error", advErr.Err))
		} else {
			slog.Warn("tick skipped, will retry", slog.Any("error", err))
		}
		return
	}

	infra.GlobalMetrics.RecordSampleCommitted()
	if err := r.recorder.Record(sample); err != nil {
		slog.Warn("failed to archive sample", slog.Any("error", err))
	}
}

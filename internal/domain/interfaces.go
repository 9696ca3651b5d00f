package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSource provides the current market price for a symbol. Implementations
// are treated as unreliable; callers absorb transient failures.
type QuoteSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// HistorySource provides a recent intraday price series for a symbol,
// ordered by ascending time. Used only for backfilling.
type HistorySource interface {
	RecentSeries(ctx context.Context, symbol string, window time.Duration) ([]PricePoint, error)
}

// StreamSource pushes live quotes for a symbol. Implementations own their
// reconnection policy and must keep retrying until disconnected.
type StreamSource interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	Quotes() <-chan Quote
}

// SampleRecorder archives committed samples for offline inspection.
// The archive is write-only from the engine's point of view; it is never
// read back to restore state.
type SampleRecorder interface {
	Record(sample Sample) error
}

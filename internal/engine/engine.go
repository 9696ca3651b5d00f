package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"navtrack/internal/domain"
)

// Config holds the tunables of the price-series engine.
type Config struct {
	// Symbol is the tracked ticker, e.g. "SPY".
	Symbol string

	// Retention caps the buffer length. Oldest samples are evicted first.
	Retention int

	// Tick is the spacing between samples. The caller drives Advance at
	// this cadence; SeedHistory spaces backfilled timestamps by it.
	Tick time.Duration

	// CacheTTL is how long a fetched quote is reused without a new
	// external call.
	CacheTTL time.Duration

	// FailureThreshold is how many consecutive fetch failures are absorbed
	// by the random-walk fallback before FetchReferencePrice gives up.
	FailureThreshold int

	// Perturbation bounds the symmetric random delta applied to the last
	// reference price when a fetch failure is absorbed (currency units).
	Perturbation float64

	// PremiumBandPct bounds the target premium drawn each tick (percent).
	PremiumBandPct float64

	// ReversionRate is the exponential-smoothing weight pulling the current
	// premium toward the target each tick.
	ReversionRate float64

	// PremiumNoisePct bounds the symmetric noise added to the smoothed
	// premium (absolute percentage points).
	PremiumNoisePct float64

	// WalkSpan scales the decaying random offsets of a synthetic backfill
	// (currency units).
	WalkSpan float64

	// SeedReference / SeedValue prime the random-walk fallback and the
	// premium model before any external data has been seen.
	SeedReference float64
	SeedValue     float64
}

func (c *Config) defaults() {
	if c.Retention == 0 {
		c.Retention = 3600
	}
	if c.Tick == 0 {
		c.Tick = time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 10 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.Perturbation == 0 {
		c.Perturbation = 0.05
	}
	if c.PremiumBandPct == 0 {
		c.PremiumBandPct = 0.05
	}
	if c.ReversionRate == 0 {
		c.ReversionRate = 0.2
	}
	if c.PremiumNoisePct == 0 {
		c.PremiumNoisePct = 0.005
	}
	if c.WalkSpan == 0 {
		c.WalkSpan = 2.0
	}
}

// Engine owns the bounded, time-ordered sample buffer and the state that
// carries the synthetic model between ticks. A single writer advances it;
// any number of readers may call the accessors concurrently.
type Engine struct {
	mu      sync.RWMutex
	quotes  domain.QuoteSource
	history domain.HistorySource
	cfg     Config

	samples []domain.Sample

	lastRef     float64
	lastNAV     float64
	cachedQuote float64
	cachedAt    time.Time
	failures    int

	now func() time.Time
	rng *rand.Rand
}

// New creates an engine. The history source may be nil; SeedHistory then
// always takes the synthetic path.
func New(cfg Config, quotes domain.QuoteSource, history domain.HistorySource) *Engine {
	cfg.defaults()
	return &Engine{
		quotes:  quotes,
		history: history,
		cfg:     cfg,
		lastRef: cfg.SeedReference,
		lastNAV: cfg.SeedValue,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchReferencePrice returns the current reference price, serving it from
// the short-lived cache when fresh. External failures within the threshold
// are absorbed by perturbing the last known price; past the threshold, or
// with no seed to walk from, it fails with ErrQuoteUnavailable.
func (e *Engine) FetchReferencePrice(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetchReferenceLocked(ctx)
}

func (e *Engine) fetchReferenceLocked(ctx context.Context) (float64, error) {
	now := e.now()
	if !e.cachedAt.IsZero() && now.Sub(e.cachedAt) < e.cfg.CacheTTL {
		return e.cachedQuote, nil
	}

	price, err := e.quotes.CurrentPrice(ctx, e.cfg.Symbol)
	if err == nil {
		v := price.InexactFloat64()
		e.lastRef = v
		e.cachedQuote = v
		e.cachedAt = now
		e.failures = 0
		return v, nil
	}

	e.failures++
	if e.failures > e.cfg.FailureThreshold {
		return 0, fmt.Errorf("%w: %d consecutive fetch failures: %v",
			domain.ErrQuoteUnavailable, e.failures, err)
	}
	if e.lastRef == 0 {
		return 0, fmt.Errorf("%w: no seed price for fallback", domain.ErrQuoteUnavailable)
	}
	e.lastRef += e.uniform(-e.cfg.Perturbation, e.cfg.Perturbation)
	return e.lastRef, nil
}

// ApproximateValue returns the modeled NAV for the current tick. It depends
// on FetchReferencePrice and fails with the same error kind.
func (e *Engine) ApproximateValue(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref, err := e.fetchReferenceLocked(ctx)
	if err != nil {
		return 0, err
	}
	return e.approximateLocked(ref)
}

// approximateLocked pulls the current premium toward a freshly drawn target
// inside the configured band, with a small noise term, then derives the NAV.
// The exact formula is load-bearing for the numeric behavior of the series.
func (e *Engine) approximateLocked(ref float64) (float64, error) {
	if e.lastNAV == 0 {
		return 0, fmt.Errorf("%w: no seed value for approximation", domain.ErrQuoteUnavailable)
	}

	target := e.uniform(-e.cfg.PremiumBandPct, e.cfg.PremiumBandPct)
	current := (ref - e.lastNAV) / e.lastNAV * 100
	premium := current + e.cfg.ReversionRate*(target-current) +
		e.uniform(-e.cfg.PremiumNoisePct, e.cfg.PremiumNoisePct)

	nav := ref / (1 + premium/100)
	e.lastNAV = nav
	return nav, nil
}

// Advance produces and commits the next sample: fetch the reference price,
// derive the NAV from it, append, evict. Nothing is committed if either
// step fails; the buffer is exactly as it was before the call.
func (e *Engine) Advance(ctx context.Context) (domain.Sample, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref, err := e.fetchReferenceLocked(ctx)
	if err != nil {
		return domain.Sample{}, &domain.AdvanceError{Err: err}
	}
	nav, err := e.approximateLocked(ref)
	if err != nil {
		return domain.Sample{}, &domain.AdvanceError{Err: err}
	}

	sample := domain.NewSample(e.now(), ref, nav)
	e.appendLocked(sample)
	return sample, nil
}

// ApplyQuote installs a pushed live quote as the cached reference price and
// commits a sample outside the regular tick cadence. Same commit contract
// as Advance.
func (e *Engine) ApplyQuote(ctx context.Context, q domain.Quote) (domain.Sample, error) {
	e.mu.Lock()
	v := q.Price.InexactFloat64()
	if v > 0 {
		e.lastRef = v
		e.cachedQuote = v
		e.cachedAt = e.now()
		e.failures = 0
	}
	e.mu.Unlock()

	return e.Advance(ctx)
}

func (e *Engine) appendLocked(s domain.Sample) {
	e.samples = append(e.samples, s)
	if n := len(e.samples) - e.cfg.Retention; n > 0 {
		// Reallocate so the evicted prefix does not pin the backing array.
		kept := make([]domain.Sample, e.cfg.Retention)
		copy(kept, e.samples[n:])
		e.samples = kept
	}
}

// GetAll returns a snapshot copy of the buffer, oldest first. Mutating the
// returned slice does not affect the engine.
func (e *Engine) GetAll() []domain.Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.Sample, len(e.samples))
	copy(out, e.samples)
	return out
}

// GetLatest returns the newest sample, or false when the buffer is empty.
func (e *Engine) GetLatest() (domain.Sample, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.samples) == 0 {
		return domain.Sample{}, false
	}
	return e.samples[len(e.samples)-1], true
}

// Len returns the current buffer length.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.samples)
}

// uniform draws from [lo, hi). Must be called with the write lock held.
func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

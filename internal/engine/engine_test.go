package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"navtrack/internal/domain"

	"github.com/shopspring/decimal"
)

// stubQuoteSource returns a fixed price, or fails while failing is set.
type stubQuoteSource struct {
	price   decimal.Decimal
	failing bool
	calls   int
}

func (s *stubQuoteSource) CurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	s.calls++
	if s.failing {
		return decimal.Zero, domain.NewFeedError("quote", errors.New("connection refused"))
	}
	return s.price, nil
}

// fakeClock gives tests control over the engine's notion of now.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestEngine(cfg Config, quotes domain.QuoteSource, history domain.HistorySource) (*Engine, *fakeClock) {
	e := New(cfg, quotes, history)
	clk := &fakeClock{t: time.Date(2024, 4, 1, 14, 30, 0, 0, time.UTC)}
	e.now = clk.Now
	e.rng = rand.New(rand.NewSource(42))
	return e, clk
}

func seededConfig() Config {
	return Config{
		Symbol:        "SPY",
		SeedReference: 478.50,
		SeedValue:     477.80,
	}
}

func TestEngine_AdvanceCommitsSample(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	e, _ := newTestEngine(seededConfig(), src, nil)

	sample, err := e.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if sample.ReferencePrice != 478.52 {
		t.Errorf("Expected reference price 478.52, got %v", sample.ReferencePrice)
	}
	if sample.ApproximatedValue <= 0 {
		t.Errorf("Expected positive NAV, got %v", sample.ApproximatedValue)
	}
	if got := sample.ReferencePrice - sample.ApproximatedValue; sample.Spread != got {
		t.Errorf("Spread = %v, want %v", sample.Spread, got)
	}

	latest, ok := e.GetLatest()
	if !ok {
		t.Fatal("GetLatest should return the committed sample")
	}
	if latest != sample {
		t.Errorf("GetLatest = %+v, want %+v", latest, sample)
	}
}

func TestEngine_ApproximateValueFormula(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	e, _ := newTestEngine(seededConfig(), src, nil)

	nav, err := e.ApproximateValue(context.Background())
	if err != nil {
		t.Fatalf("ApproximateValue failed: %v", err)
	}

	// Replay the same draws against an identically seeded generator.
	rng := rand.New(rand.NewSource(42))
	band, rate, noise := e.cfg.PremiumBandPct, e.cfg.ReversionRate, e.cfg.PremiumNoisePct
	target := -band + rng.Float64()*2*band
	jitter := -noise + rng.Float64()*2*noise

	ref, lastNAV := 478.52, 477.80
	current := (ref - lastNAV) / lastNAV * 100
	premium := current + rate*(target-current) + jitter
	want := ref / (1 + premium/100)

	if math.Abs(nav-want) > 1e-9 {
		t.Errorf("NAV = %.12f, want %.12f", nav, want)
	}
}

func TestEngine_PremiumStaysMeanReverting(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(500)}
	e, clk := newTestEngine(seededConfig(), src, nil)

	ctx := context.Background()
	var last domain.Sample
	for i := 0; i < 200; i++ {
		clk.Advance(time.Second)
		sample, err := e.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance %d failed: %v", i, err)
		}
		last = sample
	}

	// With a constant price the premium must settle well inside the band
	// plus the accumulated noise margin.
	pct, _ := last.SpreadPercent().Float64()
	if math.Abs(pct) > 0.1 {
		t.Errorf("Premium did not revert: %.4f%%", pct)
	}
}

func TestEngine_BoundedBufferAndFIFOEviction(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	cfg := seededConfig()
	cfg.Retention = 3600
	e, clk := newTestEngine(cfg, src, nil)

	ctx := context.Background()
	var second domain.Sample
	for i := 0; i < 3601; i++ {
		clk.Advance(time.Second)
		sample, err := e.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance %d failed: %v", i, err)
		}
		if i == 1 {
			second = sample
		}
	}

	all := e.GetAll()
	if len(all) != 3600 {
		t.Fatalf("Expected buffer length 3600, got %d", len(all))
	}
	// The first sample was evicted; the buffer now starts at the second.
	if !all[0].Timestamp.Equal(second.Timestamp) {
		t.Errorf("Expected oldest sample from 2nd advance (%v), got %v",
			second.Timestamp, all[0].Timestamp)
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("Buffer not sorted at index %d", i)
		}
	}
}

func TestEngine_EvictionKeepsLengthAtCap(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	cfg := seededConfig()
	cfg.Retention = 5
	e, clk := newTestEngine(cfg, src, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		clk.Advance(time.Second)
		if _, err := e.Advance(ctx); err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		before := e.GetAll()
		sample, err := e.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		after := e.GetAll()

		if len(after) != 5 {
			t.Fatalf("Buffer length %d, want 5", len(after))
		}
		if !after[0].Timestamp.Equal(before[1].Timestamp) {
			t.Error("Oldest sample was not the one evicted")
		}
		if !after[4].Timestamp.Equal(sample.Timestamp) {
			t.Error("New sample was not appended at the end")
		}
	}
}

func TestEngine_CacheHitSuppressesFetch(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	e, clk := newTestEngine(seededConfig(), src, nil)

	ctx := context.Background()
	first, err := e.FetchReferencePrice(ctx)
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	clk.Advance(5 * time.Second) // still inside the 10s TTL
	second, err := e.FetchReferencePrice(ctx)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	if first != second {
		t.Errorf("Cached fetch returned %v, want %v", second, first)
	}
	if src.calls != 1 {
		t.Errorf("Expected 1 external call, got %d", src.calls)
	}

	clk.Advance(6 * time.Second) // past the TTL now
	if _, err := e.FetchReferencePrice(ctx); err != nil {
		t.Fatalf("third fetch failed: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("Expected 2 external calls after TTL expiry, got %d", src.calls)
	}
}

func TestEngine_FailureAbsorption(t *testing.T) {
	src := &stubQuoteSource{failing: true}
	e, _ := newTestEngine(seededConfig(), src, nil)

	ctx := context.Background()
	prev := 478.50
	for i := 1; i <= 3; i++ {
		got, err := e.FetchReferencePrice(ctx)
		if err != nil {
			t.Fatalf("Failure %d should be absorbed, got error: %v", i, err)
		}
		if math.Abs(got-prev) > 0.05 {
			t.Errorf("Perturbation %d too large: %v -> %v", i, prev, got)
		}
		prev = got
	}

	// Fourth consecutive failure exceeds the threshold.
	_, err := e.FetchReferencePrice(ctx)
	if !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Fatalf("Expected ErrQuoteUnavailable on 4th failure, got %v", err)
	}
}

func TestEngine_FailureCountResetsOnSuccess(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52), failing: true}
	e, clk := newTestEngine(seededConfig(), src, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := e.FetchReferencePrice(ctx); err != nil {
			t.Fatalf("Failure %d should be absorbed: %v", i+1, err)
		}
	}

	src.failing = false
	got, err := e.FetchReferencePrice(ctx)
	if err != nil {
		t.Fatalf("Successful fetch failed: %v", err)
	}
	if got != 478.52 {
		t.Errorf("Expected fresh price 478.52, got %v", got)
	}

	// The counter reset: three more failures are absorbed again.
	src.failing = true
	for i := 0; i < 3; i++ {
		clk.Advance(11 * time.Second) // expire the cache each round
		if _, err := e.FetchReferencePrice(ctx); err != nil {
			t.Fatalf("Post-reset failure %d should be absorbed: %v", i+1, err)
		}
	}
}

func TestEngine_UnseededFallbackFails(t *testing.T) {
	src := &stubQuoteSource{failing: true}
	e, _ := newTestEngine(Config{Symbol: "SPY"}, src, nil)

	_, err := e.FetchReferencePrice(context.Background())
	if !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Fatalf("Expected ErrQuoteUnavailable without a seed, got %v", err)
	}
}

func TestEngine_NoPartialCommit(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	cfg := Config{Symbol: "SPY", SeedReference: 478.50} // NAV deliberately unseeded
	e, _ := newTestEngine(cfg, src, nil)

	_, err := e.Advance(context.Background())
	if err == nil {
		t.Fatal("Advance should fail when the approximation has no seed")
	}

	var advErr *domain.AdvanceError
	if !errors.As(err, &advErr) {
		t.Fatalf("Expected AdvanceError, got %T", err)
	}
	if !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Errorf("AdvanceError should wrap ErrQuoteUnavailable, got %v", err)
	}
	if !domain.IsRetriable(err) {
		t.Error("AdvanceError should be retriable")
	}

	// The fetch succeeded but nothing may have been committed.
	if got := e.Len(); got != 0 {
		t.Errorf("Buffer length %d after failed advance, want 0", got)
	}
}

func TestEngine_SpreadDerivedForEverySample(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	e, clk := newTestEngine(seededConfig(), src, nil)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		clk.Advance(time.Second)
		if _, err := e.Advance(ctx); err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
	}

	for i, s := range e.GetAll() {
		if math.Abs(s.Spread-(s.ReferencePrice-s.ApproximatedValue)) > 1e-12 {
			t.Fatalf("Sample %d: spread %v != ref-nav %v", i, s.Spread, s.ReferencePrice-s.ApproximatedValue)
		}
	}
}

func TestEngine_GetAllReturnsSnapshot(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	e, _ := newTestEngine(seededConfig(), src, nil)

	if _, err := e.Advance(context.Background()); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	snap := e.GetAll()
	snap[0].ReferencePrice = -1

	latest, _ := e.GetLatest()
	if latest.ReferencePrice == -1 {
		t.Error("Mutating the snapshot must not affect engine state")
	}
}

func TestEngine_GetLatestEmpty(t *testing.T) {
	src := &stubQuoteSource{price: decimal.NewFromFloat(478.52)}
	e, _ := newTestEngine(seededConfig(), src, nil)

	if _, ok := e.GetLatest(); ok {
		t.Error("GetLatest on an empty buffer should report absent")
	}
}

func TestEngine_ApplyQuoteCommitsOutOfBand(t *testing.T) {
	src := &stubQuoteSource{failing: true}
	e, _ := newTestEngine(seededConfig(), src, nil)

	q := domain.Quote{Symbol: "SPY", Price: decimal.NewFromFloat(480.00), Time: time.Now()}
	sample, err := e.ApplyQuote(context.Background(), q)
	if err != nil {
		t.Fatalf("ApplyQuote failed: %v", err)
	}

	if sample.ReferencePrice != 480.00 {
		t.Errorf("Expected pushed price 480.00, got %v", sample.ReferencePrice)
	}
	// The pushed quote primed the cache, so no external call happened.
	if src.calls != 0 {
		t.Errorf("Expected 0 external calls, got %d", src.calls)
	}
	if e.Len() != 1 {
		t.Errorf("Expected 1 committed sample, got %d", e.Len())
	}
}

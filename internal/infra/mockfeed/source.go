package mockfeed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"navtrack/internal/domain"

	"github.com/shopspring/decimal"
)

// Source is a drop-in replacement for the live quote and historical sources.
// It produces a bounded random walk and never fails, which makes it useful
// for offline development and for exercising the engine without burning API
// quota.
type Source struct {
	mu    sync.Mutex
	price float64
	step  float64
	rng   *rand.Rand
}

// New creates a simulated feed walking from the given start price with
// symmetric steps bounded by step.
func New(start, step float64) *Source {
	if step <= 0 {
		step = 0.25
	}
	return &Source{
		price: start,
		step:  step,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CurrentPrice advances the walk one step and returns the new price.
func (s *Source) CurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.price += (s.rng.Float64()*2 - 1) * s.step
	return decimal.NewFromFloat(s.price), nil
}

// RecentSeries generates a per-minute walk across the window that converges
// to the current price at the newest point.
func (s *Source) RecentSeries(_ context.Context, _ string, window time.Duration) ([]domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	minutes := int(window / time.Minute)
	if minutes <= 0 {
		minutes = 1
	}

	now := time.Now()
	points := make([]domain.PricePoint, 0, minutes)
	for i := 0; i < minutes; i++ {
		decay := float64(minutes-i) / float64(minutes)
		p := s.price - s.rng.Float64()*s.step*float64(minutes)/10*decay
		points = append(points, domain.PricePoint{
			Time:  now.Add(-time.Duration(minutes-i) * time.Minute),
			Price: decimal.NewFromFloat(p),
		})
	}
	return points, nil
}

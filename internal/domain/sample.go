package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one point of the tracked series: the market price of the fund,
// the modeled NAV at the same instant, and their difference. Immutable once
// built.
type Sample struct {
	Timestamp         time.Time `json:"timestamp"`
	ReferencePrice    float64   `json:"reference_price"`
	ApproximatedValue float64   `json:"approximated_value"`
	Spread            float64   `json:"spread"` // ReferencePrice - ApproximatedValue
}

// NewSample builds a Sample with the spread derived from the two prices.
func NewSample(ts time.Time, ref, nav float64) Sample {
	return Sample{
		Timestamp:         ts,
		ReferencePrice:    ref,
		ApproximatedValue: nav,
		Spread:            ref - nav,
	}
}

// SpreadPercent returns the spread as a percentage of the approximated value:
// 100 * (ReferencePrice - ApproximatedValue) / ApproximatedValue
func (s Sample) SpreadPercent() decimal.Decimal {
	nav := decimal.NewFromFloat(s.ApproximatedValue)
	if nav.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(s.ReferencePrice).Sub(nav).Div(nav).Mul(decimal.NewFromInt(100))
}

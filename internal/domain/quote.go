package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single price observation delivered by an external feed.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   time.Time       `json:"time"`
}

// PricePoint is one entry of a historical price series.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

package domain

import (
	"time"
)

// SampleRecord is the persisted form of a committed sample. Rows are
// append-only and exist for offline inspection; the engine never reads
// them back.
type SampleRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Timestamp         time.Time `gorm:"index" json:"timestamp"`
	ReferencePrice    float64   `json:"reference_price"`
	ApproximatedValue float64   `json:"approximated_value"`
	Spread            float64   `json:"spread"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewSampleRecord converts a Sample into its persisted form.
func NewSampleRecord(s Sample) SampleRecord {
	return SampleRecord{
		Timestamp:         s.Timestamp,
		ReferencePrice:    s.ReferencePrice,
		ApproximatedValue: s.ApproximatedValue,
		Spread:            s.Spread,
	}
}

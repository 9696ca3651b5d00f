package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"navtrack/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Archive persists committed samples to SQLite. It is an append-only sink
// for offline inspection: nothing in the application reads it back at
// startup, so a restart always begins from a fresh backfill.
type Archive struct {
	db *gorm.DB
}

// NewArchive opens (or creates) the archive database at path.
func NewArchive(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.AutoMigrate(&domain.SampleRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive database: %w", err)
	}

	return &Archive{db: db}, nil
}

// Record appends one committed sample.
func (a *Archive) Record(s domain.Sample) error {
	rec := domain.NewSampleRecord(s)
	return a.db.Create(&rec).Error
}

// Recent returns the newest limit records, newest first.
func (a *Archive) Recent(limit int) ([]domain.SampleRecord, error) {
	var recs []domain.SampleRecord
	err := a.db.Order("timestamp DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// CountSince returns how many samples were archived at or after t.
func (a *Archive) CountSince(t time.Time) (int64, error) {
	var n int64
	err := a.db.Model(&domain.SampleRecord{}).Where("timestamp >= ?", t).Count(&n).Error
	return n, err
}

// PruneBefore deletes records older than t so the archive stays bounded.
func (a *Archive) PruneBefore(t time.Time) error {
	return a.db.Where("timestamp < ?", t).Delete(&domain.SampleRecord{}).Error
}

// NoopRecorder satisfies domain.SampleRecorder when archiving is disabled.
type NoopRecorder struct{}

// Record discards the sample.
func (NoopRecorder) Record(domain.Sample) error { return nil }

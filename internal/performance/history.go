package performance

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/suteetoe/vendor-service/internal/model"
)

// HistoryRecorder appends and reads vendor performance snapshots.
// Snapshots are never updated; they go away only with their vendor.
type HistoryRecorder interface {
	WithTx(tx *gorm.DB) HistoryRecorder
	Append(ctx context.Context, vendorID uint, m model.PerformanceMetrics, at time.Time) (*model.HistoricalPerformance, error)
	// List returns snapshots oldest first
	List(ctx context.Context, vendorID uint) ([]model.HistoricalPerformance, error)
	Latest(ctx context.Context, vendorID uint) (*model.HistoricalPerformance, error)
	// Summary averages each metric over all snapshots and returns the snapshot count
	Summary(ctx context.Context, vendorID uint) (model.PerformanceMetrics, int64, error)
}

type historyRecorder struct {
	db *gorm.DB
}

// NewHistoryRecorder returns a gorm-backed HistoryRecorder
func NewHistoryRecorder(db *gorm.DB) HistoryRecorder {
	return &historyRecorder{db: db}
}

func (h *historyRecorder) WithTx(tx *gorm.DB) HistoryRecorder {
	return &historyRecorder{db: tx}
}

func (h *historyRecorder) Append(ctx context.Context, vendorID uint, m model.PerformanceMetrics, at time.Time) (*model.HistoricalPerformance, error) {
	snapshot := &model.HistoricalPerformance{
		VendorID:           vendorID,
		Date:               at,
		PerformanceMetrics: m,
	}
	if err := h.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (h *historyRecorder) List(ctx context.Context, vendorID uint) ([]model.HistoricalPerformance, error) {
	snapshots := make([]model.HistoricalPerformance, 0)
	err := h.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("date ASC").Order("id ASC").
		Find(&snapshots).Error
	return snapshots, err
}

func (h *historyRecorder) Latest(ctx context.Context, vendorID uint) (*model.HistoricalPerformance, error) {
	var snapshot model.HistoricalPerformance
	err := h.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("date DESC").Order("id DESC").
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

type historySummary struct {
	Count int64
	model.PerformanceMetrics
}

func (h *historyRecorder) Summary(ctx context.Context, vendorID uint) (model.PerformanceMetrics, int64, error) {
	var row historySummary
	err := h.db.WithContext(ctx).Model(&model.HistoricalPerformance{}).
		Select(`COUNT(*) AS count,
			COALESCE(AVG(on_time_delivery_rate), 0) AS on_time_delivery_rate,
			COALESCE(AVG(quality_rating_avg), 0) AS quality_rating_avg,
			COALESCE(AVG(average_response_time), 0) AS average_response_time,
			COALESCE(AVG(fulfillment_rate), 0) AS fulfillment_rate`).
		Where("vendor_id = ?", vendorID).
		Scan(&row).Error
	if err != nil {
		return model.PerformanceMetrics{}, 0, err
	}
	return row.PerformanceMetrics, row.Count, nil
}

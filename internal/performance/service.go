package performance

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suteetoe/vendor-service/internal/model"
	"github.com/suteetoe/vendor-service/pkg/logger"
	"github.com/suteetoe/vendor-service/prometheus"
)

// Recompute kinds reported to prometheus
const (
	kindFull         = "full"
	kindResponseTime = "response_time"
)

// Service owns vendor performance metrics. It recomputes them from the
// vendor's purchase orders and records a history snapshot per full recompute.
type Service struct {
	db      *gorm.DB
	vendors VendorRepository
	orders  OrderReader
	history HistoryRecorder
	now     func() time.Time
	metrics *prometheus.Metrics
	log     *zap.Logger

	// held back by a WithTx copy until Publish
	pending *[]func()
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now as the evaluation instant source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics publishes recompute counters and vendor gauges
func WithMetrics(m *prometheus.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService wires the aggregate to its collaborators
func NewService(db *gorm.DB, vendors VendorRepository, orders OrderReader, history HistoryRecorder, opts ...Option) *Service {
	s := &Service{
		db:      db,
		vendors: vendors,
		orders:  orders,
		history: history,
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGormService builds a Service over the default gorm repositories
func NewGormService(db *gorm.DB, opts ...Option) *Service {
	return NewService(db, NewVendorRepository(db), NewOrderReader(db), NewHistoryRecorder(db), opts...)
}

// WithTx returns a copy bound to an outer transaction. Recomputes then run
// in a savepoint and commit or roll back with the caller's writes. Gauges
// and success logs wait for Publish, which the caller runs after commit.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	c := *s
	c.db = tx
	if c.pending == nil {
		c.pending = new([]func())
	}
	return &c
}

// Publish applies what a WithTx copy held back. A copy whose transaction
// rolled back is dropped without calling it.
func (s *Service) Publish() {
	if s == nil || s.pending == nil {
		return
	}
	for _, fn := range *s.pending {
		fn()
	}
	*s.pending = nil
}

func (s *Service) afterCommit(fn func()) {
	if s.pending != nil {
		*s.pending = append(*s.pending, fn)
		return
	}
	fn()
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	if l, ok := logger.Lookup(ctx); ok {
		return l
	}
	return s.log
}

// RecomputeAndSnapshot recomputes all four metrics, saves them on the vendor
// and appends a snapshot, all in one transaction.
func (s *Service) RecomputeAndSnapshot(ctx context.Context, vendorID uint) (model.PerformanceMetrics, error) {
	start := time.Now()
	var computed model.PerformanceMetrics

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.vendors.WithTx(tx).LockByID(ctx, vendorID); err != nil {
			return err
		}

		orders, err := s.orders.WithTx(tx).ListByVendor(ctx, vendorID)
		if err != nil {
			return err
		}

		now := s.now()
		computed = Compute(orders, now)

		if err := s.vendors.WithTx(tx).SaveMetrics(ctx, vendorID, computed); err != nil {
			return err
		}
		_, err = s.history.WithTx(tx).Append(ctx, vendorID, computed, now)
		return err
	})
	err = WrapTx("recompute and snapshot", err)
	s.metrics.ObserveRecompute(kindFull, err, start)

	log := s.logger(ctx).With(zap.Uint("vendor_id", vendorID))
	if err != nil {
		log.Warn("Vendor performance recompute failed", zap.Error(err))
		return model.PerformanceMetrics{}, err
	}

	s.afterCommit(func() {
		s.publish(vendorID, computed)
		log.Info("Vendor performance recomputed",
			zap.Float64(MetricOnTimeDeliveryRate, computed.OnTimeDeliveryRate),
			zap.Float64(MetricQualityRatingAvg, computed.QualityRatingAvg),
			zap.Float64(MetricAverageResponseTime, computed.AverageResponseTime),
			zap.Float64(MetricFulfillmentRate, computed.FulfillmentRate))
	})
	return computed, nil
}

// RecomputeResponseTime refreshes only the average response time. No snapshot is written.
func (s *Service) RecomputeResponseTime(ctx context.Context, vendorID uint) (float64, error) {
	start := time.Now()
	var seconds float64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.vendors.WithTx(tx).LockByID(ctx, vendorID); err != nil {
			return err
		}

		orders, err := s.orders.WithTx(tx).ListByVendor(ctx, vendorID)
		if err != nil {
			return err
		}

		seconds = AverageResponseTime(orders)
		return s.vendors.WithTx(tx).SaveResponseTime(ctx, vendorID, seconds)
	})
	err = WrapTx("recompute response time", err)
	s.metrics.ObserveRecompute(kindResponseTime, err, start)
	if err != nil {
		s.logger(ctx).Warn("Vendor response time recompute failed", zap.Uint("vendor_id", vendorID), zap.Error(err))
		return 0, err
	}

	log := s.logger(ctx)
	s.afterCommit(func() {
		s.metrics.SetVendorMetric(vendorID, MetricAverageResponseTime, seconds)
		log.Debug("Vendor response time recomputed",
			zap.Uint("vendor_id", vendorID),
			zap.Float64(MetricAverageResponseTime, seconds))
	})
	return seconds, nil
}

// GetCurrentMetrics returns the metrics stored on the vendor
func (s *Service) GetCurrentMetrics(ctx context.Context, vendorID uint) (model.PerformanceMetrics, error) {
	vendor, err := s.vendors.WithTx(s.db).GetByID(ctx, vendorID)
	if err != nil {
		return model.PerformanceMetrics{}, WrapTx("get current metrics", err)
	}
	return vendor.PerformanceMetrics, nil
}

// GetLatestSnapshot returns the most recent snapshot, or ErrNoSnapshot
func (s *Service) GetLatestSnapshot(ctx context.Context, vendorID uint) (*model.HistoricalPerformance, error) {
	if err := s.ensureVendor(ctx, vendorID); err != nil {
		return nil, err
	}
	snapshot, err := s.history.WithTx(s.db).Latest(ctx, vendorID)
	if err != nil {
		return nil, WrapTx("get latest snapshot", err)
	}
	return snapshot, nil
}

// ListSnapshots returns the vendor's snapshots oldest first; never nil
func (s *Service) ListSnapshots(ctx context.Context, vendorID uint) ([]model.HistoricalPerformance, error) {
	if err := s.ensureVendor(ctx, vendorID); err != nil {
		return nil, err
	}
	snapshots, err := s.history.WithTx(s.db).List(ctx, vendorID)
	if err != nil {
		return nil, WrapTx("list snapshots", err)
	}
	if snapshots == nil {
		snapshots = []model.HistoricalPerformance{}
	}
	return snapshots, nil
}

// HistorySummary averages each metric across the vendor's snapshots
func (s *Service) HistorySummary(ctx context.Context, vendorID uint) (model.PerformanceMetrics, int64, error) {
	if err := s.ensureVendor(ctx, vendorID); err != nil {
		return model.PerformanceMetrics{}, 0, err
	}
	avg, count, err := s.history.WithTx(s.db).Summary(ctx, vendorID)
	if err != nil {
		return model.PerformanceMetrics{}, 0, WrapTx("history summary", err)
	}
	return avg, count, nil
}

// OnPurchaseOrderCreated recomputes the vendor after an order is created
func (s *Service) OnPurchaseOrderCreated(ctx context.Context, vendorID uint) error {
	_, err := s.RecomputeAndSnapshot(ctx, vendorID)
	return err
}

// OnPurchaseOrderUpdated recomputes the vendor after an order changes
func (s *Service) OnPurchaseOrderUpdated(ctx context.Context, vendorID uint) error {
	_, err := s.RecomputeAndSnapshot(ctx, vendorID)
	return err
}

// OnPurchaseOrderDeleted recomputes the vendor after an order is removed
func (s *Service) OnPurchaseOrderDeleted(ctx context.Context, vendorID uint) error {
	_, err := s.RecomputeAndSnapshot(ctx, vendorID)
	return err
}

// OnPurchaseOrderAcknowledged recomputes the vendor after an acknowledgment.
// Fulfillment depends on the acknowledgment date too, so this is a full recompute.
func (s *Service) OnPurchaseOrderAcknowledged(ctx context.Context, vendorID uint) error {
	_, err := s.RecomputeAndSnapshot(ctx, vendorID)
	return err
}

// ForgetVendor drops published gauges for a deleted vendor
func (s *Service) ForgetVendor(vendorID uint) {
	s.metrics.DeleteVendor(vendorID)
}

func (s *Service) ensureVendor(ctx context.Context, vendorID uint) error {
	_, err := s.vendors.WithTx(s.db).GetByID(ctx, vendorID)
	return WrapTx("get vendor", err)
}

func (s *Service) publish(vendorID uint, m model.PerformanceMetrics) {
	s.metrics.SetVendorMetric(vendorID, MetricOnTimeDeliveryRate, m.OnTimeDeliveryRate)
	s.metrics.SetVendorMetric(vendorID, MetricQualityRatingAvg, m.QualityRatingAvg)
	s.metrics.SetVendorMetric(vendorID, MetricAverageResponseTime, m.AverageResponseTime)
	s.metrics.SetVendorMetric(vendorID, MetricFulfillmentRate, m.FulfillmentRate)
}

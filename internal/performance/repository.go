package performance

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suteetoe/vendor-service/internal/model"
)

// VendorRepository reads vendors and writes their metric columns
type VendorRepository interface {
	WithTx(tx *gorm.DB) VendorRepository
	GetByID(ctx context.Context, id uint) (*model.Vendor, error)
	// LockByID reads the vendor row under an exclusive row lock held until the transaction ends
	LockByID(ctx context.Context, id uint) (*model.Vendor, error)
	SaveMetrics(ctx context.Context, id uint, m model.PerformanceMetrics) error
	SaveResponseTime(ctx context.Context, id uint, seconds float64) error
	// Delete removes the vendor together with its purchase orders and history
	Delete(ctx context.Context, id uint) error
}

// OrderReader lists a vendor's purchase orders
type OrderReader interface {
	WithTx(tx *gorm.DB) OrderReader
	ListByVendor(ctx context.Context, vendorID uint) ([]model.PurchaseOrder, error)
}

type vendorRepo struct {
	db *gorm.DB
}

// NewVendorRepository returns a gorm-backed VendorRepository
func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepo{db: db}
}

func (r *vendorRepo) WithTx(tx *gorm.DB) VendorRepository {
	return &vendorRepo{db: tx}
}

func (r *vendorRepo) GetByID(ctx context.Context, id uint) (*model.Vendor, error) {
	return r.first(r.db.WithContext(ctx), id)
}

func (r *vendorRepo) LockByID(ctx context.Context, id uint) (*model.Vendor, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *vendorRepo) first(db *gorm.DB, id uint) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := db.First(&vendor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}
	return &vendor, nil
}

func (r *vendorRepo) SaveMetrics(ctx context.Context, id uint, m model.PerformanceMetrics) error {
	result := r.db.WithContext(ctx).Model(&model.Vendor{}).Where("id = ?", id).Updates(map[string]interface{}{
		MetricOnTimeDeliveryRate:  m.OnTimeDeliveryRate,
		MetricQualityRatingAvg:    m.QualityRatingAvg,
		MetricAverageResponseTime: m.AverageResponseTime,
		MetricFulfillmentRate:     m.FulfillmentRate,
	})
	return rowsOrNotFound(result)
}

func (r *vendorRepo) SaveResponseTime(ctx context.Context, id uint, seconds float64) error {
	result := r.db.WithContext(ctx).Model(&model.Vendor{}).Where("id = ?", id).
		Update(MetricAverageResponseTime, seconds)
	return rowsOrNotFound(result)
}

func (r *vendorRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vendor_id = ?", id).Delete(&model.HistoricalPerformance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vendor_id = ?", id).Delete(&model.PurchaseOrder{}).Error; err != nil {
			return err
		}
		return rowsOrNotFound(tx.Delete(&model.Vendor{}, id))
	})
}

func rowsOrNotFound(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVendorNotFound
	}
	return nil
}

type orderReader struct {
	db *gorm.DB
}

// NewOrderReader returns a gorm-backed OrderReader
func NewOrderReader(db *gorm.DB) OrderReader {
	return &orderReader{db: db}
}

func (r *orderReader) WithTx(tx *gorm.DB) OrderReader {
	return &orderReader{db: tx}
}

func (r *orderReader) ListByVendor(ctx context.Context, vendorID uint) ([]model.PurchaseOrder, error) {
	var orders []model.PurchaseOrder
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).Order("id").Find(&orders).Error
	return orders, err
}

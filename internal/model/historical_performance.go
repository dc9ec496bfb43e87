package model

import "time"

// HistoricalPerformance is an immutable snapshot of a vendor's metrics
type HistoricalPerformance struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	VendorID uint      `json:"vendor_id" gorm:"index:idx_history_vendor_date,priority:1;not null"`
	Vendor   *Vendor   `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Date     time.Time `json:"date" gorm:"index:idx_history_vendor_date,priority:2;not null;<-:create"`

	PerformanceMetrics `gorm:"embedded"`
}

// TableName keeps the snapshot table name stable
func (HistoricalPerformance) TableName() string {
	return "historical_performances"
}

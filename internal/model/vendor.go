package model

import "time"

// Vendor represents a supplier tracked by the service.
// The embedded metrics are written only by a performance recompute.
type Vendor struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	Name           string `json:"name" gorm:"type:varchar(255);not null"`
	ContactDetails string `json:"contact_details" gorm:"type:text"`
	Address        string `json:"address" gorm:"type:text"`
	VendorCode     string `json:"vendor_code" gorm:"type:varchar(50);uniqueIndex;not null"`

	PerformanceMetrics `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// StatusCompleted is the only status the performance metrics treat as finished
const StatusCompleted = "completed"

// PurchaseOrder is a single order issued to a vendor
type PurchaseOrder struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	PONumber           string         `json:"po_number" gorm:"column:po_number;type:varchar(50);uniqueIndex;not null"`
	VendorID           uint           `json:"vendor_id" gorm:"index;not null"`
	Vendor             *Vendor        `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	OrderDate          time.Time      `json:"order_date" gorm:"not null"`
	DeliveryDate       time.Time      `json:"delivery_date" gorm:"not null"`
	Items              datatypes.JSON `json:"items"`
	Quantity           int            `json:"quantity" gorm:"not null"`
	Status             string         `json:"status" gorm:"type:varchar(20);index;not null"`
	QualityRating      *float64       `json:"quality_rating"`
	IssueDate          time.Time      `json:"issue_date" gorm:"not null"`
	AcknowledgmentDate *time.Time     `json:"acknowledgment_date"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsCompleted reports whether the order status is exactly "completed"
func (po *PurchaseOrder) IsCompleted() bool {
	return po.Status == StatusCompleted
}

// IsAcknowledged reports whether the vendor has acknowledged the order
func (po *PurchaseOrder) IsAcknowledged() bool {
	return po.AcknowledgmentDate != nil
}

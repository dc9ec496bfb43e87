package model

// PerformanceMetrics are the four derived vendor indicators.
// Rates are percentages in [0,100]; AverageResponseTime is in seconds.
type PerformanceMetrics struct {
	OnTimeDeliveryRate  float64 `json:"on_time_delivery_rate" gorm:"not null;default:0"`
	QualityRatingAvg    float64 `json:"quality_rating_avg" gorm:"not null;default:0"`
	AverageResponseTime float64 `json:"average_response_time" gorm:"not null;default:0"`
	FulfillmentRate     float64 `json:"fulfillment_rate" gorm:"not null;default:0"`
}

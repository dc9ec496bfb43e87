package performance

import (
	"time"

	"github.com/suteetoe/vendor-service/internal/model"
)

// Metric names used for logging and gauges
const (
	MetricOnTimeDeliveryRate  = "on_time_delivery_rate"
	MetricQualityRatingAvg    = "quality_rating_avg"
	MetricAverageResponseTime = "average_response_time"
	MetricFulfillmentRate     = "fulfillment_rate"
)

// Compute derives all four metrics from a vendor's purchase orders as of now.
func Compute(orders []model.PurchaseOrder, now time.Time) model.PerformanceMetrics {
	return model.PerformanceMetrics{
		OnTimeDeliveryRate:  OnTimeDeliveryRate(orders, now),
		QualityRatingAvg:    QualityRatingAvg(orders),
		AverageResponseTime: AverageResponseTime(orders),
		FulfillmentRate:     FulfillmentRate(orders),
	}
}

// OnTimeDeliveryRate is the percentage of completed orders whose delivery
// date is at or before now. It measures whether the delivery date has
// passed, not delivery against a promised date.
func OnTimeDeliveryRate(orders []model.PurchaseOrder, now time.Time) float64 {
	var completed, onTime int
	for i := range orders {
		if !orders[i].IsCompleted() {
			continue
		}
		completed++
		if !orders[i].DeliveryDate.After(now) {
			onTime++
		}
	}
	return percentage(onTime, completed)
}

// QualityRatingAvg is the mean rating over completed orders that carry a rating.
func QualityRatingAvg(orders []model.PurchaseOrder) float64 {
	var sum float64
	var rated int
	for i := range orders {
		if !orders[i].IsCompleted() || orders[i].QualityRating == nil {
			continue
		}
		sum += *orders[i].QualityRating
		rated++
	}
	if rated == 0 {
		return 0
	}
	return sum / float64(rated)
}

// AverageResponseTime is the mean acknowledgment delay in seconds.
//
// Every acknowledged order counts toward the divisor. Orders without an
// issue date add nothing to the sum, and an acknowledgment recorded before
// the issue date contributes zero rather than a negative delay.
func AverageResponseTime(orders []model.PurchaseOrder) float64 {
	var total float64
	var acknowledged int
	for i := range orders {
		po := &orders[i]
		if !po.IsAcknowledged() {
			continue
		}
		acknowledged++
		if po.IssueDate.IsZero() {
			continue
		}
		if delta := po.AcknowledgmentDate.Sub(po.IssueDate).Seconds(); delta > 0 {
			total += delta
		}
	}
	if acknowledged == 0 {
		return 0
	}
	return total / float64(acknowledged)
}

// FulfillmentRate is the percentage of all orders that are completed and acknowledged.
func FulfillmentRate(orders []model.PurchaseOrder) float64 {
	var fulfilled int
	for i := range orders {
		if orders[i].IsCompleted() && orders[i].IsAcknowledged() {
			fulfilled++
		}
	}
	return percentage(fulfilled, len(orders))
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suteetoe/vendor-service/internal/model"
	"github.com/suteetoe/vendor-service/internal/performance"
	"github.com/suteetoe/vendor-service/pkg/logger"
)

// PurchaseOrderRequest defines the body for purchase order creation and update
type PurchaseOrderRequest struct {
	PONumber           string         `json:"po_number"`
	VendorID           uint           `json:"vendor_id"`
	OrderDate          time.Time      `json:"order_date"`
	DeliveryDate       time.Time      `json:"delivery_date"`
	IssueDate          time.Time      `json:"issue_date"`
	AcknowledgmentDate *time.Time     `json:"acknowledgment_date"`
	Items              datatypes.JSON `json:"items"`
	Quantity           int            `json:"quantity"`
	Status             string         `json:"status"`
	QualityRating      *float64       `json:"quality_rating"`
}

func (r *PurchaseOrderRequest) validate() string {
	r.PONumber = strings.TrimSpace(r.PONumber)
	r.Status = strings.TrimSpace(r.Status)
	switch {
	case r.PONumber == "":
		return "po_number is required"
	case r.VendorID == 0:
		return "vendor_id is required"
	case r.Status == "":
		return "status is required"
	case r.OrderDate.IsZero(), r.DeliveryDate.IsZero(), r.IssueDate.IsZero():
		return "order_date, delivery_date and issue_date are required"
	case len(r.Items) == 0:
		return "items is required"
	case r.Quantity < 0:
		return "quantity must not be negative"
	case r.QualityRating != nil && *r.QualityRating < 0:
		return "quality_rating must not be negative"
	}
	return ""
}

func (r *PurchaseOrderRequest) apply(po *model.PurchaseOrder) {
	po.PONumber = r.PONumber
	po.VendorID = r.VendorID
	po.OrderDate = r.OrderDate
	po.DeliveryDate = r.DeliveryDate
	po.IssueDate = r.IssueDate
	po.Items = r.Items
	po.Quantity = r.Quantity
	po.Status = r.Status
	po.QualityRating = r.QualityRating
}

// AcknowledgeRequest optionally carries the acknowledgment instant
type AcknowledgeRequest struct {
	AcknowledgmentDate *time.Time `json:"acknowledgment_date"`
}

func poNumberTaken(tx *gorm.DB, number string, excludeID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.PurchaseOrder{}).
		Where("po_number = ? AND id <> ?", number, excludeID).
		Count(&count).Error
	return count > 0, err
}

func findOrder(tx *gorm.DB, id uint) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := tx.First(&po, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound
		}
		return nil, err
	}
	return &po, nil
}

// forUpdate row-locks the order being mutated until the transaction ends;
// a concurrent acknowledge then waits instead of being overwritten.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// recomputeVendors recomputes each distinct vendor in ascending ID order so
// concurrent multi-vendor updates take row locks in the same order. perf must
// be bound to the caller's transaction; Publish it once that commits.
func recomputeVendors(ctx context.Context, perf *performance.Service, hook func(*performance.Service, context.Context, uint) error, vendorIDs ...uint) error {
	sort.Slice(vendorIDs, func(i, j int) bool { return vendorIDs[i] < vendorIDs[j] })
	for i, id := range vendorIDs {
		if i > 0 && id == vendorIDs[i-1] {
			continue
		}
		if err := hook(perf, ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CreatePurchaseOrder stores an order and recomputes its vendor in the same transaction
func (h *Handler) CreatePurchaseOrder(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordPurchaseOrderOperation("create")

	var req PurchaseOrderRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	var po model.PurchaseOrder
	req.apply(&po)
	po.AcknowledgmentDate = req.AcknowledgmentDate

	defer h.metrics.TrackDBOperation("insert")(time.Now())

	ctx := c.Request().Context()
	var perf *performance.Service
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perf = h.perf.WithTx(tx)
		if _, err := h.vendors.WithTx(tx).GetByID(ctx, po.VendorID); err != nil {
			return err
		}
		taken, err := poNumberTaken(tx, po.PONumber, 0)
		if err != nil {
			return err
		}
		if taken {
			return errDuplicatePONumber
		}
		if err := tx.Create(&po).Error; err != nil {
			return err
		}
		return recomputeVendors(ctx, perf, (*performance.Service).OnPurchaseOrderCreated, po.VendorID)
	})
	if err != nil {
		log.Warn("Failed to create purchase order", zap.String("po_number", req.PONumber), zap.Error(err))
		return respondError(c, performance.WrapTx("create purchase order", err), "Failed to create purchase order")
	}
	perf.Publish()

	log.Info("Purchase order created successfully",
		zap.Uint("id", po.ID),
		zap.String("po_number", po.PONumber),
		zap.Uint("vendor_id", po.VendorID))
	return c.JSON(http.StatusCreated, po)
}

// GetPurchaseOrder retrieves a purchase order by ID
func (h *Handler) GetPurchaseOrder(c echo.Context) error {
	h.metrics.RecordPurchaseOrderOperation("get")

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid purchase order ID")
	}

	defer h.metrics.TrackDBOperation("query")(time.Now())

	po, err := findOrder(h.db.WithContext(c.Request().Context()), id)
	if err != nil {
		return respondError(c, err, "Failed to retrieve purchase order")
	}
	return c.JSON(http.StatusOK, po)
}

// ListPurchaseOrders retrieves orders, optionally filtered by vendor_id and status
func (h *Handler) ListPurchaseOrders(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordPurchaseOrderOperation("list")

	p := parsePagination(c)
	query := h.db.WithContext(c.Request().Context()).Model(&model.PurchaseOrder{})

	if v := c.QueryParam("vendor_id"); v != "" {
		vendorID, err := strconv.ParseUint(v, 10, 32)
		if err != nil || vendorID == 0 {
			return badRequest(c, "Invalid vendor_id")
		}
		query = query.Where("vendor_id = ?", vendorID)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	defer h.metrics.TrackDBOperation("query")(time.Now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, "Failed to retrieve purchase orders")
	}

	orders := make([]model.PurchaseOrder, 0)
	if err := query.Order("id").Limit(p.Limit).Offset(p.Offset).Find(&orders).Error; err != nil {
		return respondError(c, err, "Failed to retrieve purchase orders")
	}

	log.Debug("Purchase orders retrieved", zap.Int("count", len(orders)), zap.Int64("total", total))
	return c.JSON(http.StatusOK, echo.Map{
		"purchase_orders": orders,
		"pagination":      p.response(total),
	})
}

// UpdatePurchaseOrder replaces an order's fields and recomputes every vendor it touched
func (h *Handler) UpdatePurchaseOrder(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordPurchaseOrderOperation("update")

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid purchase order ID")
	}

	var req PurchaseOrderRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Uint("purchase_order_id", id), zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	defer h.metrics.TrackDBOperation("update")(time.Now())

	ctx := c.Request().Context()
	var po *model.PurchaseOrder
	var perf *performance.Service
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perf = h.perf.WithTx(tx)
		var err error
		po, err = findOrder(forUpdate(tx), id)
		if err != nil {
			return err
		}
		previousVendor := po.VendorID

		if req.VendorID != previousVendor {
			if _, err := h.vendors.WithTx(tx).GetByID(ctx, req.VendorID); err != nil {
				return err
			}
		}
		taken, err := poNumberTaken(tx, req.PONumber, id)
		if err != nil {
			return err
		}
		if taken {
			return errDuplicatePONumber
		}

		// An acknowledgment, once recorded, is kept as evidence
		switch {
		case po.AcknowledgmentDate == nil:
			po.AcknowledgmentDate = req.AcknowledgmentDate
		case req.AcknowledgmentDate != nil && !req.AcknowledgmentDate.Equal(*po.AcknowledgmentDate):
			return errAcknowledgmentLocked
		}

		req.apply(po)
		if err := tx.Save(po).Error; err != nil {
			return err
		}
		return recomputeVendors(ctx, perf, (*performance.Service).OnPurchaseOrderUpdated, previousVendor, po.VendorID)
	})
	if err != nil {
		return respondError(c, performance.WrapTx("update purchase order", err), "Failed to update purchase order")
	}
	perf.Publish()

	log.Info("Purchase order updated successfully",
		zap.Uint("purchase_order_id", id),
		zap.String("status", po.Status),
		zap.Uint("vendor_id", po.VendorID))
	return c.JSON(http.StatusOK, po)
}

// DeletePurchaseOrder removes an order and recomputes its vendor
func (h *Handler) DeletePurchaseOrder(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordPurchaseOrderOperation("delete")

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid purchase order ID")
	}

	defer h.metrics.TrackDBOperation("delete")(time.Now())

	ctx := c.Request().Context()
	var perf *performance.Service
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perf = h.perf.WithTx(tx)
		po, err := findOrder(forUpdate(tx), id)
		if err != nil {
			return err
		}
		if err := tx.Delete(po).Error; err != nil {
			return err
		}
		return recomputeVendors(ctx, perf, (*performance.Service).OnPurchaseOrderDeleted, po.VendorID)
	})
	if err != nil {
		return respondError(c, performance.WrapTx("delete purchase order", err), "Failed to delete purchase order")
	}
	perf.Publish()

	log.Info("Purchase order deleted successfully", zap.Uint("purchase_order_id", id))
	return c.NoContent(http.StatusNoContent)
}

// AcknowledgePurchaseOrder records the vendor's acknowledgment exactly once
func (h *Handler) AcknowledgePurchaseOrder(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordPurchaseOrderOperation("acknowledge")

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid purchase order ID")
	}

	// The body is optional; an empty one acknowledges at the current time
	var req AcknowledgeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	ackAt := h.now()
	if req.AcknowledgmentDate != nil {
		ackAt = *req.AcknowledgmentDate
	}

	defer h.metrics.TrackDBOperation("update")(time.Now())

	ctx := c.Request().Context()
	var po *model.PurchaseOrder
	var perf *performance.Service
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perf = h.perf.WithTx(tx)
		var err error
		po, err = findOrder(forUpdate(tx), id)
		if err != nil {
			return err
		}
		if po.IsAcknowledged() {
			return errAlreadyAcknowledged
		}

		// Guarded update so two racing acknowledgments cannot both succeed
		result := tx.Model(&model.PurchaseOrder{}).
			Where("id = ? AND acknowledgment_date IS NULL", id).
			Update("acknowledgment_date", ackAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errAlreadyAcknowledged
		}
		po.AcknowledgmentDate = &ackAt

		return recomputeVendors(ctx, perf, (*performance.Service).OnPurchaseOrderAcknowledged, po.VendorID)
	})
	if err != nil {
		return respondError(c, performance.WrapTx("acknowledge purchase order", err), "Failed to acknowledge purchase order")
	}
	perf.Publish()

	log.Info("Purchase order acknowledged",
		zap.Uint("purchase_order_id", id),
		zap.Uint("vendor_id", po.VendorID),
		zap.Time("acknowledgment_date", ackAt))
	return c.JSON(http.StatusOK, po)
}

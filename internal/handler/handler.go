package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suteetoe/vendor-service/internal/performance"
	"github.com/suteetoe/vendor-service/pkg/logger"
	"github.com/suteetoe/vendor-service/prometheus"
)

var (
	errDuplicateVendorCode  = errors.New("vendor with this code already exists")
	errDuplicatePONumber    = errors.New("purchase order with this number already exists")
	errOrderNotFound        = errors.New("purchase order not found")
	errAlreadyAcknowledged  = errors.New("purchase order already acknowledged")
	errAcknowledgmentLocked = errors.New("acknowledgment date cannot be changed once set")
)

// Handler serves the vendor, purchase order and performance endpoints
type Handler struct {
	db      *gorm.DB
	vendors performance.VendorRepository
	perf    *performance.Service
	metrics *prometheus.Metrics
	now     func() time.Time
}

// New creates a Handler. metrics may be nil.
func New(db *gorm.DB, perf *performance.Service, metrics *prometheus.Metrics) *Handler {
	return &Handler{
		db:      db,
		vendors: performance.NewVendorRepository(db),
		perf:    perf,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register mounts all API routes on g
func (h *Handler) Register(g *echo.Group) {
	vendors := g.Group("/vendors")
	vendors.POST("", h.CreateVendor)
	vendors.GET("", h.ListVendors)
	vendors.GET("/:id", h.GetVendor)
	vendors.PUT("/:id", h.UpdateVendor)
	vendors.DELETE("/:id", h.DeleteVendor)

	vendors.GET("/:id/performance", h.VendorPerformance)
	vendors.GET("/:id/performance/current", h.CurrentMetrics)
	vendors.POST("/:id/performance/recompute", h.RecomputePerformance)
	vendors.POST("/:id/performance/response-time", h.RecomputeResponseTime)
	vendors.GET("/:id/performance/history", h.ListHistory)
	vendors.GET("/:id/performance/history/latest", h.LatestSnapshot)

	orders := g.Group("/purchase_orders")
	orders.POST("", h.CreatePurchaseOrder)
	orders.GET("", h.ListPurchaseOrders)
	orders.GET("/:id", h.GetPurchaseOrder)
	orders.PUT("/:id", h.UpdatePurchaseOrder)
	orders.DELETE("/:id", h.DeletePurchaseOrder)
	orders.POST("/:id/acknowledge", h.AcknowledgePurchaseOrder)
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

type pagination struct {
	Page   int
	Limit  int
	Offset int
}

func parsePagination(c echo.Context) pagination {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20 // Default limit
	}

	return pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

func (p pagination) response(total int64) echo.Map {
	return echo.Map{
		"current_page": p.Page,
		"limit":        p.Limit,
		"total":        total,
		"total_pages":  (int(total) + p.Limit - 1) / p.Limit,
	}
}

// respondError maps service errors onto HTTP responses
func respondError(c echo.Context, err error, msg string) error {
	log := logger.FromContext(c)

	switch {
	case errors.Is(err, performance.ErrVendorNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Vendor not found"})
	case errors.Is(err, errOrderNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Purchase order not found"})
	case errors.Is(err, performance.ErrNoSnapshot):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no snapshot"})
	case errors.Is(err, errDuplicateVendorCode), errors.Is(err, errDuplicatePONumber),
		errors.Is(err, errAlreadyAcknowledged), errors.Is(err, errAcknowledgmentLocked):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case performance.IsRetryable(err):
		log.Error(msg, zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msg, "retryable": true})
	default:
		log.Error(msg, zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// Hello is a simple handler that returns a welcome message.
// Used for health check and root endpoints.
func Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Vendor Service API is running",
		"version": "1.0.0",
	})
}

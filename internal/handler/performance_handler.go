package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/vendor-service/pkg/logger"
)

// VendorPerformance recomputes the vendor, then reports the current metrics
// together with their average over the recorded history.
func (h *Handler) VendorPerformance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	ctx := c.Request().Context()
	current, err := h.perf.RecomputeAndSnapshot(ctx, id)
	if err != nil {
		return respondError(c, err, "Failed to compute vendor performance")
	}

	avg, count, err := h.perf.HistorySummary(ctx, id)
	if err != nil {
		return respondError(c, err, "Failed to summarize vendor performance")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"vendor":             id,
		"current":            current,
		"historical_average": avg,
		"snapshot_count":     count,
	})
}

// CurrentMetrics returns the metrics stored on the vendor without recomputing
func (h *Handler) CurrentMetrics(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	metrics, err := h.perf.GetCurrentMetrics(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to retrieve vendor metrics")
	}
	return c.JSON(http.StatusOK, metrics)
}

// RecomputePerformance runs recompute-and-snapshot on demand
func (h *Handler) RecomputePerformance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	metrics, err := h.perf.RecomputeAndSnapshot(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to recompute vendor performance")
	}

	logger.FromContext(c).Info("Vendor performance recomputed on request", zap.Uint("vendor_id", id))
	return c.JSON(http.StatusOK, metrics)
}

// RecomputeResponseTime refreshes only the average response time
func (h *Handler) RecomputeResponseTime(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	seconds, err := h.perf.RecomputeResponseTime(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to recompute response time")
	}
	return c.JSON(http.StatusOK, echo.Map{"average_response_time": seconds})
}

// ListHistory returns the vendor's snapshots oldest first
func (h *Handler) ListHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	snapshots, err := h.perf.ListSnapshots(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to retrieve vendor history")
	}
	return c.JSON(http.StatusOK, echo.Map{"vendor": id, "history": snapshots})
}

// LatestSnapshot returns the most recent snapshot
func (h *Handler) LatestSnapshot(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	snapshot, err := h.perf.GetLatestSnapshot(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to retrieve latest snapshot")
	}
	return c.JSON(http.StatusOK, snapshot)
}

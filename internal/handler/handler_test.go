package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/suteetoe/vendor-service/internal/model"
	"github.com/suteetoe/vendor-service/internal/performance"
	"github.com/suteetoe/vendor-service/pkg/database/dbtest"
	"github.com/suteetoe/vendor-service/prometheus"
)

type testAPI struct {
	e  *echo.Echo
	db *gorm.DB
	h  *Handler
}

func newTestAPI(t *testing.T) *testAPI {
	return newTestAPIWithMetrics(t, nil)
}

func newTestAPIWithMetrics(t *testing.T, metrics *prometheus.Metrics) *testAPI {
	t.Helper()
	db := dbtest.New(t)
	h := New(db, performance.NewGormService(db, performance.WithMetrics(metrics)), metrics)

	e := echo.New()
	e.GET("/health", Hello)
	h.Register(e.Group("/api"))
	return &testAPI{e: e, db: db, h: h}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createVendor(t *testing.T, code string) model.Vendor {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/vendors", echo.Map{
		"name":            "Vendor " + code,
		"contact_details": "ops@example.com",
		"address":         "1 Supply Rd",
		"vendor_code":     code,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Vendor](t, rec)
}

// testNow is truncated so timestamps survive the database round trip exactly
var testNow = time.Now().UTC().Truncate(time.Second)

func orderBody(vendorID uint, number, status string) echo.Map {
	return echo.Map{
		"po_number":     number,
		"vendor_id":     vendorID,
		"order_date":    testNow.Add(-96 * time.Hour),
		"issue_date":    testNow.Add(-72 * time.Hour),
		"delivery_date": testNow.Add(-48 * time.Hour),
		"items":         []echo.Map{{"item_name": "Widget", "quantity": 5}},
		"quantity":      5,
		"status":        status,
	}
}

func (a *testAPI) createOrder(t *testing.T, body echo.Map) model.PurchaseOrder {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/purchase_orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.PurchaseOrder](t, rec)
}

func (a *testAPI) current(t *testing.T, vendorID uint) model.PerformanceMetrics {
	t.Helper()
	rec := a.do(t, http.MethodGet, fmt.Sprintf("/api/vendors/%d/performance/current", vendorID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[model.PerformanceMetrics](t, rec)
}

func (a *testAPI) historyLen(t *testing.T, vendorID uint) int {
	t.Helper()
	rec := a.do(t, http.MethodGet, fmt.Sprintf("/api/vendors/%d/performance/history", vendorID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		History []model.HistoricalPerformance `json:"history"`
	}](t, rec)
	return len(body.History)
}

func TestHello(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Vendor Service API is running")
}

func TestVendorCRUD(t *testing.T) {
	api := newTestAPI(t)
	vendor := api.createVendor(t, "V-001")
	assert.Equal(t, 0.0, vendor.OnTimeDeliveryRate)

	t.Run("duplicate code", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/vendors", echo.Map{"name": "Other", "vendor_code": "V-001"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/vendors", echo.Map{"vendor_code": "V-XYZ"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/vendors/%d", vendor.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "V-001", decode[model.Vendor](t, rec).VendorCode)

		rec = api.do(t, http.MethodGet, "/api/vendors/424242", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = api.do(t, http.MethodGet, "/api/vendors/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update ignores metric fields", func(t *testing.T) {
		rec := api.do(t, http.MethodPut, fmt.Sprintf("/api/vendors/%d", vendor.ID), echo.Map{
			"name":                  "Renamed",
			"vendor_code":           "V-001",
			"on_time_delivery_rate": 99.0,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[model.Vendor](t, rec)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, 0.0, updated.OnTimeDeliveryRate)
	})

	t.Run("list", func(t *testing.T) {
		api.createVendor(t, "V-002")
		api.createVendor(t, "V-003")

		rec := api.do(t, http.MethodGet, "/api/vendors?limit=2&page=2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[struct {
			Vendors    []model.Vendor `json:"vendors"`
			Pagination struct {
				Total      int `json:"total"`
				TotalPages int `json:"total_pages"`
			} `json:"pagination"`
		}](t, rec)
		assert.Len(t, body.Vendors, 1)
		assert.Equal(t, 3, body.Pagination.Total)
		assert.Equal(t, 2, body.Pagination.TotalPages)
	})
}

func TestDeleteVendor_Cascades(t *testing.T) {
	api := newTestAPI(t)
	vendor := api.createVendor(t, "V-DEL")
	po := api.createOrder(t, orderBody(vendor.ID, "PO-DEL-1", model.StatusCompleted))

	rec := api.do(t, http.MethodDelete, fmt.Sprintf("/api/vendors/%d", vendor.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/purchase_orders/%d", po.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var snapshots int64
	require.NoError(t, api.db.Model(&model.HistoricalPerformance{}).Count(&snapshots).Error)
	assert.Zero(t, snapshots)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/vendors/%d", vendor.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchaseOrders_RecomputeOnEveryMutation(t *testing.T) {
	api := newTestAPI(t)
	vendor := api.createVendor(t, "V-A")
	issued := testNow.Add(-72 * time.Hour)

	completed := orderBody(vendor.ID, "PO-A-1", model.StatusCompleted)
	completed["quality_rating"] = 4.0
	completed["acknowledgment_date"] = issued.Add(time.Hour)
	api.createOrder(t, completed)

	pendingBody := orderBody(vendor.ID, "PO-A-2", "pending")
	pendingBody["delivery_date"] = testNow.Add(72 * time.Hour)
	pending := api.createOrder(t, pendingBody)

	got := api.current(t, vendor.ID)
	assert.Equal(t, 100.0, got.OnTimeDeliveryRate)
	assert.Equal(t, 4.0, got.QualityRatingAvg)
	assert.Equal(t, 50.0, got.FulfillmentRate)
	assert.InDelta(t, 3600.0, got.AverageResponseTime, 1e-6)
	assert.Equal(t, 2, api.historyLen(t, vendor.ID))

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/api/purchase_orders/%d/acknowledge", pending.ID),
		echo.Map{"acknowledgment_date": issued.Add(3 * time.Hour)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got = api.current(t, vendor.ID)
	assert.InDelta(t, 7200.0, got.AverageResponseTime, 1e-6)
	assert.Equal(t, 50.0, got.FulfillmentRate)
	assert.Equal(t, 3, api.historyLen(t, vendor.ID))

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/purchase_orders/%d/acknowledge", pending.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 3, api.historyLen(t, vendor.ID))

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/purchase_orders/%d", pending.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	got = api.current(t, vendor.ID)
	assert.InDelta(t, 3600.0, got.AverageResponseTime, 1e-6)
	assert.Equal(t, 100.0, got.FulfillmentRate)
	assert.Equal(t, 4, api.historyLen(t, vendor.ID))
}

func TestUpdatePurchaseOrder_AcknowledgmentIsImmutable(t *testing.T) {
	api := newTestAPI(t)
	vendor := api.createVendor(t, "V-IMM")
	po := api.createOrder(t, orderBody(vendor.ID, "PO-IMM-1", "pending"))

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/api/purchase_orders/%d/acknowledge", po.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acked := decode[model.PurchaseOrder](t, rec)
	require.NotNil(t, acked.AcknowledgmentDate)

	body := orderBody(vendor.ID, "PO-IMM-1", model.StatusCompleted)
	body["acknowledgment_date"] = acked.AcknowledgmentDate.Add(time.Hour)
	rec = api.do(t, http.MethodPut, fmt.Sprintf("/api/purchase_orders/%d", po.ID), body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// omitting it keeps the recorded value
	delete(body, "acknowledgment_date")
	rec = api.do(t, http.MethodPut, fmt.Sprintf("/api/purchase_orders/%d", po.ID), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.PurchaseOrder](t, rec)
	require.NotNil(t, updated.AcknowledgmentDate)
	assert.True(t, updated.AcknowledgmentDate.Equal(*acked.AcknowledgmentDate))
	assert.Equal(t, 100.0, api.current(t, vendor.ID).FulfillmentRate)
}

func TestUpdatePurchaseOrder_MovingVendorRecomputesBoth(t *testing.T) {
	api := newTestAPI(t)
	from := api.createVendor(t, "V-FROM")
	to := api.createVendor(t, "V-TO")

	body := orderBody(from.ID, "PO-MOVE-1", model.StatusCompleted)
	body["quality_rating"] = 5.0
	po := api.createOrder(t, body)
	assert.Equal(t, 5.0, api.current(t, from.ID).QualityRatingAvg)

	body["vendor_id"] = to.ID
	rec := api.do(t, http.MethodPut, fmt.Sprintf("/api/purchase_orders/%d", po.ID), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 0.0, api.current(t, from.ID).QualityRatingAvg)
	assert.Equal(t, 5.0, api.current(t, to.ID).QualityRatingAvg)
	assert.Equal(t, 2, api.historyLen(t, from.ID))
	assert.Equal(t, 1, api.historyLen(t, to.ID))
}

func TestCreatePurchaseOrder_Validation(t *testing.T) {
	api := newTestAPI(t)
	vendor := api.createVendor(t, "V-VAL")
	api.createOrder(t, orderBody(vendor.ID, "PO-VAL-1", "pending"))

	tests := []struct {
		name string
		body echo.Map
		want int
	}{
		{name: "unknown vendor", body: orderBody(9999, "PO-VAL-2", "pending"), want: http.StatusNotFound},
		{name: "duplicate number", body: orderBody(vendor.ID, "PO-VAL-1", "pending"), want: http.StatusConflict},
		{name: "missing status", body: orderBody(vendor.ID, "PO-VAL-3", ""), want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/purchase_orders", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/purchase_orders?vendor_id=%d&status=pending", vendor.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Orders []model.PurchaseOrder `json:"purchase_orders"`
	}](t, rec)
	assert.Len(t, body.Orders, 1)
	assert.Equal(t, 1, api.historyLen(t, vendor.ID))
}

func TestPerformanceEndpoints(t *testing.T) {
	api := newTestAPI(t)
	vendor := api.createVendor(t, "V-PERF")
	base := fmt.Sprintf("/api/vendors/%d/performance", vendor.ID)

	rec := api.do(t, http.MethodGet, base+"/history/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no snapshot")
	assert.Equal(t, 0, api.historyLen(t, vendor.ID))

	rec = api.do(t, http.MethodPost, base+"/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PerformanceMetrics{}, decode[model.PerformanceMetrics](t, rec))
	assert.Equal(t, 1, api.historyLen(t, vendor.ID))

	rec = api.do(t, http.MethodGet, base+"/history/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vendor.ID, decode[model.HistoricalPerformance](t, rec).VendorID)

	rec = api.do(t, http.MethodPost, base+"/response-time", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, api.historyLen(t, vendor.ID))

	rec = api.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[struct {
		Vendor        uint  `json:"vendor"`
		SnapshotCount int64 `json:"snapshot_count"`
	}](t, rec)
	assert.Equal(t, vendor.ID, summary.Vendor)
	assert.Equal(t, int64(2), summary.SnapshotCount)

	for _, path := range []string{"/api/vendors/9999/performance", "/api/vendors/9999/performance/history"} {
		rec = api.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestListPurchaseOrders_RejectsZeroVendorID(t *testing.T) {
	api := newTestAPI(t)

	for _, v := range []string{"0", "-1", "abc"} {
		rec := api.do(t, http.MethodGet, "/api/purchase_orders?vendor_id="+v, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, v)
	}
}

func TestPurchaseOrderMutations_PublishGaugesAfterCommit(t *testing.T) {
	metrics := prometheus.New("test", promclient.NewRegistry())
	api := newTestAPIWithMetrics(t, metrics)
	vendor := api.createVendor(t, "V-GAUGE")

	quality := func() float64 {
		return testutil.ToFloat64(metrics.VendorMetricGauge.WithLabelValues(
			strconv.FormatUint(uint64(vendor.ID), 10), performance.MetricQualityRatingAvg))
	}

	body := orderBody(vendor.ID, "PO-G-1", model.StatusCompleted)
	body["quality_rating"] = 4.5
	po := api.createOrder(t, body)
	assert.Equal(t, 4.5, quality())

	// moving to a missing vendor rolls the whole update back
	body["quality_rating"] = 1.0
	body["vendor_id"] = 9999
	rec := api.do(t, http.MethodPut, fmt.Sprintf("/api/purchase_orders/%d", po.ID), body)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 4.5, quality())

	body["vendor_id"] = vendor.ID
	rec = api.do(t, http.MethodPut, fmt.Sprintf("/api/purchase_orders/%d", po.ID), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, quality())
}

func TestForUpdate_LocksOrderRow(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=vendor dbname=vendor sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	query := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var po model.PurchaseOrder
		return forUpdate(tx).First(&po, 7)
	})
	assert.Contains(t, query, `FROM "purchase_orders"`)
	assert.Contains(t, query, "FOR UPDATE")
}

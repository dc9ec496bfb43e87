package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suteetoe/vendor-service/internal/model"
	"github.com/suteetoe/vendor-service/internal/performance"
	"github.com/suteetoe/vendor-service/pkg/logger"
)

// VendorRequest defines the body for vendor creation and update.
// Performance metrics are not accepted here; only a recompute writes them.
type VendorRequest struct {
	Name           string `json:"name"`
	ContactDetails string `json:"contact_details"`
	Address        string `json:"address"`
	VendorCode     string `json:"vendor_code"`
}

func (r *VendorRequest) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	r.VendorCode = strings.TrimSpace(r.VendorCode)
	switch {
	case r.Name == "":
		return "name is required"
	case r.VendorCode == "":
		return "vendor_code is required"
	}
	return ""
}

func vendorCodeTaken(tx *gorm.DB, code string, excludeID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.Vendor{}).
		Where("vendor_code = ? AND id <> ?", code, excludeID).
		Count(&count).Error
	return count > 0, err
}

// CreateVendor registers a new vendor with zeroed metrics
func (h *Handler) CreateVendor(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordVendorOperation("create")

	var req VendorRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	vendor := model.Vendor{
		Name:           req.Name,
		ContactDetails: req.ContactDetails,
		Address:        req.Address,
		VendorCode:     req.VendorCode,
	}

	defer h.metrics.TrackDBOperation("insert")(time.Now())

	ctx := c.Request().Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := vendorCodeTaken(tx, req.VendorCode, 0)
		if err != nil {
			return err
		}
		if taken {
			return errDuplicateVendorCode
		}
		return tx.Create(&vendor).Error
	})
	if err != nil {
		log.Warn("Failed to create vendor", zap.String("vendor_code", req.VendorCode), zap.Error(err))
		return respondError(c, performance.WrapTx("create vendor", err), "Failed to create vendor")
	}

	log.Info("Vendor created successfully",
		zap.Uint("id", vendor.ID),
		zap.String("name", vendor.Name),
		zap.String("vendor_code", vendor.VendorCode))
	return c.JSON(http.StatusCreated, vendor)
}

// GetVendor retrieves a vendor with its current metrics
func (h *Handler) GetVendor(c echo.Context) error {
	h.metrics.RecordVendorOperation("get")

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	defer h.metrics.TrackDBOperation("query")(time.Now())

	vendor, err := h.vendors.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to retrieve vendor")
	}
	return c.JSON(http.StatusOK, vendor)
}

// ListVendors retrieves vendors page by page
func (h *Handler) ListVendors(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordVendorOperation("list")

	p := parsePagination(c)
	query := h.db.WithContext(c.Request().Context()).Model(&model.Vendor{})

	defer h.metrics.TrackDBOperation("query")(time.Now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, "Failed to retrieve vendors")
	}

	vendors := make([]model.Vendor, 0)
	if err := query.Order("id").Limit(p.Limit).Offset(p.Offset).Find(&vendors).Error; err != nil {
		return respondError(c, err, "Failed to retrieve vendors")
	}

	log.Debug("Vendors retrieved", zap.Int("count", len(vendors)), zap.Int64("total", total))
	return c.JSON(http.StatusOK, echo.Map{
		"vendors":    vendors,
		"pagination": p.response(total),
	})
}

// UpdateVendor changes vendor profile fields; metrics are left untouched
func (h *Handler) UpdateVendor(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordVendorOperation("update")

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	var req VendorRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Uint("vendor_id", id), zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	defer h.metrics.TrackDBOperation("update")(time.Now())

	ctx := c.Request().Context()
	var vendor *model.Vendor
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := h.vendors.WithTx(tx)
		if _, err := repo.LockByID(ctx, id); err != nil {
			return err
		}

		taken, err := vendorCodeTaken(tx, req.VendorCode, id)
		if err != nil {
			return err
		}
		if taken {
			return errDuplicateVendorCode
		}

		err = tx.Model(&model.Vendor{ID: id}).
			Select("name", "contact_details", "address", "vendor_code").
			Updates(model.Vendor{
				Name:           req.Name,
				ContactDetails: req.ContactDetails,
				Address:        req.Address,
				VendorCode:     req.VendorCode,
			}).Error
		if err != nil {
			return err
		}

		vendor, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return respondError(c, performance.WrapTx("update vendor", err), "Failed to update vendor")
	}

	log.Info("Vendor updated successfully", zap.Uint("vendor_id", id), zap.String("vendor_code", vendor.VendorCode))
	return c.JSON(http.StatusOK, vendor)
}

// DeleteVendor removes a vendor with its purchase orders and history
func (h *Handler) DeleteVendor(c echo.Context) error {
	log := logger.FromContext(c)
	h.metrics.RecordVendorOperation("delete")

	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid vendor ID")
	}

	defer h.metrics.TrackDBOperation("delete")(time.Now())

	if err := h.vendors.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, performance.WrapTx("delete vendor", err), "Failed to delete vendor")
	}
	h.perf.ForgetVendor(id)

	log.Info("Vendor deleted successfully", zap.Uint("vendor_id", id))
	return c.NoContent(http.StatusNoContent)
}

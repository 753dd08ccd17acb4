package admin_api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gate-ticketing/internal/attendance"
	"gate-ticketing/internal/logger"
	"gate-ticketing/internal/models"
	"gate-ticketing/internal/order/db"
	"gate-ticketing/internal/order/discount"
	"gate-ticketing/internal/utils"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Handler serves the staff dashboard: discount management, order listings,
// and the check-in log.
type Handler struct {
	DB         *db.DB
	Attendance *attendance.Service
	Logger     *logger.Logger
	Validate   *validator.Validate
}

func NewHandler(store *db.DB, att *attendance.Service, log *logger.Logger) *Handler {
	return &Handler{
		DB:         store,
		Attendance: att,
		Logger:     log,
		Validate:   validator.New(),
	}
}

// RegisterRoutes registers the admin routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/orders", h.ListOrders)
		r.Get("/attendance", h.ListAttendance)

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", h.ListDiscounts)
			r.Post("/", h.CreateDiscount)
			r.Patch("/{discountId}", h.UpdateDiscount)
			r.Delete("/{discountId}", h.DeleteDiscount)
		})
	})
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func pagination(r *http.Request) (offset, limit int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return (page - 1) * limit, limit
}

// ListOrders returns a page of orders plus the dashboard headline numbers.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)

	orders, total, err := h.DB.ListOrders(r.Context(), offset, limit)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListOrders: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list orders", "internal error"))
		return
	}

	pending, err := h.DB.CountPendingOrders(r.Context())
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListOrders: pending count: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list orders", "internal error"))
		return
	}

	revenue, err := h.DB.SumPaidRevenue(r.Context())
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListOrders: revenue: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list orders", "internal error"))
		return
	}

	sendJSON(w, http.StatusOK, utils.SuccessResponse("Orders", models.OrderListing{
		Orders:  orders,
		Total:   total,
		Pending: pending,
		Revenue: revenue,
	}))
}

// ListAttendance returns the check-in log, newest first.
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)

	records, total, err := h.Attendance.List(r.Context(), offset, limit)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListAttendance: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list attendance", "internal error"))
		return
	}

	sendJSON(w, http.StatusOK, utils.SuccessResponse("Attendance", map[string]interface{}{
		"records": records,
		"total":   total,
	}))
}

// ListDiscounts returns every code with its live usage count.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)

	discounts, total, err := h.DB.ListDiscounts(r.Context(), offset, limit)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListDiscounts: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list discounts", "internal error"))
		return
	}

	active, err := h.DB.CountActiveDiscounts(r.Context())
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListDiscounts: active count: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list discounts", "internal error"))
		return
	}

	sendJSON(w, http.StatusOK, utils.SuccessResponse("Discount codes", map[string]interface{}{
		"discounts": discounts,
		"total":     total,
		"active":    active,
	}))
}

// CreateDiscount mints a new code. Codes are stored uppercase; duplicates
// are rejected by the unique constraint.
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid discount", err.Error()))
		return
	}

	code := discount.Normalize(req.Code)
	if code == "" {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid discount", "code cannot be empty"))
		return
	}

	record := models.DiscountCode{
		ID:          uuid.New().String(),
		Code:        code,
		PercentOff:  req.PercentOff,
		Description: req.Description,
		Active:      true,
		MaxUses:     req.MaxUses,
		ExpiresAt:   req.ExpiresAt,
		CreatedAt:   time.Now(),
	}
	if err := h.DB.CreateDiscount(r.Context(), &record); err != nil {
		if isDuplicate(err) {
			sendJSON(w, http.StatusConflict, utils.ErrorResponse("Discount code already exists", code))
			return
		}
		h.Logger.Error("ADMIN", fmt.Sprintf("CreateDiscount: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to create discount", "internal error"))
		return
	}

	h.Logger.Info("ADMIN", fmt.Sprintf("Created discount %s (%d%% off)", code, req.PercentOff))
	sendJSON(w, http.StatusCreated, utils.SuccessResponse("Discount created", record))
}

// UpdateDiscount applies a partial update. A JSON null for max_uses or
// expires_at clears the cap or expiry; an absent key leaves it unchanged.
// usage_count is never writable from here.
func (h *Handler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	discountID := chi.URLParam(r, "discountId")

	var req models.UpdateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid discount", err.Error()))
		return
	}

	record, err := h.DB.GetDiscountByID(r.Context(), discountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSON(w, http.StatusNotFound, utils.ErrorResponse("Discount not found", discountID))
			return
		}
		h.Logger.Error("ADMIN", fmt.Sprintf("UpdateDiscount: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to update discount", "internal error"))
		return
	}

	if req.Active != nil {
		record.Active = *req.Active
	}
	if req.PercentOff != nil {
		record.PercentOff = *req.PercentOff
	}
	if req.Description != nil {
		record.Description = *req.Description
	}
	if req.MaxUsesSet {
		record.MaxUses = req.MaxUses
	}
	if req.ExpiresAtSet {
		record.ExpiresAt = req.ExpiresAt
	}

	if err := h.DB.UpdateDiscount(r.Context(), record); err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("UpdateDiscount: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to update discount", "internal error"))
		return
	}

	h.Logger.Info("ADMIN", fmt.Sprintf("Updated discount %s", record.Code))
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Discount updated", record))
}

// DeleteDiscount removes a code. Orders that already used it keep their
// stored code and percentage.
func (h *Handler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	discountID := chi.URLParam(r, "discountId")

	if _, err := h.DB.GetDiscountByID(r.Context(), discountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSON(w, http.StatusNotFound, utils.ErrorResponse("Discount not found", discountID))
			return
		}
		h.Logger.Error("ADMIN", fmt.Sprintf("DeleteDiscount: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to delete discount", "internal error"))
		return
	}

	if err := h.DB.DeleteDiscount(r.Context(), discountID); err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("DeleteDiscount: %v", err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to delete discount", "internal error"))
		return
	}

	h.Logger.Info("ADMIN", fmt.Sprintf("Deleted discount %s", discountID))
	w.WriteHeader(http.StatusNoContent)
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

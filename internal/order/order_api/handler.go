package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"gate-ticketing/internal/attendance"
	"gate-ticketing/internal/auth"
	"gate-ticketing/internal/logger"
	"gate-ticketing/internal/models"
	"gate-ticketing/internal/order"
	"gate-ticketing/internal/order/discount"
	"gate-ticketing/internal/pricing"
	"gate-ticketing/internal/qr"
	"gate-ticketing/internal/turnstile"
	"gate-ticketing/internal/utils"
)

type Handler struct {
	OrderService      *order.Service
	AttendanceService *attendance.Service
	DiscountService   *discount.Service
	QR                qr.Renderer
	Logger            *logger.Logger
	Validate          *validator.Validate
}

func NewHandler(orderService *order.Service, attendanceService *attendance.Service, discountService *discount.Service, renderer qr.Renderer, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:      orderService,
		AttendanceService: attendanceService,
		DiscountService:   discountService,
		QR:                renderer,
		Logger:            log,
		Validate:          validator.New(),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Checkout validates the request and returns a payment-session token.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: failed to decode request body: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if err := h.Validate.Struct(req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Checkout: validation failed: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid checkout request", err.Error()))
		return
	}

	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}

	result, err := h.OrderService.InitiateCheckout(r.Context(), req, remoteIP)
	if err != nil {
		status, message := checkoutErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("Checkout: order %s: %v", req.OrderID, err))
			writeJSON(w, status, utils.ErrorResponse(message, "internal error"))
			return
		}
		h.Logger.Warn("API", fmt.Sprintf("Checkout: order %s rejected: %v", req.OrderID, err))
		writeJSON(w, status, utils.ErrorResponse(message, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Checkout initiated", result))
}

func checkoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, pricing.ErrInvalidTier):
		return http.StatusBadRequest, "Unknown ticket tier"
	case errors.Is(err, order.ErrMissingOrderID),
		errors.Is(err, order.ErrIncompleteCustomer):
		return http.StatusBadRequest, "Incomplete checkout request"
	case errors.Is(err, discount.ErrNotFound),
		errors.Is(err, discount.ErrInactive),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrExhausted):
		return http.StatusBadRequest, "Discount code cannot be used"
	case errors.Is(err, order.ErrAmountMismatch):
		return http.StatusBadRequest, "Order amount does not match"
	case errors.Is(err, turnstile.ErrVerificationFailed):
		return http.StatusForbidden, "Human verification failed"
	case errors.Is(err, order.ErrOrderAlreadyProcessed):
		return http.StatusConflict, "Order already processed"
	default:
		return http.StatusInternalServerError, "Checkout failed"
	}
}

// GatewayWebhook receives settlement callbacks from the payment gateway.
// Anything past signature verification is acknowledged with 200.
func (h *Handler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GatewayWebhook: failed to read body: %v", err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
		return
	}

	if _, err := h.OrderService.HandleGatewayCallback(r.Context(), body); err != nil {
		var whErr *order.WebhookError
		if errors.As(err, &whErr) {
			h.Logger.Warn("API", fmt.Sprintf("GatewayWebhook: %s", whErr.InternalError))
			writeJSON(w, whErr.StatusCode, map[string]string{"error": whErr.PublicError})
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GatewayWebhook: %v", err))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GatewayWebhookPing answers the gateway's endpoint validation probe.
func (h *Handler) GatewayWebhookPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ValidateDiscount lets the checkout page pre-check a code before payment.
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	record, err := h.DiscountService.Validate(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrNotFound),
			errors.Is(err, discount.ErrInactive),
			errors.Is(err, discount.ErrExpired),
			errors.Is(err, discount.ErrExhausted):
			writeJSON(w, http.StatusOK, utils.ErrorResponse("Discount code cannot be used", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("ValidateDiscount: %v", err))
			writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Validation failed", "internal error"))
		}
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Discount code is valid", map[string]interface{}{
		"code":        record.Code,
		"percent_off": record.PercentOff,
	}))
}

// TicketQR renders the QR image for a paid order's ticket.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("TicketQR: order %s not found: %v", orderID, err))
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", "not found"))
		return
	}
	if orderData.Status != models.OrderPaid {
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Ticket is not paid", string(orderData.Status)))
		return
	}

	png, err := h.QR.TicketPNG(orderData.ID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("TicketQR: failed to render QR for %s: %v", orderID, err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to render QR code", "internal error"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Scan records one gate check-in. The response is always 200 with a
// structured outcome so the scanner UI renders from one shape.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	operator := auth.UserEmail(r.Context())
	if operator == "" {
		operator = auth.UserID(r.Context())
	}

	result := h.AttendanceService.Scan(r.Context(), req.Code, operator)
	writeJSON(w, http.StatusOK, result)
}

// Tiers lists the ticket tiers and their prices for the checkout page.
func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Ticket tiers", pricing.Tiers()))
}

package order

import (
	"context"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gate-ticketing/internal/kafka"
	"gate-ticketing/internal/metrics"
	"gate-ticketing/internal/models"
)

// WebhookError carries enough detail to answer the gateway without leaking
// internals. Only these errors produce a non-success webhook response.
type WebhookError struct {
	Category      string // "validation", "configuration"
	StatusCode    int
	PublicError   string // safe to expose to the gateway
	InternalError string // detailed, logs only
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// SettlementResult reports what one callback did, for logging and tests.
type SettlementResult struct {
	OrderID        string
	OrderFound     bool
	PreviousStatus models.OrderStatus
	NewStatus      models.OrderStatus
	Transitioned   bool // this callback performed the move into paid
}

// CallbackSignature computes the keyed hash the gateway signs callbacks
// with: sha512 over order id, status code, gross amount, and the server
// key, concatenated as received.
func CallbackSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// MapTransactionStatus translates the gateway's transaction status
// vocabulary into the order lifecycle. A capture is only paid once the
// fraud check accepted it; anything unrecognized stays pending.
func MapTransactionStatus(transactionStatus, fraudStatus string) models.OrderStatus {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return models.OrderPaid
		}
		return models.OrderPending
	case "settlement":
		return models.OrderPaid
	case "pending":
		return models.OrderPending
	case "deny", "cancel":
		return models.OrderFailed
	case "expire":
		return models.OrderExpired
	default:
		return models.OrderPending
	}
}

// HandleGatewayCallback processes one settlement webhook. Malformed
// payloads and bad signatures are the only rejections; once the signature
// checks out, the callback is acknowledged even if bookkeeping fails, so
// the gateway does not retry over a non-critical error.
func (s *Service) HandleGatewayCallback(ctx context.Context, rawBody []byte) (*SettlementResult, error) {
	var payload models.GatewayCallback
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		metrics.SettlementCallbacksTotal.WithLabelValues("invalid_payload").Inc()
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid payload",
			InternalError: fmt.Sprintf("failed to decode webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	if payload.OrderID == "" || payload.StatusCode == "" || payload.GrossAmount == "" ||
		payload.SignatureKey == "" || payload.TransactionStatus == "" {
		metrics.SettlementCallbacksTotal.WithLabelValues("invalid_payload").Inc()
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid payload",
			InternalError: "webhook payload is missing required fields",
		}
	}

	grossFloat, err := strconv.ParseFloat(payload.GrossAmount, 64)
	if err != nil {
		metrics.SettlementCallbacksTotal.WithLabelValues("invalid_payload").Inc()
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid payload",
			InternalError: fmt.Sprintf("gross_amount %q is not numeric", payload.GrossAmount),
			OriginalErr:   err,
		}
	}

	// The sole authentication mechanism for inbound callbacks.
	expected := CallbackSignature(payload.OrderID, payload.StatusCode, payload.GrossAmount, s.serverKey)
	if !strings.EqualFold(expected, payload.SignatureKey) {
		s.Logger.Warn("WEBHOOK", fmt.Sprintf("Signature mismatch for order %s", payload.OrderID))
		metrics.SettlementCallbacksTotal.WithLabelValues("invalid_signature").Inc()
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusForbidden,
			PublicError:   "Invalid signature",
			InternalError: fmt.Sprintf("signature mismatch for order %s", payload.OrderID),
		}
	}

	nextStatus := MapTransactionStatus(payload.TransactionStatus, payload.FraudStatus)
	result := &SettlementResult{OrderID: payload.OrderID, NewStatus: nextStatus}

	// Read before writing, to know the previous status.
	existing, err := s.Store.GetOrderByID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Gateway retries for orders we never created must not be
			// treated as errors.
			s.Logger.Warn("WEBHOOK", fmt.Sprintf("Callback for unknown order %s, acknowledging without mutation", payload.OrderID))
			metrics.SettlementCallbacksTotal.WithLabelValues("unknown_order").Inc()
			return result, nil
		}
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to read order %s: %v", payload.OrderID, err))
		metrics.SettlementCallbacksTotal.WithLabelValues("storage_error").Inc()
		return result, nil
	}

	result.OrderFound = true
	result.PreviousStatus = existing.Status

	now := time.Now()
	upd := models.SettlementUpdate{
		OrderID:       payload.OrderID,
		Status:        nextStatus,
		PaymentType:   payload.PaymentType,
		TransactionID: payload.TransactionID,
		GrossAmount:   int64(math.Round(grossFloat)),
		RawCallback:   string(rawBody),
	}

	if nextStatus == models.OrderPaid {
		upd.PaidAt = &now

		// Single conditional update: the transition happens at most once
		// no matter how often the gateway redelivers this callback.
		transitioned, err := s.Store.MarkPaid(ctx, upd)
		if err != nil {
			s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to mark order %s paid: %v", payload.OrderID, err))
			metrics.SettlementCallbacksTotal.WithLabelValues("storage_error").Inc()
			return result, nil
		}
		result.Transitioned = transitioned

		if transitioned {
			s.Logger.LogWebhook(payload.OrderID, fmt.Sprintf("order paid via %s", payload.PaymentType))

			if existing.DiscountCode != "" {
				if err := s.Store.IncrementDiscountUsage(ctx, existing.DiscountCode); err != nil {
					// Acknowledge anyway: a retried callback would find the
					// order already paid and could never redo this, so
					// failing the response buys nothing.
					s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to increment usage for discount %s (order %s): %v", existing.DiscountCode, payload.OrderID, err))
				} else {
					metrics.DiscountIncrementsTotal.Inc()
				}
			}

			existing.Status = models.OrderPaid
			existing.PaymentType = payload.PaymentType
			existing.TransactionID = payload.TransactionID
			existing.GrossAmount = upd.GrossAmount
			existing.PaidAt = &now
			s.publish(kafka.TopicOrderPaid, *existing)
		} else {
			s.Logger.LogWebhook(payload.OrderID, "redelivered settlement, order already paid")
		}

		metrics.SettlementCallbacksTotal.WithLabelValues("paid").Inc()
		return result, nil
	}

	if err := s.Store.UpdateSettlement(ctx, upd); err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to update order %s to %s: %v", payload.OrderID, nextStatus, err))
		metrics.SettlementCallbacksTotal.WithLabelValues("storage_error").Inc()
		return result, nil
	}

	s.Logger.LogWebhook(payload.OrderID, fmt.Sprintf("status %s (gateway %s)", nextStatus, payload.TransactionStatus))
	metrics.SettlementCallbacksTotal.WithLabelValues(string(nextStatus)).Inc()
	return result, nil
}

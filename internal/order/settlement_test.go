package order_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gate-ticketing/internal/models"
	"gate-ticketing/internal/order"
)

func signedCallback(t *testing.T, orderID, statusCode, grossAmount, transactionStatus string, extra map[string]string) []byte {
	t.Helper()
	payload := map[string]string{
		"order_id":           orderID,
		"status_code":        statusCode,
		"gross_amount":       grossAmount,
		"transaction_status": transactionStatus,
		"signature_key":      order.CallbackSignature(orderID, statusCode, grossAmount, testServerKey),
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	return body
}

func TestCallbackSignatureIsDeterministic(t *testing.T) {
	sig1 := order.CallbackSignature("order-1", "200", "225000.00", "key")
	sig2 := order.CallbackSignature("order-1", "200", "225000.00", "key")
	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 128)

	// Any input change produces a different signature.
	assert.NotEqual(t, sig1, order.CallbackSignature("order-2", "200", "225000.00", "key"))
	assert.NotEqual(t, sig1, order.CallbackSignature("order-1", "200", "225000.00", "other-key"))
}

func TestMapTransactionStatus(t *testing.T) {
	assert.Equal(t, models.OrderPaid, order.MapTransactionStatus("capture", "accept"))
	assert.Equal(t, models.OrderPending, order.MapTransactionStatus("capture", "challenge"))
	assert.Equal(t, models.OrderPaid, order.MapTransactionStatus("settlement", ""))
	assert.Equal(t, models.OrderPending, order.MapTransactionStatus("pending", ""))
	assert.Equal(t, models.OrderFailed, order.MapTransactionStatus("deny", ""))
	assert.Equal(t, models.OrderFailed, order.MapTransactionStatus("cancel", ""))
	assert.Equal(t, models.OrderExpired, order.MapTransactionStatus("expire", ""))
	assert.Equal(t, models.OrderPending, order.MapTransactionStatus("refund", ""))
}

func TestHandleGatewayCallbackInvalidJSON(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.HandleGatewayCallback(context.Background(), []byte("{not json"))
	var whErr *order.WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
}

func TestHandleGatewayCallbackMissingFields(t *testing.T) {
	svc, deps := newTestService()

	body, _ := json.Marshal(map[string]string{"order_id": "abc"})
	_, err := svc.HandleGatewayCallback(context.Background(), body)
	var whErr *order.WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	deps.store.AssertNotCalled(t, "GetOrderByID")
}

func TestHandleGatewayCallbackNonNumericAmount(t *testing.T) {
	svc, deps := newTestService()

	body := signedCallback(t, "order-1", "200", "not-a-number", "settlement", nil)
	_, err := svc.HandleGatewayCallback(context.Background(), body)
	var whErr *order.WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	deps.store.AssertNotCalled(t, "GetOrderByID")
}

func TestHandleGatewayCallbackBadSignatureNoMutation(t *testing.T) {
	svc, deps := newTestService()

	payload := map[string]string{
		"order_id":           "order-1",
		"status_code":        "200",
		"gross_amount":       "225000.00",
		"transaction_status": "settlement",
		"signature_key":      "forged",
	}
	body, _ := json.Marshal(payload)

	_, err := svc.HandleGatewayCallback(context.Background(), body)
	var whErr *order.WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusForbidden, whErr.StatusCode)
	deps.store.AssertNotCalled(t, "GetOrderByID")
	deps.store.AssertNotCalled(t, "MarkPaid")
	deps.store.AssertNotCalled(t, "UpdateSettlement")
}

func TestHandleGatewayCallbackSignatureCaseInsensitive(t *testing.T) {
	svc, deps := newTestService()
	orderID := "2b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(nil, sql.ErrNoRows)

	payload := map[string]string{
		"order_id":           orderID,
		"status_code":        "200",
		"gross_amount":       "225000.00",
		"transaction_status": "settlement",
		"signature_key":      strings.ToUpper(order.CallbackSignature(orderID, "200", "225000.00", testServerKey)),
	}
	body, _ := json.Marshal(payload)

	result, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	assert.False(t, result.OrderFound)
}

func TestHandleGatewayCallbackUnknownOrderAcked(t *testing.T) {
	svc, deps := newTestService()
	orderID := "9b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(nil, sql.ErrNoRows)

	body := signedCallback(t, orderID, "200", "250000.00", "settlement", nil)
	result, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	assert.False(t, result.OrderFound)
	deps.store.AssertNotCalled(t, "MarkPaid")
	deps.store.AssertNotCalled(t, "UpdateSettlement")
}

func TestHandleGatewayCallbackSettlementMarksPaidAndIncrementsDiscount(t *testing.T) {
	svc, deps := newTestService()
	orderID := "2b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(&models.Order{
		ID:           orderID,
		Total:        225000,
		Status:       models.OrderPending,
		DiscountCode: "MURAH",
	}, nil)
	deps.store.On("MarkPaid", mock.Anything, mock.MatchedBy(func(upd models.SettlementUpdate) bool {
		return upd.OrderID == orderID &&
			upd.Status == models.OrderPaid &&
			upd.GrossAmount == 225000 &&
			upd.PaymentType == "qris" &&
			upd.PaidAt != nil
	})).Return(true, nil)
	deps.store.On("IncrementDiscountUsage", mock.Anything, "MURAH").Return(nil)

	body := signedCallback(t, orderID, "200", "225000.00", "settlement", map[string]string{
		"payment_type":   "qris",
		"transaction_id": "txn-123",
	})
	result, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	assert.True(t, result.OrderFound)
	assert.True(t, result.Transitioned)
	assert.Equal(t, models.OrderPending, result.PreviousStatus)
	assert.Equal(t, models.OrderPaid, result.NewStatus)
	deps.store.AssertExpectations(t)
}

func TestHandleGatewayCallbackRedeliveryIncrementsOnlyOnce(t *testing.T) {
	svc, deps := newTestService()
	orderID := "2b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(&models.Order{
		ID:           orderID,
		Total:        225000,
		Status:       models.OrderPaid,
		DiscountCode: "MURAH",
	}, nil)
	// The conditional update finds the order already paid.
	deps.store.On("MarkPaid", mock.Anything, mock.Anything).Return(false, nil)

	body := signedCallback(t, orderID, "200", "225000.00", "settlement", nil)
	result, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	assert.True(t, result.OrderFound)
	assert.False(t, result.Transitioned)
	deps.store.AssertNotCalled(t, "IncrementDiscountUsage")
}

func TestHandleGatewayCallbackDiscountIncrementFailureStillAcked(t *testing.T) {
	svc, deps := newTestService()
	orderID := "2b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(&models.Order{
		ID:           orderID,
		Status:       models.OrderPending,
		DiscountCode: "MURAH",
	}, nil)
	deps.store.On("MarkPaid", mock.Anything, mock.Anything).Return(true, nil)
	deps.store.On("IncrementDiscountUsage", mock.Anything, "MURAH").Return(errors.New("deadlock"))

	body := signedCallback(t, orderID, "200", "225000.00", "settlement", nil)
	result, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	assert.True(t, result.Transitioned)
}

func TestHandleGatewayCallbackExpireUpdatesWithoutPaidAt(t *testing.T) {
	svc, deps := newTestService()
	orderID := "2b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(&models.Order{
		ID:     orderID,
		Status: models.OrderPending,
	}, nil)
	deps.store.On("UpdateSettlement", mock.Anything, mock.MatchedBy(func(upd models.SettlementUpdate) bool {
		return upd.Status == models.OrderExpired && upd.PaidAt == nil
	})).Return(nil)

	body := signedCallback(t, orderID, "407", "250000.00", "expire", nil)
	result, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderExpired, result.NewStatus)
	deps.store.AssertNotCalled(t, "MarkPaid")
	deps.store.AssertExpectations(t)
}

func TestHandleGatewayCallbackCaptureChallengeStaysPending(t *testing.T) {
	svc, deps := newTestService()
	orderID := "2b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(&models.Order{
		ID:     orderID,
		Status: models.OrderPending,
	}, nil)
	deps.store.On("UpdateSettlement", mock.Anything, mock.MatchedBy(func(upd models.SettlementUpdate) bool {
		return upd.Status == models.OrderPending
	})).Return(nil)

	body := signedCallback(t, orderID, "200", "250000.00", "capture", map[string]string{
		"fraud_status": "challenge",
	})
	result, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	assert.False(t, result.Transitioned)
	deps.store.AssertNotCalled(t, "MarkPaid")
}

func TestHandleGatewayCallbackGrossAmountRounded(t *testing.T) {
	svc, deps := newTestService()
	orderID := "2b29792f-7ddc-47c5-9a21-a79dfabe2ec9"

	deps.store.On("GetOrderByID", mock.Anything, orderID).Return(&models.Order{
		ID:     orderID,
		Status: models.OrderPending,
	}, nil)
	deps.store.On("MarkPaid", mock.Anything, mock.MatchedBy(func(upd models.SettlementUpdate) bool {
		return upd.GrossAmount == 225001
	})).Return(true, nil)

	body := signedCallback(t, orderID, "200", "225000.75", "settlement", nil)
	_, err := svc.HandleGatewayCallback(context.Background(), body)
	assert.NoError(t, err)
	deps.store.AssertExpectations(t)
}

package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"gate-ticketing/internal/config"
	"gate-ticketing/internal/gateway"
	"gate-ticketing/internal/logger"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*gateway.SnapClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.GatewayConfig{
		ServerKey: "SB-Mid-server-test",
		BaseURL:   server.URL,
	}
	return gateway.NewSnapClient(cfg, server.Client(), logger.NewLogger()), server
}

func sampleRequest() gateway.TransactionRequest {
	return gateway.TransactionRequest{
		TransactionDetails: gateway.TransactionDetails{
			OrderID:     "order-1",
			GrossAmount: 225000,
		},
		ItemDetails: []gateway.ItemDetail{
			{ID: "VIP", Name: "Tickets - VIP", Price: 225000, Quantity: 1},
		},
		CustomerDetails: &gateway.CustomerDetails{
			FirstName: "Alice Wonderland",
			Email:     "alice@example.com",
		},
	}
}

func TestCreateTransactionSendsBasicAuthAndBody(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "SB-Mid-server-test", user)
		assert.Equal(t, "", pass)
		assert.Equal(t, "/transactions", r.URL.Path)

		var body gateway.TransactionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-1", body.TransactionDetails.OrderID)
		assert.Equal(t, int64(225000), body.TransactionDetails.GrossAmount)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(gateway.TokenResponse{
			Token:       "snap-token",
			RedirectURL: "https://pay.example/redirect",
		})
	})

	token, err := client.CreateTransaction(context.Background(), sampleRequest())
	assert.NoError(t, err)
	assert.Equal(t, "snap-token", token.Token)
	assert.Equal(t, "https://pay.example/redirect", token.RedirectURL)
}

func TestCreateTransactionRejectsErrorStatus(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_messages":["unauthorized"]}`))
	})

	_, err := client.CreateTransaction(context.Background(), sampleRequest())
	assert.Error(t, err)
}

func TestCreateTransactionRejectsEmptyToken(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gateway.TokenResponse{})
	})

	_, err := client.CreateTransaction(context.Background(), sampleRequest())
	assert.Error(t, err)
}

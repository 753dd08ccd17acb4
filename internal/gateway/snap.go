package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gate-ticketing/internal/config"
	"gate-ticketing/internal/logger"
)

const (
	sandboxBaseURL    = "https://app.sandbox.midtrans.com/snap/v1"
	productionBaseURL = "https://app.midtrans.com/snap/v1"
)

type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
}

type CreditCard struct {
	Secure bool `json:"secure"`
}

// TransactionRequest is the Snap token API body. The order id is generated
// by this service and becomes the gateway's transaction id.
type TransactionRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	ItemDetails        []ItemDetail       `json:"item_details"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	CreditCard         *CreditCard        `json:"credit_card,omitempty"`
}

type TokenResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// SnapClient talks to the gateway's payment-session API. Authentication is
// HTTP Basic with the server key as username and an empty password.
type SnapClient struct {
	client    *http.Client
	baseURL   string
	serverKey string
	logger    *logger.Logger
}

func NewSnapClient(cfg config.GatewayConfig, client *http.Client, log *logger.Logger) *SnapClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Production {
			baseURL = productionBaseURL
		} else {
			baseURL = sandboxBaseURL
		}
	}
	return &SnapClient{
		client:    client,
		baseURL:   baseURL,
		serverKey: cfg.ServerKey,
		logger:    log,
	}
}

// CreateTransaction requests a payment-session token for an order.
func (c *SnapClient) CreateTransaction(ctx context.Context, txReq TransactionRequest) (*TokenResponse, error) {
	body, err := json.Marshal(txReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction request: %w", err)
	}

	url := c.baseURL + "/transactions"
	c.logger.Debug("GATEWAY", fmt.Sprintf("Requesting payment token for order %s (%d)", txReq.TransactionDetails.OrderID, txReq.TransactionDetails.GrossAmount))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.SetBasicAuth(c.serverKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("GATEWAY", fmt.Sprintf("Gateway request error: %v", err))
		return nil, fmt.Errorf("payment gateway error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("GATEWAY", fmt.Sprintf("Failed to close gateway response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("GATEWAY", fmt.Sprintf("Gateway returned status %d: %s", resp.StatusCode, string(raw)))
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("payment gateway returned an empty token")
	}

	c.logger.Info("GATEWAY", fmt.Sprintf("Payment token issued for order %s", txReq.TransactionDetails.OrderID))
	return &token, nil
}

package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gate-ticketing/internal/config"
	"gate-ticketing/internal/logger"
)

// ErrVerificationFailed means the challenge token was rejected; the client
// should re-run the widget and retry.
var ErrVerificationFailed = errors.New("human verification failed")

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Client verifies anti-bot challenge tokens against the provider's
// siteverify endpoint.
type Client struct {
	client   *http.Client
	secret   string
	endpoint string
	logger   *logger.Logger
}

func NewClient(cfg config.TurnstileConfig, client *http.Client, log *logger.Logger) *Client {
	return &Client{
		client:   client,
		secret:   cfg.Secret,
		endpoint: cfg.Endpoint,
		logger:   log,
	}
}

// Verify checks one challenge token. A non-2xx provider response or a
// transport failure is a provider error, not a rejection.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("TURNSTILE", fmt.Sprintf("Verification provider error: %v", err))
		return fmt.Errorf("verification provider error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("TURNSTILE", fmt.Sprintf("Failed to close verification response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("TURNSTILE", fmt.Sprintf("Verification provider returned status %d", resp.StatusCode))
		return fmt.Errorf("verification provider returned status %d", resp.StatusCode)
	}

	var result siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode verification response: %w", err)
	}

	if !result.Success {
		c.logger.Warn("TURNSTILE", fmt.Sprintf("Challenge token rejected: %v", result.ErrorCodes))
		return ErrVerificationFailed
	}

	return nil
}

package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gate-ticketing/internal/gateway"
	"gate-ticketing/internal/kafka"
	"gate-ticketing/internal/logger"
	"gate-ticketing/internal/metrics"
	"gate-ticketing/internal/models"
	"gate-ticketing/internal/pricing"
)

// Store is the persistence surface the checkout and settlement paths use.
type Store interface {
	CreateOrder(ctx context.Context, order models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	MarkPaid(ctx context.Context, upd models.SettlementUpdate) (bool, error)
	UpdateSettlement(ctx context.Context, upd models.SettlementUpdate) error
	IncrementDiscountUsage(ctx context.Context, code string) error
}

// DiscountValidator re-checks a code's usability; it is consulted at
// checkout initiation and again implicitly at settlement via the stored
// order fields.
type DiscountValidator interface {
	Validate(ctx context.Context, rawCode string) (*models.DiscountCode, error)
}

// TokenClient requests a payment-session token from the gateway.
type TokenClient interface {
	CreateTransaction(ctx context.Context, txReq gateway.TransactionRequest) (*gateway.TokenResponse, error)
}

// HumanVerifier checks the anti-bot challenge token before any gateway call.
type HumanVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// EventPublisher streams order lifecycle events. Publish failures are
// logged, never fatal to the request.
type EventPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service is the checkout orchestrator and settlement reconciler.
type Service struct {
	Store     Store
	Discounts DiscountValidator
	Gateway   TokenClient
	Verifier  HumanVerifier
	Events    EventPublisher
	Logger    *logger.Logger

	serverKey string
}

func NewService(store Store, discounts DiscountValidator, gw TokenClient, verifier HumanVerifier, events EventPublisher, serverKey string, log *logger.Logger) *Service {
	return &Service{
		Store:     store,
		Discounts: discounts,
		Gateway:   gw,
		Verifier:  verifier,
		Events:    events,
		Logger:    log,
		serverKey: serverKey,
	}
}

// GrossAmount computes the post-discount total for a tier price.
// The result never goes below zero.
func GrossAmount(price int64, percentOff int) int64 {
	if percentOff < 0 {
		percentOff = 0
	}
	if percentOff > 100 {
		percentOff = 100
	}
	discountAmount := int64(math.Round(float64(price) * float64(percentOff) / 100))
	gross := price - discountAmount
	if gross < 0 {
		return 0
	}
	return gross
}

// InitiateCheckout validates the request, reconciles or creates the
// pending order, and requests a payment-session token. The order total is
// fixed here and never changes afterwards.
func (s *Service) InitiateCheckout(ctx context.Context, req models.CheckoutRequest, remoteIP string) (*models.CheckoutResult, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		metrics.CheckoutAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrMissingOrderID
	}

	// Step 1: resolve the tier.
	tier, err := pricing.Resolve(req.TierKey)
	if err != nil {
		metrics.CheckoutAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Step 2: customer completeness.
	name := strings.TrimSpace(req.Customer.Name)
	nim := strings.TrimSpace(req.Customer.NIM)
	email := strings.TrimSpace(req.Customer.Email)
	if name == "" || nim == "" || email == "" {
		metrics.CheckoutAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrIncompleteCustomer
	}

	// Step 3: human verification gates every gateway call.
	if err := s.Verifier.Verify(ctx, strings.TrimSpace(req.TurnstileToken), remoteIP); err != nil {
		s.Logger.Warn("CHECKOUT", fmt.Sprintf("Human verification rejected for order %s: %v", orderID, err))
		metrics.CheckoutAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Step 4: discount validation, no capacity reserved.
	discountCode := ""
	discountPercent := 0
	if strings.TrimSpace(req.DiscountCode) != "" {
		record, err := s.Discounts.Validate(ctx, req.DiscountCode)
		if err != nil {
			metrics.CheckoutAttemptsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		discountCode = record.Code
		discountPercent = record.PercentOff
	}

	grossAmount := GrossAmount(tier.Price, discountPercent)

	// Step 5: reconcile against a possibly-existing order.
	existing, err := s.Store.GetOrderByID(ctx, orderID)
	switch {
	case err == nil:
		if existing.Status != models.OrderPending {
			metrics.CheckoutAttemptsTotal.WithLabelValues("rejected").Inc()
			return nil, ErrOrderAlreadyProcessed
		}
		if existing.Total != grossAmount {
			metrics.CheckoutAttemptsTotal.WithLabelValues("rejected").Inc()
			return nil, ErrAmountMismatch
		}
	case errors.Is(err, sql.ErrNoRows):
		newOrder := models.Order{
			ID:              orderID,
			TierKey:         tier.Key,
			TierLabel:       tier.Label,
			Total:           grossAmount,
			Status:          models.OrderPending,
			Name:            name,
			NIM:             nim,
			Email:           email,
			DiscountCode:    discountCode,
			DiscountPercent: discountPercent,
			CreatedAt:       time.Now(),
		}
		if err := s.Store.CreateOrder(ctx, newOrder); err != nil {
			metrics.CheckoutAttemptsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		s.Logger.LogOrder("CREATE", orderID, fmt.Sprintf("pending order for tier %s, total %d", tier.Key, grossAmount))
		s.publish(kafka.TopicOrderCreated, newOrder)
	default:
		// No token may be issued for an order that was never durably
		// created or read back correctly.
		metrics.CheckoutAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to validate order: %w", err)
	}

	// Step 6: payment-session token, tagged with the order identity.
	txReq := gateway.TransactionRequest{
		TransactionDetails: gateway.TransactionDetails{
			OrderID:     orderID,
			GrossAmount: grossAmount,
		},
		ItemDetails: []gateway.ItemDetail{
			{
				ID:       strings.ToUpper(tier.Key),
				Name:     "Tickets - " + tier.Label,
				Price:    grossAmount,
				Quantity: 1,
			},
		},
		CustomerDetails: &gateway.CustomerDetails{
			FirstName: name,
			Email:     email,
		},
		CreditCard: &gateway.CreditCard{Secure: true},
	}

	token, err := s.Gateway.CreateTransaction(ctx, txReq)
	if err != nil {
		metrics.CheckoutAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.CheckoutAttemptsTotal.WithLabelValues("accepted").Inc()
	metrics.PaymentTokensIssuedTotal.Inc()

	return &models.CheckoutResult{
		Token:       token.Token,
		RedirectURL: token.RedirectURL,
		GrossAmount: grossAmount,
	}, nil
}

// GetOrder reads one order for the admin and ticket views.
func (s *Service) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.Store.GetOrderByID(ctx, id)
}

func (s *Service) publish(topic string, order models.Order) {
	if s.Events == nil {
		return
	}
	value, err := json.Marshal(order)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal order event: %v", err))
		return
	}
	if err := s.Events.Publish(topic, order.ID, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publish error (%s): %v", topic, err))
	}
}

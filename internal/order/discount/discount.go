package discount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gate-ticketing/internal/logger"
	"gate-ticketing/internal/models"
)

var (
	ErrNotFound  = errors.New("invalid discount code")
	ErrInactive  = errors.New("discount code is inactive")
	ErrExpired   = errors.New("discount code has expired")
	ErrExhausted = errors.New("discount usage limit reached")
)

// Store is the slice of the order store the validator needs.
type Store interface {
	GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	CountOrdersByDiscountCode(ctx context.Context, code string) (int, error)
}

// Service validates discount codes. It never reserves or decrements
// capacity: two concurrent checkouts can both pass against the last
// remaining slot, and the over-run is consumed at settlement time. That
// race is accepted, not a bug.
type Service struct {
	Store  Store
	Logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log}
}

// Normalize trims and uppercases a user-supplied code.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate checks that a code is currently usable and returns its record
// with the normalized code. The checks run in a fixed order: lookup,
// active flag, expiry, usage cap.
func (s *Service) Validate(ctx context.Context, rawCode string) (*models.DiscountCode, error) {
	normalized := Normalize(rawCode)
	if normalized == "" {
		return nil, ErrNotFound
	}

	record, err := s.Store.GetDiscountByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("discount lookup failed: %w", err)
	}

	if !record.Active {
		return nil, ErrInactive
	}

	if record.ExpiresAt != nil && record.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpired
	}

	if record.MaxUses != nil {
		if record.UsageCount >= *record.MaxUses {
			return nil, ErrExhausted
		}

		// Safety net on top of the stored counter: orders already
		// referencing the code count against the cap even before they
		// settle.
		referenced, err := s.Store.CountOrdersByDiscountCode(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("discount usage check failed: %w", err)
		}
		if referenced >= *record.MaxUses {
			return nil, ErrExhausted
		}
	}

	record.Code = normalized
	return record, nil
}

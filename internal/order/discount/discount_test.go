package discount_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gate-ticketing/internal/logger"
	"gate-ticketing/internal/models"
	"gate-ticketing/internal/order/discount"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DiscountCode), args.Error(1)
}

func (m *MockStore) CountOrdersByDiscountCode(ctx context.Context, code string) (int, error) {
	args := m.Called(ctx, code)
	return args.Int(0), args.Error(1)
}

func newTestService(store *MockStore) *discount.Service {
	return discount.NewService(store, logger.NewLogger())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "MURAH", discount.Normalize("  murah "))
	assert.Equal(t, "MURAH", discount.Normalize("MuRaH"))
	assert.Equal(t, "", discount.Normalize("   "))
}

func TestValidateUnknownCode(t *testing.T) {
	store := new(MockStore)
	store.On("GetDiscountByCode", mock.Anything, "NOPE").Return(nil, sql.ErrNoRows)

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, discount.ErrNotFound)
}

func TestValidateEmptyCode(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store)

	_, err := svc.Validate(context.Background(), "   ")
	assert.ErrorIs(t, err, discount.ErrNotFound)
	store.AssertNotCalled(t, "GetDiscountByCode")
}

func TestValidateInactiveCode(t *testing.T) {
	store := new(MockStore)
	store.On("GetDiscountByCode", mock.Anything, "OLD").Return(&models.DiscountCode{
		Code:       "OLD",
		PercentOff: 15,
		Active:     false,
	}, nil)

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "old")
	assert.ErrorIs(t, err, discount.ErrInactive)
}

func TestValidateExpiredCodeEvenIfActive(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := new(MockStore)
	store.On("GetDiscountByCode", mock.Anything, "LATE").Return(&models.DiscountCode{
		Code:       "LATE",
		PercentOff: 20,
		Active:     true,
		ExpiresAt:  &past,
	}, nil)

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "LATE")
	assert.ErrorIs(t, err, discount.ErrExpired)
}

func TestValidateExhaustedByCounter(t *testing.T) {
	maxUses := 5
	store := new(MockStore)
	store.On("GetDiscountByCode", mock.Anything, "FULL").Return(&models.DiscountCode{
		Code:       "FULL",
		PercentOff: 10,
		Active:     true,
		MaxUses:    &maxUses,
		UsageCount: 5,
	}, nil)

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "FULL")
	assert.ErrorIs(t, err, discount.ErrExhausted)
	store.AssertNotCalled(t, "CountOrdersByDiscountCode")
}

func TestValidateExhaustedByOrderReferences(t *testing.T) {
	maxUses := 5
	store := new(MockStore)
	store.On("GetDiscountByCode", mock.Anything, "BUSY").Return(&models.DiscountCode{
		Code:       "BUSY",
		PercentOff: 10,
		Active:     true,
		MaxUses:    &maxUses,
		UsageCount: 3,
	}, nil)
	store.On("CountOrdersByDiscountCode", mock.Anything, "BUSY").Return(5, nil)

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "BUSY")
	assert.ErrorIs(t, err, discount.ErrExhausted)
}

func TestValidateSuccessNormalizesCode(t *testing.T) {
	maxUses := 50
	store := new(MockStore)
	store.On("GetDiscountByCode", mock.Anything, "MURAH").Return(&models.DiscountCode{
		Code:       "MURAH",
		PercentOff: 10,
		Active:     true,
		MaxUses:    &maxUses,
		UsageCount: 3,
	}, nil)
	store.On("CountOrdersByDiscountCode", mock.Anything, "MURAH").Return(4, nil)

	svc := newTestService(store)
	record, err := svc.Validate(context.Background(), "  murah ")
	assert.NoError(t, err)
	assert.Equal(t, "MURAH", record.Code)
	assert.Equal(t, 10, record.PercentOff)
}

func TestValidateUncappedCodeSkipsUsageCheck(t *testing.T) {
	store := new(MockStore)
	store.On("GetDiscountByCode", mock.Anything, "PANITIA").Return(&models.DiscountCode{
		Code:       "PANITIA",
		PercentOff: 100,
		Active:     true,
	}, nil)

	svc := newTestService(store)
	record, err := svc.Validate(context.Background(), "panitia")
	assert.NoError(t, err)
	assert.Equal(t, 100, record.PercentOff)
	store.AssertNotCalled(t, "CountOrdersByDiscountCode")
}

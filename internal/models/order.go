package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
	OrderExpired OrderStatus = "expired"
)

// Order is one purchase attempt. Its ID doubles as the gateway transaction
// id and as the scannable ticket code.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string      `bun:"id,pk" json:"id"`
	TierKey         string      `bun:"tier_key" json:"tier_key"`
	TierLabel       string      `bun:"tier_label" json:"tier_label"`
	Total           int64       `bun:"total" json:"total"`
	Status          OrderStatus `bun:"status" json:"status"`
	Name            string      `bun:"name" json:"name"`
	NIM             string      `bun:"nim" json:"nim"`
	Email           string      `bun:"email" json:"email"`
	DiscountCode    string      `bun:"discount_code,nullzero" json:"discount_code,omitempty"`
	DiscountPercent int         `bun:"discount_percent" json:"discount_percent"`
	PaymentType     string      `bun:"payment_type,nullzero" json:"payment_type,omitempty"`
	TransactionID   string      `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	GrossAmount     int64       `bun:"gross_amount,nullzero" json:"gross_amount,omitempty"`
	RawCallback     string      `bun:"raw_callback,nullzero" json:"-"`
	CreatedAt       time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	PaidAt          *time.Time  `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
}

// SettlementUpdate carries the fields the webhook reconciler writes back
// onto an order. Total is deliberately absent; it never changes.
type SettlementUpdate struct {
	OrderID       string
	Status        OrderStatus
	PaymentType   string
	TransactionID string
	GrossAmount   int64
	RawCallback   string
	PaidAt        *time.Time
}

// OrderListing is the admin dashboard view over orders.
type OrderListing struct {
	Orders  []Order `json:"orders"`
	Total   int     `json:"total"`
	Pending int     `json:"pending"`
	Revenue int64   `json:"revenue"`
}

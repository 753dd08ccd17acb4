package order

import "errors"

var (
	// ErrIncompleteCustomer means name, student id, or email was missing.
	ErrIncompleteCustomer = errors.New("customer information incomplete")

	// ErrOrderAlreadyProcessed means the order id refers to an order that
	// is no longer pending; checkout cannot be replayed against it.
	ErrOrderAlreadyProcessed = errors.New("order already processed")

	// ErrAmountMismatch means an existing pending order's stored total
	// disagrees with the freshly computed gross amount. Guards against a
	// client replaying checkout with a since-changed discount.
	ErrAmountMismatch = errors.New("amount mismatch")

	// ErrMissingOrderID means the client did not supply an order identity.
	ErrMissingOrderID = errors.New("missing order id")
)

package models

// CheckoutRequest is the client payload for checkout initiation. The order
// id is generated client-side so it can be carried through the gateway
// redirect and back.
type CheckoutRequest struct {
	OrderID        string `json:"order_id" validate:"required,uuid4"`
	TierKey        string `json:"tier_key" validate:"required"`
	TurnstileToken string `json:"turnstile_token" validate:"required"`
	DiscountCode   string `json:"discount_code"`
	Customer       struct {
		Name  string `json:"name" validate:"required"`
		NIM   string `json:"nim" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	} `json:"customer"`
}

// CheckoutResult is returned to the client, which redirects to the
// gateway's payment UI using the session token.
type CheckoutResult struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
	GrossAmount int64  `json:"gross_amount"`
}

// GatewayCallback is the webhook body the payment gateway POSTs after a
// transaction changes state. StatusCode and GrossAmount arrive as strings
// and take part in the signature exactly as received.
type GatewayCallback struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// DiscountCode is a named percentage discount with an optional expiry and
// usage cap. Codes are stored normalized to uppercase.
type DiscountCode struct {
	bun.BaseModel `bun:"table:discount_codes"`

	ID          string     `bun:"id,pk" json:"id"`
	Code        string     `bun:"code,unique,notnull" json:"code"`
	PercentOff  int        `bun:"percent_off,notnull" json:"percent_off"`
	Description string     `bun:"description,nullzero" json:"description,omitempty"`
	Active      bool       `bun:"active" json:"active"`
	MaxUses     *int       `bun:"max_uses,nullzero" json:"max_uses,omitempty"`
	UsageCount  int        `bun:"usage_count,notnull,default:0" json:"usage_count"`
	ExpiresAt   *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// CreateDiscountRequest is the admin payload for minting a new code.
type CreateDiscountRequest struct {
	Code        string     `json:"code" validate:"required"`
	PercentOff  int        `json:"percent_off" validate:"gte=0,lte=100"`
	Description string     `json:"description"`
	MaxUses     *int       `json:"max_uses" validate:"omitempty,gt=0"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// UpdateDiscountRequest carries partial updates; nil pointers mean
// "leave unchanged". MaxUses and ExpiresAt distinguish "unset the cap"
// (explicit null) from "unchanged" via the Set flags.
type UpdateDiscountRequest struct {
	Active       *bool      `json:"active"`
	PercentOff   *int       `json:"percent_off" validate:"omitempty,gte=0,lte=100"`
	Description  *string    `json:"description"`
	MaxUses      *int       `json:"max_uses" validate:"omitempty,gt=0"`
	MaxUsesSet   bool       `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at"`
	ExpiresAtSet bool       `json:"-"`
}

// UnmarshalJSON records which keys were present, so a JSON null clears
// the field while an absent key leaves it alone.
func (r *UpdateDiscountRequest) UnmarshalJSON(data []byte) error {
	type alias UpdateDiscountRequest
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	*r = UpdateDiscountRequest(decoded)
	_, r.MaxUsesSet = keys["max_uses"]
	_, r.ExpiresAtSet = keys["expires_at"]
	return nil
}

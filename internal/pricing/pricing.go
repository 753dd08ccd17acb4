package pricing

import (
	"errors"
	"strings"
)

// ErrInvalidTier is returned for any tier key outside the fixed table.
var ErrInvalidTier = errors.New("invalid ticket tier")

// Tier is a named ticket category with a fixed price in whole rupiah.
type Tier struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Price int64  `json:"price"`
}

var tiers = map[string]Tier{
	"regular": {Key: "regular", Label: "Regular", Price: 100_000},
	"vip":     {Key: "vip", Label: "VIP", Price: 250_000},
	"vvip":    {Key: "vvip", Label: "VVIP", Price: 500_000},
}

// Resolve maps a tier key to its label and price. Lookup is
// case-insensitive; the table itself never changes at runtime.
func Resolve(tierKey string) (Tier, error) {
	tier, ok := tiers[strings.ToLower(strings.TrimSpace(tierKey))]
	if !ok {
		return Tier{}, ErrInvalidTier
	}
	return tier, nil
}

// Tiers returns the full table for display purposes.
func Tiers() []Tier {
	return []Tier{tiers["regular"], tiers["vip"], tiers["vvip"]}
}

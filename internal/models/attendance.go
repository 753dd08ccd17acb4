package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Attendance is one check-in event. At most one row exists per ticket code;
// a second scan returns the original row instead of inserting.
type Attendance struct {
	bun.BaseModel `bun:"table:attendance"`

	ID           string    `bun:"id,pk" json:"id"`
	OrderID      string    `bun:"order_id,unique,notnull" json:"order_id"`
	TicketCode   string    `bun:"ticket_code,notnull" json:"ticket_code"`
	AttendeeName string    `bun:"attendee_name,nullzero" json:"attendee_name,omitempty"`
	CheckedInAt  time.Time `bun:"checked_in_at,notnull,default:current_timestamp" json:"checked_in_at"`
	CheckedInBy  string    `bun:"checked_in_by,nullzero" json:"checked_in_by,omitempty"`
}

// Attendee is the snapshot of order fields the scan UI shows to staff.
type Attendee struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	NIM       string `json:"nim"`
	TierLabel string `json:"tier_label"`
}

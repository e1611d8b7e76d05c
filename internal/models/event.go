package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	TicketPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"ticket_price"`
	// Capacity is the maximum number of admission units that can be sold.
	// nil means unlimited.
	Capacity *int   `json:"capacity,omitempty"`
	HostID   string `gorm:"not null" json:"host_id"`
	// StripeAccountID is the host's connected Stripe account. Empty until
	// the host completes payment onboarding.
	StripeAccountID *string   `json:"stripe_account_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Unlimited reports whether the event has no capacity limit.
func (e *Event) Unlimited() bool {
	return e.Capacity == nil
}

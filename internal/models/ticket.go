package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Ticket is one purchased order: a single code admitting Quantity people.
// UnitPrice and TotalPaid are snapshotted at purchase time and never re-read
// from the event.
type Ticket struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	EventID    uint            `gorm:"not null;index" json:"event_id"`
	Code       string          `gorm:"not null" json:"code"`
	BuyerName  string          `gorm:"not null" json:"buyer_name"`
	BuyerEmail string          `gorm:"not null" json:"buyer_email"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPaid  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_paid"`

	PaymentGateway string        `gorm:"type:varchar(20);not null" json:"payment_gateway"`
	PaymentStatus  PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	PaymentID      string        `gorm:"not null" json:"payment_id"`

	CheckedIn   bool       `gorm:"not null;default:false" json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	EmailSent   bool       `gorm:"not null;default:false" json:"email_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Event *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

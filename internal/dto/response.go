package dto

import (
	"time"

	"github.com/eventlink/ticketing/internal/models"
	"github.com/shopspring/decimal"
)

type TicketResponse struct {
	ID             uint                 `json:"id"`
	EventID        uint                 `json:"event_id"`
	Code           string               `json:"code"`
	BuyerName      string               `json:"buyer_name"`
	BuyerEmail     string               `json:"buyer_email"`
	Quantity       int                  `json:"quantity"`
	UnitPrice      decimal.Decimal      `json:"unit_price"`
	TotalPaid      decimal.Decimal      `json:"total_paid"`
	PaymentGateway string               `json:"payment_gateway"`
	PaymentStatus  models.PaymentStatus `json:"payment_status"`
	CheckedIn      bool                 `json:"checked_in"`
	CheckedInAt    *time.Time           `json:"checked_in_at,omitempty"`
	EmailSent      bool                 `json:"email_sent"`
	CreatedAt      time.Time            `json:"created_at"`
}

// PaymentConfirmResponse carries the issued ticket. QRPayload is the exact
// string to encode into the QR image: the plain ticket code, nothing wrapped
// around it.
type PaymentConfirmResponse struct {
	Ticket    TicketResponse `json:"ticket"`
	QRPayload string         `json:"qr_payload"`
}

type ScanResponse struct {
	Outcome     string          `json:"outcome"`
	Message     string          `json:"message"`
	Detail      string          `json:"detail"`
	Ticket      *TicketResponse `json:"ticket,omitempty"`
	CheckedInAt *time.Time      `json:"checked_in_at,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToTicketResponse(t *models.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		EventID:        t.EventID,
		Code:           t.Code,
		BuyerName:      t.BuyerName,
		BuyerEmail:     t.BuyerEmail,
		Quantity:       t.Quantity,
		UnitPrice:      t.UnitPrice,
		TotalPaid:      t.TotalPaid,
		PaymentGateway: t.PaymentGateway,
		PaymentStatus:  t.PaymentStatus,
		CheckedIn:      t.CheckedIn,
		CheckedInAt:    t.CheckedInAt,
		EmailSent:      t.EmailSent,
		CreatedAt:      t.CreatedAt,
	}
}

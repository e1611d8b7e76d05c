package dto

import "github.com/shopspring/decimal"

// TicketIssuedMessage is published to RabbitMQ when reconciliation issues a
// ticket. The email consumer turns it into the confirmation email. The QR
// payload is the plain ticket code, the same string the door scanner looks up.
type TicketIssuedMessage struct {
	TicketID   uint            `json:"ticket_id"`
	Code       string          `json:"code"`
	EventID    uint            `json:"event_id"`
	EventName  string          `json:"event_name"`
	BuyerName  string          `json:"buyer_name"`
	BuyerEmail string          `json:"buyer_email"`
	Quantity   int             `json:"quantity"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
}

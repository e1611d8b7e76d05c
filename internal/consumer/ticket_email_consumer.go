package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/eventlink/ticketing/internal/dto"
	"github.com/eventlink/ticketing/internal/email"
	"github.com/eventlink/ticketing/internal/repository"
	"github.com/eventlink/ticketing/monitoring"
	amqp "github.com/rabbitmq/amqp091-go"
)

const sendTimeout = 15 * time.Second

// TicketEmailConsumer turns ticket.issued messages into confirmation emails
// and records delivery on the ticket. The ticket is already valid before any
// of this runs; a failed send only leaves email_sent=false.
type TicketEmailConsumer struct {
	sender     email.Sender
	ticketRepo repository.TicketRepository
}

func NewTicketEmailConsumer(sender email.Sender, ticketRepo repository.TicketRepository) *TicketEmailConsumer {
	return &TicketEmailConsumer{sender: sender, ticketRepo: ticketRepo}
}

// Start listens for messages until the channel closes.
func (tc *TicketEmailConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			tc.handleMessage(msg)
		}
		log.Println("[TicketEmailConsumer] channel closed, stopping consumer")
	}()
}

func (tc *TicketEmailConsumer) handleMessage(msg amqp.Delivery) {
	var issued dto.TicketIssuedMessage
	if err := json.Unmarshal(msg.Body, &issued); err != nil {
		log.Printf("[TicketEmailConsumer] failed to unmarshal: %v", err)
		msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := tc.sender.Send(ctx, buildTicketEmail(issued)); err != nil {
		log.Printf("[TicketEmailConsumer] failed to send email for ticket %s: %v", issued.Code, err)
		monitoring.RecordTicketEmail("failed")
		msg.Nack(false, true) // requeue, delivery is retryable
		return
	}

	if err := tc.ticketRepo.MarkEmailSent(ctx, issued.TicketID); err != nil {
		// The email went out; do not resend it over a bookkeeping failure.
		log.Printf("[TicketEmailConsumer] email sent but failed to mark ticket %s: %v", issued.Code, err)
	}

	monitoring.RecordTicketEmail("sent")
	log.Printf("[TicketEmailConsumer] sent ticket %s to %s", issued.Code, issued.BuyerEmail)
	msg.Ack(false)
}

func buildTicketEmail(issued dto.TicketIssuedMessage) email.Message {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour ticket for %s is confirmed.\n\nTicket code: %s\nAdmits: %d\nTotal paid: $%s\n\nShow the code at the door to check in.\n",
		issued.BuyerName, issued.EventName, issued.Code, issued.Quantity, issued.TotalPaid.StringFixed(2),
	)
	return email.Message{
		To:      issued.BuyerEmail,
		Subject: fmt.Sprintf("Your Ticket for %s", issued.EventName),
		Body:    body,
	}
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/eventlink/ticketing/internal/dto"
	"github.com/eventlink/ticketing/internal/fees"
	"github.com/eventlink/ticketing/internal/models"
	"github.com/eventlink/ticketing/internal/repository"
	"github.com/eventlink/ticketing/monitoring"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrAmountMismatch    = errors.New("captured amount does not match expected total")
	ErrEventSoldOut      = errors.New("event does not have enough capacity left")
	ErrHostNotOnboarded  = errors.New("host has not completed payment onboarding")
	ErrReconcileInFlight = errors.New("reconciliation for this transaction is already in progress")
)

// amountEpsilon tolerates currency rounding between our expected total and
// the amount the gateway reports as captured.
var amountEpsilon = decimal.NewFromFloat(0.01)

// maxCodeAttempts bounds regenerate-and-retry on a ticket code collision.
const maxCodeAttempts = 3

// inFlightTTL bounds how long the Redis duplicate-delivery guard holds a
// transaction id before a retry may pass through again.
const inFlightTTL = time.Minute

type Buyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Confirmation is the gateway's asynchronous signal that a charge succeeded.
// Gateways may deliver it more than once for the same logical payment.
type Confirmation struct {
	TransactionID  string          `json:"transaction_id"`
	AmountCaptured decimal.Decimal `json:"amount_captured"`
	Currency       string          `json:"currency"`
	Gateway        fees.Gateway    `json:"gateway"`
}

type ReconcileService interface {
	Reconcile(ctx context.Context, conf Confirmation, eventID uint, buyer Buyer, quantity int) (*models.Ticket, error)
	GetTicket(ctx context.Context, code string) (*models.Ticket, error)
	ListTickets(ctx context.Context, eventID uint) ([]models.Ticket, error)
	EventStats(ctx context.Context, eventID uint) (*repository.TicketStats, error)
}

// TicketPublisher is the outbound messaging side effect. pkg/rabbitmq
// satisfies it in production.
type TicketPublisher interface {
	Publish(routingKey string, payload any) error
}

type reconcileService struct {
	eventRepo  repository.EventRepository
	ticketRepo repository.TicketRepository
	calc       *fees.Calculator
	publisher  TicketPublisher
	redis      *redis.Client
}

// NewReconcileService wires the reconciliation core. publisher and
// redisClient may be nil: without a publisher no email is dispatched, without
// Redis the Postgres unique index on payment_id is the only idempotency
// barrier (which is still correct, just without in-flight suppression).
func NewReconcileService(
	eventRepo repository.EventRepository,
	ticketRepo repository.TicketRepository,
	calc *fees.Calculator,
	publisher TicketPublisher,
	redisClient *redis.Client,
) ReconcileService {
	return &reconcileService{
		eventRepo:  eventRepo,
		ticketRepo: ticketRepo,
		calc:       calc,
		publisher:  publisher,
		redis:      redisClient,
	}
}

// Reconcile turns one gateway confirmation into one issued ticket.
// Invoked again with the same transaction id it returns the existing ticket
// unchanged, so a paid buyer can never end up with zero or two tickets no
// matter how often the gateway retries the callback.
func (s *reconcileService) Reconcile(ctx context.Context, conf Confirmation, eventID uint, buyer Buyer, quantity int) (*models.Ticket, error) {
	if conf.TransactionID == "" {
		return nil, fmt.Errorf("gateway confirmation has no transaction id")
	}
	if quantity <= 0 {
		return nil, fees.ErrInvalidQuantity
	}

	// Replay fast path: the transaction already produced a ticket.
	existing, err := s.ticketRepo.FindByPaymentID(ctx, conf.TransactionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	release, err := s.acquireInFlight(ctx, conf.TransactionID)
	if err != nil {
		var replay reconcileReplayError
		if errors.As(err, &replay) {
			return replay.ticket, nil
		}
		return nil, err
	}
	issued := false
	defer func() {
		// Keep the guard on success so immediate duplicate deliveries are
		// answered from the replay fast path; release it on failure so the
		// gateway's retry can go through.
		if !issued {
			release()
		}
	}()

	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			monitoring.RecordReconcileFailure("event_not_found")
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	if conf.Gateway == fees.GatewayStripe && (event.StripeAccountID == nil || *event.StripeAccountID == "") {
		monitoring.RecordReconcileFailure("host_not_onboarded")
		return nil, ErrHostNotOnboarded
	}

	// Recompute the expected total from the event's authoritative price.
	// The client-supplied amount is never trusted: a manipulated client that
	// underpaid fails here instead of getting a ticket.
	breakdown, err := s.calc.Calculate(conf.Gateway, event.TicketPrice, quantity)
	if err != nil {
		return nil, err
	}
	expected := breakdown.Round().BuyerTotal
	if conf.AmountCaptured.Sub(expected).Abs().GreaterThan(amountEpsilon) {
		monitoring.RecordReconcileFailure("amount_mismatch")
		return nil, fmt.Errorf("%w: captured %s, expected %s",
			ErrAmountMismatch, conf.AmountCaptured.StringFixed(2), expected.StringFixed(2))
	}

	ticket, err := s.issueWithRetry(ctx, conf, event, buyer, quantity)
	if err != nil {
		return nil, err
	}
	issued = true

	monitoring.RecordTicketIssued(string(conf.Gateway))
	s.publishIssued(ticket, event)

	return ticket, nil
}

// issueWithRetry inserts the ticket, regenerating the code on a collision.
// Each attempt is its own store transaction (a unique violation aborts a
// Postgres transaction, so a retry must restart it, not re-insert inside it).
func (s *reconcileService) issueWithRetry(ctx context.Context, conf Confirmation, event *models.Event, buyer Buyer, quantity int) (*models.Ticket, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := newTicketCode()
		if err != nil {
			return nil, err
		}

		ticket := &models.Ticket{
			EventID:        event.ID,
			Code:           code,
			BuyerName:      buyer.Name,
			BuyerEmail:     buyer.Email,
			Quantity:       quantity,
			UnitPrice:      event.TicketPrice,
			TotalPaid:      conf.AmountCaptured,
			PaymentGateway: string(conf.Gateway),
			PaymentStatus:  models.PaymentCompleted,
			PaymentID:      conf.TransactionID,
		}

		err = s.ticketRepo.Issue(ctx, ticket)
		switch {
		case err == nil:
			return ticket, nil
		case errors.Is(err, repository.ErrDuplicateCode):
			log.Printf("[Reconcile] ticket code collision on %s, regenerating (attempt %d)", code, attempt+1)
			continue
		case errors.Is(err, repository.ErrDuplicatePayment):
			// A concurrent delivery of the same confirmation won. Return its
			// ticket.
			return s.ticketRepo.FindByPaymentID(ctx, conf.TransactionID)
		case errors.Is(err, repository.ErrInsufficientCapacity):
			monitoring.RecordReconcileFailure("sold_out")
			return nil, ErrEventSoldOut
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not generate a unique ticket code after %d attempts", maxCodeAttempts)
}

// publishIssued hands the ticket to the email pipeline. Fire and forget: a
// publish failure is logged and the ticket stays valid with email_sent=false.
// Ticket validity never depends on email delivery.
func (s *reconcileService) publishIssued(ticket *models.Ticket, event *models.Event) {
	if s.publisher == nil {
		return
	}

	msg := dto.TicketIssuedMessage{
		TicketID:   ticket.ID,
		Code:       ticket.Code,
		EventID:    event.ID,
		EventName:  event.Name,
		BuyerName:  ticket.BuyerName,
		BuyerEmail: ticket.BuyerEmail,
		Quantity:   ticket.Quantity,
		TotalPaid:  ticket.TotalPaid,
	}
	if err := s.publisher.Publish("ticket.issued", msg); err != nil {
		log.Printf("[Reconcile] failed to publish ticket.issued for %s: %v", ticket.Code, err)
	}
}

// acquireInFlight takes the Redis duplicate-delivery guard for a transaction
// id. Redis here is an optimization, not the authority: if it is down or not
// configured, the unique payment_id index still prevents double issuance.
func (s *reconcileService) acquireInFlight(ctx context.Context, transactionID string) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	key := "reconcile:txn:" + transactionID
	ok, err := s.redis.SetNX(ctx, key, 1, inFlightTTL).Result()
	if err != nil {
		log.Printf("[Reconcile] redis guard unavailable, relying on database idempotency: %v", err)
		return func() {}, nil
	}
	if !ok {
		// Another delivery of the same confirmation is mid-flight. If it
		// already committed, answer with its ticket; otherwise tell the
		// gateway to retry.
		if existing, ferr := s.ticketRepo.FindByPaymentID(ctx, transactionID); ferr == nil {
			return func() {}, reconcileReplayError{ticket: existing}
		}
		return func() {}, ErrReconcileInFlight
	}

	return func() {
		if err := s.redis.Del(context.Background(), key).Err(); err != nil {
			log.Printf("[Reconcile] failed to release guard %s: %v", key, err)
		}
	}, nil
}

// reconcileReplayError carries an already-issued ticket out of the guard
// path so Reconcile can return it as a successful replay.
type reconcileReplayError struct {
	ticket *models.Ticket
}

func (e reconcileReplayError) Error() string { return "reconciliation already completed" }

func (s *reconcileService) GetTicket(ctx context.Context, code string) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *reconcileService) ListTickets(ctx context.Context, eventID uint) ([]models.Ticket, error) {
	return s.ticketRepo.ListByEvent(ctx, eventID)
}

func (s *reconcileService) EventStats(ctx context.Context, eventID uint) (*repository.TicketStats, error) {
	if _, err := s.eventRepo.FindByID(ctx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return s.ticketRepo.StatsByEvent(ctx, eventID)
}

const codeCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newTicketCode builds a TIX-<unix-ms>-<random> code: human-shareable,
// QR-encodable, and random enough that collisions are handled by retry
// rather than prevented.
func newTicketCode() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeCharset[int(buf[i])%len(codeCharset)]
	}
	return fmt.Sprintf("TIX-%d-%s", time.Now().UnixMilli(), string(buf)), nil
}

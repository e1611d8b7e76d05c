package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eventlink/ticketing/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDuplicateCode means the generated ticket code collided with an
	// existing one. Callers regenerate and retry.
	ErrDuplicateCode = errors.New("ticket code already exists")
	// ErrDuplicatePayment means a ticket for this gateway transaction was
	// already issued. Callers load and return the existing ticket.
	ErrDuplicatePayment = errors.New("payment already has a ticket")
	// ErrAlreadyCheckedIn means the conditional check-in update matched no
	// row because the ticket was checked in first.
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	// ErrInsufficientCapacity means the event cannot admit the requested
	// quantity on top of what is already sold.
	ErrInsufficientCapacity = errors.New("not enough event capacity left")
)

// TicketStats aggregates an event's sales for the host dashboard. Only
// completed payments count.
type TicketStats struct {
	TicketCount       int64           `json:"ticket_count"`
	QuantitySold      int64           `json:"quantity_sold"`
	Revenue           decimal.Decimal `json:"revenue"`
	CheckedInTickets  int64           `json:"checked_in_tickets"`
	CheckedInQuantity int64           `json:"checked_in_quantity"`
}

type TicketRepository interface {
	Issue(ctx context.Context, ticket *models.Ticket) error
	FindByCode(ctx context.Context, code string) (*models.Ticket, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error)
	MarkCheckedIn(ctx context.Context, code string, at time.Time) (*models.Ticket, error)
	MarkEmailSent(ctx context.Context, id uint) error
	ListByEvent(ctx context.Context, eventID uint) ([]models.Ticket, error)
	StatsByEvent(ctx context.Context, eventID uint) (*TicketStats, error)
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

// Issue inserts the ticket inside one transaction that row-locks the event,
// so the capacity check and the insert serialize per event. Unique
// violations are translated to ErrDuplicateCode / ErrDuplicatePayment for
// the issuing side to resolve.
func (r *ticketRepository) Issue(ctx context.Context, ticket *models.Ticket) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.
			Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			First(&event, ticket.EventID).Error; err != nil {
			return err
		}

		if !event.Unlimited() {
			var sold int64
			err := tx.Model(&models.Ticket{}).
				Select("COALESCE(SUM(quantity), 0)").
				Where("event_id = ? AND payment_status = ?", event.ID, models.PaymentCompleted).
				Scan(&sold).Error
			if err != nil {
				return err
			}
			if sold+int64(ticket.Quantity) > int64(*event.Capacity) {
				return ErrInsufficientCapacity
			}
		}

		return tx.Create(ticket).Error
	})
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "payment_id") {
			return ErrDuplicatePayment
		}
		if strings.Contains(pgErr.ConstraintName, "code") {
			return ErrDuplicateCode
		}
	}
	return err
}

func (r *ticketRepository) FindByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MarkCheckedIn flips checked_in false→true as one conditional update. The
// store, not this process, arbitrates concurrent scanners: whichever update
// matches the row wins, every other caller sees zero rows affected. A
// read-then-write here would reintroduce the double-admit race.
func (r *ticketRepository) MarkCheckedIn(ctx context.Context, code string, at time.Time) (*models.Ticket, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("code = ? AND checked_in = ?", code, false).
		Updates(map[string]interface{}{
			"checked_in":    true,
			"checked_in_at": at,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// No match: either the ticket does not exist or it was checked in
		// first. A follow-up read disambiguates.
		if _, err := r.FindByCode(ctx, code); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyCheckedIn
	}

	return r.FindByCode(ctx, code)
}

func (r *ticketRepository) MarkEmailSent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ?", id).
		Update("email_sent", true).Error
}

func (r *ticketRepository) ListByEvent(ctx context.Context, eventID uint) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) StatsByEvent(ctx context.Context, eventID uint) (*TicketStats, error) {
	var stats TicketStats
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Select(`COUNT(*) AS ticket_count,
			COALESCE(SUM(quantity), 0) AS quantity_sold,
			COALESCE(SUM(total_paid), 0) AS revenue,
			COALESCE(SUM(CASE WHEN checked_in THEN 1 ELSE 0 END), 0) AS checked_in_tickets,
			COALESCE(SUM(CASE WHEN checked_in THEN quantity ELSE 0 END), 0) AS checked_in_quantity`).
		Where("event_id = ? AND payment_status = ?", eventID, models.PaymentCompleted).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eventlink/ticketing/internal/models"
	"github.com/eventlink/ticketing/internal/repository"
	"github.com/eventlink/ticketing/monitoring"
	"gorm.io/gorm"
)

// ScanOutcome is the terminal state of one scan interaction at the door.
// Classification outcomes are expected results that drive the operator UI,
// not errors.
type ScanOutcome string

const (
	OutcomeInvalid          ScanOutcome = "invalid"
	OutcomeWrongEvent       ScanOutcome = "wrong_event"
	OutcomeNotPaid          ScanOutcome = "not_paid"
	OutcomeAlreadyCheckedIn ScanOutcome = "already_checked_in"
	OutcomeValid            ScanOutcome = "valid"
	OutcomeCheckedIn        ScanOutcome = "checked_in"
)

type ScanResult struct {
	Outcome     ScanOutcome    `json:"outcome"`
	Message     string         `json:"message"`
	Detail      string         `json:"detail"`
	Ticket      *models.Ticket `json:"ticket,omitempty"`
	CheckedInAt *time.Time     `json:"checked_in_at,omitempty"`
}

type CheckinService interface {
	Verify(ctx context.Context, eventID uint, code string) (*ScanResult, error)
	Confirm(ctx context.Context, eventID uint, code string) (*ScanResult, error)
}

type checkinService struct {
	ticketRepo repository.TicketRepository
}

func NewCheckinService(ticketRepo repository.TicketRepository) CheckinService {
	return &checkinService{ticketRepo: ticketRepo}
}

// Verify classifies a scanned code without touching persisted state, so the
// operator can dismiss the result and rescan freely. The decision order is
// fixed: existence, then event match, then payment status, then check-in
// status. Each step has its own operator-facing message and reordering them
// changes the diagnosis shown at the door.
func (s *checkinService) Verify(ctx context.Context, eventID uint, code string) (*ScanResult, error) {
	result, err := s.classifyCode(ctx, eventID, code)
	if err != nil {
		return nil, err
	}
	monitoring.RecordScan(string(result.Outcome))
	return result, nil
}

// classifyCode is the classification without the scan metric, so each
// physical scan is counted exactly once whichever entry point handled it.
func (s *checkinService) classifyCode(ctx context.Context, eventID uint, code string) (*ScanResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &ScanResult{
			Outcome: OutcomeInvalid,
			Message: "INVALID TICKET",
			Detail:  "Malformed ticket code",
		}, nil
	}

	ticket, err := s.ticketRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ScanResult{
				Outcome: OutcomeInvalid,
				Message: "INVALID TICKET",
				Detail:  "Ticket not found",
			}, nil
		}
		return nil, err
	}

	return s.classify(eventID, ticket), nil
}

// Confirm performs the single mutating transition of the scan protocol:
// VALID_ADMIT → CHECKED_IN. The conditional update in the store decides the
// winner when two scanners confirm the same code; the loser is told the
// ticket was already used rather than shown an error.
func (s *checkinService) Confirm(ctx context.Context, eventID uint, code string) (*ScanResult, error) {
	result, err := s.classifyCode(ctx, eventID, code)
	if err != nil {
		return nil, err
	}
	if result.Outcome != OutcomeValid {
		monitoring.RecordScan(string(result.Outcome))
		return result, nil
	}

	ticket, err := s.ticketRepo.MarkCheckedIn(ctx, code, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyCheckedIn):
			// Lost the race to a concurrent scanner.
			existing, ferr := s.ticketRepo.FindByCode(ctx, code)
			if ferr != nil {
				return nil, ferr
			}
			monitoring.RecordScan(string(OutcomeAlreadyCheckedIn))
			return alreadyCheckedInResult(existing), nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			monitoring.RecordScan(string(OutcomeInvalid))
			return &ScanResult{
				Outcome: OutcomeInvalid,
				Message: "INVALID TICKET",
				Detail:  "Ticket not found",
			}, nil
		default:
			return nil, err
		}
	}

	monitoring.RecordScan(string(OutcomeCheckedIn))
	return &ScanResult{
		Outcome:     OutcomeCheckedIn,
		Message:     "CHECKED IN",
		Detail:      ticket.BuyerName + " admitted successfully",
		Ticket:      ticket,
		CheckedInAt: ticket.CheckedInAt,
	}, nil
}

func (s *checkinService) classify(eventID uint, ticket *models.Ticket) *ScanResult {
	if ticket.EventID != eventID {
		return &ScanResult{
			Outcome: OutcomeWrongEvent,
			Message: "WRONG EVENT",
			Detail:  "This ticket is for a different event",
			Ticket:  ticket,
		}
	}

	if ticket.PaymentStatus != models.PaymentCompleted {
		return &ScanResult{
			Outcome: OutcomeNotPaid,
			Message: "PAYMENT NOT CONFIRMED",
			Detail:  "Do not admit - payment pending",
			Ticket:  ticket,
		}
	}

	if ticket.CheckedIn {
		return alreadyCheckedInResult(ticket)
	}

	return &ScanResult{
		Outcome: OutcomeValid,
		Message: "VERIFIED - ADMIT",
		Detail:  "Payment confirmed",
		Ticket:  ticket,
	}
}

func alreadyCheckedInResult(ticket *models.Ticket) *ScanResult {
	return &ScanResult{
		Outcome:     OutcomeAlreadyCheckedIn,
		Message:     "ALREADY CHECKED IN",
		Detail:      "This ticket was already used",
		Ticket:      ticket,
		CheckedInAt: ticket.CheckedInAt,
	}
}

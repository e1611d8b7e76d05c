package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/eventlink/ticketing/internal/dto"
	"github.com/eventlink/ticketing/internal/fees"
	"github.com/eventlink/ticketing/internal/service"
	"github.com/labstack/echo/v4"
)

type TicketHandler struct {
	reconcileSvc service.ReconcileService
	checkinSvc   service.CheckinService
}

func NewTicketHandler(reconcileSvc service.ReconcileService, checkinSvc service.CheckinService) *TicketHandler {
	return &TicketHandler{reconcileSvc: reconcileSvc, checkinSvc: checkinSvc}
}

func (h *TicketHandler) RegisterRoutes(e *echo.Echo) {
	events := e.Group("/api/v1/events")
	events.POST("/:id/payments/confirm", h.ConfirmPayment)
	events.POST("/:id/checkin/verify", h.VerifyCheckin)
	events.POST("/:id/checkin/confirm", h.ConfirmCheckin)
	events.GET("/:id/tickets", h.ListTickets)
	events.GET("/:id/stats", h.EventStats)

	e.GET("/api/v1/tickets/:code", h.GetTicket)
}

// ConfirmPayment is the gateway success callback. It is safe to deliver more
// than once: a replayed transaction id returns the already-issued ticket with
// the same body.
func (h *TicketHandler) ConfirmPayment(c echo.Context) error {
	eventID, err := parseEventID(c)
	if err != nil {
		return err
	}

	var req dto.PaymentConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TransactionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction_id is required")
	}
	if req.BuyerEmail == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "buyer_email is required")
	}

	gateway := fees.Gateway(req.Gateway)
	if gateway != fees.GatewayStripe && gateway != fees.GatewayPayPal {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown payment gateway")
	}

	conf := service.Confirmation{
		TransactionID:  req.TransactionID,
		AmountCaptured: req.AmountCaptured,
		Currency:       req.Currency,
		Gateway:        gateway,
	}
	buyer := service.Buyer{Name: req.BuyerName, Email: req.BuyerEmail}

	ticket, err := h.reconcileSvc.Reconcile(c.Request().Context(), conf, eventID, buyer, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAmountMismatch):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, fees.ErrInvalidQuantity):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEventSoldOut):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrHostNotOnboarded):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrReconcileInFlight):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.PaymentConfirmResponse{
		Ticket:    dto.ToTicketResponse(ticket),
		QRPayload: ticket.Code,
	})
}

// VerifyCheckin classifies a scanned code for the door station bound to the
// event in the path. Read-only: dismissing the result has no effect.
func (h *TicketHandler) VerifyCheckin(c echo.Context) error {
	return h.scan(c, func(ctx context.Context, eventID uint, code string) (*service.ScanResult, error) {
		return h.checkinSvc.Verify(ctx, eventID, code)
	})
}

// ConfirmCheckin performs the operator-confirmed admit. Classification
// outcomes (wrong event, unpaid, already used) come back as 200 responses
// that drive the scanner UI; only infrastructure failures are errors.
func (h *TicketHandler) ConfirmCheckin(c echo.Context) error {
	return h.scan(c, func(ctx context.Context, eventID uint, code string) (*service.ScanResult, error) {
		return h.checkinSvc.Confirm(ctx, eventID, code)
	})
}

func (h *TicketHandler) scan(c echo.Context, op func(ctx context.Context, eventID uint, code string) (*service.ScanResult, error)) error {
	eventID, err := parseEventID(c)
	if err != nil {
		return err
	}

	var req dto.CheckinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := op(c.Request().Context(), eventID, req.Code)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := dto.ScanResponse{
		Outcome:     string(result.Outcome),
		Message:     result.Message,
		Detail:      result.Detail,
		CheckedInAt: result.CheckedInAt,
	}
	if result.Ticket != nil {
		t := dto.ToTicketResponse(result.Ticket)
		resp.Ticket = &t
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *TicketHandler) GetTicket(c echo.Context) error {
	code := c.Param("code")

	ticket, err := h.reconcileSvc.GetTicket(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "ticket not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.ToTicketResponse(ticket))
}

func (h *TicketHandler) ListTickets(c echo.Context) error {
	eventID, err := parseEventID(c)
	if err != nil {
		return err
	}

	tickets, err := h.reconcileSvc.ListTickets(c.Request().Context(), eventID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := make([]dto.TicketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = dto.ToTicketResponse(&t)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *TicketHandler) EventStats(c echo.Context) error {
	eventID, err := parseEventID(c)
	if err != nil {
		return err
	}

	stats, err := h.reconcileSvc.EventStats(c.Request().Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, stats)
}

func parseEventID(c echo.Context) (uint, error) {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	return uint(eventID), nil
}

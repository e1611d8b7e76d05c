package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued after payment reconciliation",
		},
		[]string{"gateway"},
	)

	ReconcileFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_failures_total",
			Help: "Payment reconciliations that failed",
		},
		[]string{"reason"},
	)

	Scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_scans_total",
			Help: "Door scans by outcome",
		},
		[]string{"outcome"},
	)

	TicketEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_emails_total",
			Help: "Ticket confirmation emails by delivery status",
		},
		[]string{"status"},
	)
)

func RecordTicketIssued(gateway string) {
	TicketsIssued.WithLabelValues(gateway).Inc()
}

func RecordReconcileFailure(reason string) {
	ReconcileFailures.WithLabelValues(reason).Inc()
}

func RecordScan(outcome string) {
	Scans.WithLabelValues(outcome).Inc()
}

func RecordTicketEmail(status string) {
	TicketEmails.WithLabelValues(status).Inc()
}

// Package fees computes how the money from a ticket purchase is split
// between the buyer, the host, the platform, and the payment gateway.
//
// Two settlement models exist, one per gateway, and they are never mixed:
//
//   - PayPal: the gateway's processing fee (percentage of the subtotal plus
//     a fixed component) comes out of the host's portion after capture.
//   - Stripe: the platform fee is collected as Stripe's application fee,
//     taken directly from the buyer total at charge time and routed to the
//     platform account; the remainder is auto-transferred to the host's
//     connected account, so no separate gateway fee appears on our books.
//
// All arithmetic is exact decimal. Rounding to cents happens only in
// Breakdown.Round, at the settlement/presentation boundary.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Gateway string

const (
	GatewayStripe Gateway = "stripe"
	GatewayPayPal Gateway = "paypal"
)

var (
	ErrInvalidPrice    = errors.New("unit price must be positive")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Policy holds the fee constants. Values come from configuration; the
// defaults below mirror the current platform pricing.
type Policy struct {
	PlatformFeePerTicket decimal.Decimal
	PayPalFeePercent     decimal.Decimal
	PayPalFeeFixed       decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		PlatformFeePerTicket: decimal.NewFromFloat(1.00),
		PayPalFeePercent:     decimal.NewFromFloat(0.0349),
		PayPalFeeFixed:       decimal.NewFromFloat(0.49),
	}
}

type Breakdown struct {
	Gateway     Gateway         `json:"gateway"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	BuyerTotal  decimal.Decimal `json:"buyer_total"`
	// GatewayFee is the processor's cut under the PayPal model. Zero for
	// Stripe, where the processor settles its own fee out of the transfer.
	GatewayFee decimal.Decimal `json:"gateway_fee"`
	// ApplicationFee is the amount passed to Stripe as
	// application_fee_amount. Zero for PayPal.
	ApplicationFee decimal.Decimal `json:"application_fee"`
	HostReceives   decimal.Decimal `json:"host_receives"`
}

type Calculator struct {
	policy Policy
}

func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

// Calculate is pure and deterministic: same inputs, same breakdown, no side
// effects.
func (c *Calculator) Calculate(gateway Gateway, unitPrice decimal.Decimal, quantity int) (*Breakdown, error) {
	if unitPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	qty := decimal.NewFromInt(int64(quantity))
	subtotal := unitPrice.Mul(qty)
	platformFee := c.policy.PlatformFeePerTicket.Mul(qty)
	buyerTotal := subtotal.Add(platformFee)

	b := &Breakdown{
		Gateway:     gateway,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		Subtotal:    subtotal,
		PlatformFee: platformFee,
		BuyerTotal:  buyerTotal,
	}

	switch gateway {
	case GatewayPayPal:
		b.GatewayFee = subtotal.Mul(c.policy.PayPalFeePercent).Add(c.policy.PayPalFeeFixed)
		b.HostReceives = subtotal.Sub(b.GatewayFee)
	case GatewayStripe:
		b.ApplicationFee = platformFee
		b.HostReceives = buyerTotal.Sub(platformFee)
	default:
		return nil, fmt.Errorf("unknown gateway %q", gateway)
	}

	return b, nil
}

// Round returns a copy with every amount rounded to cents. Call only at the
// settlement or presentation boundary so rounding error never compounds
// through intermediate math.
func (b *Breakdown) Round() *Breakdown {
	r := *b
	r.Subtotal = b.Subtotal.Round(2)
	r.PlatformFee = b.PlatformFee.Round(2)
	r.BuyerTotal = b.BuyerTotal.Round(2)
	r.GatewayFee = b.GatewayFee.Round(2)
	r.ApplicationFee = b.ApplicationFee.Round(2)
	r.HostReceives = b.HostReceives.Round(2)
	return &r
}

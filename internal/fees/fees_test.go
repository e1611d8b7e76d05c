package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculate_Stripe_Basic(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())

	// $25 x 2 → subtotal $50.00, platform fee $2.00, buyer total $52.00
	b, err := calc.Calculate(GatewayStripe, dec("25.00"), 2)

	require.NoError(t, err)
	assert.True(t, b.Subtotal.Equal(dec("50.00")), "subtotal = %s", b.Subtotal)
	assert.True(t, b.PlatformFee.Equal(dec("2.00")), "platform fee = %s", b.PlatformFee)
	assert.True(t, b.BuyerTotal.Equal(dec("52.00")), "buyer total = %s", b.BuyerTotal)
	assert.True(t, b.ApplicationFee.Equal(dec("2.00")))
	assert.True(t, b.HostReceives.Equal(dec("50.00")))
	assert.True(t, b.GatewayFee.IsZero())
}

func TestCalculate_PayPal_Basic(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())

	b, err := calc.Calculate(GatewayPayPal, dec("25.00"), 2)

	require.NoError(t, err)
	assert.True(t, b.Subtotal.Equal(dec("50.00")))
	assert.True(t, b.PlatformFee.Equal(dec("2.00")))
	assert.True(t, b.BuyerTotal.Equal(dec("52.00")))
	// 50.00 * 0.0349 + 0.49 = 2.235
	assert.True(t, b.GatewayFee.Equal(dec("2.235")), "gateway fee = %s", b.GatewayFee)
	assert.True(t, b.HostReceives.Equal(dec("47.765")), "host receives = %s", b.HostReceives)
}

func TestCalculate_BuyerTotalIsSubtotalPlusPlatformFee(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())

	prices := []string{"0.01", "1.00", "9.99", "25.00", "149.95", "1000.00"}
	quantities := []int{1, 2, 3, 7, 50}

	for _, p := range prices {
		for _, q := range quantities {
			b, err := calc.Calculate(GatewayPayPal, dec(p), q)
			require.NoError(t, err)
			assert.True(t, b.BuyerTotal.Equal(b.Subtotal.Add(b.PlatformFee)),
				"price=%s qty=%d", p, q)
		}
	}
}

// Conservation of money: everything the buyer pays ends up with the host,
// the platform, or the gateway, within one cent.
func TestCalculate_ConservationOfMoney(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())
	cent := dec("0.01")

	prices := []string{"0.50", "12.34", "25.00", "99.99", "250.00"}
	quantities := []int{1, 2, 4, 10}

	for _, p := range prices {
		for _, q := range quantities {
			for _, gw := range []Gateway{GatewayStripe, GatewayPayPal} {
				b, err := calc.Calculate(gw, dec(p), q)
				require.NoError(t, err)

				total := b.HostReceives.Add(b.PlatformFee).Add(b.GatewayFee)
				if gw == GatewayStripe {
					// Under the application-fee model the gateway's own cut
					// is settled outside our books.
					total = b.HostReceives.Add(b.PlatformFee)
				}
				diff := total.Sub(b.BuyerTotal).Abs()
				assert.True(t, diff.LessThanOrEqual(cent),
					"gateway=%s price=%s qty=%d: diff=%s", gw, p, q, diff)
			}
		}
	}
}

func TestCalculate_NoMidCalculationRounding(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())

	// 3 x $10.33 under PayPal: fee = 30.99*0.0349 + 0.49 = 1.571551,
	// kept exact until Round.
	b, err := calc.Calculate(GatewayPayPal, dec("10.33"), 3)
	require.NoError(t, err)
	assert.True(t, b.GatewayFee.Equal(dec("1.571551")), "gateway fee = %s", b.GatewayFee)

	r := b.Round()
	assert.True(t, r.GatewayFee.Equal(dec("1.57")))
	assert.True(t, r.HostReceives.Equal(dec("29.42")))
	// The original breakdown is untouched.
	assert.True(t, b.GatewayFee.Equal(dec("1.571551")))
}

func TestCalculate_RejectsInvalidInput(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())

	_, err := calc.Calculate(GatewayStripe, dec("0"), 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = calc.Calculate(GatewayStripe, dec("-5.00"), 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = calc.Calculate(GatewayStripe, dec("10.00"), 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = calc.Calculate(GatewayStripe, dec("10.00"), -2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCalculate_UnknownGateway(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())

	_, err := calc.Calculate(Gateway("venmo"), dec("10.00"), 1)
	assert.Error(t, err)
}

func TestCalculate_Deterministic(t *testing.T) {
	calc := NewCalculator(DefaultPolicy())

	a, err := calc.Calculate(GatewayPayPal, dec("19.99"), 3)
	require.NoError(t, err)
	b, err := calc.Calculate(GatewayPayPal, dec("19.99"), 3)
	require.NoError(t, err)

	assert.True(t, a.BuyerTotal.Equal(b.BuyerTotal))
	assert.True(t, a.GatewayFee.Equal(b.GatewayFee))
	assert.True(t, a.HostReceives.Equal(b.HostReceives))
}

func TestCalculate_ConfigurablePlatformFee(t *testing.T) {
	policy := DefaultPolicy()
	policy.PlatformFeePerTicket = dec("1.50")
	calc := NewCalculator(policy)

	b, err := calc.Calculate(GatewayStripe, dec("20.00"), 4)
	require.NoError(t, err)
	assert.True(t, b.PlatformFee.Equal(dec("6.00")))
	assert.True(t, b.BuyerTotal.Equal(dec("86.00")))
}

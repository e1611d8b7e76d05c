package dto

import "github.com/shopspring/decimal"

// PaymentConfirmRequest is the body of the gateway success callback relayed
// by the payment webhook. Amounts are verified server-side against the
// event's price; nothing here is trusted for money math.
type PaymentConfirmRequest struct {
	TransactionID  string          `json:"transaction_id"`
	AmountCaptured decimal.Decimal `json:"amount_captured"`
	Currency       string          `json:"currency"`
	Gateway        string          `json:"gateway"`
	BuyerName      string          `json:"buyer_name"`
	BuyerEmail     string          `json:"buyer_email"`
	Quantity       int             `json:"quantity"`
}

type CheckinRequest struct {
	Code string `json:"code"`
}

package payment

import (
	"context"
)

// ChargeRequest creates a payment intent for a credit purchase. The
// IdempotencyKey makes retried initiations collapse onto one charge.
type ChargeRequest struct {
	UserID         uint
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Description    string
}

type ChargeResponse struct {
	Reference    string // processor payment-intent id
	Status       string
	CheckoutURL  string
	ClientSecret string
}

// TransferRequest pays out an earner to their connected account.
type TransferRequest struct {
	AccountID   string // connected account at the processor
	AmountCents int64
	Currency    string
	OrderID     string // our withdrawal order id, doubles as idempotency key
	Description string
}

type TransferResponse struct {
	Reference string // processor transfer id
	Status    string
}

type Provider interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error)
	// VerifyWebhook checks the signature header against the raw body and
	// returns an error if the payload cannot be trusted.
	VerifyWebhook(body []byte, signatureHeader, secret string) error
}

package payment

import (
	"context"
	"fmt"
	"time"
)

// StubProvider is a no-op provider for development; swap in Stripe via config.
type StubProvider struct{}

func (s *StubProvider) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	return &ChargeResponse{
		Reference: fmt.Sprintf("stub_pi_%d_%d", time.Now().UnixNano(), req.UserID),
		Status:    "pending",
	}, nil
}

func (s *StubProvider) CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	return &TransferResponse{
		Reference: fmt.Sprintf("stub_tr_%s", req.OrderID),
		Status:    "pending",
	}, nil
}

func (s *StubProvider) VerifyWebhook(body []byte, signatureHeader, secret string) error {
	return nil
}

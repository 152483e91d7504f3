package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeProvider talks to the Stripe REST API directly: payment intents
// for purchases and transfers for payouts.
type StripeProvider struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewStripeProvider(apiKey string) *StripeProvider {
	return &StripeProvider{
		BaseURL: "https://api.stripe.com/v1",
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type stripeIntentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

func (p *StripeProvider) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("description", req.Description)
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(req.UserID), 10))

	var out stripeIntentResponse
	if err := p.postForm(ctx, "/payment_intents", form, req.IdempotencyKey, &out); err != nil {
		return nil, err
	}
	return &ChargeResponse{
		Reference:    out.ID,
		Status:       out.Status,
		ClientSecret: out.ClientSecret,
	}, nil
}

type stripeTransferResponse struct {
	ID string `json:"id"`
}

func (p *StripeProvider) CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("destination", req.AccountID)
	form.Set("transfer_group", req.OrderID)
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("description", req.Description)

	var out stripeTransferResponse
	if err := p.postForm(ctx, "/transfers", form, req.OrderID, &out); err != nil {
		return nil, err
	}
	return &TransferResponse{Reference: out.ID, Status: "pending"}, nil
}

func (p *StripeProvider) postForm(ctx context.Context, path string, form url.Values, idempotencyKey string, out interface{}) error {
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	apiReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	apiReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	if idempotencyKey != "" {
		apiReq.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Stripe] POST %s status=%d body=%s", path, resp.StatusCode, string(respBody))
		return fmt.Errorf("stripe api: %d %s", resp.StatusCode, string(respBody))
	}
	return json.Unmarshal(respBody, out)
}

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

const signatureTolerance = 5 * time.Minute

// VerifyWebhook checks a Stripe-Signature header (t=...,v1=...) against
// the raw body. Events with a stale timestamp are rejected to limit
// replay.
func (p *StripeProvider) VerifyWebhook(body []byte, signatureHeader, secret string) error {
	return VerifyStripeSignature(body, signatureHeader, secret, time.Now())
}

func VerifyStripeSignature(body []byte, signatureHeader, secret string, now time.Time) error {
	if signatureHeader == "" {
		return ErrMissingSignature
	}
	var ts string
	var candidates []string
	for _, part := range strings.Split(signatureHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts == "" || len(candidates) == 0 {
		return ErrMissingSignature
	}
	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMissingSignature
	}
	age := now.Sub(time.Unix(tsInt, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrStaleTimestamp
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, c := range candidates {
		if hmac.Equal([]byte(c), []byte(expected)) {
			return nil
		}
	}
	return ErrBadSignature
}

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(body []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	secret := "whsec_test"
	now := time.Now()

	header := signPayload(body, secret, now)
	require.NoError(t, VerifyStripeSignature(body, header, secret, now))

	// Tampered body.
	err := VerifyStripeSignature([]byte(`{"id":"evt_2"}`), header, secret, now)
	assert.ErrorIs(t, err, ErrBadSignature)

	// Wrong secret.
	err = VerifyStripeSignature(body, header, "whsec_other", now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyStripeSignatureRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	secret := "whsec_test"
	now := time.Now()

	old := signPayload(body, secret, now.Add(-10*time.Minute))
	assert.ErrorIs(t, VerifyStripeSignature(body, old, secret, now), ErrStaleTimestamp)

	future := signPayload(body, secret, now.Add(10*time.Minute))
	assert.ErrorIs(t, VerifyStripeSignature(body, future, secret, now), ErrStaleTimestamp)

	// Inside the tolerance window it still verifies.
	recent := signPayload(body, secret, now.Add(-2*time.Minute))
	assert.NoError(t, VerifyStripeSignature(body, recent, secret, now))
}

func TestVerifyStripeSignatureMalformedHeaders(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()

	assert.ErrorIs(t, VerifyStripeSignature(body, "", "s", now), ErrMissingSignature)
	assert.ErrorIs(t, VerifyStripeSignature(body, "v1=deadbeef", "s", now), ErrMissingSignature)
	assert.ErrorIs(t, VerifyStripeSignature(body, "t=12345", "s", now), ErrMissingSignature)
	assert.ErrorIs(t, VerifyStripeSignature(body, "t=notanumber,v1=deadbeef", "s", now), ErrMissingSignature)
}

func TestVerifyStripeSignatureMultipleCandidates(t *testing.T) {
	body := []byte(`{"id":"evt_3"}`)
	secret := "whsec_test"
	now := time.Now()

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", now.Unix())
	mac.Write(body)
	good := hex.EncodeToString(mac.Sum(nil))

	// Stripe sends multiple v1 entries during secret rotation; any match wins.
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), "0000", good)
	assert.NoError(t, VerifyStripeSignature(body, header, secret, now))
}

package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareSplitWithinOneCentOfGross(t *testing.T) {
	for credits := int64(0); credits <= 10000; credits++ {
		gross := CreditsToCents(credits)
		sum := EarnerShareCents(credits) + PlatformShareCents(credits)
		diff := sum - gross
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			t.Fatalf("credits=%d: shares sum %d differs from gross %d by more than one cent", credits, sum, gross)
		}
	}
}

func TestSharesAreNonNegativeAndMonotone(t *testing.T) {
	prevEarner := int64(-1)
	for credits := int64(0); credits <= 1000; credits++ {
		e := EarnerShareCents(credits)
		assert.GreaterOrEqual(t, e, int64(0))
		assert.GreaterOrEqual(t, e, prevEarner, "earner share must not shrink as credits grow")
		prevEarner = e
	}
}

func TestKnownSplits(t *testing.T) {
	// 50 credits = $5.00 gross, $3.50 earner, $1.50 platform.
	assert.Equal(t, int64(500), CreditsToCents(50))
	assert.Equal(t, int64(350), EarnerShareCents(50))
	assert.Equal(t, int64(150), PlatformShareCents(50))

	// 500 credits = $50.00 gross.
	assert.Equal(t, int64(5000), CreditsToCents(500))
	assert.Equal(t, int64(3500), EarnerShareCents(500))
}

func TestAudioRateDerivation(t *testing.T) {
	assert.Equal(t, int64(120), AudioRateCredits(200))
	assert.Equal(t, int64(60), AudioRateCredits(100))
	// Half-up on .5 boundaries: 25 * 0.6 = 15 exactly; 21 * 0.6 = 12.6 -> 13.
	assert.Equal(t, int64(15), AudioRateCredits(25))
	assert.Equal(t, int64(13), AudioRateCredits(21))
}

func TestValidateRateCardMonotonic(t *testing.T) {
	err := ValidateRateCard(RateCard{15: 200, 30: 150})
	require.ErrorIs(t, err, ErrNonMonotonicRates)

	err = ValidateRateCard(RateCard{15: 200, 30: 280})
	assert.NoError(t, err)
}

func TestValidateRateCardPerMinuteFloor(t *testing.T) {
	// 15min at 300 credits = 20/min. 30min floor is 0.70*20 = 14/min,
	// i.e. 420 credits total. 410 total (13.67/min) must be rejected.
	err := ValidateRateCard(RateCard{15: 300, 30: 410})
	require.ErrorIs(t, err, ErrRateBelowFloor)

	// Exactly at the floor is allowed.
	assert.NoError(t, ValidateRateCard(RateCard{15: 300, 30: 420}))

	// Four tiers with reasonable bulk discounts pass.
	assert.NoError(t, ValidateRateCard(RateCard{15: 300, 30: 550, 60: 1000, 90: 1400}))
}

func TestValidateRateCardRejectsBadDurations(t *testing.T) {
	err := ValidateRateCard(RateCard{0: 100})
	require.ErrorIs(t, err, ErrInvalidDuration)

	// Only the fixed duration tiers may be published.
	err = ValidateRateCard(RateCard{7: 100})
	require.ErrorIs(t, err, ErrInvalidDuration)

	err = ValidateRateCard(RateCard{15: 150, 45: 400})
	require.ErrorIs(t, err, ErrInvalidDuration)
}

func TestQuoteBooking(t *testing.T) {
	card := RateCard{15: 200, 30: 350, 60: 600, 90: 850}

	q, err := QuoteBooking(card, 30, false)
	require.NoError(t, err)
	assert.Equal(t, int64(350), q.Credits)
	assert.Equal(t, int64(3500), q.GrossCents)
	assert.Equal(t, int64(2450), q.EarnerCents)
	assert.Equal(t, int64(1050), q.PlatformFeeCents)

	// Audio applies the multiplier before the split.
	q, err = QuoteBooking(card, 30, true)
	require.NoError(t, err)
	assert.Equal(t, int64(210), q.Credits)

	_, err = QuoteBooking(card, 45, false)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = QuoteBooking(RateCard{15: 200, 30: 150}, 15, false)
	require.ErrorIs(t, err, ErrNonMonotonicRates)
}

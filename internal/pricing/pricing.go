// Package pricing is the single source of truth for credit/USD conversion,
// the earner/platform revenue split, and call-rate validation. It is pure:
// no I/O, no state, all money in integer USD cents.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"lynxx/internal/domain"
)

const (
	// CreditCents is the fixed USD value of one credit.
	CreditCents = 10
	// EarnerSharePercent of gross credit value paid to the earner.
	EarnerSharePercent = 70
	// PlatformSharePercent retained by the platform.
	PlatformSharePercent = 30

	// AudioRatePercent derives the audio-call rate from the video rate.
	// Audio rates are never stored independently.
	AudioRatePercent = 60

	// PerMinuteFloorPercent: a longer tier's per-minute price may not drop
	// below this fraction of the previous tier's per-minute price.
	PerMinuteFloorPercent = 70
)

var (
	ErrNonMonotonicRates = errors.New("longer duration priced below shorter duration")
	ErrRateBelowFloor    = errors.New("per-minute rate below floor of previous tier")
	ErrInvalidDuration   = errors.New("duration not offered")
)

// CreditsToCents converts a credit amount to gross USD cents.
func CreditsToCents(credits int64) int64 {
	return credits * CreditCents
}

// EarnerShareCents is the earner's cut of the gross credit value,
// rounded half-up to the cent. Rounding is applied once per output, so
// EarnerShareCents + PlatformShareCents may exceed CreditsToCents by at
// most one cent; callers must tolerate that and never assert exact equality.
func EarnerShareCents(credits int64) int64 {
	return roundedShare(CreditsToCents(credits), EarnerSharePercent)
}

// PlatformShareCents is the platform's cut, rounded half-up to the cent.
func PlatformShareCents(credits int64) int64 {
	return roundedShare(CreditsToCents(credits), PlatformSharePercent)
}

func roundedShare(grossCents int64, percent int64) int64 {
	return (grossCents*percent + 50) / 100
}

// AudioRateCredits derives the audio rate for a duration from its video
// rate, rounded half-up to a whole credit.
func AudioRateCredits(videoCredits int64) int64 {
	return (videoCredits*AudioRatePercent + 50) / 100
}

// RateCard maps a call duration in minutes to its total price in credits.
type RateCard map[int]int64

func allowedDuration(minutes int) bool {
	for _, d := range domain.CallDurationsMinutes {
		if d == minutes {
			return true
		}
	}
	return false
}

// ValidateRateCard rejects a card with durations outside the fixed tier
// set, a card where a longer duration costs less in total than a shorter
// one, or one where a longer duration's per-minute price falls below
// PerMinuteFloorPercent of the previous tier's per-minute price. Bulk
// discounts within the floor are allowed.
func ValidateRateCard(card RateCard) error {
	durations := make([]int, 0, len(card))
	for d := range card {
		if !allowedDuration(d) {
			return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, d)
		}
		durations = append(durations, d)
	}
	sort.Ints(durations)
	for i := 1; i < len(durations); i++ {
		shorter, longer := durations[i-1], durations[i]
		if card[longer] < card[shorter] {
			return fmt.Errorf("%w: %dmin=%d credits vs %dmin=%d credits",
				ErrNonMonotonicRates, longer, card[longer], shorter, card[shorter])
		}
		// Compare per-minute prices cross-multiplied to stay in integers:
		// card[longer]/longer < floor% * card[shorter]/shorter
		if card[longer]*int64(shorter)*100 < card[shorter]*int64(longer)*PerMinuteFloorPercent {
			return fmt.Errorf("%w: %dmin tier", ErrRateBelowFloor, longer)
		}
	}
	return nil
}

// BookingQuote is the money split for a video date, computed once at
// booking time and never recomputed afterwards.
type BookingQuote struct {
	Credits          int64
	GrossCents       int64
	EarnerCents      int64
	PlatformFeeCents int64
}

// QuoteBooking resolves a duration against the earner's rate card and
// derives the split. callType AUDIO applies the audio multiplier.
func QuoteBooking(card RateCard, durationMinutes int, audio bool) (*BookingQuote, error) {
	if err := ValidateRateCard(card); err != nil {
		return nil, err
	}
	credits, ok := card[durationMinutes]
	if !ok {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, durationMinutes)
	}
	if audio {
		credits = AudioRateCredits(credits)
	}
	return &BookingQuote{
		Credits:          credits,
		GrossCents:       CreditsToCents(credits),
		EarnerCents:      EarnerShareCents(credits),
		PlatformFeeCents: PlatformShareCents(credits),
	}, nil
}

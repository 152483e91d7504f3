// Package booking drives the video-date lifecycle: reservation at booking,
// the join grace window, no-show cancellation, and completion. Money moves
// only through the ledger service; this package owns the state machine and
// the room provisioning around it.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lynxx/config"
	"lynxx/internal/domain"
	"lynxx/internal/ledger"
	"lynxx/internal/models"
	"lynxx/internal/pricing"
	"lynxx/internal/repository"
	"lynxx/pkg/videoroom"

	"github.com/google/uuid"
)

var (
	ErrNotParticipant = errors.New("user is not a participant of this date")
	ErrNotJoinable    = errors.New("date is not currently joinable")
	ErrTerminal       = errors.New("date is already in a terminal state")
	ErrPastStart      = errors.New("scheduled start must be in the future")
	ErrEarnerInactive = errors.New("earner is not accepting new dates")
	ErrNoRates        = errors.New("earner has not published call rates")
)

// Notifier pushes date lifecycle alerts to participants. Nil disables
// notifications; delivery failures never affect the state machine.
type Notifier interface {
	NotifyDateStarting(userID uint, videoDateID uint) error
	NotifyDateCall(userID uint, peerName string, videoDateID uint, roomURL string)
}

type Service struct {
	cfg      *config.Config
	dates    *repository.VideoDateRepository
	rates    *repository.RateRepository
	users    *repository.UserRepository
	ledger   *ledger.Service
	rooms    videoroom.Provider
	notifier Notifier
}

func NewService(
	cfg *config.Config,
	dates *repository.VideoDateRepository,
	rates *repository.RateRepository,
	users *repository.UserRepository,
	ledgerSvc *ledger.Service,
	rooms videoroom.Provider,
	notifier Notifier,
) *Service {
	return &Service{
		cfg:      cfg,
		dates:    dates,
		rates:    rates,
		users:    users,
		ledger:   ledgerSvc,
		rooms:    rooms,
		notifier: notifier,
	}
}

// Book quotes the earner's rate card, reserves the seeker's credits, and
// provisions the room. The quote is locked onto the row at booking time;
// the split is never recomputed even if the earner changes rates later.
func (s *Service) Book(ctx context.Context, seekerID, earnerID uint, callType string, start time.Time, durationMinutes int) (*models.VideoDate, error) {
	if !start.After(time.Now()) {
		return nil, ErrPastStart
	}
	profile, err := s.users.GetEarnerProfile(earnerID)
	if err != nil {
		return nil, fmt.Errorf("earner profile: %w", err)
	}
	if !profile.IsActive || !profile.AcceptNewDates {
		return nil, ErrEarnerInactive
	}
	card, err := s.rates.RateCardForEarner(earnerID)
	if err != nil {
		return nil, err
	}
	if len(card) == 0 {
		return nil, ErrNoRates
	}
	quote, err := pricing.QuoteBooking(card, durationMinutes, callType == domain.CallTypeAudio)
	if err != nil {
		return nil, err
	}
	d := &models.VideoDate{
		SeekerID:         seekerID,
		EarnerID:         earnerID,
		CallType:         callType,
		ScheduledStart:   start,
		DurationMinutes:  durationMinutes,
		CreditsReserved:  quote.Credits,
		EarnerCents:      quote.EarnerCents,
		PlatformFeeCents: quote.PlatformFeeCents,
		Status:           domain.DateStatusPending,
	}
	if err := s.ledger.ReserveForBooking(d); err != nil {
		return nil, err
	}
	// Room provisioning happens after the reservation committed. If the
	// provider fails, the compensating refund releases the credits and the
	// seeker can retry.
	room, err := s.rooms.CreateRoom(ctx, videoroom.RoomRequest{
		Name:      fmt.Sprintf("date-%d-%s", d.ID, uuid.New().String()[:8]),
		NotBefore: start.Add(-2 * time.Minute),
		Expiry:    d.ScheduledEnd().Add(15 * time.Minute),
	})
	if err != nil {
		if rbErr := s.ledger.RefundBooking(d.ID, domain.DateStatusCancelled, "room provisioning failed"); rbErr != nil {
			log.Printf("[Booking] refund after room failure for date %d: %v", d.ID, rbErr)
		}
		return nil, fmt.Errorf("provision room: %w", err)
	}
	// Conditional on PENDING: a cancel racing the provisioning keeps the
	// date cancelled and its refund intact.
	ok, err := s.dates.AttachRoom(d.ID, room.Name, room.URL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTerminal
	}
	d.RoomName = room.Name
	d.RoomURL = room.URL
	d.Status = domain.DateStatusScheduled
	return d, nil
}

// JoinToken verifies the caller is a participant and mints a signed join
// token scoped to the date's room.
func (s *Service) JoinToken(ctx context.Context, videoDateID, userID uint) (string, *models.VideoDate, error) {
	d, err := s.dates.GetByID(videoDateID)
	if err != nil {
		return "", nil, err
	}
	if userID != d.SeekerID && userID != d.EarnerID {
		return "", nil, ErrNotParticipant
	}
	if d.Status != domain.DateStatusScheduled && d.Status != domain.DateStatusWaiting && d.Status != domain.DateStatusInProgress {
		return "", nil, ErrNotJoinable
	}
	token, err := s.rooms.CreateJoinToken(ctx, videoroom.TokenRequest{
		RoomName: d.RoomName,
		UserID:   fmt.Sprintf("%d", userID),
		IsOwner:  userID == d.EarnerID,
		Expiry:   d.ScheduledEnd().Add(15 * time.Minute),
	})
	if err != nil {
		return "", nil, fmt.Errorf("join token: %w", err)
	}
	return token, d, nil
}

// RecordJoin stamps the participant's join time. When both parties have
// joined inside the grace window the date moves to IN_PROGRESS.
func (s *Service) RecordJoin(videoDateID, userID uint, now time.Time) (*models.VideoDate, error) {
	d, err := s.dates.GetByID(videoDateID)
	if err != nil {
		return nil, err
	}
	if userID != d.SeekerID && userID != d.EarnerID {
		return nil, ErrNotParticipant
	}
	if d.IsTerminal() {
		return nil, ErrTerminal
	}
	if d.Status == domain.DateStatusScheduled && !now.Before(d.ScheduledStart) {
		if _, err := s.dates.Transition(d.ID,
			[]string{domain.DateStatusScheduled}, domain.DateStatusWaiting); err != nil {
			return nil, err
		}
		d.Status = domain.DateStatusWaiting
	}
	if d.Status != domain.DateStatusWaiting {
		return nil, ErrNotJoinable
	}
	if now.After(d.GraceDeadline(s.cfg.Ledger.BookingGrace)) {
		return nil, ErrNotJoinable
	}
	column := "seeker_joined_at"
	if userID == d.EarnerID {
		column = "earner_joined_at"
	}
	// Conditional on WAITING: a no-show cancel that committed after our
	// read above must not be overwritten back into a live state.
	if _, err := s.dates.StampJoin(d.ID, column, now); err != nil {
		return nil, err
	}
	d, err = s.dates.GetByID(videoDateID)
	if err != nil {
		return nil, err
	}
	if d.IsTerminal() {
		return nil, ErrNotJoinable
	}
	if d.Status == domain.DateStatusWaiting && d.BothJoined() {
		if _, err := s.dates.Transition(d.ID,
			[]string{domain.DateStatusWaiting}, domain.DateStatusInProgress); err != nil {
			return nil, err
		}
		d.Status = domain.DateStatusInProgress
	}
	return d, nil
}

// Cancel is an explicit cancellation before the call starts; any
// non-terminal date refunds in full.
func (s *Service) Cancel(videoDateID, userID uint) error {
	d, err := s.dates.GetByID(videoDateID)
	if err != nil {
		return err
	}
	if userID != d.SeekerID && userID != d.EarnerID {
		return ErrNotParticipant
	}
	if d.IsTerminal() {
		return ErrTerminal
	}
	cause := "cancelled by seeker"
	if userID == d.EarnerID {
		cause = "cancelled by earner"
	}
	return s.ledger.RefundBooking(d.ID, domain.DateStatusCancelled, cause)
}

// Complete settles an in-progress date to the earner. Called when the
// duration elapses or both parties leave normally.
func (s *Service) Complete(videoDateID, userID uint) error {
	d, err := s.dates.GetByID(videoDateID)
	if err != nil {
		return err
	}
	if userID != 0 && userID != d.SeekerID && userID != d.EarnerID {
		return ErrNotParticipant
	}
	return s.ledger.SettleBooking(d.ID)
}

// notifyStarting alerts both participants when the grace window opens.
// The data-only call push lets mobile clients raise the native incoming
// call UI even with the app backgrounded.
func (s *Service) notifyStarting(d *models.VideoDate) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.NotifyDateStarting(d.SeekerID, d.ID)
	_ = s.notifier.NotifyDateStarting(d.EarnerID, d.ID)
	s.notifier.NotifyDateCall(d.SeekerID, s.displayName(d.EarnerID), d.ID, d.RoomURL)
	s.notifier.NotifyDateCall(d.EarnerID, s.displayName(d.SeekerID), d.ID, d.RoomURL)
}

func (s *Service) displayName(userID uint) string {
	if p, err := s.users.GetEarnerProfile(userID); err == nil && p.DisplayName != "" {
		return p.DisplayName
	}
	if u, err := s.users.GetByID(userID); err == nil {
		return u.Username
	}
	return ""
}

// Sweep is the periodic driver for time-based transitions. It is safe to
// run concurrently with user actions and with itself: every money-moving
// step re-checks state inside the ledger's transaction.
func (s *Service) Sweep(now time.Time) {
	// Open the grace window on dates whose start time arrived.
	due, err := s.dates.ListDueForWaiting(now, 200)
	if err != nil {
		log.Printf("[Booking sweep] list due: %v", err)
	}
	for _, d := range due {
		ok, err := s.dates.Transition(d.ID,
			[]string{domain.DateStatusScheduled}, domain.DateStatusWaiting)
		if err != nil {
			log.Printf("[Booking sweep] open grace window for date %d: %v", d.ID, err)
			continue
		}
		if ok {
			s.notifyStarting(&d)
		}
	}

	// Cancel no-shows past the grace deadline.
	stale, err := s.dates.ListPastGrace(now, s.cfg.Ledger.BookingGrace, 200)
	if err != nil {
		log.Printf("[Booking sweep] list past grace: %v", err)
	}
	for _, d := range stale {
		if d.BothJoined() {
			// Joined in time but the status write raced the sweep; let the
			// completion path handle it.
			continue
		}
		if err := s.ledger.RefundBooking(d.ID, domain.DateStatusCancelledNoShow, "no-show within grace window"); err != nil {
			log.Printf("[Booking sweep] no-show refund for date %d: %v", d.ID, err)
		}
	}

	// Settle calls whose scheduled duration elapsed.
	overrun, err := s.dates.ListOverrun(now, 200)
	if err != nil {
		log.Printf("[Booking sweep] list overrun: %v", err)
	}
	for _, d := range overrun {
		if err := s.ledger.SettleBooking(d.ID); err != nil {
			log.Printf("[Booking sweep] settle date %d: %v", d.ID, err)
		}
	}
}

package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"lynxx/config"
	"lynxx/internal/domain"
	"lynxx/internal/ledger"
	"lynxx/internal/models"
	"lynxx/internal/repository"
	"lynxx/pkg/videoroom"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type failingRooms struct{}

func (f *failingRooms) CreateRoom(ctx context.Context, req videoroom.RoomRequest) (*videoroom.Room, error) {
	return nil, fmt.Errorf("provider down")
}

func (f *failingRooms) CreateJoinToken(ctx context.Context, req videoroom.TokenRequest) (string, error) {
	return "", fmt.Errorf("provider down")
}

type recordingNotifier struct {
	mu       sync.Mutex
	starting []uint
	calls    []string
}

func (n *recordingNotifier) NotifyDateStarting(userID uint, videoDateID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.starting = append(n.starting, userID)
	return nil
}

func (n *recordingNotifier) NotifyDateCall(userID uint, peerName string, videoDateID uint, roomURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, fmt.Sprintf("%d<-%s", userID, peerName))
}

func newTestBooking(t *testing.T, rooms videoroom.Provider, notifier Notifier) (*Service, *ledger.Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.EarnerProfile{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Gift{},
		&models.GiftTransaction{},
		&models.Withdrawal{},
		&models.VideoDate{},
		&models.CallRate{},
	))
	cfg := config.Load()
	cfg.Ledger.BookingGrace = 5 * time.Minute
	ledgerSvc := ledger.NewService(db, &cfg.Ledger,
		repository.NewWalletRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewGiftRepository(db),
		repository.NewWithdrawalRepository(db),
		repository.NewVideoDateRepository(db),
		nil,
	)
	svc := NewService(cfg,
		repository.NewVideoDateRepository(db),
		repository.NewRateRepository(db),
		repository.NewUserRepository(db),
		ledgerSvc,
		rooms,
		notifier,
	)
	return svc, ledgerSvc, db
}

func seedParticipants(t *testing.T, db *gorm.DB, seekerCredits int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{ID: 1, Username: "sam", Email: "sam@example.com", Role: domain.RoleSeeker}).Error)
	require.NoError(t, db.Create(&models.User{ID: 2, Username: "nova", Email: "nova@example.com", Role: domain.RoleEarner}).Error)
	require.NoError(t, db.Create(&models.Wallet{UserID: 1, CreditBalance: seekerCredits}).Error)
	require.NoError(t, db.Create(&models.Wallet{UserID: 2}).Error)
	require.NoError(t, db.Create(&models.EarnerProfile{
		UserID:         2,
		DisplayName:    "Nova",
		IsActive:       true,
		AcceptNewDates: true,
	}).Error)
	require.NoError(t, db.Create(&models.CallRate{EarnerID: 2, DurationMinutes: 15, Credits: 150}).Error)
	require.NoError(t, db.Create(&models.CallRate{EarnerID: 2, DurationMinutes: 30, Credits: 240}).Error)
}

func creditBalance(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&w).Error)
	return w.CreditBalance
}

func TestBookReservesCreditsAndSchedules(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)

	start := time.Now().Add(2 * time.Hour)
	d, err := svc.Book(context.Background(), 1, 2, domain.CallTypeVideo, start, 30)
	require.NoError(t, err)

	assert.Equal(t, domain.DateStatusScheduled, d.Status)
	assert.Equal(t, int64(240), d.CreditsReserved)
	assert.Equal(t, int64(1680), d.EarnerCents)
	assert.NotEmpty(t, d.RoomURL)
	assert.Equal(t, int64(260), creditBalance(t, db, 1))
}

func TestBookAudioUsesDiscountedRate(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)

	d, err := svc.Book(context.Background(), 1, 2, domain.CallTypeAudio, time.Now().Add(time.Hour), 30)
	require.NoError(t, err)
	// 60% of the 240-credit video rate.
	assert.Equal(t, int64(144), d.CreditsReserved)
	assert.Equal(t, int64(356), creditBalance(t, db, 1))
}

func TestBookRejectsPastStart(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)

	_, err := svc.Book(context.Background(), 1, 2, domain.CallTypeVideo, time.Now().Add(-time.Minute), 30)
	require.ErrorIs(t, err, ErrPastStart)
	assert.Equal(t, int64(500), creditBalance(t, db, 1))
}

func TestBookInsufficientCredits(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 100)

	_, err := svc.Book(context.Background(), 1, 2, domain.CallTypeVideo, time.Now().Add(time.Hour), 30)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, int64(100), creditBalance(t, db, 1))
}

func TestBookRefundsWhenRoomProvisioningFails(t *testing.T) {
	svc, _, db := newTestBooking(t, &failingRooms{}, nil)
	seedParticipants(t, db, 500)

	_, err := svc.Book(context.Background(), 1, 2, domain.CallTypeVideo, time.Now().Add(time.Hour), 30)
	require.Error(t, err)
	// Compensating refund released the reservation.
	assert.Equal(t, int64(500), creditBalance(t, db, 1))
	var d models.VideoDate
	require.NoError(t, db.First(&d).Error)
	assert.Equal(t, domain.DateStatusCancelled, d.Status)
	assert.True(t, d.Refunded)
}

func TestBookInactiveEarner(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	require.NoError(t, db.Model(&models.EarnerProfile{}).Where("user_id = ?", 2).
		Update("accept_new_dates", false).Error)

	_, err := svc.Book(context.Background(), 1, 2, domain.CallTypeVideo, time.Now().Add(time.Hour), 30)
	require.ErrorIs(t, err, ErrEarnerInactive)
}

func bookScheduled(t *testing.T, svc *Service, start time.Time) *models.VideoDate {
	t.Helper()
	d, err := svc.Book(context.Background(), 1, 2, domain.CallTypeVideo, start, 30)
	require.NoError(t, err)
	return d
}

func TestJoinFlowReachesInProgress(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(50*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	now := time.Now()
	got, err := svc.RecordJoin(d.ID, 1, now)
	require.NoError(t, err)
	assert.Equal(t, domain.DateStatusWaiting, got.Status)
	require.NotNil(t, got.SeekerJoinedAt)

	got, err = svc.RecordJoin(d.ID, 2, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.DateStatusInProgress, got.Status)
	assert.True(t, got.BothJoined())
}

func TestJoinRejectedForOutsiderAndBeforeStart(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))

	_, err := svc.RecordJoin(d.ID, 99, time.Now())
	require.ErrorIs(t, err, ErrNotParticipant)

	// Still SCHEDULED: the grace window has not opened.
	_, err = svc.RecordJoin(d.ID, 1, time.Now())
	require.ErrorIs(t, err, ErrNotJoinable)
}

func TestJoinRejectedPastGraceDeadline(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))

	// Grace window opened at start but the join comes too late.
	require.NoError(t, db.Model(&models.VideoDate{}).Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"status":          domain.DateStatusWaiting,
			"scheduled_start": time.Now().Add(-10 * time.Minute),
		}).Error)
	_, err := svc.RecordJoin(d.ID, 1, time.Now())
	require.ErrorIs(t, err, ErrNotJoinable)
}

func TestJoinCannotOverwriteNoShowCancellation(t *testing.T) {
	svc, ldg, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))
	dates := repository.NewVideoDateRepository(db)

	// Grace window open, seeker already inside.
	now := time.Now()
	joined := now.Add(-30 * time.Second)
	require.NoError(t, db.Model(&models.VideoDate{}).Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"status":           domain.DateStatusWaiting,
			"scheduled_start":  now.Add(-time.Minute),
			"seeker_joined_at": joined,
		}).Error)

	// The no-show sweep cancels and refunds after a late join request has
	// already read the WAITING row.
	require.NoError(t, ldg.RefundBooking(d.ID, domain.DateStatusCancelledNoShow, "no-show within grace window"))

	// The join stamp lands on the cancelled row and must not stick.
	ok, err := dates.StampJoin(d.ID, "earner_joined_at", now)
	require.NoError(t, err)
	assert.False(t, ok)

	var got models.VideoDate
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, domain.DateStatusCancelledNoShow, got.Status)
	assert.True(t, got.Refunded)
	assert.Nil(t, got.EarnerJoinedAt)

	// Settlement stays impossible: the refund already won.
	require.ErrorIs(t, ldg.SettleBooking(d.ID), ledger.ErrAlreadyRefunded)
	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", 2).First(&w).Error)
	assert.Zero(t, w.PendingEarningsCents)
	assert.Equal(t, int64(500), creditBalance(t, db, 1))
}

func TestRoomAttachCannotResurrectCancelledDate(t *testing.T) {
	_, ldg, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	dates := repository.NewVideoDateRepository(db)

	d := &models.VideoDate{
		SeekerID:        1,
		EarnerID:        2,
		CallType:        domain.CallTypeVideo,
		ScheduledStart:  time.Now().Add(time.Hour),
		DurationMinutes: 30,
		CreditsReserved: 240,
		EarnerCents:     1680,
		Status:          domain.DateStatusPending,
	}
	require.NoError(t, ldg.ReserveForBooking(d))

	// An explicit cancel commits while the room is still provisioning.
	require.NoError(t, ldg.RefundBooking(d.ID, domain.DateStatusCancelled, "cancelled by seeker"))
	assert.Equal(t, int64(500), creditBalance(t, db, 1))

	ok, err := dates.AttachRoom(d.ID, "date-room", "https://rooms.invalid/date-room")
	require.NoError(t, err)
	assert.False(t, ok)

	var got models.VideoDate
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, domain.DateStatusCancelled, got.Status)
	assert.Empty(t, got.RoomURL)
	assert.True(t, got.Refunded)
}

func TestCancelRefundsBeforeStart(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))
	assert.Equal(t, int64(260), creditBalance(t, db, 1))

	require.NoError(t, svc.Cancel(d.ID, 2))
	assert.Equal(t, int64(500), creditBalance(t, db, 1))

	// Terminal now; a second cancel reports it.
	err := svc.Cancel(d.ID, 1)
	require.ErrorIs(t, err, ErrTerminal)
}

func TestSweepCancelsNoShow(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))

	// Started 10 minutes ago, only the seeker joined.
	joined := time.Now().Add(-9 * time.Minute)
	require.NoError(t, db.Model(&models.VideoDate{}).Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"scheduled_start":  time.Now().Add(-10 * time.Minute),
			"status":           domain.DateStatusWaiting,
			"seeker_joined_at": joined,
		}).Error)

	svc.Sweep(time.Now())

	var got models.VideoDate
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, domain.DateStatusCancelledNoShow, got.Status)
	assert.True(t, got.Refunded)
	assert.Equal(t, int64(500), creditBalance(t, db, 1))

	// Sweeping again changes nothing.
	svc.Sweep(time.Now())
	assert.Equal(t, int64(500), creditBalance(t, db, 1))
}

func TestSweepOpensGraceWindowThenSettlesOverrun(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))

	// Start time arrives: sweep opens the grace window.
	require.NoError(t, db.Model(&models.VideoDate{}).Where("id = ?", d.ID).
		Update("scheduled_start", time.Now().Add(-time.Second)).Error)
	svc.Sweep(time.Now())
	var got models.VideoDate
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, domain.DateStatusWaiting, got.Status)

	// Both joined, call ran past its duration: sweep settles to the earner.
	now := time.Now()
	require.NoError(t, db.Model(&models.VideoDate{}).Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"status":           domain.DateStatusInProgress,
			"scheduled_start":  now.Add(-40 * time.Minute),
			"seeker_joined_at": now.Add(-40 * time.Minute),
			"earner_joined_at": now.Add(-39 * time.Minute),
		}).Error)
	svc.Sweep(time.Now())

	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, domain.DateStatusCompleted, got.Status)
	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", 2).First(&w).Error)
	assert.Equal(t, int64(1680), w.PendingEarningsCents)
}

func TestSweepNotifiesParticipantsOnGraceOpen(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, notifier)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))

	require.NoError(t, db.Model(&models.VideoDate{}).Where("id = ?", d.ID).
		Update("scheduled_start", time.Now().Add(-time.Second)).Error)
	svc.Sweep(time.Now())

	assert.ElementsMatch(t, []uint{1, 2}, notifier.starting)
	// Each side gets a call push naming the other participant.
	assert.ElementsMatch(t, []string{"1<-Nova", "2<-sam"}, notifier.calls)

	// Re-sweeping an already-waiting date sends nothing new.
	svc.Sweep(time.Now())
	assert.Len(t, notifier.starting, 2)
}

func TestJoinTokenParticipantsOnly(t *testing.T) {
	svc, _, db := newTestBooking(t, &videoroom.StubProvider{}, nil)
	seedParticipants(t, db, 500)
	d := bookScheduled(t, svc, time.Now().Add(time.Hour))

	token, got, err := svc.JoinToken(context.Background(), d.ID, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, d.ID, got.ID)

	_, _, err = svc.JoinToken(context.Background(), d.ID, 99)
	require.ErrorIs(t, err, ErrNotParticipant)
}

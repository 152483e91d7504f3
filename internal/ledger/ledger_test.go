package ledger

import (
	"fmt"
	"testing"
	"time"

	"lynxx/config"
	"lynxx/internal/domain"
	"lynxx/internal/models"
	"lynxx/internal/pricing"
	"lynxx/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Gift{},
		&models.GiftTransaction{},
		&models.Withdrawal{},
		&models.VideoDate{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.LedgerConfig{
		MinWithdrawalCents: 2500,
		EarningsHold:       48 * time.Hour,
		BookingGrace:       5 * time.Minute,
	}
	svc := NewService(db, cfg,
		repository.NewWalletRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewGiftRepository(db),
		repository.NewWithdrawalRepository(db),
		repository.NewVideoDateRepository(db),
		nil,
	)
	return svc, db
}

func seedWallet(t *testing.T, db *gorm.DB, userID uint, credits, pendingCents, availableCents int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Wallet{
		UserID:                 userID,
		CreditBalance:          credits,
		PendingEarningsCents:   pendingCents,
		AvailableEarningsCents: availableCents,
	}).Error)
}

func walletOf(t *testing.T, db *gorm.DB, userID uint) *models.Wallet {
	t.Helper()
	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&w).Error)
	return &w
}

func TestConfirmPurchaseCreditsOnce(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 0, 0, 0)

	first, err := svc.ConfirmPurchase(1, "pi_abc", 100, 1000)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(100), walletOf(t, db, 1).CreditBalance)

	// Redelivered webhook: same reference, no second credit.
	second, err := svc.ConfirmPurchase(1, "pi_abc", 100, 1000)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(100), walletOf(t, db, 1).CreditBalance)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("type = ?", domain.TxTypePurchase).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSpendCreditsInsufficientLeavesBalanceUntouched(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 3, 0, 0)

	_, err := svc.SpendCredits(1, domain.SpendReasonMessage, "msg:test")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(3), walletOf(t, db, 1).CreditBalance)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("type = ?", domain.TxTypeSpend).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSpendCreditsUnknownReason(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 100, 0, 0)

	_, err := svc.SpendCredits(1, "SOMETHING_ELSE", "ref")
	require.ErrorIs(t, err, ErrUnknownSpendReason)
	assert.Equal(t, int64(100), walletOf(t, db, 1).CreditBalance)
}

func TestSpendCreditsWithRollsBackOnEntitlementFailure(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 100, 0, 0)

	_, err := svc.SpendCreditsWith(1, domain.SpendReasonMediaUnlock, "media:9", func(tx *gorm.DB) error {
		return fmt.Errorf("unlock row write failed")
	})
	require.Error(t, err)
	assert.Equal(t, int64(100), walletOf(t, db, 1).CreditBalance)
}

func TestSendGiftSplitsAtomically(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 60, 0, 0)
	seedWallet(t, db, 2, 0, 0, 0)
	require.NoError(t, db.Create(&models.Gift{Name: "Champagne", PriceCredits: 50, IsActive: true}).Error)

	gt, err := svc.SendGift(1, 2, 1, "cheers")
	require.NoError(t, err)

	// 50 credits = $5.00 gross, 70/30 split.
	assert.Equal(t, int64(50), gt.CreditsSpent)
	assert.Equal(t, int64(350), gt.EarnerCents)
	assert.Equal(t, int64(150), gt.PlatformFeeCents)

	assert.Equal(t, int64(10), walletOf(t, db, 1).CreditBalance)
	assert.Equal(t, int64(350), walletOf(t, db, 2).PendingEarningsCents)

	var earning models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", 2, domain.TxTypeGiftEarning).First(&earning).Error)
	assert.Equal(t, domain.TxStatusPending, earning.Status)
	require.NotNil(t, earning.AvailableAt)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), *earning.AvailableAt, time.Minute)
}

func TestSendGiftInsufficientBalanceWritesNothing(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 10, 0, 0)
	seedWallet(t, db, 2, 0, 0, 0)
	require.NoError(t, db.Create(&models.Gift{Name: "Diamond", PriceCredits: 500, IsActive: true}).Error)

	_, err := svc.SendGift(1, 2, 1, "")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, int64(10), walletOf(t, db, 1).CreditBalance)
	assert.Zero(t, walletOf(t, db, 2).PendingEarningsCents)
	var count int64
	require.NoError(t, db.Model(&models.GiftTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func seedDate(t *testing.T, svc *Service, db *gorm.DB, status string) *models.VideoDate {
	t.Helper()
	d := &models.VideoDate{
		SeekerID:         1,
		EarnerID:         2,
		CallType:         domain.CallTypeVideo,
		ScheduledStart:   time.Now().Add(time.Hour),
		DurationMinutes:  30,
		CreditsReserved:  200,
		EarnerCents:      pricing.EarnerShareCents(200),
		PlatformFeeCents: pricing.PlatformShareCents(200),
		Status:           domain.DateStatusPending,
	}
	require.NoError(t, svc.ReserveForBooking(d))
	if status != domain.DateStatusPending {
		require.NoError(t, db.Model(&models.VideoDate{}).Where("id = ?", d.ID).
			Update("status", status).Error)
		d.Status = status
	}
	return d
}

func TestReserveAndRefundRoundtrip(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 500, 0, 0)
	seedWallet(t, db, 2, 0, 0, 0)

	d := seedDate(t, svc, db, domain.DateStatusScheduled)
	assert.Equal(t, int64(300), walletOf(t, db, 1).CreditBalance)

	require.NoError(t, svc.RefundBooking(d.ID, domain.DateStatusCancelled, "seeker cancelled"))
	assert.Equal(t, int64(500), walletOf(t, db, 1).CreditBalance)

	var got models.VideoDate
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, domain.DateStatusCancelled, got.Status)
	assert.True(t, got.Refunded)

	// Charge row flipped to REFUNDED.
	var charge models.Transaction
	require.NoError(t, db.Where("type = ? AND user_id = ?", domain.TxTypeVideoDateCharge, 1).First(&charge).Error)
	assert.Equal(t, domain.TxStatusRefunded, charge.Status)

	// Second sweep delivery: still exactly one refund, balance unchanged.
	require.NoError(t, svc.RefundBooking(d.ID, domain.DateStatusCancelledNoShow, "no-show sweep"))
	assert.Equal(t, int64(500), walletOf(t, db, 1).CreditBalance)
	var refunds int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("type = ?", domain.TxTypeVideoDateRefund).Count(&refunds).Error)
	assert.Equal(t, int64(1), refunds)
}

func TestSettleBooking(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 500, 0, 0)
	seedWallet(t, db, 2, 0, 0, 0)

	d := seedDate(t, svc, db, domain.DateStatusInProgress)
	require.NoError(t, svc.SettleBooking(d.ID))

	// 200 credits = $20.00 gross, earner takes 70%.
	assert.Equal(t, int64(1400), walletOf(t, db, 2).PendingEarningsCents)
	var got models.VideoDate
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, domain.DateStatusCompleted, got.Status)

	// Overrun sweep settles again: no double earning.
	require.NoError(t, svc.SettleBooking(d.ID))
	assert.Equal(t, int64(1400), walletOf(t, db, 2).PendingEarningsCents)
	var earnings int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("type = ?", domain.TxTypeEarning).Count(&earnings).Error)
	assert.Equal(t, int64(1), earnings)
}

func TestSettleThenRefundMutualExclusion(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 500, 0, 0)
	seedWallet(t, db, 2, 0, 0, 0)

	d := seedDate(t, svc, db, domain.DateStatusInProgress)
	require.NoError(t, svc.SettleBooking(d.ID))

	err := svc.RefundBooking(d.ID, domain.DateStatusCancelled, "late cancel")
	require.ErrorIs(t, err, ErrAlreadySettled)
	assert.Equal(t, int64(300), walletOf(t, db, 1).CreditBalance)
	assert.Equal(t, int64(1400), walletOf(t, db, 2).PendingEarningsCents)
}

func TestRefundThenSettleMutualExclusion(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 1, 500, 0, 0)
	seedWallet(t, db, 2, 0, 0, 0)

	d := seedDate(t, svc, db, domain.DateStatusInProgress)
	require.NoError(t, svc.RefundBooking(d.ID, domain.DateStatusCancelled, "cancelled mid-call"))

	err := svc.SettleBooking(d.ID)
	require.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.Equal(t, int64(500), walletOf(t, db, 1).CreditBalance)
	assert.Zero(t, walletOf(t, db, 2).PendingEarningsCents)
}

func TestPromotePendingToAvailable(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 2, 0, 1400, 0)

	matured := time.Now().Add(-time.Hour)
	cents := int64(1400)
	require.NoError(t, db.Create(&models.Transaction{
		UserID:      2,
		Type:        domain.TxTypeEarning,
		USDCents:    &cents,
		Reference:   "1",
		Status:      domain.TxStatusPending,
		AvailableAt: &matured,
	}).Error)

	// An earning still inside the hold window must not move.
	heldUntil := time.Now().Add(24 * time.Hour)
	heldCents := int64(900)
	require.NoError(t, db.Create(&models.Transaction{
		UserID:      2,
		Type:        domain.TxTypeGiftEarning,
		USDCents:    &heldCents,
		Reference:   "2",
		Status:      domain.TxStatusPending,
		AvailableAt: &heldUntil,
	}).Error)

	n, err := svc.PromotePendingToAvailable(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	w := walletOf(t, db, 2)
	assert.Equal(t, int64(0), w.PendingEarningsCents)
	assert.Equal(t, int64(1400), w.AvailableEarningsCents)

	// Second sweep finds nothing mature.
	n, err = svc.PromotePendingToAvailable(time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1400), walletOf(t, db, 2).AvailableEarningsCents)
}

func TestRequestWithdrawalBelowMinimum(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 2, 0, 0, 10000)

	_, err := svc.RequestWithdrawal(2, 2000)
	require.ErrorIs(t, err, ErrBelowMinimum)
	assert.Equal(t, int64(10000), walletOf(t, db, 2).AvailableEarningsCents)
}

func TestRequestWithdrawalPayoutHeld(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 2, 0, 0, 10000)
	require.NoError(t, db.Model(&models.Wallet{}).Where("user_id = ?", 2).
		Updates(map[string]interface{}{"payout_hold": true, "payout_hold_reason": "fraud review"}).Error)

	_, err := svc.RequestWithdrawal(2, 5000)
	require.ErrorIs(t, err, ErrPayoutHeld)

	// The held request leaves no trace: no debit, no withdrawal row.
	assert.Equal(t, int64(10000), walletOf(t, db, 2).AvailableEarningsCents)
	var count int64
	require.NoError(t, db.Model(&models.Withdrawal{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRequestWithdrawalDebitsAvailable(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 2, 0, 0, 10000)

	w, err := svc.RequestWithdrawal(2, 6000)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
	assert.NotEmpty(t, w.OrderID)
	assert.Equal(t, int64(4000), walletOf(t, db, 2).AvailableEarningsCents)

	_, err = svc.RequestWithdrawal(2, 5000)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(4000), walletOf(t, db, 2).AvailableEarningsCents)
}

func TestReconcileWithdrawalSuccessIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 2, 0, 0, 10000)
	w, err := svc.RequestWithdrawal(2, 6000)
	require.NoError(t, err)

	require.NoError(t, svc.ReconcileWithdrawalWebhook("evt_1", w.OrderID, true))
	wallet := walletOf(t, db, 2)
	assert.Equal(t, int64(6000), wallet.PaidOutCents)
	assert.Equal(t, int64(4000), wallet.AvailableEarningsCents)

	// Redelivered event: no double payout counting.
	require.NoError(t, svc.ReconcileWithdrawalWebhook("evt_1", w.OrderID, true))
	assert.Equal(t, int64(6000), walletOf(t, db, 2).PaidOutCents)

	var got models.Withdrawal
	require.NoError(t, db.Where("order_id = ?", w.OrderID).First(&got).Error)
	assert.Equal(t, domain.WithdrawalStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestReconcileWithdrawalFailureHoldsWithoutRecredit(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 2, 0, 0, 10000)
	w, err := svc.RequestWithdrawal(2, 6000)
	require.NoError(t, err)

	require.NoError(t, svc.ReconcileWithdrawalWebhook("evt_2", w.OrderID, false))

	wallet := walletOf(t, db, 2)
	// The transfer may have partially processed: never auto re-credit.
	assert.Equal(t, int64(4000), wallet.AvailableEarningsCents)
	assert.Zero(t, wallet.PaidOutCents)
	assert.True(t, wallet.PayoutHold)
	assert.NotEmpty(t, wallet.PayoutHoldReason)

	var got models.Withdrawal
	require.NoError(t, db.Where("order_id = ?", w.OrderID).First(&got).Error)
	assert.Equal(t, domain.WithdrawalStatusFailed, got.Status)
}

func TestFailWithdrawalOnInitiation(t *testing.T) {
	svc, db := newTestService(t)
	seedWallet(t, db, 2, 0, 0, 10000)
	w, err := svc.RequestWithdrawal(2, 6000)
	require.NoError(t, err)

	require.NoError(t, svc.FailWithdrawal(w.OrderID, "transfer initiation failed"))

	wallet := walletOf(t, db, 2)
	assert.Equal(t, int64(4000), wallet.AvailableEarningsCents)
	assert.True(t, wallet.PayoutHold)

	// Late webhook for the same order is a no-op once FAILED.
	require.NoError(t, svc.ReconcileWithdrawalWebhook("evt_3", w.OrderID, true))
	assert.Zero(t, walletOf(t, db, 2).PaidOutCents)
}

func newEventedService(t *testing.T) (*Service, chan Event, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	events := make(chan Event, 8)
	cfg := &config.LedgerConfig{MinWithdrawalCents: 2500, EarningsHold: 48 * time.Hour}
	svc := NewService(db, cfg,
		repository.NewWalletRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewGiftRepository(db),
		repository.NewWithdrawalRepository(db),
		repository.NewVideoDateRepository(db),
		events,
	)
	return svc, events, db
}

func TestWithdrawalFailureEmitsEvent(t *testing.T) {
	svc, events, db := newEventedService(t)
	seedWallet(t, db, 2, 0, 0, 10000)
	w, err := svc.RequestWithdrawal(2, 6000)
	require.NoError(t, err)
	drainEvents(events)

	require.NoError(t, svc.FailWithdrawal(w.OrderID, "transfer initiation failed"))
	select {
	case e := <-events:
		assert.Equal(t, "WITHDRAWAL_FAILED", e.Type)
		assert.Equal(t, uint(2), e.UserID)
		assert.Equal(t, w.OrderID, e.Data["order_id"])
	default:
		t.Fatal("expected a withdrawal failure event")
	}

	// A redelivered failure for the same order emits nothing.
	require.NoError(t, svc.FailWithdrawal(w.OrderID, "transfer initiation failed"))
	select {
	case e := <-events:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

func TestReconcileFailureEmitsEvent(t *testing.T) {
	svc, events, db := newEventedService(t)
	seedWallet(t, db, 3, 0, 0, 10000)
	w, err := svc.RequestWithdrawal(3, 6000)
	require.NoError(t, err)
	drainEvents(events)

	require.NoError(t, svc.ReconcileWithdrawalWebhook("evt_fail", w.OrderID, false))
	select {
	case e := <-events:
		assert.Equal(t, "WITHDRAWAL_FAILED", e.Type)
		assert.Equal(t, uint(3), e.UserID)
	default:
		t.Fatal("expected a withdrawal failure event")
	}
}

func drainEvents(events chan Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

func TestLedgerEventsEmittedAfterCommit(t *testing.T) {
	svc, events, db := newEventedService(t)
	seedWallet(t, db, 1, 0, 0, 0)

	_, err := svc.ConfirmPurchase(1, "pi_evt", 100, 1000)
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, "PURCHASE_CONFIRMED", e.Type)
		assert.Equal(t, uint(1), e.UserID)
	default:
		t.Fatal("expected a purchase event")
	}

	// Redelivery emits nothing.
	_, err = svc.ConfirmPurchase(1, "pi_evt", 100, 1000)
	require.NoError(t, err)
	select {
	case e := <-events:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

// Package ledger is the only writer of wallets and the transaction log.
// Every operation is a single database transaction: the wallet delta and
// its ledger row commit together or not at all. Handlers and the booking
// state machine call in here; nothing else touches balances.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"lynxx/config"
	"lynxx/internal/domain"
	"lynxx/internal/models"
	"lynxx/internal/pricing"
	"lynxx/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBelowMinimum       = errors.New("amount below withdrawal minimum")
	ErrPayoutHeld         = errors.New("payouts are on hold for this account")
	ErrUnknownSpendReason = errors.New("unknown spend reason")
	ErrAlreadyRefunded    = errors.New("video date already refunded")
	ErrAlreadySettled     = errors.New("video date already settled")
	ErrInvalidTransition  = errors.New("video date is not in a settleable state")
)

// ErrInsufficientBalance is re-exported so callers need only this package.
var ErrInsufficientBalance = repository.ErrInsufficientBalance

// Event is emitted after a ledger commit for async consumption (push
// notifications, websocket fan-out). Delivery failures never affect the
// committed ledger state.
type Event struct {
	UserID uint
	Type   string
	Title  string
	Body   string
	Data   map[string]interface{}
}

type Service struct {
	db          *gorm.DB
	cfg         *config.LedgerConfig
	wallets     *repository.WalletRepository
	txs         *repository.TransactionRepository
	gifts       *repository.GiftRepository
	withdrawals *repository.WithdrawalRepository
	dates       *repository.VideoDateRepository
	events      chan<- Event
}

func NewService(
	db *gorm.DB,
	cfg *config.LedgerConfig,
	wallets *repository.WalletRepository,
	txs *repository.TransactionRepository,
	gifts *repository.GiftRepository,
	withdrawals *repository.WithdrawalRepository,
	dates *repository.VideoDateRepository,
	events chan<- Event,
) *Service {
	return &Service{
		db:          db,
		cfg:         cfg,
		wallets:     wallets,
		txs:         txs,
		gifts:       gifts,
		withdrawals: withdrawals,
		dates:       dates,
		events:      events,
	}
}

func (s *Service) emit(e Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- e:
	default:
		log.Printf("[Ledger] event buffer full, dropping %s for user %d", e.Type, e.UserID)
	}
}

// ConfirmPurchase credits a wallet for a confirmed charge. Idempotent by
// the processor reference: redelivery returns the prior transaction and
// changes nothing.
func (s *Service) ConfirmPurchase(userID uint, externalRef string, credits, usdCents int64) (*models.Transaction, error) {
	var result *models.Transaction
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.txs.FindByExternalReferenceTx(tx, externalRef)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}
		if err := s.wallets.CreditCreditsTx(tx, userID, credits); err != nil {
			return err
		}
		ref := externalRef
		t := &models.Transaction{
			UserID:            userID,
			Type:              domain.TxTypePurchase,
			CreditsAmount:     credits,
			USDCents:          &usdCents,
			ExternalReference: &ref,
			Status:            domain.TxStatusCompleted,
			Description:       fmt.Sprintf("Purchased %d credits", credits),
		}
		if err := s.txs.AppendTx(tx, t); err != nil {
			return err
		}
		result = t
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		s.emit(Event{
			UserID: userID,
			Type:   "PURCHASE_CONFIRMED",
			Title:  "Credits added",
			Body:   fmt.Sprintf("%d credits were added to your balance.", credits),
			Data:   map[string]interface{}{"credits": credits, "reference": externalRef},
		})
	}
	return result, nil
}

// SpendCredits debits a fixed-price spend. The price comes from the
// server-side table keyed by reason; client-sent prices are never used.
func (s *Service) SpendCredits(userID uint, reason, reference string) (*models.Transaction, error) {
	return s.SpendCreditsWith(userID, reason, reference, nil)
}

// SpendCreditsWith additionally runs fn inside the same transaction, so a
// spend and its entitlement record (e.g. a media unlock) commit as one.
func (s *Service) SpendCreditsWith(userID uint, reason, reference string, fn func(tx *gorm.DB) error) (*models.Transaction, error) {
	price, ok := domain.SpendPriceCredits[reason]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpendReason, reason)
	}
	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.wallets.DebitCreditsTx(tx, userID, price); err != nil {
			return err
		}
		t := &models.Transaction{
			UserID:        userID,
			Type:          domain.TxTypeSpend,
			CreditsAmount: -price,
			Reference:     reference,
			Status:        domain.TxStatusCompleted,
			Description:   reason,
		}
		if err := s.txs.AppendTx(tx, t); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(tx); err != nil {
				return err
			}
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendGift debits the sender at the current catalog price and credits the
// recipient's held earnings with the earner share, in one atomic unit.
// The price is captured on the gift transaction; later catalog changes do
// not affect past gifts.
func (s *Service) SendGift(senderID, recipientID, giftID uint, message string) (*models.GiftTransaction, error) {
	var result *models.GiftTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		gift, err := s.gifts.GetCatalogItemTx(tx, giftID)
		if err != nil {
			return fmt.Errorf("gift lookup: %w", err)
		}
		credits := gift.PriceCredits
		earnerCents := pricing.EarnerShareCents(credits)
		platformCents := pricing.PlatformShareCents(credits)

		if err := s.wallets.DebitCreditsTx(tx, senderID, credits); err != nil {
			return err
		}
		gt := &models.GiftTransaction{
			SenderID:         senderID,
			RecipientID:      recipientID,
			GiftID:           giftID,
			CreditsSpent:     credits,
			EarnerCents:      earnerCents,
			PlatformFeeCents: platformCents,
			Message:          message,
		}
		if err := s.gifts.CreateSendTx(tx, gt); err != nil {
			return err
		}
		giftRef := strconv.FormatUint(uint64(gt.ID), 10)
		if err := s.txs.AppendTx(tx, &models.Transaction{
			UserID:        senderID,
			Type:          domain.TxTypeGiftSent,
			CreditsAmount: -credits,
			Reference:     giftRef,
			Status:        domain.TxStatusCompleted,
			Description:   fmt.Sprintf("Sent gift: %s", gift.Name),
		}); err != nil {
			return err
		}
		if err := s.wallets.CreditPendingTx(tx, recipientID, earnerCents); err != nil {
			return err
		}
		availableAt := time.Now().Add(s.cfg.EarningsHold)
		if err := s.txs.AppendTx(tx, &models.Transaction{
			UserID:      recipientID,
			Type:        domain.TxTypeGiftEarning,
			USDCents:    &earnerCents,
			Reference:   giftRef,
			Status:      domain.TxStatusPending,
			AvailableAt: &availableAt,
			Description: fmt.Sprintf("Gift received: %s", gift.Name),
		}); err != nil {
			return err
		}
		result = gt
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(Event{
		UserID: recipientID,
		Type:   "GIFT_RECEIVED",
		Title:  "You received a gift",
		Body:   message,
		Data:   map[string]interface{}{"gift_transaction_id": result.ID, "sender_id": senderID},
	})
	return result, nil
}

// ReserveForBooking persists the video date and debits the reserved
// credits in one transaction. The reservation is a real debit, not an
// escrow hold; release goes through RefundBooking as a compensating
// credit.
func (s *Service) ReserveForBooking(d *models.VideoDate) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		if err := s.wallets.DebitCreditsTx(tx, d.SeekerID, d.CreditsReserved); err != nil {
			return err
		}
		gross := pricing.CreditsToCents(d.CreditsReserved)
		return s.txs.AppendTx(tx, &models.Transaction{
			UserID:        d.SeekerID,
			Type:          domain.TxTypeVideoDateCharge,
			CreditsAmount: -d.CreditsReserved,
			USDCents:      &gross,
			Reference:     strconv.FormatUint(uint64(d.ID), 10),
			Status:        domain.TxStatusPending,
			Description:   fmt.Sprintf("%d min %s date reserved", d.DurationMinutes, d.CallType),
		})
	})
}

// SettleBooking completes an in-progress date and credits the earner's
// held earnings with the amount precomputed at booking time. Exactly one
// of settlement and refund can win: both race on the same conditional
// status transition.
func (s *Service) SettleBooking(videoDateID uint) error {
	var earnerID uint
	var earnerCents int64
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		d, err := s.dates.GetByIDTx(tx, videoDateID)
		if err != nil {
			return err
		}
		if d.Refunded {
			return ErrAlreadyRefunded
		}
		ref := strconv.FormatUint(uint64(d.ID), 10)
		if existing, err := s.txs.FindByTypeAndReferenceTx(tx, domain.TxTypeEarning, ref); err != nil {
			return err
		} else if existing != nil {
			return nil // already settled
		}
		ok, err := s.dates.TransitionTx(tx, d.ID,
			[]string{domain.DateStatusInProgress}, domain.DateStatusCompleted)
		if err != nil {
			return err
		}
		if !ok {
			if d.Status == domain.DateStatusCompleted {
				return nil
			}
			return fmt.Errorf("%w: status %s", ErrInvalidTransition, d.Status)
		}
		if err := s.wallets.CreditPendingTx(tx, d.EarnerID, d.EarnerCents); err != nil {
			return err
		}
		availableAt := time.Now().Add(s.cfg.EarningsHold)
		if err := s.txs.AppendTx(tx, &models.Transaction{
			UserID:      d.EarnerID,
			Type:        domain.TxTypeEarning,
			USDCents:    &d.EarnerCents,
			Reference:   ref,
			Status:      domain.TxStatusPending,
			AvailableAt: &availableAt,
			Description: fmt.Sprintf("%d min %s date completed", d.DurationMinutes, d.CallType),
		}); err != nil {
			return err
		}
		// The seeker's charge is final once the call completed.
		if _, err := s.markChargeStatus(tx, ref, domain.TxStatusCompleted); err != nil {
			return err
		}
		earnerID, earnerCents = d.EarnerID, d.EarnerCents
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if applied {
		s.emit(Event{
			UserID: earnerID,
			Type:   "DATE_SETTLED",
			Title:  "Video date earnings",
			Body:   fmt.Sprintf("$%.2f was added to your pending earnings.", float64(earnerCents)/100),
			Data:   map[string]interface{}{"video_date_id": videoDateID},
		})
	}
	return nil
}

// RefundBooking returns the reserved credits to the seeker and moves the
// date to the given terminal status. Safe to call more than once: the
// refunded flag and the refund row both short-circuit redelivery, so
// overlapping sweeps are no-ops after the first.
func (s *Service) RefundBooking(videoDateID uint, toStatus, cause string) error {
	var seekerID uint
	var credits int64
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		d, err := s.dates.GetByIDTx(tx, videoDateID)
		if err != nil {
			return err
		}
		if d.Refunded {
			return nil
		}
		ref := strconv.FormatUint(uint64(d.ID), 10)
		if existing, err := s.txs.FindByTypeAndReferenceTx(tx, domain.TxTypeVideoDateRefund, ref); err != nil {
			return err
		} else if existing != nil {
			return nil
		}
		if d.Status == domain.DateStatusCompleted {
			return ErrAlreadySettled
		}
		ok, err := s.dates.TransitionTx(tx, d.ID, []string{
			domain.DateStatusPending,
			domain.DateStatusScheduled,
			domain.DateStatusWaiting,
			domain.DateStatusInProgress,
		}, toStatus)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race against settlement or another cancel.
			return nil
		}
		if err := tx.Model(&models.VideoDate{}).Where("id = ?", d.ID).
			Updates(map[string]interface{}{"refunded": true, "cancellation_cause": cause}).Error; err != nil {
			return err
		}
		if err := s.wallets.CreditCreditsTx(tx, d.SeekerID, d.CreditsReserved); err != nil {
			return err
		}
		gross := pricing.CreditsToCents(d.CreditsReserved)
		if err := s.txs.AppendTx(tx, &models.Transaction{
			UserID:        d.SeekerID,
			Type:          domain.TxTypeVideoDateRefund,
			CreditsAmount: d.CreditsReserved,
			USDCents:      &gross,
			Reference:     ref,
			Status:        domain.TxStatusCompleted,
			Description:   cause,
		}); err != nil {
			return err
		}
		if _, err := s.markChargeStatus(tx, ref, domain.TxStatusRefunded); err != nil {
			return err
		}
		seekerID, credits = d.SeekerID, d.CreditsReserved
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if applied {
		s.emit(Event{
			UserID: seekerID,
			Type:   "DATE_REFUNDED",
			Title:  "Video date refunded",
			Body:   fmt.Sprintf("%d credits were returned to your balance.", credits),
			Data:   map[string]interface{}{"video_date_id": videoDateID, "cause": cause},
		})
	}
	return nil
}

func (s *Service) markChargeStatus(tx *gorm.DB, ref, to string) (bool, error) {
	charge, err := s.txs.FindByTypeAndReferenceTx(tx, domain.TxTypeVideoDateCharge, ref)
	if err != nil || charge == nil {
		return false, err
	}
	return s.txs.MarkStatusTx(tx, charge.ID, domain.TxStatusPending, to)
}

// PromotePendingToAvailable moves held earnings whose hold window elapsed
// into the withdrawable balance, atomically per earning row. Overlapping
// sweep runs are safe: the PENDING -> COMPLETED status flip is conditional
// and only the winner moves the money.
func (s *Service) PromotePendingToAvailable(now time.Time) (int, error) {
	mature, err := s.txs.ListMatureEarnings(now, 500)
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, earning := range mature {
		if earning.USDCents == nil {
			continue
		}
		cents := *earning.USDCents
		err := s.db.Transaction(func(tx *gorm.DB) error {
			ok, err := s.txs.MarkStatusTx(tx, earning.ID, domain.TxStatusPending, domain.TxStatusCompleted)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return s.wallets.PromotePendingTx(tx, earning.UserID, cents)
		})
		if err != nil {
			log.Printf("[Ledger] promote earning %d for user %d: %v", earning.ID, earning.UserID, err)
			continue
		}
		promoted++
	}
	return promoted, nil
}

// RequestWithdrawal debits the withdrawable balance and records a PENDING
// withdrawal. The external transfer is initiated by the caller afterwards;
// the final outcome arrives through ReconcileWithdrawalWebhook.
func (s *Service) RequestWithdrawal(userID uint, amountCents int64) (*models.Withdrawal, error) {
	if amountCents < s.cfg.MinWithdrawalCents {
		return nil, fmt.Errorf("%w: minimum is $%.2f", ErrBelowMinimum, float64(s.cfg.MinWithdrawalCents)/100)
	}
	orderID := fmt.Sprintf("wd-%s", uuid.New().String())
	w := &models.Withdrawal{
		UserID:      userID,
		OrderID:     orderID,
		AmountCents: amountCents,
		Status:      domain.WithdrawalStatusPending,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Hold check shares the transaction with the debit so a hold set
		// by a concurrent failure webhook cannot race past it.
		wallet, err := s.wallets.GetOrCreateTx(tx, userID)
		if err != nil {
			return err
		}
		if wallet.PayoutHold {
			return fmt.Errorf("%w: %s", ErrPayoutHeld, wallet.PayoutHoldReason)
		}
		if err := s.wallets.DebitAvailableTx(tx, userID, amountCents); err != nil {
			return err
		}
		if err := s.withdrawals.CreateTx(tx, w); err != nil {
			return err
		}
		debit := -amountCents
		return s.txs.AppendTx(tx, &models.Transaction{
			UserID:      userID,
			Type:        domain.TxTypeWithdrawal,
			USDCents:    &debit,
			Reference:   orderID,
			Status:      domain.TxStatusPending,
			Description: fmt.Sprintf("Withdrawal of $%.2f", float64(amountCents)/100),
		})
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// AttachProviderRef records the processor's transfer id after initiation.
func (s *Service) AttachProviderRef(orderID, providerRef string) error {
	w, err := s.withdrawals.GetByOrderID(orderID)
	if err != nil || w == nil {
		return err
	}
	w.ProviderRef = providerRef
	return s.withdrawals.Update(w)
}

// FailWithdrawal marks a withdrawal failed without re-crediting the
// balance. A transfer that may have partially processed cannot be safely
// reversed automatically, so the account is held for manual
// reconciliation instead.
func (s *Service) FailWithdrawal(orderID, note string) error {
	var failedUser uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		w, err := s.withdrawals.GetByOrderIDTx(tx, orderID)
		if err != nil || w == nil {
			return err
		}
		if w.Status != domain.WithdrawalStatusPending {
			return nil
		}
		w.Status = domain.WithdrawalStatusFailed
		w.FailureNote = note
		if err := s.withdrawals.UpdateTx(tx, w); err != nil {
			return err
		}
		if t, err := s.txs.FindByTypeAndReferenceTx(tx, domain.TxTypeWithdrawal, orderID); err != nil {
			return err
		} else if t != nil {
			if _, err := s.txs.MarkStatusTx(tx, t.ID, domain.TxStatusPending, domain.TxStatusFailed); err != nil {
				return err
			}
		}
		log.Printf("[Ledger] withdrawal %s failed, manual reconciliation required for user %d: %s", orderID, w.UserID, note)
		if err := s.wallets.SetPayoutHoldTx(tx, w.UserID, true, "manual balance reconciliation required: "+note); err != nil {
			return err
		}
		failedUser = w.UserID
		return nil
	})
	if err != nil {
		return err
	}
	if failedUser != 0 {
		s.emit(Event{
			UserID: failedUser,
			Type:   "WITHDRAWAL_FAILED",
			Data:   map[string]interface{}{"order_id": orderID},
		})
	}
	return nil
}

// ReconcileWithdrawalWebhook applies a transfer outcome. Idempotent by the
// processor event id and by current withdrawal status: a redelivered or
// out-of-order event is a no-op.
func (s *Service) ReconcileWithdrawalWebhook(externalEventID, orderID string, succeeded bool) error {
	var completedUser, failedUser uint
	var completedCents int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if externalEventID != "" {
			seen, err := s.txs.FindByExternalReferenceTx(tx, externalEventID)
			if err != nil {
				return err
			}
			if seen != nil {
				return nil
			}
		}
		w, err := s.withdrawals.GetByOrderIDTx(tx, orderID)
		if err != nil || w == nil {
			return err
		}
		if w.Status != domain.WithdrawalStatusPending {
			return nil
		}
		t, err := s.txs.FindByTypeAndReferenceTx(tx, domain.TxTypeWithdrawal, orderID)
		if err != nil {
			return err
		}
		if succeeded {
			now := time.Now()
			w.Status = domain.WithdrawalStatusCompleted
			w.CompletedAt = &now
			if err := s.withdrawals.UpdateTx(tx, w); err != nil {
				return err
			}
			if err := s.wallets.AddPaidOutTx(tx, w.UserID, w.AmountCents); err != nil {
				return err
			}
			if t != nil {
				eventRef := externalEventID
				updates := map[string]interface{}{"status": domain.TxStatusCompleted}
				if eventRef != "" {
					updates["external_reference"] = eventRef
				}
				if err := tx.Model(&models.Transaction{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
					return err
				}
			}
			completedUser, completedCents = w.UserID, w.AmountCents
			return nil
		}
		w.Status = domain.WithdrawalStatusFailed
		w.FailureNote = "transfer failed or reversed at the processor"
		if err := s.withdrawals.UpdateTx(tx, w); err != nil {
			return err
		}
		if t != nil {
			eventRef := externalEventID
			updates := map[string]interface{}{"status": domain.TxStatusFailed}
			if eventRef != "" {
				updates["external_reference"] = eventRef
			}
			if err := tx.Model(&models.Transaction{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		// Deliberately no automatic re-credit: the transfer may have
		// partially processed. Hold the account for manual review.
		log.Printf("[Ledger] withdrawal %s reversed, manual reconciliation required for user %d", orderID, w.UserID)
		if err := s.wallets.SetPayoutHoldTx(tx, w.UserID, true, "manual balance reconciliation required after failed payout"); err != nil {
			return err
		}
		failedUser = w.UserID
		return nil
	})
	if err != nil {
		return err
	}
	if completedUser != 0 {
		s.emit(Event{
			UserID: completedUser,
			Type:   "WITHDRAWAL_COMPLETED",
			Title:  "Withdrawal sent",
			Body:   fmt.Sprintf("Your withdrawal of $%.2f was sent.", float64(completedCents)/100),
			Data:   map[string]interface{}{"order_id": orderID},
		})
	}
	if failedUser != 0 {
		s.emit(Event{
			UserID: failedUser,
			Type:   "WITHDRAWAL_FAILED",
			Data:   map[string]interface{}{"order_id": orderID},
		})
	}
	return nil
}

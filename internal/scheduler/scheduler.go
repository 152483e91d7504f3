package scheduler

import (
	"log"
	"time"

	"lynxx/internal/booking"
	"lynxx/internal/ledger"
	"lynxx/internal/repository"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic sweeps: video-date lifecycle transitions,
// earnings maturation, and stale payment expiry. Every job is idempotent so
// overlapping or repeated runs are safe.
type Scheduler struct {
	cron        *cron.Cron
	bookingSvc  *booking.Service
	ledgerSvc   *ledger.Service
	paymentRepo *repository.PaymentRepository
}

func New(bookingSvc *booking.Service, ledgerSvc *ledger.Service, paymentRepo *repository.PaymentRepository) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		bookingSvc:  bookingSvc,
		ledgerSvc:   ledgerSvc,
		paymentRepo: paymentRepo,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", s.sweepDates); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("*/5 * * * *", s.promoteEarnings); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("*/10 * * * *", s.expirePayments); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[scheduler] started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("[scheduler] stopped")
}

func (s *Scheduler) sweepDates() {
	s.bookingSvc.Sweep(time.Now())
}

func (s *Scheduler) promoteEarnings() {
	n, err := s.ledgerSvc.PromotePendingToAvailable(time.Now())
	if err != nil {
		log.Printf("[scheduler] promote earnings: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[scheduler] promoted %d matured earnings", n)
	}
}

func (s *Scheduler) expirePayments() {
	n, err := s.paymentRepo.ExpireStale(time.Now())
	if err != nil {
		log.Printf("[scheduler] expire payments: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[scheduler] expired %d stale payments", n)
	}
}

package domain

const (
	RoleSeeker = "SEEKER"
	RoleEarner = "EARNER"
)

// Ledger transaction types. CreditsAmount sign encodes direction.
const (
	TxTypePurchase         = "PURCHASE"
	TxTypeSpend            = "SPEND"
	TxTypeEarning          = "EARNING"
	TxTypeGiftSent         = "GIFT_SENT"
	TxTypeGiftEarning      = "GIFT_EARNING"
	TxTypeWithdrawal       = "WITHDRAWAL"
	TxTypeWithdrawalRefund = "WITHDRAWAL_REFUND"
	TxTypeVideoDateCharge  = "VIDEO_DATE_CHARGE"
	TxTypeVideoDateRefund  = "VIDEO_DATE_REFUND"
)

const (
	TxStatusPending   = "PENDING"
	TxStatusCompleted = "COMPLETED"
	TxStatusFailed    = "FAILED"
	TxStatusRefunded  = "REFUNDED"
)

// VideoDate lifecycle.
const (
	DateStatusPending         = "PENDING"
	DateStatusScheduled       = "SCHEDULED"
	DateStatusWaiting         = "WAITING"
	DateStatusInProgress      = "IN_PROGRESS"
	DateStatusCompleted       = "COMPLETED"
	DateStatusCancelled       = "CANCELLED"
	DateStatusCancelledNoShow = "CANCELLED_NO_SHOW"
)

const (
	CallTypeVideo = "VIDEO"
	CallTypeAudio = "AUDIO"
)

const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusFailed    = "FAILED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusExpired   = "EXPIRED"
)

// Fixed spend reasons with server-side prices in credits. Client-sent
// prices are never trusted; every spend must resolve through this table.
const (
	SpendReasonMessage     = "MESSAGE"
	SpendReasonMediaUnlock = "MEDIA_UNLOCK"
)

var SpendPriceCredits = map[string]int64{
	SpendReasonMessage:     5,
	SpendReasonMediaUnlock: 25,
}

// Allowed video-date durations in minutes, shortest to longest.
var CallDurationsMinutes = []int{15, 30, 60, 90}

// Credit packages purchasable through the payment provider.
type CreditPackage struct {
	Credits   int64
	USDCents  int64
	PackageID string
}

var CreditPackages = []CreditPackage{
	{PackageID: "starter", Credits: 100, USDCents: 1000},
	{PackageID: "plus", Credits: 500, USDCents: 5000},
	{PackageID: "pro", Credits: 1200, USDCents: 12000},
}

func FindCreditPackage(id string) *CreditPackage {
	for i := range CreditPackages {
		if CreditPackages[i].PackageID == id {
			return &CreditPackages[i]
		}
	}
	return nil
}

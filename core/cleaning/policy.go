package cleaning

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UrgentAfterDay is the last day of the month a missing payment is not yet urgent.
const UrgentAfterDay = 15

var DefaultMonthlyCap = decimal.NewFromInt(720)

type (
	CapCheck struct {
		OverCap bool `json:"over_cap"`
	}

	Reconciliation struct {
		Month          Month    `json:"month"`
		HasPayment     []Family `json:"has_payment"`
		MissingPayment []Family `json:"missing_payment"`
	}
)

// EvaluateCap flags amounts strictly above the monthly cap. It never blocks.
func EvaluateCap(amount, monthlyCap decimal.Decimal) CapCheck {
	return CapCheck{OverCap: amount.GreaterThan(monthlyCap)}
}

// CapWarning returns the over-cap warning for `amount`, or "" when within the cap.
func CapWarning(amount, monthlyCap decimal.Decimal, lang string) string {
	if !EvaluateCap(amount, monthlyCap).OverCap {
		return ""
	}
	if lang == LangEnglish {
		return fmt.Sprintf("amount %s ₪ exceeds the monthly cap of %s ₪", amount.String(), monthlyCap.String())
	}
	return fmt.Sprintf("הסכום %s ₪ עולה על התקרה %s ₪", amount.String(), monthlyCap.String())
}

// MaxAmount bounds amounts to what a NUMERIC(12, 2) column holds, exclusive.
var MaxAmount = decimal.New(1, 10)

// ValidateAmount accepts positive amounts in agorot precision, below MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return ErrInvalidAmount
	case !amount.Equal(amount.Round(2)):
		return ErrAmountPrecision
	case amount.GreaterThanOrEqual(MaxAmount):
		return ErrAmountTooLarge
	}
	return nil
}

// CheckDuplicateMonth returns a *DuplicateMonthError if any of `existing` already occupies (caseID, month).
// The payment identified by excludeID (the one being updated) is ignored.
func CheckDuplicateMonth(caseID string, month Month, existing []Payment, excludeID string) error {
	for i := range existing {
		p := existing[i]
		if p.CaseID != caseID || p.ID == excludeID {
			continue
		}
		if p.PaymentMonth.Equal(month) {
			return &DuplicateMonthError{CaseID: caseID, Month: month, Existing: &p}
		}
	}
	return nil
}

// Reconcile partitions families by whether they have a payment for `month`, whatever its status.
// Input order is kept in both partitions.
func Reconcile(families []Family, month Month) Reconciliation {
	rec := Reconciliation{
		Month:          month,
		HasPayment:     make([]Family, 0, len(families)),
		MissingPayment: make([]Family, 0),
	}
	for _, f := range families {
		if hasPaymentFor(f, month) {
			rec.HasPayment = append(rec.HasPayment, f)
		} else {
			rec.MissingPayment = append(rec.MissingPayment, f)
		}
	}
	return rec
}

// UrgentCount counts the missing families that are urgent at `ref`, only the month `ref` falls in can have any.
func (rec Reconciliation) UrgentCount(ref time.Time) int {
	if !rec.Month.Contains(ref) {
		return 0
	}
	var n int
	for _, f := range rec.MissingPayment {
		if IsUrgent(f, ref) {
			n++
		}
	}
	return n
}

// IsUrgent is true once the 15th of ref's month has passed and the family has no payment for that month.
func IsUrgent(f Family, ref time.Time) bool {
	return ref.Day() > UrgentAfterDay && !hasPaymentFor(f, MonthOf(ref))
}

// PaymentBadge returns the badge shown for the family's payment of ref's month.
func PaymentBadge(f Family, ref time.Time) Badge {
	switch {
	case hasPaymentFor(f, MonthOf(ref)):
		return BadgePaid
	case IsUrgent(f, ref):
		return BadgeMissingAfter15th
	default:
		return BadgeNoPaymentYet
	}
}

func hasPaymentFor(f Family, month Month) bool {
	return f.ExistingPayment != nil && f.ExistingPayment.PaymentMonth.Equal(month)
}

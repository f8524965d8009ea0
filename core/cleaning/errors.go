package cleaning

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrCaseNotFound        = errors.New("case not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrNotPending          = errors.New("only pending payments can be modified")
	ErrCaseInactive        = errors.New("case is not active")
	ErrCaseAlreadyInactive = errors.New("case is already closed")
	ErrCaseAlreadyActive   = errors.New("case is already active")
	ErrCaseNotCleaning     = errors.New("this endpoint is only for cleaning cases")
	ErrSettingNotFound     = errors.New("setting not found")
	ErrInvalidAmount       = errors.New("amount_ils must be greater than 0")
	ErrAmountPrecision     = errors.New("amount_ils must have at most 2 decimal places")
	ErrAmountTooLarge      = errors.New("amount_ils must be less than 10,000,000,000")
	ErrInvalidCap          = errors.New("monthly cap must be greater than 0")
	ErrNoPayments          = errors.New("no payments provided")
	ErrNoRecipients        = errors.New("recipients are required")
)

// DuplicateMonthError is returned when a case already has a payment for a month.
type DuplicateMonthError struct {
	CaseID   string
	Month    Month
	Existing *Payment // nil when unknown, i.e. raised by the store
}

func (e *DuplicateMonthError) Error() string {
	return fmt.Sprintf("case %s %s", e.CaseID, e.Message(LangEnglish))
}

// Message returns the user facing message naming the month, i.e. "כבר קיים תשלום לחודש ינואר 2025".
func (e *DuplicateMonthError) Message(lang string) string {
	if lang == LangEnglish {
		return "already has a payment for " + e.Month.Label(lang)
	}
	return "כבר קיים תשלום לחודש " + e.Month.Label(LangHebrew)
}

// IsDuplicateMonth reports whether err is, or wraps, a *DuplicateMonthError.
func IsDuplicateMonth(err error) (*DuplicateMonthError, bool) {
	dupErr, ok := errors.Cause(err).(*DuplicateMonthError)
	return dupErr, ok
}

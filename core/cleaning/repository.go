package cleaning

import (
	"context"
	"time"

	"github.com/simchatzion/ledger/core"
)

const MonthlyCapSetting = "cleaning_monthly_cap"

type (
	CaseFilter struct {
		Status    CaseStatus `query:"status"`
		Search    string     `query:"search"` // case-insensitive match on family_name or child_name
		City      string     `query:"city"`
		Orderings []core.DBOrdering
	}

	PaymentFilter struct {
		CaseIDs []string
		Month   Month // zero: any month
		Year    int   // 0: any year
	}

	CaseRepository interface {
		CreateCase(ctx context.Context, c Case) (Case, error)
		// GetCase returns ErrCaseNotFound if no case matches.
		GetCase(ctx context.Context, id string) (Case, error)
		// QueryCases returns cleaning cases only, ordered by filter.Orderings (created_at DESC by default).
		QueryCases(ctx context.Context, filter CaseFilter) ([]Case, error)
		// UpdateCaseStatus saves the status and end fields of `c` along with the history entry.
		UpdateCaseStatus(ctx context.Context, c Case, entry HistoryEntry) (Case, error)
		QueryCaseHistory(ctx context.Context, caseID string) ([]HistoryEntry, error)
	}

	PaymentRepository interface {
		// QueryPayments returns payments ordered by payment_month DESC.
		QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
		// GetPayment returns ErrPaymentNotFound if the case has no such payment.
		GetPayment(ctx context.Context, caseID, id string) (Payment, error)
		// CreatePayment returns a *DuplicateMonthError if (case, month) is already taken.
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		// CreatePayments inserts all of `ps` in a single transaction; those whose (case, month) is taken are skipped.
		CreatePayments(ctx context.Context, ps []Payment) ([]Payment, error)
		// UpdatePayment saves month, amount and notes of a pending payment.
		// It returns ErrNotPending if the payment is no longer pending and a *DuplicateMonthError on conflict.
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		// DeletePayment deletes a pending payment, ErrNotPending otherwise.
		DeletePayment(ctx context.Context, caseID, id string) error
	}

	EmailLogRepository interface {
		LogEmail(ctx context.Context, log EmailLog) error
		// LastEmailsSent returns the last successful send time of emailType, by case.
		LastEmailsSent(ctx context.Context, emailType string, caseIDs ...string) (map[string]time.Time, error)
	}

	SettingRepository interface {
		// GetSetting returns ErrSettingNotFound if the key is not set.
		GetSetting(ctx context.Context, key string) (string, error)
		SetSetting(ctx context.Context, key, value string) error
	}

	Repository interface {
		CaseRepository
		PaymentRepository
		EmailLogRepository
		SettingRepository
	}
)

package cleaning

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// amounts are plain JSON numbers
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	LangHebrew  = "he"
	LangEnglish = "en"

	CaseTypeCleaning = "cleaning"

	EmailTypeMonthlyRequest = "monthly_request"
	EmailTypeDigest         = "missing_payments_digest"
)

type CaseStatus string

const (
	CaseActive   CaseStatus = "active"
	CaseInactive CaseStatus = "inactive"
)

type EndReason string

const (
	EndReasonHealed   EndReason = "healed"
	EndReasonDeceased EndReason = "deceased"
	EndReasonOther    EndReason = "other"
)

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentApproved    PaymentStatus = "approved"
	PaymentTransferred PaymentStatus = "transferred"
	PaymentRejected    PaymentStatus = "rejected"
)

type EmailStatus string

const (
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

type Badge string

const (
	BadgePaid             Badge = "paid"
	BadgeNoPaymentYet     Badge = "no_payment_yet"
	BadgeMissingAfter15th Badge = "missing_after_15th"
)

type (
	// Case is a sick-child cleaning support case.
	Case struct {
		ID             string      `json:"id" db:"id"`
		CaseNumber     int64       `json:"case_number" db:"case_number"`
		CaseType       string      `json:"case_type" db:"case_type"`
		FamilyName     string      `json:"family_name" db:"family_name"`
		ChildName      string      `json:"child_name" db:"child_name"`
		ContactEmail   null.String `json:"contact_email" db:"contact_email"`
		ContactPhone   null.String `json:"contact_phone" db:"contact_phone"`
		City           null.String `json:"city" db:"city"`
		StartDate      time.Time   `json:"start_date" db:"start_date"`
		EndDate        null.Time   `json:"end_date" db:"end_date"`
		Status         CaseStatus  `json:"status" db:"status"`
		EndReason      null.String `json:"end_reason" db:"end_reason"`
		EndReasonNotes null.String `json:"end_reason_notes" db:"end_reason_notes"`
		CreatedAt      time.Time   `json:"created_at" db:"created_at"`
		UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
	}

	// Payment is one month's support disbursement for one case.
	Payment struct {
		ID            string          `json:"id" db:"id"`
		CaseID        string          `json:"case_id" db:"case_id"`
		PaymentMonth  Month           `json:"payment_month" db:"payment_month"`
		AmountILS     decimal.Decimal `json:"amount_ils" db:"amount_ils"`
		Notes         null.String     `json:"notes" db:"notes"`
		Status        PaymentStatus   `json:"status" db:"status"`
		ApprovedBy    null.String     `json:"approved_by" db:"approved_by"`
		TransferredAt null.Time       `json:"transferred_at" db:"transferred_at"`
		CreatedAt     time.Time       `json:"created_at" db:"created_at"`
		UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
	}

	// Family is an active case seen through a target month: ExistingPayment is its payment for that month, if any.
	Family struct {
		CaseID          string      `json:"id"`
		CaseNumber      int64       `json:"case_number"`
		FamilyName      string      `json:"family_name"`
		ChildName       string      `json:"child_name"`
		ContactEmail    null.String `json:"contact_email"`
		ContactPhone    null.String `json:"contact_phone"`
		City            null.String `json:"city"`
		ExistingPayment *Payment    `json:"existing_payment"`
	}

	// CaseOverview is a case as listed, with its payment for the current month.
	CaseOverview struct {
		Case
		CurrentMonthPayment *Payment `json:"current_month_payment"`
		PaymentBadge        Badge    `json:"payment_badge,omitempty"`
		Urgent              bool     `json:"urgent"`
	}

	EmailLog struct {
		ID             string      `json:"id" db:"id"`
		CaseID         null.String `json:"case_id" db:"case_id"`
		EmailType      string      `json:"email_type" db:"email_type"`
		RecipientEmail string      `json:"recipient_email" db:"recipient_email"`
		Subject        string      `json:"subject" db:"subject"`
		Status         EmailStatus `json:"status" db:"status"`
		ErrorMessage   null.String `json:"error_message" db:"error_message"`
		SentAt         time.Time   `json:"sent_at" db:"sent_at"`
	}

	// FamilyEmailStatus tells whether a monthly request was already sent to a case this month.
	FamilyEmailStatus struct {
		CaseID        string      `json:"case_id" db:"case_id"`
		CaseNumber    int64       `json:"case_number" db:"case_number"`
		FamilyName    string      `json:"family_name" db:"family_name"`
		ChildName     string      `json:"child_name" db:"child_name"`
		ContactEmail  null.String `json:"contact_email" db:"contact_email"`
		ContactPhone  null.String `json:"contact_phone" db:"contact_phone"`
		LastEmailSent null.Time   `json:"last_email_sent" db:"last_email_sent"`
		SentThisMonth bool        `json:"sent_this_month" db:"-"`
	}

	HistoryEntry struct {
		ID           string      `json:"id" db:"id"`
		CaseID       string      `json:"case_id" db:"case_id"`
		FieldChanged string      `json:"field_changed" db:"field_changed"`
		OldValue     null.String `json:"old_value" db:"old_value"`
		NewValue     null.String `json:"new_value" db:"new_value"`
		Note         null.String `json:"note" db:"note"`
		ChangedAt    time.Time   `json:"changed_at" db:"changed_at"`
	}

	PaymentSummary struct {
		TotalAmount       decimal.Decimal `json:"totalAmount"`
		TransferredAmount decimal.Decimal `json:"transferredAmount"`
		PendingAmount     decimal.Decimal `json:"pendingAmount"`
		MonthlyCap        decimal.Decimal `json:"monthlyCap"`
	}
)

func (c Case) IsActive() bool { return c.Status == CaseActive }
func (c Case) HasEmail() bool { return c.ContactEmail.Valid && c.ContactEmail.String != "" }

func (p Payment) IsPending() bool { return p.Status == PaymentPending }

// NewFamily views `c` through a target month, payment must be its payment for that month or nil.
func NewFamily(c Case, payment *Payment) Family {
	return Family{
		CaseID:          c.ID,
		CaseNumber:      c.CaseNumber,
		FamilyName:      c.FamilyName,
		ChildName:       c.ChildName,
		ContactEmail:    c.ContactEmail,
		ContactPhone:    c.ContactPhone,
		City:            c.City,
		ExistingPayment: payment,
	}
}

func (f Family) HasPayment() bool { return f.ExistingPayment != nil }

func (f Family) MarshalJSON() ([]byte, error) {
	type family Family
	return json.Marshal(struct {
		family
		HasPayment bool `json:"has_payment"`
	}{family(f), f.HasPayment()})
}

func (s FamilyEmailStatus) HasEmail() bool {
	return s.ContactEmail.Valid && s.ContactEmail.String != ""
}

// Summarize totals payments and reports them against the monthly cap.
// Anything not transferred yet counts as pending.
func Summarize(payments []Payment, monthlyCap decimal.Decimal) PaymentSummary {
	summary := PaymentSummary{
		TotalAmount:       decimal.Zero,
		TransferredAmount: decimal.Zero,
		MonthlyCap:        monthlyCap,
	}
	for _, p := range payments {
		summary.TotalAmount = summary.TotalAmount.Add(p.AmountILS)
		if p.Status == PaymentTransferred {
			summary.TransferredAmount = summary.TransferredAmount.Add(p.AmountILS)
		}
	}
	summary.PendingAmount = summary.TotalAmount.Sub(summary.TransferredAmount)
	return summary
}

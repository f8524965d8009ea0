package cleaning

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/simchatzion/ledger/core"
)

const (
	sourceSingle = "single"
	sourceBulk   = "bulk"
)

type (
	PaymentInput struct {
		PaymentMonth Month
		AmountILS    decimal.Decimal
		Notes        string
	}

	PaymentResult struct {
		Payment  Payment  `json:"payment"`
		Warnings []string `json:"warnings"`
	}

	PaymentList struct {
		Payments []Payment      `json:"payments"`
		Summary  PaymentSummary `json:"summary"`
	}

	BulkFamilies struct {
		Families   []Family        `json:"families"`
		Month      Month           `json:"month"`
		MonthlyCap decimal.Decimal `json:"monthlyCap"`
	}

	BulkItem struct {
		CaseID    string          `json:"case_id"`
		AmountILS decimal.Decimal `json:"amount_ils"`
		Notes     string          `json:"notes,omitempty"`
	}

	BulkRequest struct {
		PaymentMonth Month      `json:"payment_month"`
		Payments     []BulkItem `json:"payments"`
	}

	BulkResult struct {
		Created     int             `json:"created"`
		Skipped     int             `json:"skipped"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
		Errors      []string        `json:"errors"`
		Warnings    []string        `json:"warnings"`
		Payments    []Payment       `json:"payments"`
	}

	ReconciliationReport struct {
		Reconciliation
		ReferenceDate time.Time       `json:"reference_date"`
		UrgentCount   int             `json:"urgent_count"`
		MonthlyCap    decimal.Decimal `json:"monthlyCap"`
	}
)

func (in PaymentInput) validate() error {
	var flds []core.FieldError
	if in.PaymentMonth.IsZero() {
		flds = append(flds, core.FieldError{Field: "payment_month", Error: "payment_month is required"})
	}
	if err := ValidateAmount(in.AmountILS); err != nil {
		flds = append(flds, core.FieldError{Field: "amount_ils", Error: err.Error()})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (svc *service) capWarnings(ctx context.Context, amount decimal.Decimal) ([]string, error) {
	monthlyCap, err := svc.MonthlyCap(ctx)
	if err != nil {
		return nil, err
	}
	warnings := make([]string, 0, 1)
	if w := CapWarning(amount, monthlyCap, LangFrom(ctx)); w != "" {
		warnings = append(warnings, w)
	}
	return warnings, nil
}

// ListPayments lists a case's payments, newest month first, optionally limited to `year`.
func (svc *service) ListPayments(ctx context.Context, caseID string, year int) (PaymentList, error) {
	if _, err := svc.GetCase(ctx, caseID); err != nil {
		return PaymentList{}, err
	}
	payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{CaseIDs: []string{caseID}, Year: year})
	if err != nil {
		return PaymentList{}, errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []Payment{}
	}
	monthlyCap, err := svc.MonthlyCap(ctx)
	if err != nil {
		return PaymentList{}, err
	}
	return PaymentList{Payments: payments, Summary: Summarize(payments, monthlyCap)}, nil
}

// CreatePayment records a pending payment for a case.
// A *DuplicateMonthError is returned if the case already has a payment for the month.
func (svc *service) CreatePayment(ctx context.Context, caseID string, in PaymentInput) (PaymentResult, error) {
	if err := in.validate(); err != nil {
		return PaymentResult{}, err
	}
	c, err := svc.GetCase(ctx, caseID)
	if err != nil {
		return PaymentResult{}, err
	}

	existing, err := svc.repo.QueryPayments(ctx, PaymentFilter{CaseIDs: []string{c.ID}, Month: in.PaymentMonth})
	if err != nil {
		return PaymentResult{}, errors.Wrap(err, "querying payments")
	}
	if err = CheckDuplicateMonth(c.ID, in.PaymentMonth, existing, ""); err != nil {
		svc.recorder.DuplicateMonthRejected(sourceSingle)
		return PaymentResult{}, err
	}

	warnings, err := svc.capWarnings(ctx, in.AmountILS)
	if err != nil {
		return PaymentResult{}, err
	}

	now := svc.now().UTC()
	p, err := svc.repo.CreatePayment(ctx, Payment{
		ID:           svc.idProvider(),
		CaseID:       c.ID,
		PaymentMonth: in.PaymentMonth,
		AmountILS:    in.AmountILS,
		Notes:        nullString(in.Notes),
		Status:       PaymentPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if _, ok := IsDuplicateMonth(err); ok { // lost a race with another session
			svc.recorder.DuplicateMonthRejected(sourceSingle)
			return PaymentResult{}, err
		}
		return PaymentResult{}, errors.Wrap(err, "creating payment")
	}
	svc.recorder.PaymentsCreated(sourceSingle, 1, p.AmountILS)
	return PaymentResult{Payment: p, Warnings: warnings}, nil
}

// UpdatePayment changes the month, amount and notes of a pending payment.
// Moving it onto a month the case already has a payment for returns a *DuplicateMonthError, the payment is left unchanged.
func (svc *service) UpdatePayment(ctx context.Context, caseID, paymentID string, in PaymentInput) (PaymentResult, error) {
	if err := in.validate(); err != nil {
		return PaymentResult{}, err
	}
	if _, err := svc.GetCase(ctx, caseID); err != nil {
		return PaymentResult{}, err
	}

	p, err := svc.repo.GetPayment(ctx, caseID, paymentID)
	if err != nil {
		return PaymentResult{}, err
	}
	if !p.IsPending() {
		return PaymentResult{}, ErrNotPending
	}

	if !p.PaymentMonth.Equal(in.PaymentMonth) {
		existing, err := svc.repo.QueryPayments(ctx, PaymentFilter{CaseIDs: []string{caseID}, Month: in.PaymentMonth})
		if err != nil {
			return PaymentResult{}, errors.Wrap(err, "querying payments")
		}
		if err = CheckDuplicateMonth(caseID, in.PaymentMonth, existing, p.ID); err != nil {
			svc.recorder.DuplicateMonthRejected(sourceSingle)
			return PaymentResult{}, err
		}
	}

	warnings, err := svc.capWarnings(ctx, in.AmountILS)
	if err != nil {
		return PaymentResult{}, err
	}

	p.PaymentMonth = in.PaymentMonth
	p.AmountILS = in.AmountILS
	p.Notes = nullString(in.Notes)
	p.UpdatedAt = svc.now().UTC()
	p, err = svc.repo.UpdatePayment(ctx, p)
	if err != nil {
		if _, ok := IsDuplicateMonth(err); ok {
			svc.recorder.DuplicateMonthRejected(sourceSingle)
			return PaymentResult{}, err
		}
		return PaymentResult{}, errors.Wrap(err, "updating payment")
	}
	return PaymentResult{Payment: p, Warnings: warnings}, nil
}

func (svc *service) DeletePayment(ctx context.Context, caseID, paymentID string) error {
	if _, err := svc.GetCase(ctx, caseID); err != nil {
		return err
	}
	p, err := svc.repo.GetPayment(ctx, caseID, paymentID)
	if err != nil {
		return err
	}
	if !p.IsPending() {
		return ErrNotPending
	}
	return svc.repo.DeletePayment(ctx, caseID, paymentID)
}

// Bulk entry

// BulkFamilies lists the active cases with their payment for `month` (the current month if zero).
func (svc *service) BulkFamilies(ctx context.Context, month Month) (BulkFamilies, error) {
	if month.IsZero() {
		month = MonthOf(svc.now())
	}
	families, err := svc.activeFamilies(ctx, month)
	if err != nil {
		return BulkFamilies{}, err
	}
	monthlyCap, err := svc.MonthlyCap(ctx)
	if err != nil {
		return BulkFamilies{}, err
	}
	return BulkFamilies{Families: families, Month: month, MonthlyCap: monthlyCap}, nil
}

// CreateBulkPayments records pending payments for many cases at once, in one transaction.
// Cases already paid for the month are skipped, inactive cases and invalid amounts are reported in BulkResult.Errors.
func (svc *service) CreateBulkPayments(ctx context.Context, req BulkRequest) (BulkResult, error) {
	if req.PaymentMonth.IsZero() {
		return BulkResult{}, core.NewValidationError(nil, core.FieldError{Field: "payment_month", Error: "payment_month is required"})
	}
	if len(req.Payments) == 0 {
		return BulkResult{}, core.NewValidationError(ErrNoPayments, core.FieldError{Field: "payments", Error: "payments array is required and cannot be empty"})
	}

	res := BulkResult{TotalAmount: decimal.Zero, Errors: []string{}, Warnings: []string{}, Payments: []Payment{}}

	// resolve cases first, only known case ids reach the payments query
	type resolved struct {
		item BulkItem
		c    Case
	}
	rows := make([]resolved, 0, len(req.Payments))
	ids := make([]string, 0, len(req.Payments))
	for _, item := range req.Payments {
		c, err := svc.GetCase(ctx, item.CaseID)
		switch errors.Cause(err) {
		case nil:
		case ErrCaseNotFound, ErrCaseNotCleaning:
			res.Errors = append(res.Errors, fmt.Sprintf("Case %s not found", item.CaseID))
			continue
		default:
			return BulkResult{}, errors.Wrap(err, "getting case")
		}
		if !c.IsActive() {
			res.Errors = append(res.Errors, fmt.Sprintf("Case %s is inactive", item.CaseID))
			continue
		}
		rows = append(rows, resolved{item: item, c: c})
		ids = append(ids, c.ID)
	}

	existing, err := svc.paymentsByCase(ctx, req.PaymentMonth, ids)
	if err != nil {
		return BulkResult{}, err
	}

	now := svc.now().UTC()
	seen := make(map[string]bool, len(rows))
	toCreate := make([]Payment, 0, len(rows))
	for _, row := range rows {
		item, c := row.item, row.c
		if existing[c.ID] != nil || seen[c.ID] {
			res.Skipped++
			continue
		}
		if ValidateAmount(item.AmountILS) != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Invalid amount for case %s", item.CaseID))
			continue
		}
		seen[c.ID] = true
		toCreate = append(toCreate, Payment{
			ID:           svc.idProvider(),
			CaseID:       c.ID,
			PaymentMonth: req.PaymentMonth,
			AmountILS:    item.AmountILS,
			Notes:        nullString(item.Notes),
			Status:       PaymentPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if len(toCreate) == 0 {
		return res, nil
	}

	created, err := svc.repo.CreatePayments(ctx, toCreate)
	if err != nil {
		return BulkResult{}, errors.Wrap(err, "creating payments")
	}
	// conflicts lost to concurrent sessions are skipped by the store
	if lost := len(toCreate) - len(created); lost > 0 {
		res.Skipped += lost
		svc.recorder.DuplicateMonthRejected(sourceBulk)
	}

	monthlyCap, err := svc.MonthlyCap(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	var overCap int
	for _, p := range created {
		res.TotalAmount = res.TotalAmount.Add(p.AmountILS)
		if EvaluateCap(p.AmountILS, monthlyCap).OverCap {
			overCap++
		}
	}
	res.Created = len(created)
	res.Payments = created
	if overCap > 0 {
		res.Warnings = append(res.Warnings, overCapWarning(overCap, monthlyCap, LangFrom(ctx)))
	}
	svc.recorder.PaymentsCreated(sourceBulk, res.Created, res.TotalAmount)
	return res, nil
}

func overCapWarning(n int, monthlyCap decimal.Decimal, lang string) string {
	if lang == LangEnglish {
		return fmt.Sprintf("%d payments exceed the monthly cap of %s ₪", n, monthlyCap.String())
	}
	return fmt.Sprintf("%d תשלומים עולים על התקרה של %s ₪", n, monthlyCap.String())
}

// Reconcile partitions the active cases by whether they have a payment for `month` (the current month if zero).
// Urgency is computed against the service clock.
func (svc *service) Reconcile(ctx context.Context, month Month) (ReconciliationReport, error) {
	now := svc.now()
	if month.IsZero() {
		month = MonthOf(now)
	}
	families, err := svc.activeFamilies(ctx, month)
	if err != nil {
		return ReconciliationReport{}, err
	}
	monthlyCap, err := svc.MonthlyCap(ctx)
	if err != nil {
		return ReconciliationReport{}, err
	}
	rec := Reconcile(families, month)
	return ReconciliationReport{
		Reconciliation: rec,
		ReferenceDate:  now,
		UrgentCount:    rec.UrgentCount(now),
		MonthlyCap:     monthlyCap,
	}, nil
}

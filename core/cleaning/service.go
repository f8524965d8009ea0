package cleaning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/simchatzion/ledger/core"
)

type (
	// Recorder receives ledger events, i.e. for metrics.
	Recorder interface {
		PaymentsCreated(source string, count int, total decimal.Decimal)
		DuplicateMonthRejected(source string)
		EmailsSent(emailType string, sent, failed int)
	}

	Service interface {
		// Now is the service clock, in the organization's time zone.
		Now() time.Time

		MonthlyCap(ctx context.Context) (decimal.Decimal, error)
		SetMonthlyCap(ctx context.Context, monthlyCap decimal.Decimal) error

		CreateCase(ctx context.Context, nc NewCase) (Case, error)
		GetCase(ctx context.Context, id string) (Case, error)
		ListCases(ctx context.Context, filter CaseFilter) ([]CaseOverview, error)
		CloseCase(ctx context.Context, id string, cc CloseCase) (CloseResult, error)
		ReopenCase(ctx context.Context, id string) (Case, error)
		CaseHistory(ctx context.Context, id string) ([]HistoryEntry, error)

		ListPayments(ctx context.Context, caseID string, year int) (PaymentList, error)
		CreatePayment(ctx context.Context, caseID string, in PaymentInput) (PaymentResult, error)
		UpdatePayment(ctx context.Context, caseID, paymentID string, in PaymentInput) (PaymentResult, error)
		DeletePayment(ctx context.Context, caseID, paymentID string) error

		BulkFamilies(ctx context.Context, month Month) (BulkFamilies, error)
		CreateBulkPayments(ctx context.Context, req BulkRequest) (BulkResult, error)
		Reconcile(ctx context.Context, month Month) (ReconciliationReport, error)

		EmailStatus(ctx context.Context) ([]FamilyEmailStatus, error)
		SendMonthlyEmails(ctx context.Context, req SendRequest) (SendResult, error)
	}

	service struct {
		repo       Repository
		mailSvc    core.EmailService
		conf       *core.Config
		logger     core.Logger
		recorder   Recorder
		now        func() time.Time
		idProvider func() string
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	recorder Recorder,
) Service {
	if recorder == nil {
		recorder = NopRecorder()
	}
	loc := conf.Location()
	return &service{
		repo:       repo,
		mailSvc:    mailSvc,
		conf:       conf,
		logger:     logger,
		recorder:   recorder,
		now:        func() time.Time { return time.Now().In(loc) },
		idProvider: newID,
	}
}

func newID() string {
	return uuid.New().String()
}

func (svc *service) Now() time.Time {
	return svc.now()
}

// Settings

// MonthlyCap loads the configured cap; an unset or invalid value falls back to the configured default.
func (svc *service) MonthlyCap(ctx context.Context) (decimal.Decimal, error) {
	fallback := svc.conf.Ledger.DefaultMonthlyCap
	if !fallback.IsPositive() {
		fallback = DefaultMonthlyCap
	}

	val, err := svc.repo.GetSetting(ctx, MonthlyCapSetting)
	if err != nil {
		if errors.Cause(err) == ErrSettingNotFound {
			return fallback, nil
		}
		return decimal.Decimal{}, errors.Wrap(err, "getting monthly cap setting")
	}
	monthlyCap, err := decimal.NewFromString(strings.TrimSpace(val))
	if err != nil || !monthlyCap.IsPositive() {
		svc.logger.Warn(fmt.Sprintf("invalid %s setting %q, using %s", MonthlyCapSetting, val, fallback))
		return fallback, nil
	}
	return monthlyCap, nil
}

func (svc *service) SetMonthlyCap(ctx context.Context, monthlyCap decimal.Decimal) error {
	if !monthlyCap.IsPositive() {
		return core.NewValidationError(ErrInvalidCap, core.FieldError{Field: "monthlyCap", Error: ErrInvalidCap.Error()})
	}
	return svc.repo.SetSetting(ctx, MonthlyCapSetting, monthlyCap.String())
}

// Cases

type (
	NewCase struct {
		FamilyName   string
		ChildName    string
		ContactEmail string
		ContactPhone string
		City         string
		StartDate    time.Time // today if zero
	}

	CloseCase struct {
		Reason EndReason
		Notes  string
	}

	CloseResult struct {
		Case            Case      `json:"case"`
		PendingPayments []Payment `json:"pending_payments"`
		Warnings        []string  `json:"warnings"`
	}
)

func nullString(s string) null.String {
	s = core.CleanString(s)
	return null.NewString(s, s != "")
}

func (svc *service) CreateCase(ctx context.Context, nc NewCase) (Case, error) {
	var flds []core.FieldError
	if core.CleanString(nc.FamilyName) == "" {
		flds = append(flds, core.FieldError{Field: "family_name", Error: "this field is required"})
	}
	if core.CleanString(nc.ChildName) == "" {
		flds = append(flds, core.FieldError{Field: "child_name", Error: "this field is required"})
	}
	if flds != nil {
		return Case{}, core.NewValidationError(nil, flds...)
	}

	now := svc.now()
	start := nc.StartDate
	if start.IsZero() {
		start = now
	}
	c := Case{
		ID:           svc.idProvider(),
		CaseType:     CaseTypeCleaning,
		FamilyName:   core.CleanString(nc.FamilyName),
		ChildName:    core.CleanString(nc.ChildName),
		ContactEmail: nullString(core.CleanString(nc.ContactEmail, true /* lower */)),
		ContactPhone: nullString(nc.ContactPhone),
		City:         nullString(nc.City),
		StartDate:    time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		Status:       CaseActive,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	return svc.repo.CreateCase(ctx, c)
}

func (svc *service) GetCase(ctx context.Context, id string) (Case, error) {
	c, err := svc.repo.GetCase(ctx, id)
	if err != nil {
		return Case{}, err
	}
	if c.CaseType != CaseTypeCleaning {
		return Case{}, ErrCaseNotCleaning
	}
	return c, nil
}

// ListCases lists cleaning cases (active by default) with their payment for the current month.
func (svc *service) ListCases(ctx context.Context, filter CaseFilter) ([]CaseOverview, error) {
	if filter.Status == "" {
		filter.Status = CaseActive
	}
	filter.Search = core.CleanString(filter.Search)
	filter.City = core.CleanString(filter.City)

	cases, err := svc.repo.QueryCases(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying cases")
	}

	now := svc.now()
	payments, err := svc.paymentsByCase(ctx, MonthOf(now), caseIDs(cases))
	if err != nil {
		return nil, err
	}

	overviews := make([]CaseOverview, 0, len(cases))
	for _, c := range cases {
		ov := CaseOverview{Case: c, CurrentMonthPayment: payments[c.ID]}
		if c.IsActive() {
			f := NewFamily(c, payments[c.ID])
			ov.PaymentBadge = PaymentBadge(f, now)
			ov.Urgent = IsUrgent(f, now)
		}
		overviews = append(overviews, ov)
	}
	return overviews, nil
}

func (svc *service) CloseCase(ctx context.Context, id string, cc CloseCase) (CloseResult, error) {
	switch cc.Reason {
	case EndReasonHealed, EndReasonDeceased, EndReasonOther:
	default:
		msg := "valid reason is required (healed, deceased, other)"
		return CloseResult{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "reason", Error: msg})
	}

	c, err := svc.GetCase(ctx, id)
	if err != nil {
		return CloseResult{}, err
	}
	if !c.IsActive() {
		return CloseResult{}, ErrCaseAlreadyInactive
	}

	pending, err := svc.pendingPayments(ctx, c.ID)
	if err != nil {
		return CloseResult{}, err
	}

	now := svc.now()
	notes := core.CleanString(cc.Notes)
	note := "case_closed|reason:" + string(cc.Reason)
	if notes != "" {
		note = "case_closed_with_notes|reason:" + string(cc.Reason) + "|notes:" + notes
	}

	c.Status = CaseInactive
	c.EndDate = null.TimeFrom(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	c.EndReason = null.StringFrom(string(cc.Reason))
	c.EndReasonNotes = nullString(notes)
	c.UpdatedAt = now.UTC()
	c, err = svc.repo.UpdateCaseStatus(ctx, c, svc.statusEntry(c.ID, CaseActive, CaseInactive, note))
	if err != nil {
		return CloseResult{}, errors.Wrap(err, "closing case")
	}

	res := CloseResult{Case: c, PendingPayments: pending, Warnings: []string{}}
	if len(pending) > 0 {
		// closing never blocks, pending payments stay in the transfers queue
		res.Warnings = append(res.Warnings, pendingWarning(len(pending), LangFrom(ctx)))
	}
	return res, nil
}

func pendingWarning(n int, lang string) string {
	if lang == LangEnglish {
		return fmt.Sprintf("%d pending payments will remain in the transfers queue", n)
	}
	return fmt.Sprintf("יש %d תשלומים ממתינים שיישארו בטבלת העברות", n)
}

func (svc *service) ReopenCase(ctx context.Context, id string) (Case, error) {
	c, err := svc.GetCase(ctx, id)
	if err != nil {
		return Case{}, err
	}
	if c.IsActive() {
		return Case{}, ErrCaseAlreadyActive
	}

	prevReason := c.EndReason.String
	if prevReason == "" {
		prevReason = string(EndReasonOther)
	}
	c.Status = CaseActive
	c.EndDate = null.Time{}
	c.EndReason = null.String{}
	c.EndReasonNotes = null.String{}
	c.UpdatedAt = svc.now().UTC()
	c, err = svc.repo.UpdateCaseStatus(ctx, c, svc.statusEntry(c.ID, CaseInactive, CaseActive, "case_reopened|previousReason:"+prevReason))
	if err != nil {
		return Case{}, errors.Wrap(err, "reopening case")
	}
	return c, nil
}

func (svc *service) CaseHistory(ctx context.Context, id string) ([]HistoryEntry, error) {
	if _, err := svc.GetCase(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryCaseHistory(ctx, id)
}

func (svc *service) statusEntry(caseID string, from, to CaseStatus, note string) HistoryEntry {
	return HistoryEntry{
		ID:           svc.idProvider(),
		CaseID:       caseID,
		FieldChanged: "status",
		OldValue:     null.StringFrom(string(from)),
		NewValue:     null.StringFrom(string(to)),
		Note:         null.StringFrom(note),
		ChangedAt:    svc.now().UTC(),
	}
}

func (svc *service) pendingPayments(ctx context.Context, caseID string) ([]Payment, error) {
	payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{CaseIDs: []string{caseID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	pending := make([]Payment, 0)
	for _, p := range payments {
		if p.IsPending() {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// activeFamilies returns the active cleaning cases, by family name, seen through `month`.
func (svc *service) activeFamilies(ctx context.Context, month Month) ([]Family, error) {
	cases, err := svc.repo.QueryCases(ctx, CaseFilter{
		Status:    CaseActive,
		Orderings: []core.DBOrdering{{Field: "family_name", Ascending: true}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying active cases")
	}
	payments, err := svc.paymentsByCase(ctx, month, caseIDs(cases))
	if err != nil {
		return nil, err
	}

	families := make([]Family, 0, len(cases))
	for _, c := range cases {
		families = append(families, NewFamily(c, payments[c.ID]))
	}
	return families, nil
}

func (svc *service) paymentsByCase(ctx context.Context, month Month, ids []string) (map[string]*Payment, error) {
	byCase := make(map[string]*Payment, len(ids))
	if len(ids) == 0 {
		return byCase, nil
	}
	payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{CaseIDs: ids, Month: month})
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	for i := range payments {
		byCase[payments[i].CaseID] = &payments[i]
	}
	return byCase, nil
}

func caseIDs(cases []Case) []string {
	ids := make([]string, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	return ids
}

type nopRecorder struct{}

func (nopRecorder) PaymentsCreated(string, int, decimal.Decimal) {}
func (nopRecorder) DuplicateMonthRejected(string)                {}
func (nopRecorder) EmailsSent(string, int, int)                  {}

// NopRecorder discards ledger events.
func NopRecorder() Recorder { return nopRecorder{} }

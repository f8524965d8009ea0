package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/simchatzion/ledger/core/cleaning"
)

type repository struct {
	db *DB
}

func NewRepository(db *DB) cleaning.Repository {
	return &repository{db: db}
}

// Cases

func (repo *repository) CreateCase(_ context.Context, c cleaning.Case) (cleaning.Case, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.caseSeq++
	c.CaseNumber = repo.db.caseSeq
	repo.db.cases[c.ID] = &c
	return c, nil
}

func (repo *repository) GetCase(_ context.Context, id string) (cleaning.Case, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.cases[id]; ok {
		return *c, nil
	}
	return cleaning.Case{}, cleaning.ErrCaseNotFound
}

func (repo *repository) QueryCases(_ context.Context, filter cleaning.CaseFilter) ([]cleaning.Case, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	cases := make([]cleaning.Case, 0, len(repo.db.cases))
	for _, c := range repo.db.cases {
		if c.CaseType != cleaning.CaseTypeCleaning {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.City != "" && !strings.EqualFold(c.City.String, filter.City) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.FamilyName), search) &&
			!strings.Contains(strings.ToLower(c.ChildName), search) {
			continue
		}
		cases = append(cases, *c)
	}

	orderings := filter.Orderings
	sort.SliceStable(cases, func(i, j int) bool {
		for _, ord := range orderings {
			if cmp := compareCases(cases[i], cases[j], ord.Field); cmp != 0 {
				if ord.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
		}
		// default: newest first
		if !cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].CreatedAt.After(cases[j].CreatedAt)
		}
		return cases[i].CaseNumber > cases[j].CaseNumber
	})
	return cases, nil
}

func compareCases(a, b cleaning.Case, field string) int {
	switch field {
	case "family_name":
		return strings.Compare(a.FamilyName, b.FamilyName)
	case "child_name":
		return strings.Compare(a.ChildName, b.ChildName)
	case "case_number":
		return int(a.CaseNumber - b.CaseNumber)
	case "start_date":
		return a.StartDate.Compare(b.StartDate)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}

func (repo *repository) UpdateCaseStatus(_ context.Context, c cleaning.Case, entry cleaning.HistoryEntry) (cleaning.Case, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.cases[c.ID]
	if !ok {
		return cleaning.Case{}, cleaning.ErrCaseNotFound
	}
	orig.Status = c.Status
	orig.EndDate = c.EndDate
	orig.EndReason = c.EndReason
	orig.EndReasonNotes = c.EndReasonNotes
	orig.UpdatedAt = c.UpdatedAt
	repo.db.history = append(repo.db.history, entry)
	return *orig, nil
}

func (repo *repository) QueryCaseHistory(_ context.Context, caseID string) ([]cleaning.HistoryEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]cleaning.HistoryEntry, 0)
	for i := len(repo.db.history) - 1; i >= 0; i-- { // newest first
		if e := repo.db.history[i]; e.CaseID == caseID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Payments

func (repo *repository) QueryPayments(_ context.Context, filter cleaning.PaymentFilter) ([]cleaning.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ids map[string]bool
	if filter.CaseIDs != nil {
		ids = make(map[string]bool, len(filter.CaseIDs))
		for _, id := range filter.CaseIDs {
			ids[id] = true
		}
	}
	payments := make([]cleaning.Payment, 0)
	for _, p := range repo.db.payments {
		if ids != nil && !ids[p.CaseID] {
			continue
		}
		if !filter.Month.IsZero() && !p.PaymentMonth.Equal(filter.Month) {
			continue
		}
		if filter.Year != 0 && p.PaymentMonth.Year != filter.Year {
			continue
		}
		payments = append(payments, *p)
	}
	sort.SliceStable(payments, func(i, j int) bool {
		if !payments[i].PaymentMonth.Equal(payments[j].PaymentMonth) {
			return payments[j].PaymentMonth.Before(payments[i].PaymentMonth)
		}
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

func (repo *repository) GetPayment(_ context.Context, caseID, id string) (cleaning.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.payments[id]; ok && p.CaseID == caseID {
		return *p, nil
	}
	return cleaning.Payment{}, cleaning.ErrPaymentNotFound
}

// taken returns the payment occupying (caseID, month), the caller holds the lock.
func (repo *repository) taken(caseID string, month cleaning.Month, excludeID string) *cleaning.Payment {
	for _, p := range repo.db.payments {
		if p.CaseID == caseID && p.ID != excludeID && p.PaymentMonth.Equal(month) {
			return p
		}
	}
	return nil
}

func (repo *repository) CreatePayment(_ context.Context, p cleaning.Payment) (cleaning.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing := repo.taken(p.CaseID, p.PaymentMonth, ""); existing != nil {
		ex := *existing
		return cleaning.Payment{}, &cleaning.DuplicateMonthError{CaseID: p.CaseID, Month: p.PaymentMonth, Existing: &ex}
	}
	repo.db.payments[p.ID] = &p
	return p, nil
}

func (repo *repository) CreatePayments(_ context.Context, ps []cleaning.Payment) ([]cleaning.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]cleaning.Payment, 0, len(ps))
	for i := range ps {
		p := ps[i]
		if repo.taken(p.CaseID, p.PaymentMonth, "") != nil {
			continue
		}
		repo.db.payments[p.ID] = &p
		created = append(created, p)
	}
	return created, nil
}

func (repo *repository) UpdatePayment(_ context.Context, p cleaning.Payment) (cleaning.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.payments[p.ID]
	if !ok || orig.CaseID != p.CaseID {
		return cleaning.Payment{}, cleaning.ErrPaymentNotFound
	}
	if !orig.IsPending() {
		return cleaning.Payment{}, cleaning.ErrNotPending
	}
	if existing := repo.taken(p.CaseID, p.PaymentMonth, p.ID); existing != nil {
		ex := *existing
		return cleaning.Payment{}, &cleaning.DuplicateMonthError{CaseID: p.CaseID, Month: p.PaymentMonth, Existing: &ex}
	}
	orig.PaymentMonth = p.PaymentMonth
	orig.AmountILS = p.AmountILS
	orig.Notes = p.Notes
	orig.UpdatedAt = p.UpdatedAt
	return *orig, nil
}

func (repo *repository) DeletePayment(_ context.Context, caseID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.payments[id]
	if !ok || p.CaseID != caseID {
		return cleaning.ErrPaymentNotFound
	}
	if !p.IsPending() {
		return cleaning.ErrNotPending
	}
	delete(repo.db.payments, id)
	return nil
}

// SetPaymentStatus moves a payment along the approval workflow, which is managed outside the ledger.
func (repo *repository) SetPaymentStatus(_ context.Context, id string, status cleaning.PaymentStatus) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.payments[id]
	if !ok {
		return cleaning.ErrPaymentNotFound
	}
	p.Status = status
	return nil
}

// Emails

func (repo *repository) LogEmail(_ context.Context, log cleaning.EmailLog) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.emails = append(repo.db.emails, log)
	return nil
}

func (repo *repository) LastEmailsSent(_ context.Context, emailType string, caseIDs ...string) (map[string]time.Time, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make(map[string]bool, len(caseIDs))
	for _, id := range caseIDs {
		ids[id] = true
	}
	last := make(map[string]time.Time)
	for _, log := range repo.db.emails {
		if log.EmailType != emailType || log.Status != cleaning.EmailSent || !log.CaseID.Valid || !ids[log.CaseID.String] {
			continue
		}
		if t, ok := last[log.CaseID.String]; !ok || log.SentAt.After(t) {
			last[log.CaseID.String] = log.SentAt
		}
	}
	return last, nil
}

// EmailLogs returns every logged email, oldest first.
func (repo *repository) EmailLogs() []cleaning.EmailLog {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return append([]cleaning.EmailLog(nil), repo.db.emails...)
}

// Settings

func (repo *repository) GetSetting(_ context.Context, key string) (string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if val, ok := repo.db.settings[key]; ok {
		return val, nil
	}
	return "", cleaning.ErrSettingNotFound
}

func (repo *repository) SetSetting(_ context.Context, key, value string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.settings[key] = value
	return nil
}

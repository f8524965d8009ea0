// Package bulkentry drives the entry of one month's payments for many families at once.
package bulkentry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/simchatzion/ledger/core/cleaning"
)

type State int

const (
	Idle State = iota
	Loading
	Ready
	Submitting
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrBusy            = errors.New("another operation is in progress")
	ErrNotReady        = errors.New("families are not loaded")
	ErrUnknownFamily   = errors.New("unknown family")
	ErrHasPayment      = errors.New("family already has a payment for this month")
	ErrInvalidAmount   = errors.New("amount must be a non-negative number with at most 2 decimal places, below 10,000,000,000")
	ErrNothingToSubmit = errors.New("no selected family has an amount")
)

type (
	// Client fetches families and creates payments, cleaning.Service is one.
	Client interface {
		BulkFamilies(ctx context.Context, month cleaning.Month) (cleaning.BulkFamilies, error)
		CreateBulkPayments(ctx context.Context, req cleaning.BulkRequest) (cleaning.BulkResult, error)
	}

	// Row is a family in the entry grid. A blank amount is not Valid.
	Row struct {
		Family   cleaning.Family
		Selected bool
		Amount   decimal.NullDecimal
	}

	Summary struct {
		SelectedCount int             // selected rows with an amount > 0
		TotalAmount   decimal.Decimal // of those rows
		BlankCount    int             // selected rows left out of the batch: blank or zero amount
		OverCapCount  int
	}

	Result struct {
		cleaning.BulkResult
		Excluded []string // case ids of selected rows without an amount
	}

	// Orchestrator is safe for concurrent use. While a load or a submission is in flight,
	// every other operation returns ErrBusy.
	Orchestrator struct {
		client Client

		mu         sync.Mutex
		state      State
		month      cleaning.Month
		monthlyCap decimal.Decimal
		rows       []Row
		index      map[string]int
		result     *Result
	}
)

// Eligible rows have no payment for the month yet.
func (r Row) Eligible() bool { return !r.Family.HasPayment() }

// HasAmount is true for amounts > 0.
func (r Row) HasAmount() bool { return r.Amount.Valid && r.Amount.Decimal.IsPositive() }

func New(client Client) *Orchestrator {
	return &Orchestrator{client: client}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Month() cleaning.Month {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.month
}

func (o *Orchestrator) MonthlyCap() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.monthlyCap
}

// Rows returns a copy of the grid, in load order.
func (o *Orchestrator) Rows() []Row {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Row(nil), o.rows...)
}

// Result is the outcome of the last successful submission, nil before that.
func (o *Orchestrator) Result() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

func (o *Orchestrator) busy() bool {
	return o.state == Loading || o.state == Submitting
}

// Load fetches the active families for `month` and pre-selects those without a payment, at the monthly cap.
// It also serves as the refresh after a submission. A failed load leaves the orchestrator Idle.
func (o *Orchestrator) Load(ctx context.Context, month cleaning.Month) error {
	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return ErrBusy
	}
	o.state = Loading
	o.mu.Unlock()

	bf, err := o.client.BulkFamilies(ctx, month)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.reset()
		return errors.Wrap(err, "loading families")
	}

	o.month = bf.Month
	o.monthlyCap = bf.MonthlyCap
	o.rows = make([]Row, 0, len(bf.Families))
	o.index = make(map[string]int, len(bf.Families))
	o.result = nil
	for _, f := range bf.Families {
		row := Row{Family: f}
		if row.Eligible() {
			row.Selected = true
			row.Amount = decimal.NewNullDecimal(bf.MonthlyCap)
		}
		o.index[f.CaseID] = len(o.rows)
		o.rows = append(o.rows, row)
	}
	o.state = Ready
	return nil
}

// Reload refreshes the current month.
func (o *Orchestrator) Reload(ctx context.Context) error {
	return o.Load(ctx, o.Month())
}

func (o *Orchestrator) reset() {
	o.state = Idle
	o.month = cleaning.Month{}
	o.monthlyCap = decimal.Zero
	o.rows = nil
	o.index = nil
}

// editable returns the row of an eligible family, the caller holds the lock.
func (o *Orchestrator) editable(caseID string) (*Row, error) {
	switch {
	case o.busy():
		return nil, ErrBusy
	case o.state != Ready:
		return nil, ErrNotReady
	}
	i, ok := o.index[caseID]
	if !ok {
		return nil, ErrUnknownFamily
	}
	row := &o.rows[i]
	if !row.Eligible() {
		return nil, ErrHasPayment
	}
	return row, nil
}

// Select adds or removes a family from the batch; its amount is kept either way.
func (o *Orchestrator) Select(caseID string, selected bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	row, err := o.editable(caseID)
	if err != nil {
		return err
	}
	row.Selected = selected
	return nil
}

func (o *Orchestrator) Toggle(caseID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	row, err := o.editable(caseID)
	if err != nil {
		return err
	}
	row.Selected = !row.Selected
	return nil
}

func (o *Orchestrator) SelectAll() error   { return o.selectAll(true) }
func (o *Orchestrator) DeselectAll() error { return o.selectAll(false) }

func (o *Orchestrator) selectAll(selected bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.busy():
		return ErrBusy
	case o.state != Ready:
		return ErrNotReady
	}
	for i := range o.rows {
		if o.rows[i].Eligible() {
			o.rows[i].Selected = selected
		}
	}
	return nil
}

// SetAmount sets a family's amount from user input; blank input clears it.
// Amounts over the cap are accepted, the returned CapCheck flags them.
func (o *Orchestrator) SetAmount(caseID, raw string) (cleaning.CapCheck, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	row, err := o.editable(caseID)
	if err != nil {
		return cleaning.CapCheck{}, err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		row.Amount = decimal.NullDecimal{}
		return cleaning.CapCheck{}, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return cleaning.CapCheck{}, ErrInvalidAmount
	}
	// zero stays in the grid as blank
	if !amount.IsZero() && cleaning.ValidateAmount(amount) != nil {
		return cleaning.CapCheck{}, ErrInvalidAmount
	}
	row.Amount = decimal.NewNullDecimal(amount)
	return cleaning.EvaluateCap(amount, o.monthlyCap), nil
}

// Summary is recomputed from the current selection and amounts.
func (o *Orchestrator) Summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summary()
}

func (o *Orchestrator) summary() Summary {
	s := Summary{TotalAmount: decimal.Zero}
	for _, row := range o.rows {
		if !row.Selected || !row.Eligible() {
			continue
		}
		if !row.HasAmount() {
			s.BlankCount++
			continue
		}
		s.SelectedCount++
		s.TotalAmount = s.TotalAmount.Add(row.Amount.Decimal)
		if cleaning.EvaluateCap(row.Amount.Decimal, o.monthlyCap).OverCap {
			s.OverCapCount++
		}
	}
	return s
}

// Submit sends one batch with every selected family that has an amount > 0.
// Selected rows with a blank or zero amount are left out and listed in Result.Excluded.
// On failure the orchestrator stays Ready with the user's input intact.
func (o *Orchestrator) Submit(ctx context.Context) (Result, error) {
	o.mu.Lock()
	switch {
	case o.busy():
		o.mu.Unlock()
		return Result{}, ErrBusy
	case o.state != Ready:
		o.mu.Unlock()
		return Result{}, ErrNotReady
	}

	req := cleaning.BulkRequest{PaymentMonth: o.month, Payments: make([]cleaning.BulkItem, 0, len(o.rows))}
	excluded := make([]string, 0)
	for _, row := range o.rows {
		if !row.Selected || !row.Eligible() {
			continue
		}
		if !row.HasAmount() {
			excluded = append(excluded, row.Family.CaseID)
			continue
		}
		req.Payments = append(req.Payments, cleaning.BulkItem{CaseID: row.Family.CaseID, AmountILS: row.Amount.Decimal})
	}
	if len(req.Payments) == 0 {
		o.mu.Unlock()
		return Result{}, ErrNothingToSubmit
	}
	o.state = Submitting
	o.mu.Unlock()

	res, err := o.client.CreateBulkPayments(ctx, req)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.state = Ready
		return Result{}, errors.Wrap(err, "creating payments")
	}
	o.result = &Result{BulkResult: res, Excluded: excluded}
	o.state = Done
	return *o.result, nil
}

// Message is the success notification, naming the count and the total.
func (r Result) Message(lang string) string {
	if cleaning.NormalizeLang(lang) == cleaning.LangEnglish {
		return fmt.Sprintf("%d payments created, totaling ₪%s", r.Created, FormatILS(r.TotalAmount))
	}
	return fmt.Sprintf("נוצרו %d תשלומים בסך ₪%s", r.Created, FormatILS(r.TotalAmount))
}

// FormatILS formats an amount with thousands separators, i.e. "2,160" or "1,234.50".
func FormatILS(d decimal.Decimal) string {
	s := d.StringFixed(2)
	s = strings.TrimSuffix(s, ".00")

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

// Package reminder implements the monthly reminder email wizard:
// select recipients, edit the template, preview, then send.
package reminder

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/simchatzion/ledger/core/cleaning"
)

type Step int

const (
	SelectRecipients Step = iota
	EditTemplate
	Preview
	ConfirmSend
	Results
)

func (s Step) String() string {
	switch s {
	case SelectRecipients:
		return "select_recipients"
	case EditTemplate:
		return "edit_template"
	case Preview:
		return "preview"
	case ConfirmSend:
		return "confirm_send"
	case Results:
		return "results"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

var (
	ErrBusy            = errors.New("sending is in progress")
	ErrNotLoaded       = errors.New("recipients are not loaded")
	ErrUnknownCase     = errors.New("unknown case")
	ErrNoEmail         = errors.New("case has no contact email")
	ErrNoRecipients    = errors.New("select at least one recipient")
	ErrNotSelecting    = errors.New("recipients can only be changed on the first step")
	ErrFirstStep       = errors.New("already at the first step")
	ErrFlowFinished    = errors.New("emails were sent, the flow is finished")
	ErrInvalidLanguage = errors.New("language must be he or en")
)

type (
	// Client lists email statuses and sends reminders, cleaning.Service is one.
	Client interface {
		EmailStatus(ctx context.Context) ([]cleaning.FamilyEmailStatus, error)
		SendMonthlyEmails(ctx context.Context, req cleaning.SendRequest) (cleaning.SendResult, error)
	}

	Entry struct {
		cleaning.FamilyEmailStatus
		Selected bool
	}

	// Summary is the read-only preview of what will be sent.
	Summary struct {
		Recipients     int
		AlreadySent    int
		Language       string
		DefaultBody    bool
		SampleTo       string
		SampleSubject  string
		SampleBody     string
		RecipientNames []string
	}

	// Flow is one run of the wizard. Its state lives only in memory, dropping it discards everything.
	Flow struct {
		client Client
		now    func() time.Time

		mu      sync.Mutex
		step    Step
		loaded  bool
		sending bool
		entries []Entry
		index   map[string]int
		lang    string
		body    string
		result  *cleaning.SendResult
	}
)

// Eligible entries have a contact email.
func (e Entry) Eligible() bool { return e.HasEmail() }

// New starts a flow, `now` gives the month the preview is built for.
func New(client Client, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	return &Flow{client: client, now: now, lang: cleaning.LangHebrew}
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entry(nil), f.entries...)
}

// Template returns the chosen language and custom body, "" meaning the default template.
func (f *Flow) Template() (lang, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang, f.body
}

// Result is the outcome of the send, nil before it.
func (f *Flow) Result() *cleaning.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Load lists every active case and pre-selects those with an email that were not sent a reminder this month.
func (f *Flow) Load(ctx context.Context) error {
	f.mu.Lock()
	if f.sending {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.step != SelectRecipients {
		f.mu.Unlock()
		return errors.Errorf("cannot load recipients at step %s", f.step)
	}
	f.mu.Unlock()

	statuses, err := f.client.EmailStatus(ctx)
	if err != nil {
		return errors.Wrap(err, "loading email status")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make([]Entry, 0, len(statuses))
	f.index = make(map[string]int, len(statuses))
	for _, st := range statuses {
		e := Entry{FamilyEmailStatus: st}
		e.Selected = e.Eligible() && !st.SentThisMonth
		f.index[st.CaseID] = len(f.entries)
		f.entries = append(f.entries, e)
	}
	f.loaded = true
	return nil
}

// selectable returns the entry of a case with an email, the caller holds the lock.
func (f *Flow) selectable(caseID string) (*Entry, error) {
	switch {
	case f.sending:
		return nil, ErrBusy
	case f.step == Results:
		return nil, ErrFlowFinished
	case !f.loaded:
		return nil, ErrNotLoaded
	case f.step != SelectRecipients:
		return nil, ErrNotSelecting
	}
	i, ok := f.index[caseID]
	if !ok {
		return nil, ErrUnknownCase
	}
	e := &f.entries[i]
	if !e.Eligible() {
		return nil, ErrNoEmail
	}
	return e, nil
}

// Select includes or excludes a case, cases already sent this month can be forced in.
func (f *Flow) Select(caseID string, selected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, err := f.selectable(caseID)
	if err != nil {
		return err
	}
	e.Selected = selected
	return nil
}

func (f *Flow) Toggle(caseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, err := f.selectable(caseID)
	if err != nil {
		return err
	}
	e.Selected = !e.Selected
	return nil
}

func (f *Flow) SelectedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := f.counts()
	return n
}

// AlreadySentSelected counts the selected cases that already got this month's reminder, for a non-blocking warning.
func (f *Flow) AlreadySentSelected() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, n := f.counts()
	return n
}

func (f *Flow) counts() (selected, alreadySent int) {
	for _, e := range f.entries {
		if !e.Selected {
			continue
		}
		selected++
		if e.SentThisMonth {
			alreadySent++
		}
	}
	return
}

// SetTemplate sets the email language and custom body, an empty body selects the default template.
func (f *Flow) SetTemplate(lang, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.sending:
		return ErrBusy
	case f.step == Results:
		return ErrFlowFinished
	}
	switch lang {
	case "":
		lang = cleaning.LangHebrew
	case cleaning.LangHebrew, cleaning.LangEnglish:
	default:
		return ErrInvalidLanguage
	}
	f.lang, f.body = lang, body
	return nil
}

func (f *Flow) recipients() []cleaning.Recipient {
	rs := make([]cleaning.Recipient, 0, len(f.entries))
	for _, e := range f.entries {
		if !e.Selected {
			continue
		}
		rs = append(rs, cleaning.Recipient{
			CaseID:     e.CaseID,
			Email:      e.ContactEmail.String,
			FamilyName: e.FamilyName,
			ChildName:  e.ChildName,
		})
	}
	return rs
}

// Preview renders the email of the first selected recipient locally, nothing is sent.
func (f *Flow) Preview() (Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rs := f.recipients()
	selected, alreadySent := f.counts()
	s := Summary{
		Recipients:     selected,
		AlreadySent:    alreadySent,
		Language:       f.lang,
		DefaultBody:    f.body == "",
		RecipientNames: make([]string, 0, len(rs)),
	}
	for _, r := range rs {
		s.RecipientNames = append(s.RecipientNames, r.FamilyName)
	}
	if len(rs) == 0 {
		return s, nil
	}

	mr := cleaning.NewMonthlyRequest(rs[0], cleaning.MonthOf(f.now()), f.lang, f.body)
	msg := mr.Message(mail.Address{Name: mr.FamilyName, Address: rs[0].Email})
	if err := msg.Render(); err != nil {
		return s, errors.Wrap(err, "rendering preview")
	}
	s.SampleTo = rs[0].Email
	s.SampleSubject = msg.Subject
	s.SampleBody = msg.TextContent
	return s, nil
}

// Next moves one step forward. Leaving the first step needs a recipient, confirming sends the batch.
// A failed send stays on ConfirmSend so it can be retried.
func (f *Flow) Next(ctx context.Context) (Step, error) {
	f.mu.Lock()
	switch {
	case f.sending:
		f.mu.Unlock()
		return ConfirmSend, ErrBusy
	case f.step == Results:
		defer f.mu.Unlock()
		return f.step, ErrFlowFinished
	case f.step == SelectRecipients:
		defer f.mu.Unlock()
		if n, _ := f.counts(); n == 0 {
			return f.step, ErrNoRecipients
		}
		f.step = EditTemplate
		return f.step, nil
	case f.step != ConfirmSend:
		defer f.mu.Unlock()
		f.step++
		return f.step, nil
	}
	if n, _ := f.counts(); n == 0 {
		f.mu.Unlock()
		return f.step, ErrNoRecipients
	}

	req := cleaning.SendRequest{Recipients: f.recipients(), Language: f.lang, CustomBody: f.body}
	f.sending = true
	f.mu.Unlock()

	res, err := f.client.SendMonthlyEmails(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sending = false
	if err != nil {
		return f.step, errors.Wrap(err, "sending monthly emails")
	}
	f.result = &res
	f.step = Results
	return f.step, nil
}

// Back moves one step backward, except from the first step and from Results.
func (f *Flow) Back() (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.sending:
		return f.step, ErrBusy
	case f.step == Results:
		return f.step, ErrFlowFinished
	case f.step == SelectRecipients:
		return f.step, ErrFirstStep
	}
	f.step--
	return f.step, nil
}

// Done closes the flow, discarding its state. It reports whether any email was sent.
// A flow that is sending can't be closed.
func (f *Flow) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sending {
		return false
	}
	ok := f.result != nil && f.result.Sent > 0
	f.step = SelectRecipients
	f.loaded = false
	f.entries = nil
	f.index = nil
	f.lang, f.body = cleaning.LangHebrew, ""
	f.result = nil
	return ok
}

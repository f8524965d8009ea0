package cleaning

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/simchatzion/ledger/core"
)

const monthlyRequestTemplate = "monthly_request"

type (
	Recipient struct {
		CaseID     string `json:"case_id"`
		Email      string `json:"email"`
		FamilyName string `json:"family_name"`
		ChildName  string `json:"child_name"`
	}

	SendRequest struct {
		Recipients []Recipient `json:"recipients"`
		Language   string      `json:"language"`
		CustomBody string      `json:"custom_body,omitempty"` // empty: default template
	}

	SendError struct {
		CaseID string `json:"case_id"`
		Email  string `json:"email"`
		Error  string `json:"error"`
	}

	// SendResult reports a batch send; failed recipients are data, not an error.
	SendResult struct {
		Sent   int         `json:"sent"`
		Failed int         `json:"failed"`
		Errors []SendError `json:"errors"`
		Total  int         `json:"total"`
	}

	// MonthlyRequest is the data of the monthly receipts request email.
	MonthlyRequest struct {
		FamilyName string
		ChildName  string
		MonthName  string
		Year       int
		Lang       string
		Body       string
		Title      string
		Preheader  string
	}
)

// NewMonthlyRequest builds the monthly request for `r`; an empty customBody selects the default text.
func NewMonthlyRequest(r Recipient, month Month, lang, customBody string) MonthlyRequest {
	lang = NormalizeLang(lang)
	mr := MonthlyRequest{
		FamilyName: core.CleanString(r.FamilyName),
		ChildName:  core.CleanString(r.ChildName),
		MonthName:  month.Name(lang),
		Year:       month.Year,
		Lang:       lang,
		Body:       strings.TrimSpace(customBody),
	}
	if mr.Body == "" {
		mr.Body = defaultMonthlyRequestBody(mr)
	}
	if lang == LangEnglish {
		mr.Title = fmt.Sprintf("Monthly Request - %s %d", mr.MonthName, mr.Year)
		mr.Preheader = fmt.Sprintf("Monthly cleaning assistance request for %s %d", mr.MonthName, mr.Year)
	} else {
		mr.Title = fmt.Sprintf("בקשה חודשית לחודש %s %d", mr.MonthName, mr.Year)
		mr.Preheader = fmt.Sprintf("בקשת סיוע חודשית לחודש %s %d", mr.MonthName, mr.Year)
	}
	return mr
}

func (mr MonthlyRequest) Subject() string {
	if mr.Lang == LangEnglish {
		return fmt.Sprintf("Monthly Request - %s %d", mr.MonthName, mr.Year)
	}
	return fmt.Sprintf("בקשה חודשית - %s %d", mr.MonthName, mr.Year)
}

func (mr MonthlyRequest) Footer() string {
	if mr.Lang == LangEnglish {
		return "Simchat Zion - Sick Children Support Program"
	}
	return "שמחת ציון - תוכנית סיוע לילדים חולים"
}

// Message returns the email, not rendered yet.
func (mr MonthlyRequest) Message(to mail.Address) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      mr.Subject(),
		TemplateName: monthlyRequestTemplate,
		TemplateData: mr,
		Lang:         mr.Lang,
		Footer:       mr.Footer(),
	}
}

func defaultMonthlyRequestBody(mr MonthlyRequest) string {
	if mr.Lang == LangEnglish {
		return fmt.Sprintf(`Dear %s Family,

We hope this message finds you well.

As part of our monthly support for your child %s's care, we kindly request that you send us the receipts for cleaning services for the month of %s %d.

Please submit the following:
- Receipt(s) for cleaning services
- Any relevant documentation

Upon receiving the documents, we will process the payment as soon as possible.

If you have any questions or need assistance, please don't hesitate to contact us.

Wishing you and your family good health,

Simchat Zion Team`, mr.FamilyName, mr.ChildName, mr.MonthName, mr.Year)
	}

	return fmt.Sprintf(`משפחת %s היקרים,

אנו מקווים שהודעה זו מוצאת אתכם בבריאות טובה.

במסגרת הסיוע החודשי שלנו עבור הטיפול בילדכם %s, אנו מבקשים בזאת לשלוח אלינו את הקבלות עבור שירותי הניקיון לחודש %s %d.

אנא העבירו אלינו:
- קבלה/ות עבור שירותי ניקיון
- כל מסמך רלוונטי נוסף

עם קבלת המסמכים, נעבד את התשלום בהקדם האפשרי.

אם יש לכם שאלות או זקוקים לסיוע, אל תהססו לפנות אלינו.

מאחלים לכם ולמשפחתכם בריאות טובה,

צוות שמחת ציון`, mr.FamilyName, mr.ChildName, mr.MonthName, mr.Year)
}

// SentThisMonth reports whether `last` falls on or after the first day of now's month.
func SentThisMonth(last time.Time, now time.Time) bool {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return !last.IsZero() && !last.Before(monthStart)
}

// EmailStatus lists the active cases with the last time a monthly request was sent to them.
func (svc *service) EmailStatus(ctx context.Context) ([]FamilyEmailStatus, error) {
	cases, err := svc.repo.QueryCases(ctx, CaseFilter{
		Status:    CaseActive,
		Orderings: []core.DBOrdering{{Field: "family_name", Ascending: true}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying active cases")
	}
	statuses := make([]FamilyEmailStatus, 0, len(cases))
	if len(cases) == 0 {
		return statuses, nil
	}

	lastSent, err := svc.repo.LastEmailsSent(ctx, EmailTypeMonthlyRequest, caseIDs(cases)...)
	if err != nil {
		return nil, errors.Wrap(err, "querying email logs")
	}

	now := svc.now()
	for _, c := range cases {
		st := FamilyEmailStatus{
			CaseID:       c.ID,
			CaseNumber:   c.CaseNumber,
			FamilyName:   c.FamilyName,
			ChildName:    c.ChildName,
			ContactEmail: c.ContactEmail,
			ContactPhone: c.ContactPhone,
		}
		if last, ok := lastSent[c.ID]; ok {
			st.LastEmailSent = null.TimeFrom(last)
			st.SentThisMonth = SentThisMonth(last, now)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// SendMonthlyEmails sends the current month's request to each recipient and logs every attempt.
// Delivery failures are collected in SendResult, only invalid requests return an error.
func (svc *service) SendMonthlyEmails(ctx context.Context, req SendRequest) (SendResult, error) {
	if len(req.Recipients) == 0 {
		return SendResult{}, core.NewValidationError(ErrNoRecipients, core.FieldError{Field: "recipients", Error: "recipients array is required"})
	}
	for i, r := range req.Recipients {
		if core.CleanString(r.CaseID) == "" || core.CleanString(r.Email) == "" || core.CleanString(r.FamilyName) == "" {
			return SendResult{}, core.NewValidationError(nil, core.FieldError{
				Field: fmt.Sprintf("recipients[%d]", i),
				Error: "each recipient must have case_id, email and family_name",
			})
		}
	}

	month := MonthOf(svc.now())
	res := SendResult{Errors: []SendError{}, Total: len(req.Recipients)}
	for _, r := range req.Recipients {
		mr := NewMonthlyRequest(r, month, req.Language, req.CustomBody)
		err := svc.sendMonthlyRequest(ctx, r, mr)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, SendError{CaseID: r.CaseID, Email: r.Email, Error: err.Error()})
		} else {
			res.Sent++
		}
		svc.logEmail(ctx, r, mr.Subject(), err)
	}
	svc.recorder.EmailsSent(EmailTypeMonthlyRequest, res.Sent, res.Failed)
	return res, nil
}

func (svc *service) sendMonthlyRequest(ctx context.Context, r Recipient, mr MonthlyRequest) error {
	addr, err := mail.ParseAddress(core.CleanString(r.Email))
	if err != nil {
		return errors.Wrap(err, "invalid email address")
	}
	addr.Name = mr.FamilyName
	return svc.mailSvc.SendMessage(ctx, mr.Message(*addr))
}

// logEmail records a send attempt; a logging failure never fails the send.
func (svc *service) logEmail(ctx context.Context, r Recipient, subject string, sendErr error) {
	entry := EmailLog{
		ID:             svc.idProvider(),
		CaseID:         nullString(r.CaseID),
		EmailType:      EmailTypeMonthlyRequest,
		RecipientEmail: core.CleanString(r.Email, true /* lower */),
		Subject:        subject,
		Status:         EmailSent,
		SentAt:         svc.now().UTC(),
	}
	if sendErr != nil {
		entry.Status = EmailFailed
		entry.ErrorMessage = null.StringFrom(sendErr.Error())
	}
	if err := svc.repo.LogEmail(ctx, entry); err != nil {
		svc.logger.Error(fmt.Sprintf("logging email to %s: %v", entry.RecipientEmail, err), err,
			core.LogFields{"case_id": r.CaseID, "email_type": entry.EmailType})
	}
}

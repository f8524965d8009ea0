package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/simchatzion/ledger/core/reminder"
)

var readFileFunc = os.ReadFile // mockable

// sendReminders walks the reminder flow from the terminal: recipients, template, preview, confirmation.
func (cli *commandLine) sendReminders(lang, bodyPath string, cases []string, yes bool) error {
	var body string
	if bodyPath != "" {
		content, err := readFileFunc(bodyPath)
		if err != nil {
			return errors.Wrap(err, "reading email body")
		}
		body = string(content)
	}

	ctx := context.Background()
	f := reminder.New(cli.svc, cli.svc.Now)
	if err := f.Load(ctx); err != nil {
		return err
	}
	if len(cases) > 0 {
		for _, e := range f.Entries() {
			if e.Selected {
				if err := f.Select(e.CaseID, false); err != nil {
					return err
				}
			}
		}
		for _, caseID := range cases {
			if err := f.Select(strings.TrimSpace(caseID), true); err != nil {
				return errors.Wrapf(err, "case %s", caseID)
			}
		}
	}

	if f.SelectedCount() == 0 {
		cli.printf("every family with an email was already sent this month's request\n")
		return nil
	}
	if _, err := f.Next(ctx); err != nil { // template
		return err
	}
	if err := f.SetTemplate(lang, body); err != nil {
		return err
	}
	if _, err := f.Next(ctx); err != nil { // preview
		return err
	}

	summary, err := f.Preview()
	if err != nil {
		return err
	}
	cli.printf("To: %s\nSubject: %s\n\n%s\n\n", summary.SampleTo, summary.SampleSubject, summary.SampleBody)
	cli.printf("Recipients: %s\n", strings.Join(summary.RecipientNames, ", "))
	if summary.AlreadySent > 0 {
		cli.printf("warning: %d of them were already sent this month's request\n", summary.AlreadySent)
	}

	if _, err = f.Next(ctx); err != nil { // confirm
		return err
	}
	if err = cli.confirm(fmt.Sprintf("Send %s?", pluralize(summary.Recipients, "email")), yes); err != nil {
		return err
	}
	if _, err = f.Next(ctx); err != nil {
		return err
	}

	res := f.Result()
	cli.printf("%d sent, %d failed, out of %d\n", res.Sent, res.Failed, res.Total)
	for _, e := range res.Errors {
		cli.printf("  %s: %s\n", e.Email, e.Error)
	}
	if !f.Done() {
		return errors.New("no email was sent")
	}
	return nil
}

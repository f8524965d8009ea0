package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/simchatzion/ledger/core/bulkentry"
	"github.com/simchatzion/ledger/core/cleaning"
)

// bulkEntry records one month's payments: every family without a payment is entered at the monthly cap,
// unless an -amount overrides it or a -skip leaves it out.
func (cli *commandLine) bulkEntry(rawMonth string, amounts, skips []string, yes bool) error {
	month, err := cleaning.ParseMonth(rawMonth)
	if err != nil {
		return err
	}

	ctx := context.Background()
	o := bulkentry.New(cli.svc)
	if err = o.Load(ctx, month); err != nil {
		return err
	}

	for _, caseID := range skips {
		if err = o.Select(strings.TrimSpace(caseID), false); err != nil {
			return errors.Wrapf(err, "skip %s", caseID)
		}
	}
	for _, a := range amounts {
		caseID, raw, ok := strings.Cut(a, "=")
		if !ok {
			return errors.Errorf("invalid amount %q, expected CASE_ID=AMOUNT", a)
		}
		check, err := o.SetAmount(strings.TrimSpace(caseID), raw)
		if err != nil {
			return errors.Wrapf(err, "amount %s", caseID)
		}
		if check.OverCap {
			cli.printf("warning: %s is over the monthly cap of ₪%s\n", caseID, bulkentry.FormatILS(o.MonthlyCap()))
		}
	}

	cli.printRows(o)
	summary := o.Summary()
	if summary.BlankCount > 0 {
		cli.printf("%d selected families have no amount and will be left out\n", summary.BlankCount)
	}
	if summary.SelectedCount == 0 {
		return bulkentry.ErrNothingToSubmit
	}
	question := fmt.Sprintf("Create %s for %s, totaling ₪%s?",
		pluralize(summary.SelectedCount, "payment"), month.Label(cleaning.LangEnglish), bulkentry.FormatILS(summary.TotalAmount))
	if err = cli.confirm(question, yes); err != nil {
		return err
	}

	res, err := o.Submit(ctx)
	if err != nil {
		return err
	}
	cli.printf("%s\n", res.Message(cleaning.LangEnglish))
	for _, w := range res.Warnings {
		cli.printf("warning: %s\n", w)
	}
	for _, e := range res.Errors {
		cli.printf("error: %s\n", e)
	}
	return nil
}

func (cli *commandLine) printRows(o *bulkentry.Orchestrator) {
	for _, row := range o.Rows() {
		f := row.Family
		switch {
		case !row.Eligible():
			cli.printf("  #%-5d %-30s paid ₪%s\n", f.CaseNumber, f.FamilyName, bulkentry.FormatILS(f.ExistingPayment.AmountILS))
		case !row.Selected:
			cli.printf("  #%-5d %-30s skipped\n", f.CaseNumber, f.FamilyName)
		case !row.HasAmount():
			cli.printf("  #%-5d %-30s no amount\n", f.CaseNumber, f.FamilyName)
		default:
			cli.printf("  #%-5d %-30s ₪%s\n", f.CaseNumber, f.FamilyName, bulkentry.FormatILS(row.Amount.Decimal))
		}
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

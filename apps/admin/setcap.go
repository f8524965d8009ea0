package main

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/bulkentry"
)

func (cli *commandLine) setCap(raw string) error {
	amount, err := decimal.NewFromString(core.CleanString(raw))
	if err != nil || !amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be a positive number"})
	}
	if err := cli.svc.SetMonthlyCap(context.Background(), amount); err != nil {
		return err
	}
	cli.printf("monthly cap set to ₪%s\n", bulkentry.FormatILS(amount))
	return nil
}

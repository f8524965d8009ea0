package main

import (
	"context"
	"time"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
)

type caseArgs struct {
	family, child, email, phone, city, start string
}

// addCase opens an active cleaning case.
func (cli *commandLine) addCase(args caseArgs) error {
	nc := cleaning.NewCase{
		FamilyName:   args.family,
		ChildName:    args.child,
		ContactEmail: args.email,
		ContactPhone: args.phone,
		City:         args.city,
	}
	if start := core.CleanString(args.start); start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "start", Error: "must be a date, YYYY-MM-DD"})
		}
		nc.StartDate = t
	}

	c, err := cli.svc.CreateCase(context.Background(), nc)
	if err != nil {
		return err
	}
	cli.printf("case #%d opened for the %s family (%s)\n", c.CaseNumber, c.FamilyName, c.ID)
	return nil
}

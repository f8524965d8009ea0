package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/simchatzion/ledger/core/cleaning"
	"github.com/simchatzion/ledger/storage/database"
)

var (
	migrateFunc    = database.Migrate // mockable
	isTerminalFunc = term.IsTerminal  // mockable
	stdinFd        = int(os.Stdin.Fd())

	errHelp      = errors.New("help provided")
	errAborted   = errors.New("aborted")
	errNoConfirm = errors.New("not a terminal, pass -yes to confirm")
)

type commandLine struct {
	db  *sql.DB
	svc cleaning.Service
	in  io.Reader
	out io.Writer
}

// valuesFlag collects a repeatable flag.
type valuesFlag []string

func (f *valuesFlag) String() string { return strings.Join(*f, ",") }
func (f *valuesFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS] - run a migration command: up, up-by-one, up-to, down, down-to, redo, reset, status, version\n")
	cli.printf("  addcase -family NAME -child NAME [-email EMAIL] [-phone PHONE] [-city CITY] [-start YYYY-MM-DD] - open a cleaning case\n")
	cli.printf("  setcap -amount AMOUNT - set the monthly cap, in ILS\n")
	cli.printf("  bulkentry -month YYYY-MM [-amount CASE_ID=AMOUNT]... [-skip CASE_ID]... [-yes] - record a month's payments for every family\n")
	cli.printf("  sendreminders [-lang he|en] [-body FILE] [-case CASE_ID]... [-yes] - email the monthly receipts request\n")
}

// confirm asks a yes/no question on the terminal, `yes` skips it.
func (cli *commandLine) confirm(question string, yes bool) error {
	if yes {
		return nil
	}
	if !isTerminalFunc(stdinFd) {
		return errNoConfirm
	}
	cli.printf("%s [y/N] ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addCaseCmd := flag.NewFlagSet("addcase", flag.ContinueOnError)
	addCaseFamily := addCaseCmd.String("family", "", "The family name.")
	addCaseChild := addCaseCmd.String("child", "", "The sick child's name.")
	addCaseEmail := addCaseCmd.String("email", "", "The family's contact email, monthly requests are sent to it.")
	addCasePhone := addCaseCmd.String("phone", "", "The family's contact phone.")
	addCaseCity := addCaseCmd.String("city", "", "The family's city.")
	addCaseStart := addCaseCmd.String("start", "", "The start date, YYYY-MM-DD. Defaults to today.")

	setCapCmd := flag.NewFlagSet("setcap", flag.ContinueOnError)
	setCapAmount := setCapCmd.String("amount", "", "The monthly cap, in ILS.")

	bulkCmd := flag.NewFlagSet("bulkentry", flag.ContinueOnError)
	bulkMonth := bulkCmd.String("month", "", "The payment month, YYYY-MM.")
	bulkYes := bulkCmd.Bool("yes", false, "Do not ask for confirmation.")
	var bulkAmounts, bulkSkips valuesFlag
	bulkCmd.Var(&bulkAmounts, "amount", "CASE_ID=AMOUNT, overrides the monthly cap for a family; an empty amount leaves it out. Repeatable.")
	bulkCmd.Var(&bulkSkips, "skip", "CASE_ID of a family to leave out. Repeatable.")

	remindCmd := flag.NewFlagSet("sendreminders", flag.ContinueOnError)
	remindLang := remindCmd.String("lang", "", "The email language: he (default) or en.")
	remindBody := remindCmd.String("body", "", "A file with a custom email body. Defaults to the standard text.")
	remindYes := remindCmd.Bool("yes", false, "Do not ask for confirmation.")
	var remindCases valuesFlag
	remindCmd.Var(&remindCases, "case", "CASE_ID to email, even if already emailed this month. Repeatable; defaults to every family not emailed yet.")

	for _, fs := range []*flag.FlagSet{addCaseCmd, setCapCmd, bulkCmd, remindCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addcase":
		if err := addCaseCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addCaseFamily == "" || *addCaseChild == "" {
			addCaseCmd.Usage()
			return errHelp
		}
		return cli.addCase(caseArgs{
			family: *addCaseFamily,
			child:  *addCaseChild,
			email:  *addCaseEmail,
			phone:  *addCasePhone,
			city:   *addCaseCity,
			start:  *addCaseStart,
		})

	case "setcap":
		if err := setCapCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *setCapAmount == "" {
			setCapCmd.Usage()
			return errHelp
		}
		return cli.setCap(*setCapAmount)

	case "bulkentry":
		if err := bulkCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *bulkMonth == "" {
			bulkCmd.Usage()
			return errHelp
		}
		return cli.bulkEntry(*bulkMonth, bulkAmounts, bulkSkips, *bulkYes)

	case "sendreminders":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.sendReminders(*remindLang, *remindBody, remindCases, *remindYes)

	default:
		cli.printUsage()
		return errHelp
	}
}

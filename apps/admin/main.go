package main

import (
	"os"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
	emailsvc "github.com/simchatzion/ledger/services/email"
	logsvc "github.com/simchatzion/ledger/services/logger"
	"github.com/simchatzion/ledger/storage/database"
	sqlxrepos "github.com/simchatzion/ledger/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf, os.Stdout), conf, "admin")

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(logger)

	// start CLI
	cli := commandLine{
		db:  db.DB,
		svc: cleaning.NewService(sqlxrepos.NewRepository(db), mailSvc, conf, logger, nil),
		in:  os.Stdin,
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}

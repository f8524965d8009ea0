package schedulersvc

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
	"github.com/simchatzion/ledger/core/reminder"
	exportsvc "github.com/simchatzion/ledger/services/export"
)

const (
	digestTemplate = "missing_payments_digest"
	jobTimeout     = 10 * time.Minute
)

// Scheduler runs the monthly jobs: the reminder to every family on the 1st,
// and the missing payments digest to the secretaries after the 15th.
type Scheduler struct {
	cron     *cron.Cron
	svc      cleaning.Service
	mailSvc  core.EmailService
	conf     *core.Config
	logger   core.Logger
	recorder cleaning.Recorder
}

func New(
	svc cleaning.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	recorder cleaning.Recorder,
) *Scheduler {
	if recorder == nil {
		recorder = cleaning.NopRecorder()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(conf.Location())),
		svc:      svc,
		mailSvc:  mailSvc,
		conf:     conf,
		logger:   logger,
		recorder: recorder,
	}
}

// Start registers the jobs and starts the cron engine, it does nothing when reminders are disabled.
func (s *Scheduler) Start() error {
	if !s.conf.Reminders.Enabled {
		s.logger.Info("scheduler: reminders are disabled")
		return nil
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"monthly reminders", s.conf.Reminders.CronSpec, func(ctx context.Context) error {
			_, err := s.SendMonthlyReminders(ctx)
			return err
		}},
		{"missing payments digest", s.conf.Reminders.DigestCronSpec, s.SendMissingPaymentsDigest},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.run(job.name, job.run) }); err != nil {
			return errors.Wrapf(err, "adding %s job (%q)", job.name, job.spec)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler: started", core.LogFields{
		"reminders": s.conf.Reminders.CronSpec,
		"digest":    s.conf.Reminders.DigestCronSpec,
	})
	return nil
}

// Stop stops the engine, the returned context is done once running jobs complete.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.logger.Info(fmt.Sprintf("scheduler: running %s", name))
	if err := job(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("scheduler: %s: %v", name, err), err)
	}
}

// SendMonthlyReminders runs the reminder flow unattended: the pre-selected families
// (with an email, not reminded this month) get the default template.
func (s *Scheduler) SendMonthlyReminders(ctx context.Context) (cleaning.SendResult, error) {
	flow := reminder.New(s.svc, s.svc.Now)
	defer flow.Done()

	if err := flow.Load(ctx); err != nil {
		return cleaning.SendResult{}, err
	}
	if flow.SelectedCount() == 0 {
		s.logger.Info("scheduler: every family was already reminded this month")
		return cleaning.SendResult{}, nil
	}
	if err := flow.SetTemplate(s.conf.Reminders.Language, ""); err != nil {
		return cleaning.SendResult{}, err
	}
	for flow.Step() != reminder.Results {
		if _, err := flow.Next(ctx); err != nil {
			return cleaning.SendResult{}, err
		}
	}

	res := *flow.Result()
	s.logger.Info(fmt.Sprintf("scheduler: %d/%d monthly reminders sent", res.Sent, res.Total),
		core.LogFields{"failed": res.Failed})
	return res, nil
}

type digestData struct {
	Title    string
	Families []cleaning.Family
}

// SendMissingPaymentsDigest emails the current month's families without a payment to the secretaries,
// with the reconciliation sheet attached. Nothing is sent when no family is missing.
func (s *Scheduler) SendMissingPaymentsDigest(ctx context.Context) error {
	if len(s.conf.Reminders.SecretaryEmails) == 0 {
		s.logger.Warn("scheduler: no secretary emails configured, skipping digest")
		return nil
	}

	rep, err := s.svc.Reconcile(ctx, cleaning.Month{})
	if err != nil {
		return errors.Wrap(err, "reconciling current month")
	}
	if len(rep.MissingPayment) == 0 {
		s.logger.Info("scheduler: no missing payments, skipping digest")
		return nil
	}

	msg, err := s.digestMessage(rep)
	if err != nil {
		return err
	}

	var sent, failed int
	for _, to := range s.conf.Reminders.SecretaryEmails {
		addr, err := mail.ParseAddress(to)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("scheduler: invalid secretary email %q", to))
			failed++
			continue
		}
		m := *msg
		m.To = []mail.Address{*addr}
		if err = s.mailSvc.SendMessage(ctx, &m); err != nil {
			s.logger.Error(fmt.Sprintf("scheduler: sending digest to %s: %v", addr.Address, err), err)
			failed++
			continue
		}
		sent++
	}
	s.recorder.EmailsSent(cleaning.EmailTypeDigest, sent, failed)
	return nil
}

func (s *Scheduler) digestMessage(rep cleaning.ReconciliationReport) (*core.EmailMessage, error) {
	lang := cleaning.NormalizeLang(s.conf.Reminders.Language)
	label := rep.Month.Label(lang)

	subject := fmt.Sprintf("Missing payments - %s (%d)", label, len(rep.MissingPayment))
	if lang == cleaning.LangHebrew {
		subject = fmt.Sprintf("תשלומים חסרים - %s (%d)", label, len(rep.MissingPayment))
	}
	msg := &core.EmailMessage{
		Subject:      subject,
		TemplateName: digestTemplate,
		TemplateData: digestData{Title: subject, Families: rep.MissingPayment},
		Lang:         lang,
		Footer:       s.conf.AppName,
	}

	sheet, err := exportsvc.Reconciliation(rep, lang)
	if err != nil {
		return nil, errors.Wrap(err, "exporting reconciliation")
	}
	if err = msg.Attach(sheet, exportsvc.Filename(rep.Month), exportsvc.ContentTypeXLSX); err != nil {
		return nil, errors.Wrap(err, "attaching reconciliation")
	}
	return msg, nil
}

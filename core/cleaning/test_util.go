package cleaning

import (
	"time"

	"github.com/simchatzion/ledger/core"
)

// NewServiceMock returns a Service running on a fixed clock, for tests.
// A nil `now` means time.Now in UTC.
func NewServiceMock(repo Repository, mailSvc core.EmailService, logger core.Logger, now func() time.Time) Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	conf := core.NewTestConfig()
	return &service{
		repo:       repo,
		mailSvc:    mailSvc,
		conf:       conf,
		logger:     logger,
		recorder:   NopRecorder(),
		now:        now,
		idProvider: newID,
	}
}

package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
	emailsvc "github.com/simchatzion/ledger/services/email"
	logsvc "github.com/simchatzion/ledger/services/logger"
	sqlxrepos "github.com/simchatzion/ledger/storage/database/sqlx"
	"github.com/simchatzion/ledger/tests"
)

var (
	jan   = cleaning.NewMonth(2025, time.January)
	feb   = cleaning.NewMonth(2025, time.February)
	clock = time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
)

func setup(t *testing.T) (cleaning.Service, cleaning.Repository, *sqlx.DB) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewRepository(db)
	logger := logsvc.NewTestLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(core.NewTestConfig(), logger)
	return cleaning.NewServiceMock(repo, mailSvc, logger, func() time.Time { return clock }), repo, db
}

func TestRepository_cases(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	cohen := testutil.CreateCase(t, svc, "Cohen", "Dan", "cohen@test.il")
	levi := testutil.CreateCase(t, svc, "Levi", "Noa", "")
	assert.NotZero(t, cohen.CaseNumber)
	assert.Greater(t, levi.CaseNumber, cohen.CaseNumber)

	got, err := repo.GetCase(ctx, cohen.ID)
	require.NoError(t, err)
	assert.Equal(t, "cohen@test.il", got.ContactEmail.String)
	assert.False(t, got.EndDate.Valid)

	_, err = repo.GetCase(ctx, "lol")
	assert.ErrorIs(t, err, cleaning.ErrCaseNotFound)

	cases, err := repo.QueryCases(ctx, cleaning.CaseFilter{Search: "noa"})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, levi.ID, cases[0].ID)

	_, err = svc.CloseCase(ctx, levi.ID, cleaning.CloseCase{Reason: cleaning.EndReasonHealed, Notes: "recovered"})
	require.NoError(t, err)
	active, err := repo.QueryCases(ctx, cleaning.CaseFilter{Status: cleaning.CaseActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, cohen.ID, active[0].ID)

	history, err := repo.QueryCaseHistory(ctx, levi.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, null.StringFrom(string(cleaning.CaseInactive)), history[0].NewValue)
}

func TestRepository_payments(t *testing.T) {
	svc, repo, db := setup(t)
	ctx := context.Background()

	cohen := testutil.CreateCase(t, svc, "Cohen", "Dan", "")
	levi := testutil.CreateCase(t, svc, "Levi", "Noa", "")
	paid := testutil.CreatePayment(t, svc, cohen.ID, jan, 500)

	t.Run("one payment per case and month", func(t *testing.T) {
		_, err := svc.CreatePayment(ctx, cohen.ID, cleaning.PaymentInput{PaymentMonth: jan, AmountILS: decimal.NewFromInt(100)})
		var dup *cleaning.DuplicateMonthError
		require.True(t, errors.As(err, &dup), "error = %v", err)
		require.NotNil(t, dup.Existing)
		assert.Equal(t, paid.ID, dup.Existing.ID)
	})

	t.Run("bulk skips taken months", func(t *testing.T) {
		created, err := repo.CreatePayments(ctx, []cleaning.Payment{
			{ID: "4b1d6f4c-0a57-4d0e-9d0a-8f6f5e9c2a11", CaseID: cohen.ID, PaymentMonth: jan, AmountILS: decimal.NewFromInt(720), Status: cleaning.PaymentPending, CreatedAt: clock, UpdatedAt: clock},
			{ID: "7e3c2b8a-5d1f-4c6e-8a9b-0c1d2e3f4a5b", CaseID: levi.ID, PaymentMonth: jan, AmountILS: decimal.NewFromInt(720), Status: cleaning.PaymentPending, CreatedAt: clock, UpdatedAt: clock},
		})
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, levi.ID, created[0].CaseID)
		assert.True(t, created[0].PaymentMonth.Equal(jan))
	})

	t.Run("bulk reports malformed case ids per row", func(t *testing.T) {
		res, err := svc.CreateBulkPayments(ctx, cleaning.BulkRequest{
			PaymentMonth: feb,
			Payments: []cleaning.BulkItem{
				{CaseID: "abc", AmountILS: decimal.NewFromInt(720)},
				{CaseID: levi.ID, AmountILS: decimal.RequireFromString("0.001")},
			},
		})
		require.NoError(t, err)
		assert.Zero(t, res.Created)
		assert.Equal(t, []string{"Case abc not found", "Invalid amount for case " + levi.ID}, res.Errors)

		payments, err := repo.QueryPayments(ctx, cleaning.PaymentFilter{CaseIDs: []string{"abc", levi.ID}})
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, levi.ID, payments[0].CaseID)
	})

	t.Run("query by case and year", func(t *testing.T) {
		testutil.CreatePayment(t, svc, cohen.ID, feb, 600)
		payments, err := repo.QueryPayments(ctx, cleaning.PaymentFilter{CaseIDs: []string{cohen.ID}, Year: 2025})
		require.NoError(t, err)
		require.Len(t, payments, 2)
		assert.True(t, payments[0].PaymentMonth.Equal(feb), "ordered by month, latest first")
	})

	t.Run("only pending payments change", func(t *testing.T) {
		paid.AmountILS = decimal.NewFromInt(550)
		updated, err := repo.UpdatePayment(ctx, paid)
		require.NoError(t, err)
		assert.True(t, updated.AmountILS.Equal(decimal.NewFromInt(550)))

		_, err = db.ExecContext(ctx, `UPDATE payments SET status = 'transferred' WHERE id = $1`, paid.ID)
		require.NoError(t, err)
		_, err = repo.UpdatePayment(ctx, paid)
		assert.ErrorIs(t, err, cleaning.ErrNotPending)
		assert.ErrorIs(t, repo.DeletePayment(ctx, cohen.ID, paid.ID), cleaning.ErrNotPending)
	})
}

func TestRepository_emailsAndSettings(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	cohen := testutil.CreateCase(t, svc, "Cohen", "Dan", "cohen@test.il")
	for i, status := range []cleaning.EmailStatus{cleaning.EmailSent, cleaning.EmailFailed} {
		require.NoError(t, repo.LogEmail(ctx, cleaning.EmailLog{
			ID:             []string{"0f8fad5b-d9cb-469f-a165-70867728950e", "7c9e6679-7425-40de-944b-e07fc1f90ae7"}[i],
			CaseID:         null.StringFrom(cohen.ID),
			EmailType:      cleaning.EmailTypeMonthlyRequest,
			RecipientEmail: "cohen@test.il",
			Subject:        "Monthly Request - January 2025",
			Status:         status,
			SentAt:         clock.Add(time.Duration(i) * time.Hour),
		}))
	}
	last, err := repo.LastEmailsSent(ctx, cleaning.EmailTypeMonthlyRequest, cohen.ID)
	require.NoError(t, err)
	assert.True(t, last[cohen.ID].Equal(clock), "failed sends are ignored, got %s", last[cohen.ID])

	require.NoError(t, svc.SetMonthlyCap(ctx, decimal.NewFromInt(800)))
	monthlyCap, err := svc.MonthlyCap(ctx)
	require.NoError(t, err)
	assert.True(t, monthlyCap.Equal(decimal.NewFromInt(800)))

	_, err = repo.GetSetting(ctx, "lol")
	assert.ErrorIs(t, err, cleaning.ErrSettingNotFound)
}

package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/simchatzion/ledger/core/cleaning"
	"github.com/simchatzion/ledger/storage/database"
)

// TestDatabaseURLEnv names the variable holding the URL of a disposable PostgreSQL database.
const TestDatabaseURLEnv = "LEDGER_TEST_DATABASE_URL"

func CreateCase(t *testing.T, svc cleaning.Service, family, child, email string) cleaning.Case {
	t.Helper()
	c, err := svc.CreateCase(context.Background(), cleaning.NewCase{
		FamilyName:   family,
		ChildName:    child,
		ContactEmail: email,
		City:         "Jerusalem",
	})
	if err != nil {
		t.Fatalf("CreateCase() failed: %v", err)
	}
	return c
}

func CreatePayment(t *testing.T, svc cleaning.Service, caseID string, month cleaning.Month, amount int64) cleaning.Payment {
	t.Helper()
	res, err := svc.CreatePayment(context.Background(), caseID, cleaning.PaymentInput{
		PaymentMonth: month,
		AmountILS:    decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return res.Payment
}

// PrepareDB migrates a clean test database, the test is skipped when none is configured.
// Every ledger table is truncated when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv(TestDatabaseURLEnv)
	if url == "" {
		t.Skipf("%s is not set", TestDatabaseURLEnv)
	}

	db, err := database.OpenURL(url)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	ctx := context.Background()
	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	truncate := func() {
		if _, err := db.ExecContext(ctx, "TRUNCATE email_logs, case_history, payments, cases, system_settings CASCADE"); err != nil {
			t.Errorf("PrepareDB() cleanup failed: %v", err)
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		_ = db.Close()
	})
	return db
}

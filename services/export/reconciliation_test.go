package exportsvc

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/simchatzion/ledger/core/cleaning"
)

func report() cleaning.ReconciliationReport {
	month := cleaning.NewMonth(2025, time.January)
	paid := cleaning.Family{
		CaseID: "c1", CaseNumber: 1, FamilyName: "Cohen", ChildName: "Noa", City: null.StringFrom("Haifa"),
		ExistingPayment: &cleaning.Payment{
			ID: "p1", CaseID: "c1", PaymentMonth: month, AmountILS: decimal.NewFromInt(720), Status: cleaning.PaymentPending,
		},
	}
	missing := cleaning.Family{CaseID: "c2", CaseNumber: 2, FamilyName: "Levi", ChildName: "Dan"}
	rec := cleaning.Reconcile([]cleaning.Family{paid, missing}, month)
	ref := time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)
	return cleaning.ReconciliationReport{
		Reconciliation: rec,
		ReferenceDate:  ref,
		UrgentCount:    rec.UrgentCount(ref),
		MonthlyCap:     decimal.NewFromInt(720),
	}
}

func TestWriteReconciliation(t *testing.T) {
	tests := []struct {
		name      string
		lang      string
		sheet     string
		wantState string
		wantPaid  string
		wantRTL   bool
	}{
		{"english", "en", "January 2025", "Missing after the 15th", "Paid", false},
		{"hebrew", "he", "ינואר 2025", "חסר אחרי ה-15", "שולם", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, WriteReconciliation(buf, report(), tc.lang))

			f, err := excelize.OpenReader(buf)
			require.NoError(t, err)
			defer func() { _ = f.Close() }()

			assert.Equal(t, []string{tc.sheet}, f.GetSheetList())
			rows, err := f.GetRows(tc.sheet)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(rows), 4)

			// missing first
			assert.Equal(t, "2", rows[1][0])
			assert.Equal(t, "Levi", rows[1][1])
			assert.Equal(t, tc.wantState, rows[1][8])

			assert.Equal(t, "Cohen", rows[2][1])
			assert.Equal(t, "Haifa", rows[2][3])
			assert.Equal(t, "720", rows[2][6])
			assert.Equal(t, "pending", rows[2][7])
			assert.Equal(t, tc.wantPaid, rows[2][8])

			formula, err := f.GetCellFormula(tc.sheet, "G5")
			require.NoError(t, err)
			assert.Equal(t, "SUM(G2:G3)", formula)

			view, err := f.GetSheetView(tc.sheet, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.wantRTL, view.RightToLeft != nil && *view.RightToLeft)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "cleaning_reconciliation_2025_03.xlsx", Filename(cleaning.NewMonth(2025, time.March)))
}

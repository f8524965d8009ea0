package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simchatzion/ledger/core/cleaning"
	emailsvc "github.com/simchatzion/ledger/services/email"
	exportsvc "github.com/simchatzion/ledger/services/export"
)

func TestCleaningAPI_CreatePayment(t *testing.T) {
	app, svc, _ := setup(t)
	levi := createCase(t, svc, "Levi", "Moshe", "levi@test.il")
	existing := createPayment(t, svc, levi.ID, jan, 720)
	path := "/v1/cleaning-cases/" + levi.ID + "/payments"

	tests := []httpTest{
		{
			name:     "duplicate month",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"payment_month": "2025-01-15", "amount_ils": 500}`),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, map[string]interface{}{
				"error":            "כבר קיים תשלום לחודש ינואר 2025",
				"month":            "2025-01-01",
				"existing_payment": existing,
			}),
		},
		{
			name:     "duplicate month, english",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"payment_month": "2025-01", "amount_ils": 500}`),
			lang:     "en-US,en;q=0.9",
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, map[string]interface{}{
				"error":            "already has a payment for January 2025",
				"month":            "2025-01-01",
				"existing_payment": existing,
			}),
		},
		{
			name:     "missing month",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"amount_ils": 500}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"payment_month": "this field is required"}`),
		},
		{
			name:     "invalid month",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"payment_month": "2025-13", "amount_ils": 500}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"payment_month": "must be a month, i.e. YYYY-MM"}`),
		},
		{
			name:     "negative amount",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"payment_month": "2025-02", "amount_ils": -5}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"amount_ils": "must be a positive number"}`),
		},
		{
			name:     "zero amount",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"payment_month": "2025-02", "amount_ils": 0}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"amount_ils": "this field is required"}`),
		},
		{
			name:     "fraction of an agora",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"payment_month": "2025-02", "amount_ils": 0.001}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"amount_ils": "amount_ils must have at most 2 decimal places"}`),
		},
		{
			name:     "amount too large",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"payment_month": "2025-02", "amount_ils": 10000000000}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"amount_ils": "amount_ils must be less than 10,000,000,000"}`),
		},
		{
			name:     "unknown case",
			method:   http.MethodPost,
			path:     "/v1/cleaning-cases/nope/payments",
			body:     []byte(`{"payment_month": "2025-02", "amount_ils": 500}`),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "case not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, run(t, app, tt))
		})
	}

	t.Run("over the cap", func(t *testing.T) {
		rec := run(t, app, httpTest{
			method: http.MethodPost,
			path:   path,
			body:   []byte(`{"payment_month": "2025-02", "amount_ils": 850.5, "notes": "receipt #4"}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res cleaning.PaymentResult
		unmarchallObj(t, rec.Body.Bytes(), &res)
		assert.Equal(t, feb, res.Payment.PaymentMonth)
		assert.Equal(t, "850.5", res.Payment.AmountILS.String())
		assert.Equal(t, cleaning.PaymentPending, res.Payment.Status)
		assert.Equal(t, "receipt #4", res.Payment.Notes.String)
		assert.Equal(t, []string{"הסכום 850.5 ₪ עולה על התקרה 720 ₪"}, res.Warnings)
	})
}

func TestCleaningAPI_UpdateAndDeletePayment(t *testing.T) {
	app, svc, repo := setup(t)
	levi := createCase(t, svc, "Levi", "Moshe", "levi@test.il")
	janPayment := createPayment(t, svc, levi.ID, jan, 720)
	febPayment := createPayment(t, svc, levi.ID, feb, 720)
	transferred := createPayment(t, svc, levi.ID, cleaning.NewMonth(2024, 12), 720)
	require.NoError(t, repo.(statusSetter).SetPaymentStatus(context.Background(), transferred.ID, cleaning.PaymentTransferred))

	path := "/v1/cleaning-cases/" + levi.ID + "/payments"
	tests := []httpTest{
		{
			name:     "missing payment id",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"payment_month": "2025-01", "amount_ils": 600}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"paymentId": "paymentId is required"}`),
		},
		{
			name:     "onto a taken month",
			method:   http.MethodPut,
			path:     path + "?paymentId=" + febPayment.ID,
			body:     []byte(`{"payment_month": "2025-01", "amount_ils": 600}`),
			lang:     "en",
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, map[string]interface{}{
				"error":            "already has a payment for January 2025",
				"month":            "2025-01-01",
				"existing_payment": janPayment,
			}),
		},
		{
			name:     "not pending",
			method:   http.MethodPut,
			path:     path + "?paymentId=" + transferred.ID,
			body:     []byte(`{"payment_month": "2024-12", "amount_ils": 600}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "only pending payments can be modified"}),
		},
		{
			name:     "unknown payment",
			method:   http.MethodPut,
			path:     path + "?paymentId=nope",
			body:     []byte(`{"payment_month": "2025-03", "amount_ils": 600}`),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "payment not found"}),
		},
		{
			name:     "delete not pending",
			method:   http.MethodDelete,
			path:     path + "?paymentId=" + transferred.ID,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "only pending payments can be modified"}),
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     path + "?paymentId=" + febPayment.ID,
			wantCode: http.StatusOK,
			wantData: []byte(`{"success": true}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, run(t, app, tt))
		})
	}

	t.Run("same month", func(t *testing.T) {
		rec := run(t, app, httpTest{
			method: http.MethodPut,
			path:   path + "?paymentId=" + janPayment.ID,
			body:   []byte(`{"payment_month": "2025-01", "amount_ils": 600, "notes": "corrected"}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res cleaning.PaymentResult
		unmarchallObj(t, rec.Body.Bytes(), &res)
		assert.Equal(t, janPayment.ID, res.Payment.ID)
		assert.Equal(t, "600", res.Payment.AmountILS.String())
		assert.Empty(t, res.Warnings)
	})

	t.Run("list", func(t *testing.T) {
		rec := run(t, app, httpTest{method: http.MethodGet, path: path + "?year=2025"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var list cleaning.PaymentList
		unmarchallObj(t, rec.Body.Bytes(), &list)
		require.Len(t, list.Payments, 1)
		assert.Equal(t, "600", list.Summary.TotalAmount.String())
		assert.Equal(t, "600", list.Summary.PendingAmount.String())
		assert.Equal(t, "720", list.Summary.MonthlyCap.String())

		rec = run(t, app, httpTest{method: http.MethodGet, path: path})
		unmarchallObj(t, rec.Body.Bytes(), &list)
		assert.Len(t, list.Payments, 2)
		assert.Equal(t, "720", list.Summary.TransferredAmount.String())

		tt := httpTest{
			method:   http.MethodGet,
			path:     path + "?year=last",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"year": "invalid value"}`),
		}
		checkCodeAndData(t, tt, run(t, app, tt))
	})
}

func TestCleaningAPI_BulkPayments(t *testing.T) {
	app, svc, _ := setup(t)
	cohen := createCase(t, svc, "Cohen", "Noa", "cohen@test.il")
	levi := createCase(t, svc, "Levi", "Moshe", "levi@test.il")
	paid := createCase(t, svc, "Mizrahi", "Dana", "")
	createPayment(t, svc, paid.ID, jan, 720)

	t.Run("families", func(t *testing.T) {
		rec := run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases/bulk-payments?month=2025-01"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res struct {
			Families []struct {
				ID         string `json:"id"`
				HasPayment bool   `json:"has_payment"`
			} `json:"families"`
			Month      string  `json:"month"`
			MonthlyCap float64 `json:"monthlyCap"`
		}
		unmarchallObj(t, rec.Body.Bytes(), &res)
		assert.Equal(t, "2025-01-01", res.Month)
		assert.Equal(t, 720.0, res.MonthlyCap)
		require.Len(t, res.Families, 3)
		for _, f := range res.Families {
			assert.Equal(t, f.ID == paid.ID, f.HasPayment, f.ID)
		}
	})

	tests := []httpTest{
		{
			name:     "invalid month",
			method:   http.MethodGet,
			path:     "/v1/cleaning-cases/bulk-payments?month=someday",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"month": "invalid value"}`),
		},
		{
			name:     "no payments",
			method:   http.MethodPost,
			path:     "/v1/cleaning-cases/bulk-payments",
			body:     []byte(`{"payment_month": "2025-01"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"payments": "this field is required"}`),
		},
		{
			name:     "missing case id",
			method:   http.MethodPost,
			path:     "/v1/cleaning-cases/bulk-payments",
			body:     []byte(`{"payment_month": "2025-01", "payments": [{"amount_ils": 720}]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"case_id": "this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, run(t, app, tt))
		})
	}

	t.Run("create", func(t *testing.T) {
		body := fmt.Sprintf(`{"payment_month": "2025-01", "payments": [
			{"case_id": %q, "amount_ils": 720},
			{"case_id": %q, "amount_ils": 900},
			{"case_id": %q, "amount_ils": 720},
			{"case_id": "nope", "amount_ils": 720}
		]}`, cohen.ID, levi.ID, paid.ID)
		rec := run(t, app, httpTest{method: http.MethodPost, path: "/v1/cleaning-cases/bulk-payments", body: []byte(body)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res cleaning.BulkResult
		unmarchallObj(t, rec.Body.Bytes(), &res)
		assert.Equal(t, 2, res.Created)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, "1620", res.TotalAmount.String())
		assert.Equal(t, []string{"Case nope not found"}, res.Errors)
		assert.Equal(t, []string{"1 תשלומים עולים על התקרה של 720 ₪"}, res.Warnings)
		assert.Len(t, res.Payments, 2)
	})

	t.Run("malformed ids and amounts are reported per row", func(t *testing.T) {
		mizrahi := createCase(t, svc, "Mizrahi", "Avi", "")
		body := fmt.Sprintf(`{"payment_month": "2025-02", "payments": [
			{"case_id": "abc", "amount_ils": 720},
			{"case_id": %q, "amount_ils": 0.001},
			{"case_id": %q, "amount_ils": 700}
		]}`, mizrahi.ID, cohen.ID)
		rec := run(t, app, httpTest{method: http.MethodPost, path: "/v1/cleaning-cases/bulk-payments", body: []byte(body)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res cleaning.BulkResult
		unmarchallObj(t, rec.Body.Bytes(), &res)
		assert.Equal(t, 1, res.Created)
		assert.Equal(t, []string{"Case abc not found", "Invalid amount for case " + mizrahi.ID}, res.Errors)
		assert.Empty(t, res.Warnings)
	})
}

func TestCleaningAPI_Reconciliation(t *testing.T) {
	app, svc, _ := setup(t)
	cohen := createCase(t, svc, "Cohen", "Noa", "cohen@test.il")
	levi := createCase(t, svc, "Levi", "Moshe", "levi@test.il")
	createPayment(t, svc, cohen.ID, jan, 720)

	rec := run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases/reconciliation?month=2025-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep struct {
		Month          string                `json:"month"`
		HasPayment     []struct{ ID string } `json:"has_payment"`
		MissingPayment []struct{ ID string } `json:"missing_payment"`
		UrgentCount    int                   `json:"urgent_count"`
	}
	unmarchallObj(t, rec.Body.Bytes(), &rep)
	assert.Equal(t, "2025-01-01", rep.Month)
	require.Len(t, rep.HasPayment, 1)
	assert.Equal(t, cohen.ID, rep.HasPayment[0].ID)
	require.Len(t, rep.MissingPayment, 1)
	assert.Equal(t, levi.ID, rep.MissingPayment[0].ID)
	assert.Equal(t, 1, rep.UrgentCount)

	// past months are never urgent
	rec = run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases/reconciliation?month=2024-12"})
	unmarchallObj(t, rec.Body.Bytes(), &rep)
	assert.Len(t, rep.MissingPayment, 2)
	assert.Zero(t, rep.UrgentCount)

	t.Run("export", func(t *testing.T) {
		rec := run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases/reconciliation/export?month=2025-01", lang: "en"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, exportsvc.ContentTypeXLSX, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "cleaning_reconciliation_2025_01.xlsx")
		assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
	})
}

func TestCleaningAPI_Cases(t *testing.T) {
	app, svc, _ := setup(t)
	cohen := createCase(t, svc, "Cohen", "Noa", "cohen@test.il")
	levi := createCase(t, svc, "Levi", "Moshe", "levi@test.il")
	createPayment(t, svc, cohen.ID, jan, 720)
	createPayment(t, svc, levi.ID, feb, 720)

	t.Run("list", func(t *testing.T) {
		rec := run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases?ordering=family_name"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var cases []cleaning.CaseOverview
		unmarchallObj(t, rec.Body.Bytes(), &cases)
		require.Len(t, cases, 2)
		assert.Equal(t, cohen.ID, cases[0].ID)
		assert.Equal(t, cleaning.BadgePaid, cases[0].PaymentBadge)
		assert.False(t, cases[0].Urgent)
		assert.Equal(t, levi.ID, cases[1].ID)
		assert.Equal(t, cleaning.BadgeMissingAfter15th, cases[1].PaymentBadge)
		assert.True(t, cases[1].Urgent)

		rec = run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases?search=mosh"})
		unmarchallObj(t, rec.Body.Bytes(), &cases)
		require.Len(t, cases, 1)
		assert.Equal(t, levi.ID, cases[0].ID)
	})

	t.Run("create", func(t *testing.T) {
		tt := httpTest{
			method:   http.MethodPost,
			path:     "/v1/cleaning-cases",
			body:     []byte(`{"family_name": "Friedman", "contact_email": "not an email"}`),
			wantCode: http.StatusBadRequest,
		}
		rec := run(t, app, tt)
		checkCodeAndData(t, tt, rec)
		var fields map[string]string
		unmarchallObj(t, rec.Body.Bytes(), &fields)
		assert.Equal(t, "this field is required", fields["child_name"])
		assert.Contains(t, fields, "contact_email")

		rec = run(t, app, httpTest{
			method: http.MethodPost,
			path:   "/v1/cleaning-cases",
			body:   []byte(`{"family_name": "Friedman", "child_name": "Avi", "start_date": "2024-11-03"}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var c cleaning.Case
		unmarchallObj(t, rec.Body.Bytes(), &c)
		assert.Equal(t, cleaning.CaseActive, c.Status)
		assert.Equal(t, "2024-11-03", c.StartDate.Format("2006-01-02"))
	})

	path := "/v1/cleaning-cases/" + levi.ID
	tests := []httpTest{
		{
			name:     "invalid status filter",
			method:   http.MethodGet,
			path:     "/v1/cleaning-cases?status=archived",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"status": "must be one of: active, inactive"}`),
		},
		{
			name:     "unknown case",
			method:   http.MethodGet,
			path:     "/v1/cleaning-cases/nope",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "case not found"}),
		},
		{
			name:     "reopen active case",
			method:   http.MethodPost,
			path:     path + "/reopen",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "case is already active"}),
		},
		{
			name:     "close without reason",
			method:   http.MethodPost,
			path:     path + "/close",
			body:     []byte(`{"notes": "moved abroad"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"reason": "this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, run(t, app, tt))
		})
	}

	t.Run("close and reopen", func(t *testing.T) {
		rec := run(t, app, httpTest{method: http.MethodPost, path: path + "/close", body: []byte(`{"reason": "healed"}`), lang: "en"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res cleaning.CloseResult
		unmarchallObj(t, rec.Body.Bytes(), &res)
		assert.Equal(t, cleaning.CaseInactive, res.Case.Status)
		assert.Equal(t, "healed", res.Case.EndReason.String)
		assert.Len(t, res.PendingPayments, 1)
		assert.Equal(t, []string{"1 pending payments will remain in the transfers queue"}, res.Warnings)

		tt := httpTest{
			method:   http.MethodPost,
			path:     path + "/close",
			body:     []byte(`{"reason": "other"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "case is already closed"}),
		}
		checkCodeAndData(t, tt, run(t, app, tt))

		rec = run(t, app, httpTest{method: http.MethodPost, path: path + "/reopen"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = run(t, app, httpTest{method: http.MethodGet, path: path + "/history"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var history []cleaning.HistoryEntry
		unmarchallObj(t, rec.Body.Bytes(), &history)
		assert.Len(t, history, 2)
	})
}

func TestCleaningAPI_Emails(t *testing.T) {
	app, svc, _ := setup(t)
	cohen := createCase(t, svc, "Cohen", "Noa", "cohen@test.il")
	bouncing := createCase(t, svc, "Levi", "Moshe", bouncingEmail)

	body := fmt.Sprintf(`{"language": "en", "recipients": [
		{"case_id": %q, "email": "cohen@test.il", "family_name": "Cohen", "child_name": "Noa"},
		{"case_id": %q, "email": %q, "family_name": "Levi", "child_name": "Moshe"}
	]}`, cohen.ID, bouncing.ID, bouncingEmail)

	tests := []httpTest{
		{
			name:     "no recipients",
			method:   http.MethodPost,
			path:     "/v1/cleaning-cases/send-monthly-emails",
			body:     []byte(`{"language": "he", "recipients": []}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"recipients": "recipients array is required"}`),
		},
		{
			name:     "unsupported language",
			method:   http.MethodPost,
			path:     "/v1/cleaning-cases/send-monthly-emails",
			body:     []byte(`{"language": "fr", "recipients": []}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"language": "must be one of: he, en"}`),
		},
		{
			name:     "partial failure",
			method:   http.MethodPost,
			path:     "/v1/cleaning-cases/send-monthly-emails",
			body:     []byte(body),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, cleaning.SendResult{
				Sent:   1,
				Failed: 1,
				Errors: []cleaning.SendError{{CaseID: bouncing.ID, Email: bouncingEmail, Error: "mailbox unavailable: " + bouncingEmail}},
				Total:  2,
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, run(t, app, tt))
		})
	}

	msgs := emailsvc.SentTo("cohen@test.il")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "Monthly Request - January 2025")

	rec := run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases/email-status"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var statuses []cleaning.FamilyEmailStatus
	unmarchallObj(t, rec.Body.Bytes(), &statuses)
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.Equal(t, st.CaseID == cohen.ID, st.SentThisMonth, st.FamilyName)
	}
}

func TestSettingsAPI(t *testing.T) {
	app, _, _ := setup(t)

	tests := []httpTest{
		{
			name:     "default cap",
			method:   http.MethodGet,
			path:     "/v1/settings/monthly-cap",
			wantCode: http.StatusOK,
			wantData: []byte(`{"monthlyCap": 720}`),
		},
		{
			name:     "zero",
			method:   http.MethodPut,
			path:     "/v1/settings/monthly-cap",
			body:     []byte(`{"monthlyCap": 0}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"monthlyCap": "this field is required"}`),
		},
		{
			name:     "negative",
			method:   http.MethodPut,
			path:     "/v1/settings/monthly-cap",
			body:     []byte(`{"monthlyCap": -720}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"monthlyCap": "must be a positive number"}`),
		},
		{
			name:     "update",
			method:   http.MethodPut,
			path:     "/v1/settings/monthly-cap",
			body:     []byte(`{"monthlyCap": 900}`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"monthlyCap": 900}`),
		},
		{
			name:     "updated cap",
			method:   http.MethodGet,
			path:     "/v1/settings/monthly-cap",
			wantCode: http.StatusOK,
			wantData: []byte(`{"monthlyCap": 900}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, run(t, app, tt))
		})
	}
}

func TestMetrics(t *testing.T) {
	app, svc, _ := setup(t)
	c := createCase(t, svc, "Cohen", "Noa", "cohen@test.il")
	run(t, app, httpTest{method: http.MethodGet, path: "/v1/cleaning-cases/" + c.ID})

	rec := run(t, app, httpTest{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/v1/cleaning-cases/:id"`)
}

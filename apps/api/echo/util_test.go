package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	echoapi "github.com/simchatzion/ledger/apps/api/echo"
	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
	emailsvc "github.com/simchatzion/ledger/services/email"
	logsvc "github.com/simchatzion/ledger/services/logger"
	metricsvc "github.com/simchatzion/ledger/services/metrics"
	inmemdb "github.com/simchatzion/ledger/storage/database/inmem"
)

var (
	jan = cleaning.NewMonth(2025, time.January)
	feb = cleaning.NewMonth(2025, time.February)

	// the 20th: missing payments for January are urgent
	clock = time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)

	bouncingEmail = "bounce@test.il"
)

type statusSetter interface {
	SetPaymentStatus(ctx context.Context, id string, status cleaning.PaymentStatus) error
}

func setup(t *testing.T) (*echoapi.Server, cleaning.Service, cleaning.Repository) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := inmemdb.NewRepository(db)

	conf := core.NewTestConfig()
	logger := logsvc.NewTestLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger, bouncingEmail)
	emailsvc.ResetSentMessages()
	svc := cleaning.NewServiceMock(repo, mailSvc, logger, func() time.Time { return clock })

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	cleaning.InitValidators(validate, translator)

	app := echoapi.NewServer(conf, logger, &echoapi.Deps{
		CleaningSvc: svc,
		Recorder:    metricsvc.NewRecorder(),
		Validate:    validate,
		Translator:  translator,
	})
	return app, svc, repo
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	lang     string
	wantCode int
	wantData []byte
}

func newRequest(method, path, lang string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func run(t *testing.T, app http.Handler, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newRequest(tt.method, tt.path, tt.lang, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func createCase(t *testing.T, svc cleaning.Service, family, child, email string) cleaning.Case {
	c, err := svc.CreateCase(context.Background(), cleaning.NewCase{FamilyName: family, ChildName: child, ContactEmail: email, City: "Jerusalem"})
	if err != nil {
		t.Fatalf("createCase() failed: %v", err)
	}
	return c
}

func createPayment(t *testing.T, svc cleaning.Service, caseID string, month cleaning.Month, amount int64) cleaning.Payment {
	res, err := svc.CreatePayment(context.Background(), caseID, cleaning.PaymentInput{PaymentMonth: month, AmountILS: decimal.NewFromInt(amount)})
	if err != nil {
		t.Fatalf("createPayment() failed: %v", err)
	}
	return res.Payment
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarchallObj() failed: %v; data %s", err, data)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

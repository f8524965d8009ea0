package echoapi

import (
	"net/http"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
	exportsvc "github.com/simchatzion/ledger/services/export"
)

type (
	SuccessResponse struct {
		Success bool `json:"success"`
	}

	NewCaseRequest struct {
		FamilyName   string `json:"family_name" validate:"required"`
		ChildName    string `json:"child_name" validate:"required"`
		ContactEmail string `json:"contact_email" validate:"omitempty,email"`
		ContactPhone string `json:"contact_phone"`
		City         string `json:"city"`
		StartDate    string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	}

	CloseCaseRequest struct {
		Reason string `json:"reason" validate:"required,oneof=healed deceased other"`
		Notes  string `json:"notes"`
	}

	PaymentRequest struct {
		PaymentMonth string          `json:"payment_month" validate:"required,month"`
		AmountILS    decimal.Decimal `json:"amount_ils" validate:"required,finite,positive"`
		Notes        string          `json:"notes"`
	}

	// BulkPaymentRequest leaves amounts to the service: invalid ones are reported per case.
	BulkPaymentRequest struct {
		PaymentMonth string `json:"payment_month" validate:"required,month"`
		Payments     []struct {
			CaseID    string          `json:"case_id" validate:"required"`
			AmountILS decimal.Decimal `json:"amount_ils"`
			Notes     string          `json:"notes"`
		} `json:"payments" validate:"required,min=1,dive"`
	}

	SendEmailsRequest struct {
		Recipients []cleaning.Recipient `json:"recipients"`
		Language   string               `json:"language" validate:"langcode"`
		CustomBody string               `json:"custom_body"`
	}
)

func (r NewCaseRequest) toNewCase() cleaning.NewCase {
	nc := cleaning.NewCase{
		FamilyName:   r.FamilyName,
		ChildName:    r.ChildName,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		City:         r.City,
	}
	if r.StartDate != "" {
		nc.StartDate, _ = time.Parse("2006-01-02", r.StartDate) // validated
	}
	return nc
}

func (r PaymentRequest) toInput() cleaning.PaymentInput {
	month, _ := cleaning.ParseMonth(r.PaymentMonth) // validated
	return cleaning.PaymentInput{PaymentMonth: month, AmountILS: r.AmountILS, Notes: r.Notes}
}

func (r BulkPaymentRequest) toBulkRequest() cleaning.BulkRequest {
	month, _ := cleaning.ParseMonth(r.PaymentMonth) // validated
	req := cleaning.BulkRequest{PaymentMonth: month, Payments: make([]cleaning.BulkItem, 0, len(r.Payments))}
	for _, p := range r.Payments {
		req.Payments = append(req.Payments, cleaning.BulkItem{CaseID: p.CaseID, AmountILS: p.AmountILS, Notes: p.Notes})
	}
	return req
}

type cleaningApi struct {
	svc        cleaning.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerCleaningAPI(
	g *echo.Group,
	svc cleaning.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := cleaningApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	cg := g.Group("/cleaning-cases")
	cg.GET("", api.query)
	cg.POST("", api.create)

	cg.GET("/bulk-payments", api.bulkFamilies)
	cg.POST("/bulk-payments", api.createBulkPayments)
	cg.GET("/reconciliation", api.reconcile)
	cg.GET("/reconciliation/export", api.exportReconciliation)
	cg.GET("/email-status", api.emailStatus)
	cg.POST("/send-monthly-emails", api.sendMonthlyEmails)

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.GET("/history", api.history)
	dg.POST("/close", api.close)
	dg.POST("/reopen", api.reopen)
	dg.GET("/payments", api.listPayments)
	dg.POST("/payments", api.createPayment)
	dg.PUT("/payments", api.updatePayment)
	dg.DELETE("/payments", api.deletePayment)
}

// Cases

func (api *cleaningApi) query(ctx echo.Context) error {
	var filter cleaning.CaseFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to CaseFilter")
	}
	switch filter.Status {
	case "", cleaning.CaseActive, cleaning.CaseInactive:
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be one of: active, inactive"})
	}
	var ord Ordering
	ord.Bind(ctx)
	filter.Orderings = ord.Orderings

	cases, err := api.svc.ListCases(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing cases")
	}
	return ctx.JSON(http.StatusOK, cases)
}

func (api *cleaningApi) create(ctx echo.Context) error {
	var data NewCaseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCaseRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	c, err := api.svc.CreateCase(ctx.Request().Context(), data.toNewCase())
	if err != nil {
		return errors.Wrap(err, "creating case")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *cleaningApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetCase(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting case")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *cleaningApi) history(ctx echo.Context) error {
	entries, err := api.svc.CaseHistory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting case history")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *cleaningApi) close(ctx echo.Context) error {
	var data CloseCaseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CloseCaseRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.CloseCase(ctx.Request().Context(), ctx.Param("id"), cleaning.CloseCase{
		Reason: cleaning.EndReason(data.Reason),
		Notes:  data.Notes,
	})
	if err != nil {
		return errors.Wrap(err, "closing case")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *cleaningApi) reopen(ctx echo.Context) error {
	c, err := api.svc.ReopenCase(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reopening case")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Payments

func (api *cleaningApi) listPayments(ctx echo.Context) error {
	var q YearQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	list, err := api.svc.ListPayments(ctx.Request().Context(), ctx.Param("id"), q.Year)
	if err != nil {
		return errors.Wrap(err, "listing payments")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *cleaningApi) bindPayment(ctx echo.Context) (cleaning.PaymentInput, error) {
	var data PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return cleaning.PaymentInput{}, errors.Wrap(err, "binding to PaymentRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return cleaning.PaymentInput{}, err
	}
	return data.toInput(), nil
}

func (api *cleaningApi) createPayment(ctx echo.Context) error {
	in, err := api.bindPayment(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.CreatePayment(ctx.Request().Context(), ctx.Param("id"), in)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *cleaningApi) updatePayment(ctx echo.Context) error {
	paymentID, err := paymentIDParam(ctx)
	if err != nil {
		return err
	}
	in, err := api.bindPayment(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.UpdatePayment(ctx.Request().Context(), ctx.Param("id"), paymentID, in)
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *cleaningApi) deletePayment(ctx echo.Context) error {
	paymentID, err := paymentIDParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePayment(ctx.Request().Context(), ctx.Param("id"), paymentID); err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Bulk entry & reconciliation

func (api *cleaningApi) bulkFamilies(ctx echo.Context) error {
	var q MonthQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	families, err := api.svc.BulkFamilies(ctx.Request().Context(), q.Month)
	if err != nil {
		return errors.Wrap(err, "listing bulk families")
	}
	return ctx.JSON(http.StatusOK, families)
}

func (api *cleaningApi) createBulkPayments(ctx echo.Context) error {
	var data BulkPaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkPaymentRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.CreateBulkPayments(ctx.Request().Context(), data.toBulkRequest())
	if err != nil {
		return errors.Wrap(err, "creating bulk payments")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *cleaningApi) reconcile(ctx echo.Context) error {
	var q MonthQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	rep, err := api.svc.Reconcile(ctx.Request().Context(), q.Month)
	if err != nil {
		return errors.Wrap(err, "reconciling")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *cleaningApi) exportReconciliation(ctx echo.Context) error {
	var q MonthQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	rep, err := api.svc.Reconcile(reqCtx, q.Month)
	if err != nil {
		return errors.Wrap(err, "reconciling")
	}
	sheet, err := exportsvc.Reconciliation(rep, cleaning.LangFrom(reqCtx))
	if err != nil {
		return errors.Wrap(err, "exporting reconciliation")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportsvc.Filename(rep.Month)+`"`)
	return ctx.Stream(http.StatusOK, exportsvc.ContentTypeXLSX, sheet)
}

// Emails

func (api *cleaningApi) emailStatus(ctx echo.Context) error {
	statuses, err := api.svc.EmailStatus(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting email status")
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *cleaningApi) sendMonthlyEmails(ctx echo.Context) error {
	var data SendEmailsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendEmailsRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.SendMonthlyEmails(ctx.Request().Context(), cleaning.SendRequest{
		Recipients: data.Recipients,
		Language:   strings.ToLower(data.Language),
		CustomBody: data.CustomBody,
	})
	if err != nil {
		return errors.Wrap(err, "sending monthly emails")
	}
	return ctx.JSON(http.StatusOK, res)
}

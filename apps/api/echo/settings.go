package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/simchatzion/ledger/core/cleaning"
)

type MonthlyCapRequest struct {
	MonthlyCap decimal.Decimal `json:"monthlyCap" validate:"required,finite,positive"`
}

type MonthlyCapResponse struct {
	MonthlyCap decimal.Decimal `json:"monthlyCap"`
}

type settingsApi struct {
	svc      cleaning.Service
	validate *validator.Validate
}

func registerSettingsAPI(g *echo.Group, svc cleaning.Service, validate *validator.Validate) {
	api := settingsApi{svc: svc, validate: validate}

	sg := g.Group("/settings")
	sg.GET("/monthly-cap", api.monthlyCap)
	sg.PUT("/monthly-cap", api.setMonthlyCap)
}

func (api *settingsApi) monthlyCap(ctx echo.Context) error {
	monthlyCap, err := api.svc.MonthlyCap(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting monthly cap")
	}
	return ctx.JSON(http.StatusOK, MonthlyCapResponse{MonthlyCap: monthlyCap})
}

func (api *settingsApi) setMonthlyCap(ctx echo.Context) error {
	var data MonthlyCapRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MonthlyCapRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	if err := api.svc.SetMonthlyCap(ctx.Request().Context(), data.MonthlyCap); err != nil {
		return errors.Wrap(err, "setting monthly cap")
	}
	return ctx.JSON(http.StatusOK, MonthlyCapResponse{MonthlyCap: data.MonthlyCap})
}

package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	// MonthQuery binds `?month=YYYY-MM`; zero when absent.
	MonthQuery struct {
		Month cleaning.Month
	}

	// YearQuery binds `?year=YYYY`; 0 when absent.
	YearQuery struct {
		Year int
	}
)

func (q *MonthQuery) Bind(ctx echo.Context) error {
	return echo.QueryParamsBinder(ctx).
		BindUnmarshaler("month", &q.Month).
		BindError()
}

func (q *YearQuery) Bind(ctx echo.Context) error {
	return echo.QueryParamsBinder(ctx).
		Int("year", &q.Year).
		BindError()
}

func paymentIDParam(ctx echo.Context) (string, error) {
	id := strings.TrimSpace(ctx.QueryParam("paymentId"))
	if id == "" {
		return "", core.NewValidationError(nil, core.FieldError{Field: "paymentId", Error: "paymentId is required"})
	}
	return id, nil
}

package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/simchatzion/ledger/core/cleaning"
)

// languageMiddleware sets the request language from the Accept-Language header, Hebrew by default.
func languageMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Request().Header.Get(echo.HeaderAcceptLanguage)
		if header == "" {
			return next(ctx)
		}
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(cleaning.WithLang(req.Context(), header)))
		return next(ctx)
	}
}

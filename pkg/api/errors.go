package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/fcamachol/chatflow/pkg/dberrors"
)

// mapGatewayError maps the storage/rules-engine error taxonomy to an HTTP
// error response.
func mapGatewayError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, dberrors.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, dberrors.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "an active rule already matches this trigger")
	case errors.Is(err, dberrors.ErrFKViolation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "referenced entity does not exist")
	case errors.Is(err, dberrors.ErrPermanent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	slog.Error("api: unexpected gateway error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
)

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

// respondError maps the apperr taxonomy onto HTTP statuses. Unclassified
// errors are logged and hidden behind a generic message.
func respondError(c echo.Context, logger *zap.Logger, err error, action string) error {
	var validation *apperr.ValidationError
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:      "validation failed",
			Violations: validation.Violations,
		})
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: message(err)})
	case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: message(err)})
	}

	logger.Error("Failed to "+action, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to " + action})
}

// message flattens the joined sentinel and detail into one line.
func message(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", ": ")
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func pathID(c echo.Context, name string) (uint64, error) {
	var id uint64
	err := echo.PathParamsBinder(c).MustUint64(name, &id).BindError()
	return id, err
}

type page struct {
	Limit  uint64
	Offset uint64
}

func pagination(c echo.Context) (page, error) {
	p := page{Limit: 50}
	err := echo.QueryParamsBinder(c).
		Uint64("limit", &p.Limit).
		Uint64("offset", &p.Offset).
		BindError()
	return p, err
}

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/quoting"
	"goflare.io/quoting/adjustment"
)

type AdjustmentHandler interface {
	AddAdjustment(c echo.Context) error
	RemoveAdjustment(c echo.Context) error
	ListAdjustments(c echo.Context) error
}

type adjustmentHandler struct {
	Quoting quoting.Quoting
	Logger  *zap.Logger
}

func NewAdjustmentHandler(quoting quoting.Quoting, logger *zap.Logger) AdjustmentHandler {
	return &adjustmentHandler{
		Quoting: quoting,
		Logger:  logger,
	}
}

// AddAdjustment handles POST /quotes/:id/adjustments
func (ah *adjustmentHandler) AddAdjustment(c echo.Context) error {
	quoteID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	var req adjustment.AddCommand
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.QuoteID = quoteID

	created, err := ah.Quoting.AddCostAdjustment(c.Request().Context(), req)
	if err != nil {
		return respondError(c, ah.Logger, err, "add cost adjustment")
	}

	return c.JSON(http.StatusCreated, created)
}

// RemoveAdjustment handles DELETE /quotes/:id/adjustments/:adjustmentId?removed_by=
func (ah *adjustmentHandler) RemoveAdjustment(c echo.Context) error {
	quoteID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}
	adjustmentID, err := pathID(c, "adjustmentId")
	if err != nil {
		return badRequest(c, "Invalid adjustment id")
	}

	req := adjustment.RemoveCommand{
		QuoteID:      quoteID,
		AdjustmentID: adjustmentID,
		RemovedBy:    c.QueryParam("removed_by"),
	}
	if err = ah.Quoting.RemoveCostAdjustment(c.Request().Context(), req); err != nil {
		return respondError(c, ah.Logger, err, "remove cost adjustment")
	}

	return c.NoContent(http.StatusNoContent)
}

// ListAdjustments handles GET /quotes/:id/adjustments
func (ah *adjustmentHandler) ListAdjustments(c echo.Context) error {
	quoteID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	adjustments, err := ah.Quoting.ListCostAdjustments(c.Request().Context(), quoteID)
	if err != nil {
		return respondError(c, ah.Logger, err, "list cost adjustments")
	}

	return c.JSON(http.StatusOK, adjustments)
}

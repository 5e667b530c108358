package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/quoting"
	"goflare.io/quoting/models"
	"goflare.io/quoting/quote"
)

type QuoteHandler interface {
	CreateQuote(c echo.Context) error
	GetQuote(c echo.Context) error
	ListCustomerQuotes(c echo.Context) error
	AddLine(c echo.Context) error
	RemoveLine(c echo.Context) error
	AddComponent(c echo.Context) error
	RemoveComponent(c echo.Context) error
	SetPaymentSchedule(c echo.Context) error
	SendQuote(c echo.Context) error
	AcceptQuote(c echo.Context) error
	RejectQuote(c echo.Context) error
	ArchiveQuote(c echo.Context) error
	UpdateMalleableData(c echo.Context) error
	ListEvents(c echo.Context) error
}

type quoteHandler struct {
	Quoting quoting.Quoting
	Logger  *zap.Logger
}

func NewQuoteHandler(quoting quoting.Quoting, logger *zap.Logger) QuoteHandler {
	return &quoteHandler{
		Quoting: quoting,
		Logger:  logger,
	}
}

// CreateQuote handles POST /quotes
func (qh *quoteHandler) CreateQuote(c echo.Context) error {
	var req quote.CreateCommand
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	view, err := qh.Quoting.CreateQuote(c.Request().Context(), req)
	if err != nil {
		return respondError(c, qh.Logger, err, "create quote")
	}

	return c.JSON(http.StatusCreated, view)
}

// GetQuote handles GET /quotes/:id
func (qh *quoteHandler) GetQuote(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	view, err := qh.Quoting.GetQuote(c.Request().Context(), id)
	if err != nil {
		return respondError(c, qh.Logger, err, "get quote")
	}

	return c.JSON(http.StatusOK, view)
}

// ListCustomerQuotes handles GET /customers/:id/quotes?include_archived=
func (qh *quoteHandler) ListCustomerQuotes(c echo.Context) error {
	customerID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	var includeArchived bool
	if err = echo.QueryParamsBinder(c).Bool("include_archived", &includeArchived).BindError(); err != nil {
		return badRequest(c, "Invalid include_archived flag")
	}

	quotes, err := qh.Quoting.ListQuotes(c.Request().Context(), customerID, includeArchived)
	if err != nil {
		return respondError(c, qh.Logger, err, "list quotes")
	}

	return c.JSON(http.StatusOK, quotes)
}

// AddLine handles POST /quotes/:id/lines
func (qh *quoteHandler) AddLine(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	var req quote.AddLineCommand
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.QuoteID = id

	view, err := qh.Quoting.AddQuoteLine(c.Request().Context(), req)
	if err != nil {
		return respondError(c, qh.Logger, err, "add quote line")
	}

	return c.JSON(http.StatusOK, view)
}

// RemoveLine handles DELETE /quotes/:id/lines/:lineId
func (qh *quoteHandler) RemoveLine(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	view, err := qh.Quoting.RemoveQuoteLine(c.Request().Context(), id, c.Param("lineId"))
	if err != nil {
		return respondError(c, qh.Logger, err, "remove quote line")
	}

	return c.JSON(http.StatusOK, view)
}

// AddComponent handles POST /quotes/:id/components
func (qh *quoteHandler) AddComponent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	var req quote.AddComponentCommand
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.QuoteID = id

	view, err := qh.Quoting.AddComponent(c.Request().Context(), req)
	if err != nil {
		return respondError(c, qh.Logger, err, "add component")
	}

	return c.JSON(http.StatusOK, view)
}

// RemoveComponent handles DELETE /quotes/:id/components/:componentId
func (qh *quoteHandler) RemoveComponent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	view, err := qh.Quoting.RemoveComponent(c.Request().Context(), id, c.Param("componentId"))
	if err != nil {
		return respondError(c, qh.Logger, err, "remove component")
	}

	return c.JSON(http.StatusOK, view)
}

// SetPaymentSchedule handles PUT /quotes/:id/payment-schedule
func (qh *quoteHandler) SetPaymentSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	var req quote.SetPaymentScheduleCommand
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.QuoteID = id

	view, err := qh.Quoting.SetPaymentSchedule(c.Request().Context(), req)
	if err != nil {
		return respondError(c, qh.Logger, err, "set payment schedule")
	}

	return c.JSON(http.StatusOK, view)
}

// SendQuote handles POST /quotes/:id/send
func (qh *quoteHandler) SendQuote(c echo.Context) error {
	return qh.transition(c, qh.Quoting.SendQuote, "send quote")
}

// AcceptQuote handles POST /quotes/:id/accept
func (qh *quoteHandler) AcceptQuote(c echo.Context) error {
	return qh.transition(c, qh.Quoting.AcceptQuote, "accept quote")
}

// RejectQuote handles POST /quotes/:id/reject
func (qh *quoteHandler) RejectQuote(c echo.Context) error {
	return qh.transition(c, qh.Quoting.RejectQuote, "reject quote")
}

func (qh *quoteHandler) transition(c echo.Context, step func(ctx context.Context, id uint64) (*models.QuoteView, error), action string) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	view, err := step(c.Request().Context(), id)
	if err != nil {
		return respondError(c, qh.Logger, err, action)
	}

	return c.JSON(http.StatusOK, view)
}

// ArchiveQuote handles DELETE /quotes/:id
func (qh *quoteHandler) ArchiveQuote(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	if err = qh.Quoting.ArchiveQuote(c.Request().Context(), id); err != nil {
		return respondError(c, qh.Logger, err, "archive quote")
	}

	return c.NoContent(http.StatusNoContent)
}

// UpdateMalleableData handles PUT /quotes/:id/malleable-data
func (qh *quoteHandler) UpdateMalleableData(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	var data models.MalleableData
	if err = c.Bind(&data); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	view, err := qh.Quoting.UpdateQuoteMalleableData(c.Request().Context(), id, data)
	if err != nil {
		return respondError(c, qh.Logger, err, "update quote malleable data")
	}

	return c.JSON(http.StatusOK, view)
}

// ListEvents handles GET /quotes/:id/events
func (qh *quoteHandler) ListEvents(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid quote id")
	}

	events, err := qh.Quoting.ListEvents(c.Request().Context(), "quote", id)
	if err != nil {
		return respondError(c, qh.Logger, err, "list quote events")
	}

	return c.JSON(http.StatusOK, events)
}

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/quoting"
	"goflare.io/quoting/lead"
	"goflare.io/quoting/models"
)

type LeadHandler interface {
	CreateLead(c echo.Context) error
	GetLead(c echo.Context) error
	UpdateLead(c echo.Context) error
	ListLeads(c echo.Context) error
}

type leadHandler struct {
	Quoting quoting.Quoting
	Logger  *zap.Logger
}

func NewLeadHandler(quoting quoting.Quoting, logger *zap.Logger) LeadHandler {
	return &leadHandler{
		Quoting: quoting,
		Logger:  logger,
	}
}

// CreateLead handles POST /leads
func (lh *leadHandler) CreateLead(c echo.Context) error {
	var req lead.CreateCommand
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	created, err := lh.Quoting.CreateLead(c.Request().Context(), req)
	if err != nil {
		return respondError(c, lh.Logger, err, "create lead")
	}

	return c.JSON(http.StatusCreated, created)
}

// GetLead handles GET /leads/:id
func (lh *leadHandler) GetLead(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid lead id")
	}

	found, err := lh.Quoting.GetLead(c.Request().Context(), id)
	if err != nil {
		return respondError(c, lh.Logger, err, "get lead")
	}

	return c.JSON(http.StatusOK, found)
}

// UpdateLead handles PUT /leads/:id
func (lh *leadHandler) UpdateLead(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid lead id")
	}

	var req lead.UpdateCommand
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.ID = id

	updated, err := lh.Quoting.UpdateLead(c.Request().Context(), req)
	if err != nil {
		return respondError(c, lh.Logger, err, "update lead")
	}

	return c.JSON(http.StatusOK, updated)
}

// ListLeads handles GET /leads?limit=&offset=
func (lh *leadHandler) ListLeads(c echo.Context) error {
	p, err := pagination(c)
	if err != nil {
		return badRequest(c, "Invalid pagination")
	}

	leads, err := lh.Quoting.ListLeads(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, lh.Logger, err, "list leads")
	}
	if leads == nil {
		leads = []*models.Lead{}
	}

	return c.JSON(http.StatusOK, leads)
}

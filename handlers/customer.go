package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/quoting"
	"goflare.io/quoting/customer"
	"goflare.io/quoting/models"
)

type CustomerHandler interface {
	CreateCustomer(c echo.Context) error
	GetCustomer(c echo.Context) error
	UpdateCustomer(c echo.Context) error
	DeleteCustomer(c echo.Context) error
	ListCustomers(c echo.Context) error
}

type customerHandler struct {
	Quoting quoting.Quoting
	Logger  *zap.Logger
}

func NewCustomerHandler(
	Quoting quoting.Quoting,
	logger *zap.Logger,
) CustomerHandler {
	return &customerHandler{
		Quoting: Quoting,
		Logger:  logger,
	}
}

// CreateCustomer handles POST /customers
func (ch *customerHandler) CreateCustomer(c echo.Context) error {
	var req customer.CreateCommand
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	created, err := ch.Quoting.CreateCustomer(c.Request().Context(), req)
	if err != nil {
		return respondError(c, ch.Logger, err, "create customer")
	}

	return c.JSON(http.StatusCreated, created)
}

// GetCustomer handles GET /customers/:id
func (ch *customerHandler) GetCustomer(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	found, err := ch.Quoting.GetCustomer(c.Request().Context(), id)
	if err != nil {
		return respondError(c, ch.Logger, err, "get customer")
	}

	return c.JSON(http.StatusOK, found)
}

// UpdateCustomer handles PUT /customers/:id
func (ch *customerHandler) UpdateCustomer(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	var req customer.UpdateCommand
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.ID = id

	updated, err := ch.Quoting.UpdateCustomer(c.Request().Context(), req)
	if err != nil {
		return respondError(c, ch.Logger, err, "update customer")
	}

	return c.JSON(http.StatusOK, updated)
}

// DeleteCustomer handles DELETE /customers/:id
func (ch *customerHandler) DeleteCustomer(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	if err = ch.Quoting.DeleteCustomer(c.Request().Context(), id); err != nil {
		return respondError(c, ch.Logger, err, "delete customer")
	}

	return c.NoContent(http.StatusNoContent)
}

// ListCustomers handles GET /customers?limit=&offset=
func (ch *customerHandler) ListCustomers(c echo.Context) error {
	p, err := pagination(c)
	if err != nil {
		return badRequest(c, "Invalid pagination")
	}

	customers, err := ch.Quoting.ListCustomers(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, ch.Logger, err, "list customers")
	}
	if customers == nil {
		customers = []*models.Customer{}
	}

	return c.JSON(http.StatusOK, customers)
}

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/quoting"
	"goflare.io/quoting/models"
)

type CatalogHandler interface {
	CreateItem(c echo.Context) error
	GetItem(c echo.Context) error
	UpdateItem(c echo.Context) error
	ListItems(c echo.Context) error
}

type catalogHandler struct {
	Quoting quoting.Quoting
	Logger  *zap.Logger
}

func NewCatalogHandler(quoting quoting.Quoting, logger *zap.Logger) CatalogHandler {
	return &catalogHandler{
		Quoting: quoting,
		Logger:  logger,
	}
}

// CreateItem handles POST /catalog
func (ch *catalogHandler) CreateItem(c echo.Context) error {
	item := models.NewCatalogItem()
	item.Active = true
	if err := c.Bind(item); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	item.ID = 0

	if err := ch.Quoting.CreateCatalogItem(c.Request().Context(), item); err != nil {
		return respondError(c, ch.Logger, err, "create catalog item")
	}

	return c.JSON(http.StatusCreated, item)
}

// GetItem handles GET /catalog/:id
func (ch *catalogHandler) GetItem(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid catalog item id")
	}

	item, err := ch.Quoting.GetCatalogItem(c.Request().Context(), id)
	if err != nil {
		return respondError(c, ch.Logger, err, "get catalog item")
	}

	return c.JSON(http.StatusOK, item)
}

// UpdateItem handles PUT /catalog/:id
func (ch *catalogHandler) UpdateItem(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid catalog item id")
	}

	item := models.NewCatalogItem()
	if err = c.Bind(item); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	item.ID = id

	if err = ch.Quoting.UpdateCatalogItem(c.Request().Context(), item); err != nil {
		return respondError(c, ch.Logger, err, "update catalog item")
	}

	return c.JSON(http.StatusOK, item)
}

// ListItems handles GET /catalog?limit=&offset=&active_only=
func (ch *catalogHandler) ListItems(c echo.Context) error {
	p, err := pagination(c)
	if err != nil {
		return badRequest(c, "Invalid pagination")
	}
	var activeOnly bool
	if err = echo.QueryParamsBinder(c).Bool("active_only", &activeOnly).BindError(); err != nil {
		return badRequest(c, "Invalid active_only flag")
	}

	items, err := ch.Quoting.ListCatalogItems(c.Request().Context(), p.Limit, p.Offset, activeOnly)
	if err != nil {
		return respondError(c, ch.Logger, err, "list catalog items")
	}
	if items == nil {
		items = []*models.CatalogItem{}
	}

	return c.JSON(http.StatusOK, items)
}

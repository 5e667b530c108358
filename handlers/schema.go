package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/quoting"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

type SchemaHandler interface {
	CreateDraft(c echo.Context) error
	UpdateDraftFields(c echo.Context) error
	PublishDraft(c echo.Context) error
	DiscardDraft(c echo.Context) error
	GetSchema(c echo.Context) error
	GetActiveSchema(c echo.Context) error
	GetSchemaVersion(c echo.Context) error
	ListSchemas(c echo.Context) error
}

type schemaHandler struct {
	Quoting quoting.Quoting
	Logger  *zap.Logger
}

func NewSchemaHandler(quoting quoting.Quoting, logger *zap.Logger) SchemaHandler {
	return &schemaHandler{
		Quoting: quoting,
		Logger:  logger,
	}
}

type createDraftRequest struct {
	CloneFromActive bool `json:"clone_from_active"`
}

type updateDraftRequest struct {
	Fields []models.FieldDefinition `json:"fields"`
}

// CreateDraft handles POST /entity-types/:entityType/schemas
func (sh *schemaHandler) CreateDraft(c echo.Context) error {
	var req createDraftRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	draft, err := sh.Quoting.CreateSchemaDraft(c.Request().Context(), enum.EntityType(c.Param("entityType")), req.CloneFromActive)
	if err != nil {
		return respondError(c, sh.Logger, err, "create schema draft")
	}

	return c.JSON(http.StatusCreated, draft)
}

// UpdateDraftFields handles PUT /schemas/:id/fields
func (sh *schemaHandler) UpdateDraftFields(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid schema id")
	}

	var req updateDraftRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	draft, err := sh.Quoting.UpdateSchemaDraft(c.Request().Context(), id, req.Fields)
	if err != nil {
		return respondError(c, sh.Logger, err, "update schema draft")
	}

	return c.JSON(http.StatusOK, draft)
}

// PublishDraft handles POST /schemas/:id/publish
func (sh *schemaHandler) PublishDraft(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid schema id")
	}

	published, err := sh.Quoting.PublishSchema(c.Request().Context(), id)
	if err != nil {
		return respondError(c, sh.Logger, err, "publish schema")
	}

	return c.JSON(http.StatusOK, published)
}

// DiscardDraft handles DELETE /schemas/:id
func (sh *schemaHandler) DiscardDraft(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid schema id")
	}

	if err = sh.Quoting.DiscardSchemaDraft(c.Request().Context(), id); err != nil {
		return respondError(c, sh.Logger, err, "discard schema draft")
	}

	return c.NoContent(http.StatusNoContent)
}

// GetSchema handles GET /schemas/:id
func (sh *schemaHandler) GetSchema(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid schema id")
	}

	schema, err := sh.Quoting.GetSchema(c.Request().Context(), id)
	if err != nil {
		return respondError(c, sh.Logger, err, "get schema")
	}

	return c.JSON(http.StatusOK, schema)
}

// GetActiveSchema handles GET /entity-types/:entityType/schemas/active
func (sh *schemaHandler) GetActiveSchema(c echo.Context) error {
	schema, err := sh.Quoting.GetActiveSchema(c.Request().Context(), enum.EntityType(c.Param("entityType")))
	if err != nil {
		return respondError(c, sh.Logger, err, "get active schema")
	}

	return c.JSON(http.StatusOK, schema)
}

// GetSchemaVersion handles GET /entity-types/:entityType/schemas/:version
func (sh *schemaHandler) GetSchemaVersion(c echo.Context) error {
	var version int
	if err := echo.PathParamsBinder(c).MustInt("version", &version).BindError(); err != nil {
		return badRequest(c, "Invalid schema version")
	}

	schema, err := sh.Quoting.GetSchemaVersion(c.Request().Context(), enum.EntityType(c.Param("entityType")), version)
	if err != nil {
		return respondError(c, sh.Logger, err, "get schema version")
	}

	return c.JSON(http.StatusOK, schema)
}

// ListSchemas handles GET /entity-types/:entityType/schemas
func (sh *schemaHandler) ListSchemas(c echo.Context) error {
	schemas, err := sh.Quoting.ListSchemas(c.Request().Context(), enum.EntityType(c.Param("entityType")))
	if err != nil {
		return respondError(c, sh.Logger, err, "list schemas")
	}
	if schemas == nil {
		schemas = []*models.SchemaDefinition{}
	}

	return c.JSON(http.StatusOK, schemas)
}

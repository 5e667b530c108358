package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"goflare.io/quoting"
	"goflare.io/quoting/handlers"
)

type Server struct {
	echo       *echo.Echo
	quoting    quoting.Quoting
	logger     *zap.Logger
	Quote      handlers.QuoteHandler
	Adjustment handlers.AdjustmentHandler
	Schema     handlers.SchemaHandler
	Catalog    handlers.CatalogHandler
	Lead       handlers.LeadHandler
	Customer   handlers.CustomerHandler
}

func NewServer(
	quoting quoting.Quoting,
	logger *zap.Logger,
	Quote handlers.QuoteHandler,
	Adjustment handlers.AdjustmentHandler,
	Schema handlers.SchemaHandler,
	Catalog handlers.CatalogHandler,
	Lead handlers.LeadHandler,
	Customer handlers.CustomerHandler,
) *Server {
	s := &Server{
		echo:       echo.New(),
		quoting:    quoting,
		logger:     logger,
		Quote:      Quote,
		Adjustment: Adjustment,
		Schema:     Schema,
		Catalog:    Catalog,
		Lead:       Lead,
		Customer:   Customer,
	}
	s.echo.HideBanner = true
	s.registerMiddlewares()
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens for connections on the provided address.
// It returns an error if there is an issue starting the server.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Run starts the server in a goroutine and blocks until an OS interrupt or
// SIGTERM arrives. It then gives in-flight requests 5 seconds to finish and
// closes the quoting engine.
func (s *Server) Run(address string) error {

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.quoting.Close()
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.echo.Shutdown(ctx)
	s.quoting.Close()
	return err
}

func (s *Server) registerMiddlewares() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error))
			return nil
		},
	}))
}

func (s *Server) registerRoutes() {

	s.echo.POST("/quotes", s.Quote.CreateQuote)
	s.echo.GET("/quotes/:id", s.Quote.GetQuote)
	s.echo.DELETE("/quotes/:id", s.Quote.ArchiveQuote)
	s.echo.POST("/quotes/:id/lines", s.Quote.AddLine)
	s.echo.DELETE("/quotes/:id/lines/:lineId", s.Quote.RemoveLine)
	s.echo.POST("/quotes/:id/components", s.Quote.AddComponent)
	s.echo.DELETE("/quotes/:id/components/:componentId", s.Quote.RemoveComponent)
	s.echo.PUT("/quotes/:id/payment-schedule", s.Quote.SetPaymentSchedule)
	s.echo.PUT("/quotes/:id/malleable-data", s.Quote.UpdateMalleableData)
	s.echo.POST("/quotes/:id/send", s.Quote.SendQuote)
	s.echo.POST("/quotes/:id/accept", s.Quote.AcceptQuote)
	s.echo.POST("/quotes/:id/reject", s.Quote.RejectQuote)
	s.echo.GET("/quotes/:id/events", s.Quote.ListEvents)

	s.echo.POST("/quotes/:id/adjustments", s.Adjustment.AddAdjustment)
	s.echo.GET("/quotes/:id/adjustments", s.Adjustment.ListAdjustments)
	s.echo.DELETE("/quotes/:id/adjustments/:adjustmentId", s.Adjustment.RemoveAdjustment)

	s.echo.POST("/entity-types/:entityType/schemas", s.Schema.CreateDraft)
	s.echo.GET("/entity-types/:entityType/schemas", s.Schema.ListSchemas)
	s.echo.GET("/entity-types/:entityType/schemas/active", s.Schema.GetActiveSchema)
	s.echo.GET("/entity-types/:entityType/schemas/:version", s.Schema.GetSchemaVersion)
	s.echo.GET("/schemas/:id", s.Schema.GetSchema)
	s.echo.PUT("/schemas/:id/fields", s.Schema.UpdateDraftFields)
	s.echo.POST("/schemas/:id/publish", s.Schema.PublishDraft)
	s.echo.DELETE("/schemas/:id", s.Schema.DiscardDraft)

	s.echo.POST("/catalog", s.Catalog.CreateItem)
	s.echo.GET("/catalog", s.Catalog.ListItems)
	s.echo.GET("/catalog/:id", s.Catalog.GetItem)
	s.echo.PUT("/catalog/:id", s.Catalog.UpdateItem)

	s.echo.POST("/leads", s.Lead.CreateLead)
	s.echo.GET("/leads", s.Lead.ListLeads)
	s.echo.GET("/leads/:id", s.Lead.GetLead)
	s.echo.PUT("/leads/:id", s.Lead.UpdateLead)

	s.echo.POST("/customers", s.Customer.CreateCustomer)
	s.echo.GET("/customers", s.Customer.ListCustomers)
	s.echo.GET("/customers/:id", s.Customer.GetCustomer)
	s.echo.PUT("/customers/:id", s.Customer.UpdateCustomer)
	s.echo.DELETE("/customers/:id", s.Customer.DeleteCustomer)
	s.echo.GET("/customers/:id/quotes", s.Quote.ListCustomerQuotes)
}

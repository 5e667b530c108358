//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"goflare.io/quoting"
	"goflare.io/quoting/adjustment"
	"goflare.io/quoting/catalog"
	"goflare.io/quoting/config"
	"goflare.io/quoting/customer"
	"goflare.io/quoting/handlers"
	"goflare.io/quoting/lead"
	"goflare.io/quoting/malleable"
	"goflare.io/quoting/outbox"
	"goflare.io/quoting/quote"
	"goflare.io/quoting/schema"
	"goflare.io/quoting/server"
)

func InitializeQuotingService(appConfig *config.Config) (*server.Server, func(), error) {

	wire.Build(
		config.NewLogger,
		config.ProvideIgnite,
		config.ProvideSchemaCache,
		config.ProvideNats,
		provideRepositories,
		wire.FieldsOf(new(*Repositories),
			"Transactor", "Schemas", "Catalog", "Quotes", "QuoteReader",
			"Adjustments", "Leads", "Customers", "Outbox"),
		malleable.NewBinder,
		schema.NewService,
		catalog.NewService,
		quote.NewService,
		adjustment.NewService,
		lead.NewService,
		customer.NewService,
		outbox.NewService,
		quoting.NewEngine,
		wire.Bind(new(quoting.Quoting), new(*quoting.Engine)),
		handlers.NewQuoteHandler,
		handlers.NewAdjustmentHandler,
		handlers.NewSchemaHandler,
		handlers.NewCatalogHandler,
		handlers.NewLeadHandler,
		handlers.NewCustomerHandler,
		server.NewServer,
	)

	return &server.Server{}, nil, nil
}

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/ignite"
	"goflare.io/quoting/adjustment"
	"goflare.io/quoting/catalog"
	"goflare.io/quoting/config"
	"goflare.io/quoting/customer"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/lead"
	"goflare.io/quoting/memstore"
	"goflare.io/quoting/outbox"
	"goflare.io/quoting/quote"
	"goflare.io/quoting/schema"
)

// Repositories is the storage backend selected by storage.driver.
type Repositories struct {
	Transactor  driver.Transactor
	Schemas     schema.Repository
	Catalog     catalog.Repository
	Quotes      quote.Repository
	QuoteReader adjustment.QuoteReader
	Adjustments adjustment.Repository
	Leads       lead.Repository
	Customers   customer.Repository
	Outbox      outbox.Repository
}

func provideRepositories(appConfig *config.Config, logger *zap.Logger, poolManager ignite.Manager) (*Repositories, func(), error) {
	if appConfig.Storage.Driver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		store := memstore.New()
		return &Repositories{
			Transactor:  store,
			Schemas:     store.Schemas(),
			Catalog:     store.Catalog(),
			Quotes:      store.Quotes(),
			QuoteReader: store.Quotes(),
			Adjustments: store.Adjustments(),
			Leads:       store.Leads(),
			Customers:   store.Customers(),
			Outbox:      store.Outbox(),
		}, func() {}, nil
	}

	conn, err := config.ProvidePostgresConn(appConfig)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { conn.Close() }

	if appConfig.Storage.Migrate {
		if err = driver.Migrate(context.Background(), conn); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("database migrated")
	}

	schemas, err := schema.NewRepository(conn, logger, poolManager)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	quotes := quote.NewRepository(conn, logger)
	return &Repositories{
		Transactor:  driver.NewTransactionManager(conn),
		Schemas:     schemas,
		Catalog:     catalog.NewRepository(conn, logger),
		Quotes:      quotes,
		QuoteReader: quotes,
		Adjustments: adjustment.NewRepository(conn, logger),
		Leads:       lead.NewRepository(conn, logger),
		Customers:   customer.NewRepository(conn, logger),
		Outbox:      outbox.NewRepository(conn, logger),
	}, cleanup, nil
}

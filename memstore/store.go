// Package memstore keeps every aggregate in process memory behind a single
// mutex. It backs the service when storage.driver is "memory" and serves as
// the repository fixture in tests.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
)

var _ driver.Transactor = (*Store)(nil)

type memoryState struct {
	schemas     map[uint64]*models.SchemaDefinition
	catalog     map[uint64]*models.CatalogItem
	quotes      map[uint64]*models.Quote
	adjustments map[uint64]*models.CostAdjustment
	leads       map[uint64]*models.Lead
	customers   map[uint64]*models.Customer
	events      []*models.Event
	seq         uint64
}

func newMemoryState() memoryState {
	return memoryState{
		schemas:     map[uint64]*models.SchemaDefinition{},
		catalog:     map[uint64]*models.CatalogItem{},
		quotes:      map[uint64]*models.Quote{},
		adjustments: map[uint64]*models.CostAdjustment{},
		leads:       map[uint64]*models.Lead{},
		customers:   map[uint64]*models.Customer{},
	}
}

// clone copies the maps but not the records. Stored records are never
// mutated in place, only replaced.
func (m memoryState) clone() memoryState {
	return memoryState{
		schemas:     maps.Clone(m.schemas),
		catalog:     maps.Clone(m.catalog),
		quotes:      maps.Clone(m.quotes),
		adjustments: maps.Clone(m.adjustments),
		leads:       maps.Clone(m.leads),
		customers:   maps.Clone(m.customers),
		events:      append([]*models.Event(nil), m.events...),
		seq:         m.seq,
	}
}

func (m *memoryState) nextID() uint64 {
	m.seq++
	return m.seq
}

// Store is an in-memory database. Its transactions are fully serialised: the
// mutex is held for the whole callback and the state is restored when the
// callback fails. Repositories obtained from a Store must only be used
// inside one of its transactions; the tx they receive is always nil.
type Store struct {
	mu    sync.Mutex
	state memoryState
}

func New() *Store {
	return &Store{state: newMemoryState()}
}

func (s *Store) ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(nil)
}

func (s *Store) Schemas() *SchemaRepository         { return &SchemaRepository{store: s} }
func (s *Store) Catalog() *CatalogRepository        { return &CatalogRepository{store: s} }
func (s *Store) Quotes() *QuoteRepository           { return &QuoteRepository{store: s} }
func (s *Store) Adjustments() *AdjustmentRepository { return &AdjustmentRepository{store: s} }
func (s *Store) Leads() *LeadRepository             { return &LeadRepository{store: s} }
func (s *Store) Customers() *CustomerRepository     { return &CustomerRepository{store: s} }
func (s *Store) Outbox() *OutboxRepository          { return &OutboxRepository{store: s} }

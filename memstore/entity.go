package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models"
)

type LeadRepository struct {
	store *Store
}

func cloneLead(l *models.Lead) *models.Lead {
	out := *l
	out.MalleableData = l.MalleableData.Clone()
	return &out
}

func (r *LeadRepository) Create(_ context.Context, _ pgx.Tx, lead *models.Lead) error {
	now := time.Now().UTC()
	lead.ID = r.store.state.nextID()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	r.store.state.leads[lead.ID] = cloneLead(lead)
	return nil
}

func (r *LeadRepository) Update(_ context.Context, _ pgx.Tx, lead *models.Lead) error {
	if _, ok := r.store.state.leads[lead.ID]; !ok {
		return apperr.NotFound("lead %d does not exist", lead.ID)
	}
	lead.UpdatedAt = time.Now().UTC()
	r.store.state.leads[lead.ID] = cloneLead(lead)
	return nil
}

func (r *LeadRepository) GetByID(_ context.Context, _ pgx.Tx, id uint64) (*models.Lead, error) {
	l, ok := r.store.state.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead %d does not exist", id)
	}
	return cloneLead(l), nil
}

func (r *LeadRepository) List(_ context.Context, _ pgx.Tx, limit, offset uint64) ([]*models.Lead, error) {
	var leads []*models.Lead
	for _, l := range r.store.state.leads {
		leads = append(leads, cloneLead(l))
	}
	slices.SortFunc(leads, func(a, b *models.Lead) int { return compareID(a.ID, b.ID) })
	return page(leads, limit, offset), nil
}

type CustomerRepository struct {
	store *Store
}

func cloneCustomer(c *models.Customer) *models.Customer {
	out := *c
	out.MalleableData = c.MalleableData.Clone()
	return &out
}

func (r *CustomerRepository) Create(_ context.Context, _ pgx.Tx, customer *models.Customer) error {
	now := time.Now().UTC()
	customer.ID = r.store.state.nextID()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	r.store.state.customers[customer.ID] = cloneCustomer(customer)
	return nil
}

func (r *CustomerRepository) Update(_ context.Context, _ pgx.Tx, customer *models.Customer) error {
	if _, ok := r.store.state.customers[customer.ID]; !ok {
		return apperr.NotFound("customer %d does not exist", customer.ID)
	}
	customer.UpdatedAt = time.Now().UTC()
	r.store.state.customers[customer.ID] = cloneCustomer(customer)
	return nil
}

func (r *CustomerRepository) GetByID(_ context.Context, _ pgx.Tx, id uint64) (*models.Customer, error) {
	c, ok := r.store.state.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer %d does not exist", id)
	}
	return cloneCustomer(c), nil
}

func (r *CustomerRepository) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	if _, ok := r.store.state.customers[id]; !ok {
		return apperr.NotFound("customer %d does not exist", id)
	}
	delete(r.store.state.customers, id)
	return nil
}

func (r *CustomerRepository) List(_ context.Context, _ pgx.Tx, limit, offset uint64) ([]*models.Customer, error) {
	var customers []*models.Customer
	for _, c := range r.store.state.customers {
		customers = append(customers, cloneCustomer(c))
	}
	slices.SortFunc(customers, func(a, b *models.Customer) int { return compareID(a.ID, b.ID) })
	return page(customers, limit, offset), nil
}

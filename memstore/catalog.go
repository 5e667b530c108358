package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models"
)

type CatalogRepository struct {
	store *Store
}

func cloneCatalogItem(item *models.CatalogItem) *models.CatalogItem {
	out := *item
	out.WBSTemplate = slices.Clone(item.WBSTemplate)
	return &out
}

func (r *CatalogRepository) Create(_ context.Context, _ pgx.Tx, item *models.CatalogItem) error {
	now := time.Now().UTC()
	item.ID = r.store.state.nextID()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.store.state.catalog[item.ID] = cloneCatalogItem(item)
	return nil
}

func (r *CatalogRepository) Update(_ context.Context, _ pgx.Tx, item *models.CatalogItem) error {
	if _, ok := r.store.state.catalog[item.ID]; !ok {
		return apperr.NotFound("catalog item %d does not exist", item.ID)
	}
	item.UpdatedAt = time.Now().UTC()
	r.store.state.catalog[item.ID] = cloneCatalogItem(item)
	return nil
}

func (r *CatalogRepository) GetByID(_ context.Context, _ pgx.Tx, id uint64) (*models.CatalogItem, error) {
	item, ok := r.store.state.catalog[id]
	if !ok {
		return nil, apperr.NotFound("catalog item %d does not exist", id)
	}
	return cloneCatalogItem(item), nil
}

func (r *CatalogRepository) List(_ context.Context, _ pgx.Tx, limit, offset uint64, activeOnly bool) ([]*models.CatalogItem, error) {
	var items []*models.CatalogItem
	for _, item := range r.store.state.catalog {
		if activeOnly && !item.Active {
			continue
		}
		items = append(items, cloneCatalogItem(item))
	}
	slices.SortFunc(items, func(a, b *models.CatalogItem) int { return compareID(a.ID, b.ID) })
	return page(items, limit, offset), nil
}

func compareID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// page applies limit/offset the way the SQL repositories do. A zero limit
// means no limit.
func page[T any](items []T, limit, offset uint64) []T {
	if offset >= uint64(len(items)) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < uint64(len(items)) {
		items = items[:limit]
	}
	return items
}

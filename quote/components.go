package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/catalog"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

type catalogItemInput struct {
	Description      string           `json:"description"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitSellPrice    *decimal.Decimal `json:"unit_sell_price"`
	UnitInternalCost *decimal.Decimal `json:"unit_internal_cost"`
	CatalogItemID    *uint64          `json:"catalog_item_id"`
	// WBSSnapshot distinguishes an omitted snapshot (nil) from an explicit
	// empty one.
	WBSSnapshot *[]models.WBSEntry `json:"wbs_snapshot"`
}

type catalogComponentInput struct {
	Section string             `json:"section"`
	Items   []catalogItemInput `json:"items"`
}

// componentBuilder turns an AddComponentCommand into a priced component.
// Catalog items are resolved inside the caller's transaction.
type componentBuilder struct {
	catalog catalog.Repository
}

func (b *componentBuilder) build(ctx context.Context, tx pgx.Tx, cmd AddComponentCommand) (models.Component, error) {
	switch cmd.Type {
	case enum.ComponentTypeCatalog:
		return b.buildCatalog(ctx, tx, cmd.Data)
	case enum.ComponentTypeImplementation:
		return buildImplementation(cmd.Data)
	case enum.ComponentTypeRecurring:
		return buildRecurring(cmd.Data)
	}
	return nil, apperr.Invalid(fmt.Sprintf("type must be one of [catalog, implementation, recurring], got %q", cmd.Type))
}

func decodeStrict(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid(fmt.Sprintf("data is malformed: %v", err))
	}
	return nil
}

func (b *componentBuilder) buildCatalog(ctx context.Context, tx pgx.Tx, data json.RawMessage) (models.Component, error) {
	var in catalogComponentInput
	if err := decodeStrict(data, &in); err != nil {
		return nil, err
	}

	var violations []string
	component := &models.CatalogComponent{
		Section: in.Section,
		Items:   make([]models.QuoteCatalogItem, 0, len(in.Items)),
	}

	for i, item := range in.Items {
		out := models.QuoteCatalogItem{
			Description:   item.Description,
			Quantity:      item.Quantity,
			CatalogItemID: item.CatalogItemID,
		}

		var source *models.CatalogItem
		needsLookup := item.WBSSnapshot == nil || item.UnitSellPrice == nil || item.UnitInternalCost == nil
		if item.CatalogItemID != nil && needsLookup {
			var err error
			source, err = b.catalog.GetByID(ctx, tx, *item.CatalogItemID)
			if err != nil {
				return nil, err
			}
		}

		// An explicit snapshot always wins over the catalog template.
		switch {
		case item.WBSSnapshot != nil:
			out.WBSSnapshot = slices.Clone(*item.WBSSnapshot)
		case source != nil:
			out.WBSSnapshot = slices.Clone(source.WBSTemplate)
		}
		if out.WBSSnapshot == nil {
			out.WBSSnapshot = []models.WBSEntry{}
		}

		switch {
		case item.UnitSellPrice != nil:
			out.UnitSellPrice = *item.UnitSellPrice
		case source != nil:
			out.UnitSellPrice = source.UnitSellPrice
		default:
			violations = append(violations, fmt.Sprintf("items[%d].unit_sell_price is required", i))
		}
		switch {
		case item.UnitInternalCost != nil:
			out.UnitInternalCost = *item.UnitInternalCost
		case source != nil:
			out.UnitInternalCost = source.UnitInternalCost
		default:
			violations = append(violations, fmt.Sprintf("items[%d].unit_internal_cost is required", i))
		}

		if out.Description == "" && source != nil {
			out.Description = source.Name
		}
		if out.Description == "" {
			violations = append(violations, fmt.Sprintf("items[%d].description is required", i))
		}
		if !out.Quantity.IsPositive() {
			violations = append(violations, fmt.Sprintf("items[%d].quantity must be greater than 0", i))
		}
		for j, e := range out.WBSSnapshot {
			if e.Hours.IsNegative() {
				violations = append(violations, fmt.Sprintf("items[%d].wbs_snapshot[%d].hours must not be negative", i, j))
			}
		}

		component.Items = append(component.Items, out)
	}

	if err := apperr.Invalid(violations...); err != nil {
		return nil, err
	}
	return component, nil
}

func buildImplementation(data json.RawMessage) (models.Component, error) {
	var component models.ImplementationComponent
	if err := decodeStrict(data, &component); err != nil {
		return nil, err
	}
	if component.Milestones == nil {
		component.Milestones = []models.Milestone{}
	}

	var violations []string
	for i, m := range component.Milestones {
		if m.Description == "" {
			violations = append(violations, fmt.Sprintf("milestones[%d].description is required", i))
		}
		for j, t := range m.Tasks {
			prefix := fmt.Sprintf("milestones[%d].tasks[%d]", i, j)
			if t.Description == "" {
				violations = append(violations, prefix+".description is required")
			}
			if t.DurationHours.IsNegative() {
				violations = append(violations, prefix+".duration_hours must not be negative")
			}
			if t.Complexity < 1 {
				violations = append(violations, prefix+".complexity must be at least 1")
			}
			if t.InternalCost.IsNegative() || t.SellRate.IsNegative() {
				violations = append(violations, prefix+" rates must not be negative")
			}
		}
	}

	if err := apperr.Invalid(violations...); err != nil {
		return nil, err
	}
	return &component, nil
}

func buildRecurring(data json.RawMessage) (models.Component, error) {
	var component models.RecurringServiceComponent
	if err := decodeStrict(data, &component); err != nil {
		return nil, err
	}

	var violations []string
	if component.ServiceName == "" {
		violations = append(violations, "service_name is required")
	}
	if err := component.ValidatePeriods(); err != nil {
		violations = append(violations, err.Error())
	}
	if !component.RenewalModel.IsValid() {
		violations = append(violations, fmt.Sprintf("renewal_model %q must be one of [auto, manual, expire]", component.RenewalModel))
	}
	if component.SellPricePerPeriod.IsNegative() {
		violations = append(violations, "sell_price_per_period must not be negative")
	}
	if component.InternalCostPerPeriod.IsNegative() {
		violations = append(violations, "internal_cost_per_period must not be negative")
	}

	if err := apperr.Invalid(violations...); err != nil {
		return nil, err
	}
	return &component, nil
}

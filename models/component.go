package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"goflare.io/quoting/models/enum"
)

// Component 代表報價中的一個計價區塊
// Component is one priced building block of a quote. The set of variants is
// closed: CatalogComponent, ImplementationComponent and RecurringServiceComponent.
type Component interface {
	Type() enum.ComponentType
	SectionLabel() string
	SellTotal() decimal.Decimal
	CostTotal() decimal.Decimal
	isComponent()
}

var (
	_ Component = (*CatalogComponent)(nil)
	_ Component = (*ImplementationComponent)(nil)
	_ Component = (*RecurringServiceComponent)(nil)
)

// WBSEntry is one row of a work breakdown structure.
type WBSEntry struct {
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
}

type QuoteCatalogItem struct {
	Description      string          `json:"description"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitSellPrice    decimal.Decimal `json:"unit_sell_price"`
	UnitInternalCost decimal.Decimal `json:"unit_internal_cost"`
	CatalogItemID    *uint64         `json:"catalog_item_id,omitempty"`
	WBSSnapshot      []WBSEntry      `json:"wbs_snapshot"`
}

type CatalogComponent struct {
	Section string             `json:"section"`
	Items   []QuoteCatalogItem `json:"items"`
}

func (c *CatalogComponent) Type() enum.ComponentType { return enum.ComponentTypeCatalog }
func (c *CatalogComponent) SectionLabel() string     { return c.Section }
func (c *CatalogComponent) isComponent()             {}

func (c *CatalogComponent) SellTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Quantity.Mul(item.UnitSellPrice))
	}
	return total
}

func (c *CatalogComponent) CostTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Quantity.Mul(item.UnitInternalCost))
	}
	return total
}

type Task struct {
	Description   string          `json:"description"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Complexity    int             `json:"complexity"`
	InternalCost  decimal.Decimal `json:"internal_cost"`
	SellRate      decimal.Decimal `json:"sell_rate"`
}

type Milestone struct {
	Description string `json:"description"`
	Tasks       []Task `json:"tasks"`
}

type ImplementationComponent struct {
	Section    string      `json:"section"`
	Milestones []Milestone `json:"milestones"`
}

func (c *ImplementationComponent) Type() enum.ComponentType { return enum.ComponentTypeImplementation }
func (c *ImplementationComponent) SectionLabel() string     { return c.Section }
func (c *ImplementationComponent) isComponent()             {}

// SellTotal sums duration × sell rate over every task of every milestone.
func (c *ImplementationComponent) SellTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range c.Milestones {
		for _, t := range m.Tasks {
			total = total.Add(t.DurationHours.Mul(t.SellRate))
		}
	}
	return total
}

func (c *ImplementationComponent) CostTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range c.Milestones {
		for _, t := range m.Tasks {
			total = total.Add(t.DurationHours.Mul(t.InternalCost))
		}
	}
	return total
}

type RecurringServiceComponent struct {
	Section               string            `json:"section"`
	ServiceName           string            `json:"service_name"`
	SLASnapshot           json.RawMessage   `json:"sla_snapshot,omitempty"`
	Cadence               enum.Cadence      `json:"cadence"`
	TermMonths            int               `json:"term_months"`
	RenewalModel          enum.RenewalModel `json:"renewal_model"`
	SellPricePerPeriod    decimal.Decimal   `json:"sell_price_per_period"`
	InternalCostPerPeriod decimal.Decimal   `json:"internal_cost_per_period"`
}

func (c *RecurringServiceComponent) Type() enum.ComponentType { return enum.ComponentTypeRecurring }
func (c *RecurringServiceComponent) SectionLabel() string     { return c.Section }
func (c *RecurringServiceComponent) isComponent()             {}

// Periods is the number of billing periods in the term: termMonths divided by
// the months in one cadence period. Terms that are not a whole number of
// periods are rejected by ValidatePeriods, so the division is exact.
func (c *RecurringServiceComponent) Periods() int {
	months := c.Cadence.MonthsPerPeriod()
	if months == 0 {
		return 0
	}
	return c.TermMonths / months
}

func (c *RecurringServiceComponent) ValidatePeriods() error {
	months := c.Cadence.MonthsPerPeriod()
	if months == 0 {
		return fmt.Errorf("unknown cadence %q", c.Cadence)
	}
	if c.TermMonths <= 0 {
		return fmt.Errorf("term_months must be greater than 0")
	}
	if c.TermMonths%months != 0 {
		return fmt.Errorf("term_months %d is not a whole number of %s periods", c.TermMonths, c.Cadence)
	}
	return nil
}

func (c *RecurringServiceComponent) SellTotal() decimal.Decimal {
	return c.SellPricePerPeriod.Mul(decimal.NewFromInt(int64(c.Periods())))
}

func (c *RecurringServiceComponent) CostTotal() decimal.Decimal {
	return c.InternalCostPerPeriod.Mul(decimal.NewFromInt(int64(c.Periods())))
}

// QuoteComponent is a component placed on a quote.
type QuoteComponent struct {
	ID        string
	Component Component
}

type quoteComponentJSON struct {
	ID        string             `json:"id"`
	Type      enum.ComponentType `json:"type"`
	Section   string             `json:"section"`
	SellTotal decimal.Decimal    `json:"sell_total"`
	CostTotal decimal.Decimal    `json:"cost_total"`
	Data      json.RawMessage    `json:"data"`
}

func (qc QuoteComponent) MarshalJSON() ([]byte, error) {
	if qc.Component == nil {
		return nil, fmt.Errorf("component %s has no variant", qc.ID)
	}
	data, err := json.Marshal(qc.Component)
	if err != nil {
		return nil, err
	}
	return json.Marshal(quoteComponentJSON{
		ID:        qc.ID,
		Type:      qc.Component.Type(),
		Section:   qc.Component.SectionLabel(),
		SellTotal: qc.Component.SellTotal(),
		CostTotal: qc.Component.CostTotal(),
		Data:      data,
	})
}

func (qc *QuoteComponent) UnmarshalJSON(b []byte) error {
	var raw quoteComponentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	component, err := DecodeComponent(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	qc.ID = raw.ID
	qc.Component = component
	return nil
}

// DecodeComponent decodes the stored form of a component variant.
func DecodeComponent(t enum.ComponentType, data json.RawMessage) (Component, error) {
	var c Component
	switch t {
	case enum.ComponentTypeCatalog:
		c = &CatalogComponent{}
	case enum.ComponentTypeImplementation:
		c = &ImplementationComponent{}
	case enum.ComponentTypeRecurring:
		c = &RecurringServiceComponent{}
	default:
		return nil, fmt.Errorf("unknown component type %q", t)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to decode %s component: %w", t, err)
	}
	return c, nil
}

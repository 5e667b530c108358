package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem 代表可報價的目錄項目
// CatalogItem is a sellable item with its current pricing and WBS template.
type CatalogItem struct {
	ID               uint64          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	UnitSellPrice    decimal.Decimal `json:"unit_sell_price"`
	UnitInternalCost decimal.Decimal `json:"unit_internal_cost"`
	WBSTemplate      []WBSEntry      `json:"wbs_template"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func NewCatalogItem() *CatalogItem {
	return &CatalogItem{WBSTemplate: []WBSEntry{}}
}

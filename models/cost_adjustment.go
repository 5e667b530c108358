package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostAdjustment 代表報價的手動價格調整
// CostAdjustment is a signed manual pricing correction owned by one quote.
// A negative amount is a discount or credit.
type CostAdjustment struct {
	ID          uint64          `json:"id"`
	QuoteID     uint64          `json:"quote_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	ApprovedBy  string          `json:"approved_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Package models holds the aggregates and value types of the quoting service.
package models

import "github.com/shopspring/decimal"

func init() {
	// Money and hours are rendered as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

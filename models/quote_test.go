package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models/enum"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quoteIn(state enum.QuoteState) *Quote {
	q := NewQuote(5, stripe.CurrencyUSD)
	q.ID = 1
	q.State = state
	return q
}

var allStates = []enum.QuoteState{
	enum.QuoteStateDraft,
	enum.QuoteStateSent,
	enum.QuoteStateAccepted,
	enum.QuoteStateRejected,
	enum.QuoteStateArchived,
}

func TestQuote_Lifecycle(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("send only from draft", func(t *testing.T) {
		for _, s := range allStates {
			q := quoteIn(s)
			err := q.Send(now)
			if s == enum.QuoteStateDraft {
				require.NoError(t, err)
				assert.Equal(t, enum.QuoteStateSent, q.State)
				assert.Equal(t, &now, q.SentAt)
				continue
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidState, "state %s", s)
			assert.Equal(t, s, q.State)
		}
	})

	t.Run("accept only from draft or sent", func(t *testing.T) {
		for _, s := range allStates {
			q := quoteIn(s)
			err := q.Accept(now)
			if s == enum.QuoteStateDraft || s == enum.QuoteStateSent {
				require.NoError(t, err)
				assert.Equal(t, enum.QuoteStateAccepted, q.State)
				continue
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidState, "state %s", s)
		}
	})

	t.Run("reject only from draft or sent", func(t *testing.T) {
		for _, s := range allStates {
			q := quoteIn(s)
			err := q.Reject(now)
			if s == enum.QuoteStateDraft || s == enum.QuoteStateSent {
				require.NoError(t, err)
				assert.Equal(t, enum.QuoteStateRejected, q.State)
				continue
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidState, "state %s", s)
		}
	})

	t.Run("terminal states", func(t *testing.T) {
		assert.False(t, quoteIn(enum.QuoteStateDraft).IsTerminal())
		assert.False(t, quoteIn(enum.QuoteStateSent).IsTerminal())
		assert.True(t, quoteIn(enum.QuoteStateAccepted).IsTerminal())
		assert.True(t, quoteIn(enum.QuoteStateRejected).IsTerminal())
		assert.True(t, quoteIn(enum.QuoteStateArchived).IsTerminal())
	})
}

func TestQuote_StructuralChanges(t *testing.T) {
	q := quoteIn(enum.QuoteStateDraft)

	require.NoError(t, q.AddLine(QuoteLine{ID: "l1", Description: "Setup", Quantity: dec("2"), UnitPrice: dec("50")}))
	require.NoError(t, q.AddComponent("c1", &CatalogComponent{Section: "Hardware"}))
	require.NoError(t, q.SetPaymentSchedule([]PaymentMilestone{{Title: "Deposit", Amount: dec("25")}}))
	assert.Equal(t, 4, q.Version)

	require.NoError(t, q.RemoveComponent("c1"))
	assert.Empty(t, q.Components)
	assert.ErrorIs(t, q.RemoveComponent("c1"), apperr.ErrNotFound)
	assert.ErrorIs(t, q.RemoveLine("missing"), apperr.ErrNotFound)

	accepted := quoteIn(enum.QuoteStateAccepted)
	assert.ErrorIs(t, accepted.AddLine(QuoteLine{ID: "x"}), apperr.ErrInvalidState)
	assert.ErrorIs(t, accepted.SetPaymentSchedule(nil), apperr.ErrInvalidState)
}

func TestQuote_Totals(t *testing.T) {
	q := quoteIn(enum.QuoteStateDraft)
	require.NoError(t, q.AddLine(QuoteLine{ID: "l1", Quantity: dec("3"), UnitPrice: dec("10.50")}))
	require.NoError(t, q.AddComponent("c1", &CatalogComponent{Items: []QuoteCatalogItem{
		{Quantity: dec("2"), UnitSellPrice: dec("100"), UnitInternalCost: dec("60")},
	}}))
	require.NoError(t, q.AddComponent("c2", &RecurringServiceComponent{
		Cadence: enum.CadenceMonthly, TermMonths: 12,
		SellPricePerPeriod: dec("100"), InternalCostPerPeriod: dec("40"),
	}))

	totals := q.Totals([]*CostAdjustment{{Amount: dec("-50")}, {Amount: dec("5")}})

	assert.Equal(t, "31.5", totals.LinesTotal.String())
	assert.Equal(t, "1400", totals.ComponentsTotal.String())
	assert.Equal(t, "-45", totals.AdjustmentsTotal.String())
	assert.Equal(t, "1386.5", totals.GrandTotal.String())
	assert.Equal(t, "600", totals.InternalCost.String())
	assert.Equal(t, "786.5", totals.Margin.String())
}

func TestQuote_TotalsEmpty(t *testing.T) {
	totals := quoteIn(enum.QuoteStateDraft).Totals(nil)
	assert.True(t, totals.GrandTotal.IsZero())
	assert.True(t, totals.InternalCost.IsZero())
}

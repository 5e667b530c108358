package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models/enum"
)

// QuoteLine is a simple priced line outside any component.
type QuoteLine struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	GroupType   string          `json:"group_type"`
}

func (l QuoteLine) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

type PaymentMilestone struct {
	Title   string          `json:"title"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate *time.Time      `json:"due_date,omitempty"`
}

// Quote 代表一份銷售報價
// Quote represents a priced sales proposal moving through an approval lifecycle.
//
// Version counts structural changes (lines, components, payment schedule).
// Revision is the optimistic lock token compared on every save.
type Quote struct {
	ID              uint64             `json:"id"`
	CustomerID      uint64             `json:"customer_id"`
	State           enum.QuoteState    `json:"state"`
	Version         int                `json:"version"`
	Revision        int                `json:"revision"`
	Currency        stripe.Currency    `json:"currency"`
	Lines           []QuoteLine        `json:"lines"`
	Components      []QuoteComponent   `json:"components"`
	PaymentSchedule []PaymentMilestone `json:"payment_schedule"`
	MalleableData   MalleableData      `json:"malleable_data"`
	SchemaVersion   *int               `json:"malleable_schema_version,omitempty"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
	AcceptedAt      *time.Time         `json:"accepted_at,omitempty"`
	RejectedAt      *time.Time         `json:"rejected_at,omitempty"`
	ArchivedAt      *time.Time         `json:"archived_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func NewQuote(customerID uint64, currency stripe.Currency) *Quote {
	return &Quote{
		CustomerID:      customerID,
		State:           enum.QuoteStateDraft,
		Version:         1,
		Currency:        currency,
		Lines:           []QuoteLine{},
		Components:      []QuoteComponent{},
		PaymentSchedule: []PaymentMilestone{},
	}
}

func (q *Quote) IsTerminal() bool {
	return q.State.IsTerminal()
}

// Send moves a draft quote to sent.
func (q *Quote) Send(now time.Time) error {
	if q.State != enum.QuoteStateDraft {
		return apperr.InvalidState("quote %d cannot be sent from state %s", q.ID, q.State)
	}
	q.State = enum.QuoteStateSent
	q.SentAt = &now
	return nil
}

// Accept moves a draft or sent quote to accepted.
func (q *Quote) Accept(now time.Time) error {
	if q.State != enum.QuoteStateDraft && q.State != enum.QuoteStateSent {
		return apperr.InvalidState("quote %d cannot be accepted from state %s", q.ID, q.State)
	}
	q.State = enum.QuoteStateAccepted
	q.AcceptedAt = &now
	return nil
}

// Reject moves a draft or sent quote to rejected.
func (q *Quote) Reject(now time.Time) error {
	if q.State != enum.QuoteStateDraft && q.State != enum.QuoteStateSent {
		return apperr.InvalidState("quote %d cannot be rejected from state %s", q.ID, q.State)
	}
	q.State = enum.QuoteStateRejected
	q.RejectedAt = &now
	return nil
}

func (q *Quote) ensureEditable() error {
	if q.IsTerminal() {
		return apperr.InvalidState("quote %d is %s and can no longer be changed", q.ID, q.State)
	}
	return nil
}

func (q *Quote) AddLine(line QuoteLine) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	q.Lines = append(q.Lines, line)
	q.Version++
	return nil
}

func (q *Quote) RemoveLine(lineID string) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	for i, l := range q.Lines {
		if l.ID == lineID {
			q.Lines = append(q.Lines[:i], q.Lines[i+1:]...)
			q.Version++
			return nil
		}
	}
	return apperr.NotFound("line %s does not exist on quote %d", lineID, q.ID)
}

func (q *Quote) AddComponent(id string, c Component) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	q.Components = append(q.Components, QuoteComponent{ID: id, Component: c})
	q.Version++
	return nil
}

func (q *Quote) RemoveComponent(componentID string) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	for i, c := range q.Components {
		if c.ID == componentID {
			q.Components = append(q.Components[:i], q.Components[i+1:]...)
			q.Version++
			return nil
		}
	}
	return apperr.NotFound("component %s does not exist on quote %d", componentID, q.ID)
}

// SetPaymentSchedule replaces the milestones wholesale.
func (q *Quote) SetPaymentSchedule(milestones []PaymentMilestone) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	q.PaymentSchedule = append([]PaymentMilestone{}, milestones...)
	q.Version++
	return nil
}

// QuoteTotals are the derived money figures of a quote.
type QuoteTotals struct {
	LinesTotal       decimal.Decimal `json:"lines_total"`
	ComponentsTotal  decimal.Decimal `json:"components_total"`
	AdjustmentsTotal decimal.Decimal `json:"adjustments_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	InternalCost     decimal.Decimal `json:"internal_cost"`
	Margin           decimal.Decimal `json:"margin"`
}

// Totals computes the grand total as Σ line totals + Σ component sell totals
// + Σ adjustment amounts. Internal cost covers components only.
func (q *Quote) Totals(adjustments []*CostAdjustment) QuoteTotals {
	t := QuoteTotals{
		LinesTotal:       decimal.Zero,
		ComponentsTotal:  decimal.Zero,
		AdjustmentsTotal: decimal.Zero,
		InternalCost:     decimal.Zero,
	}
	for _, l := range q.Lines {
		t.LinesTotal = t.LinesTotal.Add(l.Total())
	}
	for _, c := range q.Components {
		t.ComponentsTotal = t.ComponentsTotal.Add(c.Component.SellTotal())
		t.InternalCost = t.InternalCost.Add(c.Component.CostTotal())
	}
	for _, a := range adjustments {
		t.AdjustmentsTotal = t.AdjustmentsTotal.Add(a.Amount)
	}
	t.GrandTotal = t.LinesTotal.Add(t.ComponentsTotal).Add(t.AdjustmentsTotal)
	t.Margin = t.GrandTotal.Sub(t.InternalCost)
	return t
}

// QuoteView is a quote together with its ledger and derived totals.
type QuoteView struct {
	*Quote
	Adjustments []*CostAdjustment `json:"adjustments"`
	Totals      QuoteTotals       `json:"totals"`
}

package enum

type QuoteState string

const (
	QuoteStateDraft    QuoteState = "draft"
	QuoteStateSent     QuoteState = "sent"
	QuoteStateAccepted QuoteState = "accepted"
	QuoteStateRejected QuoteState = "rejected"
	QuoteStateArchived QuoteState = "archived"
)

func (s QuoteState) IsValid() bool {
	switch s {
	case QuoteStateDraft, QuoteStateSent, QuoteStateAccepted, QuoteStateRejected, QuoteStateArchived:
		return true
	}
	return false
}

// IsTerminal reports whether financial mutation is closed for the state.
func (s QuoteState) IsTerminal() bool {
	switch s {
	case QuoteStateAccepted, QuoteStateRejected, QuoteStateArchived:
		return true
	}
	return false
}

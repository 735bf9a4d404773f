// Package domain contains core domain types for the auto-finance intake assistant.
package domain

// Phase is the coarse stage of a conversation session.
type Phase string

// Conversation phases in their normal order of progression.
const (
	PhaseOnboarding Phase = "onboarding"
	PhaseDiscovery  Phase = "discovery"
	PhaseProfiling  Phase = "profiling"
	PhaseQuotation  Phase = "quotation"
	PhaseSubmission Phase = "submission"
	PhaseCompleted  Phase = "completed"
)

// Phases lists every phase in progression order.
var Phases = []Phase{
	PhaseOnboarding,
	PhaseDiscovery,
	PhaseProfiling,
	PhaseQuotation,
	PhaseSubmission,
	PhaseCompleted,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// PendingDecision tags the human decision a suspended turn is waiting for.
// The zero value means no interrupt is outstanding.
type PendingDecision string

// Pending decision tags.
const (
	PendingNone                PendingDecision = ""
	AwaitingSearchConfirmation PendingDecision = "awaiting_search_confirmation"
	AwaitingVehicleSelection   PendingDecision = "awaiting_vehicle_selection"
	AwaitingQuoteConfirmation  PendingDecision = "awaiting_quote_confirmation"
)

// Valid reports whether d is a known tag (including none).
func (d PendingDecision) Valid() bool {
	switch d {
	case PendingNone, AwaitingSearchConfirmation, AwaitingVehicleSelection, AwaitingQuoteConfirmation:
		return true
	default:
		return false
	}
}

// String returns "none" for the zero tag.
func (d PendingDecision) String() string {
	if d == PendingNone {
		return "none"
	}
	return string(d)
}

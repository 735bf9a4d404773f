package engine

import (
	"errors"
	"fmt"

	"github.com/ashureev/autofinance/internal/domain"
)

// ErrIllegalTransition reports a phase change outside the transition table.
var ErrIllegalTransition = errors.New("illegal phase transition")

// transitions lists the phases reachable from each phase within a turn.
// Reset to Onboarding is allowed from anywhere and is not listed.
var transitions = map[domain.Phase]map[domain.Phase]bool{
	domain.PhaseOnboarding: {domain.PhaseDiscovery: true},
	domain.PhaseDiscovery:  {domain.PhaseProfiling: true},
	domain.PhaseProfiling:  {domain.PhaseQuotation: true, domain.PhaseDiscovery: true},
	domain.PhaseQuotation:  {domain.PhaseSubmission: true, domain.PhaseDiscovery: true},
	domain.PhaseSubmission: {domain.PhaseCompleted: true},
	domain.PhaseCompleted:  {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to domain.Phase) bool {
	if from == to || to == domain.PhaseOnboarding {
		return from.Valid()
	}
	return transitions[from][to]
}

// moveTo changes the phase and records the hop.
func (t *turn) moveTo(to domain.Phase) error {
	from := t.state.Phase
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	t.state.Phase = to
	t.res.Transitions = append(t.res.Transitions, Transition{From: from, To: to})
	return nil
}

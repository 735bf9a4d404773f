package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvariantViolation is returned by Validate when a state breaks a structural rule.
var ErrInvariantViolation = errors.New("conversation state invariant violated")

// ConversationState is the persisted progress of one session.
type ConversationState struct {
	SessionID string `json:"session_id"`
	// Version is owned by the checkpoint store and incremented on every save.
	Version int64 `json:"version"`

	Phase           Phase            `json:"phase"`
	Pending         PendingDecision  `json:"pending_decision,omitempty"`
	SearchCriteria  *SearchCriteria  `json:"search_criteria,omitempty"`
	Listings        []Vehicle        `json:"candidate_listings,omitempty"`
	SelectedVehicle *Vehicle         `json:"selected_vehicle,omitempty"`
	Profile         ApplicantProfile `json:"applicant_profile"`
	PolicyTerms     *PolicyTerms     `json:"policy_terms,omitempty"`
	Quote           *Quote           `json:"quote,omitempty"`
	Contact         *CustomerContact `json:"customer_contact,omitempty"`
	ApplicationID   string           `json:"application_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationState returns an empty Onboarding state for sessionID.
func NewConversationState(sessionID string, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID: sessionID,
		Phase:     PhaseOnboarding,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears all progress. Only the session identity and store metadata survive.
func (s *ConversationState) Reset() {
	*s = ConversationState{
		SessionID: s.SessionID,
		Version:   s.Version,
		Phase:     PhaseOnboarding,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Suspended reports whether an interrupt is outstanding.
func (s *ConversationState) Suspended() bool {
	return s.Pending != PendingNone
}

// Clone returns a deep copy that shares no memory with s.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	if s.SearchCriteria != nil {
		c := s.SearchCriteria.Clone()
		out.SearchCriteria = &c
	}
	if s.Listings != nil {
		out.Listings = append([]Vehicle(nil), s.Listings...)
	}
	if s.SelectedVehicle != nil {
		v := *s.SelectedVehicle
		out.SelectedVehicle = &v
	}
	out.Profile = s.Profile.Clone()
	if s.PolicyTerms != nil {
		t := *s.PolicyTerms
		out.PolicyTerms = &t
	}
	if s.Quote != nil {
		q := *s.Quote
		out.Quote = &q
	}
	if s.Contact != nil {
		c := *s.Contact
		out.Contact = &c
	}
	return &out
}

// Validate checks the structural invariants every persisted state must satisfy.
func (s *ConversationState) Validate() error {
	if s.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvariantViolation)
	}
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrInvariantViolation, s.Phase)
	}
	if !s.Pending.Valid() {
		return fmt.Errorf("%w: unknown pending decision %q", ErrInvariantViolation, s.Pending)
	}
	if s.ApplicationID != "" && s.Phase != PhaseCompleted {
		return fmt.Errorf("%w: application id set in phase %s", ErrInvariantViolation, s.Phase)
	}
	if s.Quote != nil {
		if s.PolicyTerms == nil || !s.PolicyTerms.IsEligible {
			return fmt.Errorf("%w: quote without eligible policy terms", ErrInvariantViolation)
		}
		if s.SelectedVehicle == nil {
			return fmt.Errorf("%w: quote without selected vehicle", ErrInvariantViolation)
		}
	}
	if len(s.Listings) > MaxListings {
		return fmt.Errorf("%w: %d listings exceeds %d", ErrInvariantViolation, len(s.Listings), MaxListings)
	}
	if len(s.Listings) > 0 && s.SearchCriteria == nil {
		return fmt.Errorf("%w: listings without search criteria", ErrInvariantViolation)
	}
	if s.Profile.MonthlyIncome != nil && *s.Profile.MonthlyIncome <= 0 {
		return fmt.Errorf("%w: non-positive monthly income", ErrInvariantViolation)
	}
	if s.Profile.ExistingDebt < 0 {
		return fmt.Errorf("%w: negative existing debt", ErrInvariantViolation)
	}
	switch s.Pending {
	case AwaitingSearchConfirmation:
		if s.SearchCriteria == nil {
			return fmt.Errorf("%w: search confirmation pending without criteria", ErrInvariantViolation)
		}
	case AwaitingVehicleSelection:
		if len(s.Listings) == 0 {
			return fmt.Errorf("%w: vehicle selection pending without listings", ErrInvariantViolation)
		}
	case AwaitingQuoteConfirmation:
		if s.Quote == nil {
			return fmt.Errorf("%w: quote confirmation pending without quote", ErrInvariantViolation)
		}
	}
	return nil
}

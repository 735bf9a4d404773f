// Package intent classifies user messages and extracts structured fields.
//
// Several strategies implement Classifier: deterministic regex rules, an
// OpenAI-backed model, and a remote gRPC service. The engine treats them
// interchangeably; Normalize is applied to every result so an unknown intent
// or a low-confidence answer degrades to Unclear.
package intent

import (
	"context"

	"github.com/ashureev/autofinance/internal/domain"
)

// Intent is the classified purpose of a user message.
type Intent string

// Known intents.
const (
	Search         Intent = "search"
	Confirm        Intent = "confirm"
	Reject         Intent = "reject"
	SelectVehicle  Intent = "select_vehicle"
	ProvideProfile Intent = "provide_profile"
	ProvideContact Intent = "provide_contact"
	StatusCheck    Intent = "status_check"
	Reset          Intent = "reset"
	Closing        Intent = "closing"
	Greeting       Intent = "greeting"
	Unclear        Intent = "unclear"
)

var known = map[Intent]struct{}{
	Search: {}, Confirm: {}, Reject: {}, SelectVehicle: {}, ProvideProfile: {},
	ProvideContact: {}, StatusCheck: {}, Reset: {}, Closing: {}, Greeting: {}, Unclear: {},
}

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	_, ok := known[i]
	return ok
}

// Fields holds whatever structured data the classifier extracted.
type Fields struct {
	Criteria      *domain.SearchCriteria
	Selection     int // 1-based, 0 when absent
	Profile       domain.ProfileUpdate
	Contact       domain.CustomerContact
	ApplicationID string
}

// IsEmpty reports whether nothing was extracted.
func (f Fields) IsEmpty() bool {
	return (f.Criteria == nil || f.Criteria.IsEmpty()) && f.Selection == 0 &&
		f.Profile.IsEmpty() && f.Contact.IsEmpty() && f.ApplicationID == ""
}

// Classification is the result of classifying one message.
type Classification struct {
	Intent     Intent
	Confidence float64
	Fields     Fields
}

// SessionContext is the slice of conversation state a classifier may use.
type SessionContext struct {
	SessionID    string
	Phase        domain.Phase
	Pending      domain.PendingDecision
	ListingCount int
}

// ContextFor builds a SessionContext from a state.
func ContextFor(s *domain.ConversationState) SessionContext {
	return SessionContext{
		SessionID:    s.SessionID,
		Phase:        s.Phase,
		Pending:      s.Pending,
		ListingCount: len(s.Listings),
	}
}

// Classifier resolves intent and extracted fields. Implementations must be
// safe to retry.
type Classifier interface {
	Classify(ctx context.Context, sc SessionContext, raw string) (Classification, error)
}

// DefaultMinConfidence is the confidence below which a classification is ignored.
const DefaultMinConfidence = 0.6

// Normalize maps unknown intents and answers below minConfidence to Unclear.
func Normalize(c Classification, minConfidence float64) Classification {
	if !c.Intent.Valid() || c.Intent == "" {
		return Classification{Intent: Unclear}
	}
	if c.Confidence < minConfidence {
		return Classification{Intent: Unclear, Confidence: c.Confidence}
	}
	if c.Fields.Criteria != nil && c.Fields.Criteria.IsEmpty() {
		c.Fields.Criteria = nil
	}
	return c
}

// Gate wraps a Classifier and applies Normalize to every result.
type Gate struct {
	next          Classifier
	minConfidence float64
}

// NewGate returns a Classifier that normalizes results from next.
func NewGate(next Classifier, minConfidence float64) *Gate {
	return &Gate{next: next, minConfidence: minConfidence}
}

// Classify implements Classifier.
func (g *Gate) Classify(ctx context.Context, sc SessionContext, raw string) (Classification, error) {
	c, err := g.next.Classify(ctx, sc, raw)
	if err != nil {
		return Classification{}, err
	}
	return Normalize(c, g.minConfidence), nil
}

package intent

import (
	"context"

	"github.com/ashureev/autofinance/internal/domain"
)

// RuleClassifier classifies messages with deterministic patterns. It never fails.
type RuleClassifier struct{}

// NewRuleClassifier returns a RuleClassifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify implements Classifier.
func (RuleClassifier) Classify(ctx context.Context, sc SessionContext, raw string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	return classifyRules(sc, raw), nil
}

func classifyRules(sc SessionContext, raw string) Classification {
	hit := func(i Intent, f Fields) Classification {
		return Classification{Intent: i, Confidence: 1, Fields: f}
	}

	switch {
	case IsReset(raw):
		return hit(Reset, Fields{})
	case IsStatusCheck(raw):
		return hit(StatusCheck, Fields{ApplicationID: ExtractApplicationID(raw)})
	case IsClosing(raw):
		return hit(Closing, Fields{})
	}

	switch ParseConfirmation(raw) {
	case ConfirmationYes:
		return hit(Confirm, Fields{})
	case ConfirmationNo:
		return hit(Reject, Fields{})
	}

	contact := ExtractContact(raw, sc.Phase == domain.PhaseSubmission)
	profile := ExtractProfile(raw)
	criteria := ExtractCriteria(raw)

	switch sc.Phase {
	case domain.PhaseSubmission:
		if !contact.IsEmpty() {
			return hit(ProvideContact, Fields{Contact: contact})
		}
	case domain.PhaseProfiling, domain.PhaseQuotation:
		if !profile.IsEmpty() {
			return hit(ProvideProfile, Fields{Profile: profile})
		}
	}

	if sc.ListingCount > 0 {
		if n, ok := ParseSelection(raw); ok && criteria == nil {
			return hit(SelectVehicle, Fields{Selection: n})
		}
	}
	if criteria != nil {
		return hit(Search, Fields{Criteria: criteria})
	}
	if !profile.IsEmpty() {
		return hit(ProvideProfile, Fields{Profile: profile})
	}
	if contact.Email != "" || contact.Phone != "" {
		return hit(ProvideContact, Fields{Contact: contact})
	}
	if IsGreeting(raw) {
		return hit(Greeting, Fields{})
	}
	return Classification{Intent: Unclear}
}

package intent

import (
	"context"
	"testing"

	"github.com/ashureev/autofinance/internal/domain"
)

func TestRuleClassifier(t *testing.T) {
	tests := []struct {
		name  string
		sc    SessionContext
		in    string
		want  Intent
		check func(*testing.T, Fields)
	}{
		{
			name: "search in onboarding",
			sc:   SessionContext{Phase: domain.PhaseOnboarding},
			in:   "Find a 2022 Toyota Corolla under 500000",
			want: Search,
			check: func(t *testing.T, f Fields) {
				if f.Criteria == nil || f.Criteria.Model != "Corolla" {
					t.Fatalf("criteria = %+v", f.Criteria)
				}
			},
		},
		{name: "confirm", sc: SessionContext{Phase: domain.PhaseDiscovery}, in: "yes", want: Confirm},
		{name: "reject", sc: SessionContext{Phase: domain.PhaseQuotation}, in: "no", want: Reject},
		{name: "reset wins", sc: SessionContext{Phase: domain.PhaseSubmission}, in: "yes, start over", want: Reset},
		{name: "status", sc: SessionContext{Phase: domain.PhaseProfiling}, in: "what's my application status?", want: StatusCheck},
		{name: "closing", sc: SessionContext{Phase: domain.PhaseCompleted}, in: "thank you", want: Closing},
		{
			name: "selection with listings",
			sc:   SessionContext{Phase: domain.PhaseDiscovery, ListingCount: 3},
			in:   "the second one",
			want: SelectVehicle,
			check: func(t *testing.T, f Fields) {
				if f.Selection != 2 {
					t.Fatalf("selection = %d", f.Selection)
				}
			},
		},
		{
			name: "profile in profiling",
			sc:   SessionContext{Phase: domain.PhaseProfiling},
			in:   "I earn 20000 and I'm salaried",
			want: ProvideProfile,
			check: func(t *testing.T, f Fields) {
				if f.Profile.MonthlyIncome == nil || *f.Profile.MonthlyIncome != 20000 {
					t.Fatalf("profile = %+v", f.Profile)
				}
			},
		},
		{
			name: "contact in submission",
			sc:   SessionContext{Phase: domain.PhaseSubmission},
			in:   "my name is Omar Said, omar@example.com",
			want: ProvideContact,
			check: func(t *testing.T, f Fields) {
				if f.Contact.FullName != "Omar Said" || f.Contact.Email != "omar@example.com" {
					t.Fatalf("contact = %+v", f.Contact)
				}
			},
		},
		{name: "greeting", sc: SessionContext{Phase: domain.PhaseOnboarding}, in: "hello", want: Greeting},
		{name: "gibberish", sc: SessionContext{Phase: domain.PhaseOnboarding}, in: "purple monkey dishwasher", want: Unclear},
	}

	rc := NewRuleClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rc.Classify(context.Background(), tt.sc, tt.in)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Intent != tt.want {
				t.Fatalf("Intent = %s, want %s", got.Intent, tt.want)
			}
			if tt.check != nil {
				tt.check(t, got.Fields)
			}
		})
	}
}

func TestGateNormalizes(t *testing.T) {
	tests := []struct {
		name string
		in   Classification
		want Intent
	}{
		{"unknown intent", Classification{Intent: "dance", Confidence: 1}, Unclear},
		{"empty intent", Classification{Confidence: 1}, Unclear},
		{"low confidence", Classification{Intent: Search, Confidence: 0.3}, Unclear},
		{"at threshold", Classification{Intent: Search, Confidence: 0.6}, Search},
		{"confident", Classification{Intent: Confirm, Confidence: 0.95}, Confirm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(stubClassifier{c: tt.in}, DefaultMinConfidence)
			got, err := g.Classify(context.Background(), SessionContext{}, "x")
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Intent != tt.want {
				t.Fatalf("Intent = %s, want %s", got.Intent, tt.want)
			}
			if got.Intent == Unclear && !got.Fields.IsEmpty() {
				t.Fatal("unclear result kept extracted fields")
			}
		})
	}
}

type stubClassifier struct {
	c   Classification
	err error
}

func (s stubClassifier) Classify(context.Context, SessionContext, string) (Classification, error) {
	return s.c, s.err
}

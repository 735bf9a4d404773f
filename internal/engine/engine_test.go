package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/eligibility"
	"github.com/ashureev/autofinance/internal/intent"
	"github.com/ashureev/autofinance/internal/policy"
	"github.com/ashureev/autofinance/internal/store"
)

var corollas = []domain.Vehicle{
	{Name: "Toyota Corolla 2022", Make: "Toyota", Model: "Corolla", Year: 2022, Price: 450000, Mileage: 30000},
	{Name: "Toyota Corolla Elite 2022", Make: "Toyota", Model: "Corolla", Year: 2022, Price: 490000},
}

type fakeSearcher struct {
	vehicles []domain.Vehicle
	err      error
	block    bool
	calls    int
	last     domain.SearchCriteria
}

func (f *fakeSearcher) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Vehicle, error) {
	f.calls++
	f.last = c.Clone()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Vehicle(nil), f.vehicles...), nil
}

func fixedClock() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

type harness struct {
	t          *testing.T
	engine     *Engine
	searcher   *fakeSearcher
	apps       *store.MemoryStore
	classifier intent.Classifier
	state      *domain.ConversationState
}

func newHarness(t *testing.T, vehicles []domain.Vehicle) *harness {
	t.Helper()
	catalog, err := policy.Default()
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		t:          t,
		searcher:   &fakeSearcher{vehicles: vehicles},
		apps:       store.NewMemory(),
		classifier: intent.NewGate(intent.NewRuleClassifier(), intent.DefaultMinConfidence),
		state:      domain.NewConversationState("session-1", fixedClock()),
	}
	h.engine, err = New(Deps{
		Searcher:     h.searcher,
		Evaluator:    eligibility.NewEvaluator(catalog, fixedClock),
		Applications: h.apps,
	}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// send classifies raw with the rule classifier and runs one turn.
func (h *harness) send(raw string) Result {
	h.t.Helper()
	ctx := context.Background()
	cls, err := h.classifier.Classify(ctx, intent.ContextFor(h.state), raw)
	if err != nil {
		h.t.Fatalf("Classify(%q) error = %v", raw, err)
	}
	res, err := h.engine.Step(ctx, h.state, raw, cls)
	if err != nil {
		h.t.Fatalf("Step(%q) error = %v", raw, err)
	}
	if err := h.state.Validate(); err != nil {
		h.t.Fatalf("state after %q is invalid: %v", raw, err)
	}
	return res
}

func (h *harness) expect(phase domain.Phase, pending domain.PendingDecision) {
	h.t.Helper()
	if h.state.Phase != phase || h.state.Pending != pending {
		h.t.Fatalf("phase/pending = %s/%q, want %s/%q", h.state.Phase, h.state.Pending, phase, pending)
	}
}

// toSelection drives a fresh session to the listing prompt.
func (h *harness) toSelection() {
	h.t.Helper()
	h.send("Find a 2022 Toyota Corolla under 500000")
	h.send("yes")
	h.expect(domain.PhaseDiscovery, domain.AwaitingVehicleSelection)
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{}, DefaultConfig()); err == nil {
		t.Fatal("New() with no collaborators succeeded")
	}
}

func TestSearchConfirmationFindsListings(t *testing.T) {
	h := newHarness(t, corollas)

	res := h.send("Find a 2022 Toyota Corolla under 500000")
	h.expect(domain.PhaseDiscovery, domain.AwaitingSearchConfirmation)
	if res.Prompt == nil || res.Prompt.Tag != domain.AwaitingSearchConfirmation {
		t.Fatalf("Prompt = %+v", res.Prompt)
	}
	if len(res.Transitions) != 1 || res.Transitions[0] != (Transition{From: domain.PhaseOnboarding, To: domain.PhaseDiscovery}) {
		t.Fatalf("Transitions = %+v", res.Transitions)
	}
	if h.searcher.calls != 0 {
		t.Fatal("search ran before confirmation")
	}

	res = h.send("yes")
	h.expect(domain.PhaseDiscovery, domain.AwaitingVehicleSelection)
	if len(h.state.Listings) != 2 {
		t.Fatalf("listings = %d, want 2", len(h.state.Listings))
	}
	if h.searcher.last.Model != "Corolla" || h.searcher.last.PriceCap == nil || *h.searcher.last.PriceCap != 500000 {
		t.Fatalf("search criteria = %+v", h.searcher.last)
	}
	if len(res.Prompt.Options) != 2 || !strings.Contains(res.Reply, "1. Toyota Corolla 2022") {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestSearchWithNoResultsStaysInDiscovery(t *testing.T) {
	h := newHarness(t, nil)

	h.send("Find a 2022 Toyota Corolla under 500000")
	res := h.send("yes")

	h.expect(domain.PhaseDiscovery, domain.PendingNone)
	if h.state.Listings != nil {
		t.Fatalf("listings = %+v, want nil", h.state.Listings)
	}
	if !strings.Contains(res.Reply, "couldn't find any vehicles") {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestSearchRejectClearsCriteria(t *testing.T) {
	h := newHarness(t, corollas)

	h.send("Find a 2022 Toyota Corolla under 500000")
	res := h.send("no")

	h.expect(domain.PhaseDiscovery, domain.PendingNone)
	if h.state.SearchCriteria != nil || h.searcher.calls != 0 {
		t.Fatalf("criteria = %+v, calls = %d", h.state.SearchCriteria, h.searcher.calls)
	}
	if res.Reply != searchCancelledMessage {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestUnclearSearchAnswerAsksAgain(t *testing.T) {
	h := newHarness(t, corollas)

	h.send("Find a 2022 Toyota Corolla under 500000")
	res := h.send("hmm, maybe")

	h.expect(domain.PhaseDiscovery, domain.AwaitingSearchConfirmation)
	if !strings.Contains(res.Reply, "Please reply \"yes\"") {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestVehicleSelection(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		phase   domain.Phase
		pending domain.PendingDecision
		reply   string
	}{
		{"out of range", "7", domain.PhaseDiscovery, domain.AwaitingVehicleSelection, "from 1 to 2"},
		{"unclear", "the blue one", domain.PhaseDiscovery, domain.AwaitingVehicleSelection, "from 1 to 2"},
		{"back", "0", domain.PhaseDiscovery, domain.PendingNone, searchCancelledMessage},
		{"first", "1", domain.PhaseProfiling, domain.PendingNone, "your monthly income"},
		{"ordinal", "the second one", domain.PhaseProfiling, domain.PendingNone, "Toyota Corolla Elite 2022"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, corollas)
			h.toSelection()

			res := h.send(tt.answer)
			h.expect(tt.phase, tt.pending)
			if !strings.Contains(res.Reply, tt.reply) {
				t.Fatalf("reply = %q, want it to contain %q", res.Reply, tt.reply)
			}
		})
	}
}

func TestIneligibleApplicantReturnsToListings(t *testing.T) {
	h := newHarness(t, corollas)
	h.toSelection()
	h.send("1")

	res := h.send("I'm self-employed and earn 3,000 EGP a month")

	h.expect(domain.PhaseDiscovery, domain.AwaitingVehicleSelection)
	terms := h.state.PolicyTerms
	if terms == nil || terms.IsEligible {
		t.Fatalf("PolicyTerms = %+v, want ineligible", terms)
	}
	if !strings.Contains(terms.RejectionReason, "10000") || !strings.Contains(terms.RejectionReason, "3000") {
		t.Fatalf("RejectionReason = %q", terms.RejectionReason)
	}
	if h.state.SelectedVehicle != nil || h.state.Quote != nil {
		t.Fatal("ineligible turn kept the vehicle or quote")
	}
	if !strings.Contains(res.Reply, terms.RejectionReason) || !strings.Contains(res.Reply, "1. Toyota Corolla 2022") {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestQuoteThroughSubmission(t *testing.T) {
	h := newHarness(t, corollas)
	h.toSelection()
	h.send("1")

	res := h.send("I'm salaried and earn 30,000 EGP a month")
	h.expect(domain.PhaseQuotation, domain.AwaitingQuoteConfirmation)
	q := h.state.Quote
	if q == nil || !q.IsAffordable {
		t.Fatalf("Quote = %+v, want affordable", q)
	}
	if q.Principal != 360000 || q.DownPayment != 90000 || q.TenureMonths != 60 || q.InterestRateAnnual != 0.18 {
		t.Fatalf("Quote = %+v", q)
	}
	if !strings.Contains(res.Reply, "Pre-approval estimate") {
		t.Fatalf("reply = %q", res.Reply)
	}

	res = h.send("yes")
	h.expect(domain.PhaseSubmission, domain.PendingNone)
	if !strings.Contains(res.Reply, "full name, email, and phone") {
		t.Fatalf("reply = %q", res.Reply)
	}

	res = h.send("mona.adel@example.com")
	h.expect(domain.PhaseSubmission, domain.PendingNone)
	if !strings.Contains(res.Reply, "full name and phone") {
		t.Fatalf("reply = %q", res.Reply)
	}

	res = h.send("My name is Mona Adel, 01012345678")
	h.expect(domain.PhaseCompleted, domain.PendingNone)
	id := h.state.ApplicationID
	if id == "" || !strings.Contains(res.Reply, "Application ID: "+id) {
		t.Fatalf("application id = %q, reply = %q", id, res.Reply)
	}

	app, err := h.apps.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if app.Status != domain.StatusPendingReview || app.Contact.FullName != "Mona Adel" || app.Quote != *q {
		t.Fatalf("application = %+v", app)
	}

	res = h.send("thanks")
	if !strings.Contains(res.Reply, id) {
		t.Fatalf("closing reply = %q", res.Reply)
	}
	res = h.send("anything else?")
	if res.Reply != completedReminderMessage(id) {
		t.Fatalf("reminder reply = %q", res.Reply)
	}
}

func TestUnaffordableQuote(t *testing.T) {
	h := newHarness(t, corollas)
	h.toSelection()
	h.send("1")

	res := h.send("I'm salaried and earn 12,000 EGP a month")
	h.expect(domain.PhaseQuotation, domain.PendingNone)
	if h.state.Quote == nil || h.state.Quote.IsAffordable {
		t.Fatalf("Quote = %+v, want unaffordable", h.state.Quote)
	}
	if !strings.Contains(res.Reply, "Affordability concern") {
		t.Fatalf("reply = %q", res.Reply)
	}

	t.Run("continue anyway", func(t *testing.T) {
		h.send("continue anyway")
		h.expect(domain.PhaseQuotation, domain.AwaitingQuoteConfirmation)
		h.send("yes")
		h.expect(domain.PhaseSubmission, domain.PendingNone)
	})
}

func TestUnaffordableDifferentVehicle(t *testing.T) {
	h := newHarness(t, corollas)
	h.toSelection()
	h.send("1")
	h.send("I'm salaried and earn 12,000 EGP a month")

	res := h.send("different vehicle please")

	h.expect(domain.PhaseDiscovery, domain.AwaitingVehicleSelection)
	if h.state.SelectedVehicle != nil || h.state.Quote != nil || h.state.PolicyTerms != nil {
		t.Fatal("vehicle, terms, or quote survived the reject")
	}
	if len(h.state.Listings) != 2 || !strings.Contains(res.Reply, differentVehicleMessage) {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestProfileUpdateRequotes(t *testing.T) {
	h := newHarness(t, corollas)
	h.toSelection()
	h.send("1")
	h.send("I'm salaried and earn 12,000 EGP a month")

	h.send("actually my salary is 30,000")

	h.expect(domain.PhaseQuotation, domain.AwaitingQuoteConfirmation)
	if !h.state.Quote.IsAffordable {
		t.Fatalf("Quote = %+v, want affordable after the raise", h.state.Quote)
	}
}

func TestQuoteRejectAtConfirmation(t *testing.T) {
	h := newHarness(t, corollas)
	h.toSelection()
	h.send("1")
	h.send("I'm salaried and earn 30,000 EGP a month")

	h.send("no")

	h.expect(domain.PhaseDiscovery, domain.AwaitingVehicleSelection)
	if h.state.Quote != nil {
		t.Fatal("quote survived the reject")
	}
}

func TestStepWhilePendingIgnoresClassification(t *testing.T) {
	h := newHarness(t, corollas)
	h.send("Find a 2022 Toyota Corolla under 500000")

	other := domain.SearchCriteria{Make: "Kia", Model: "Sportage"}
	cls := intent.Classification{Intent: intent.Search, Confidence: 1, Fields: intent.Fields{Criteria: &other}}
	res, err := h.engine.Step(context.Background(), h.state, "yes", cls)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	if res.Decision != "confirm" {
		t.Fatalf("Decision = %q, want confirm", res.Decision)
	}
	if h.searcher.last.Model != "Corolla" || h.state.SearchCriteria.Model != "Corolla" {
		t.Fatalf("classification leaked into a pending turn: searched %+v", h.searcher.last)
	}
}

func TestResetFromEveryPhase(t *testing.T) {
	drive := map[domain.Phase][]string{
		domain.PhaseOnboarding: nil,
		domain.PhaseDiscovery:  {"Find a 2022 Toyota Corolla under 500000", "yes"},
		domain.PhaseProfiling:  {"Find a 2022 Toyota Corolla under 500000", "yes", "1"},
		domain.PhaseQuotation:  {"Find a 2022 Toyota Corolla under 500000", "yes", "1", "I'm salaried and earn 30,000 EGP a month"},
		domain.PhaseSubmission: {"Find a 2022 Toyota Corolla under 500000", "yes", "1", "I'm salaried and earn 30,000 EGP a month", "yes"},
		domain.PhaseCompleted: {"Find a 2022 Toyota Corolla under 500000", "yes", "1", "I'm salaried and earn 30,000 EGP a month", "yes",
			"My name is Mona Adel, mona.adel@example.com, 01012345678"},
	}
	for phase, msgs := range drive {
		t.Run(string(phase), func(t *testing.T) {
			h := newHarness(t, corollas)
			for _, m := range msgs {
				h.send(m)
			}
			if h.state.Phase != phase {
				t.Fatalf("setup reached %s, want %s", h.state.Phase, phase)
			}

			res := h.engine.Reset(h.state)

			want := domain.NewConversationState("session-1", fixedClock())
			if h.state.Phase != want.Phase || h.state.Pending != "" || h.state.Listings != nil ||
				h.state.SearchCriteria != nil || h.state.Quote != nil || h.state.ApplicationID != "" ||
				h.state.Profile.MonthlyIncome != nil || h.state.SessionID != want.SessionID {
				t.Fatalf("state after reset = %+v", h.state)
			}
			if res.Reply != resetMessage {
				t.Fatalf("reply = %q", res.Reply)
			}
			if phase != domain.PhaseOnboarding && len(res.Transitions) != 1 {
				t.Fatalf("Transitions = %+v", res.Transitions)
			}
		})
	}
}

func TestStatusCheck(t *testing.T) {
	h := newHarness(t, corollas)
	id, err := h.apps.Create(context.Background(), domain.Application{
		SessionID: "other-session",
		Vehicle:   corollas[0],
		Quote:     domain.Quote{MonthlyInstallment: 9141.6, TenureMonths: 60},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		msg   string
		reply string
	}{
		{"known", "What is the status of application " + id + "?", "Status: Pending review"},
		{"unknown", "status of 6f1c2a4e-8d3b-4c5a-9e7f-0a1b2c3d4e5f", "couldn't find an application"},
		{"missing id", "check my application status", askApplicationIDMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.send(tt.msg)
			if !strings.Contains(res.Reply, tt.reply) {
				t.Fatalf("reply = %q, want it to contain %q", res.Reply, tt.reply)
			}
			h.expect(domain.PhaseOnboarding, domain.PendingNone)
		})
	}
}

func TestCollaboratorFailure(t *testing.T) {
	boom := errors.New("marketplace down")
	h := newHarness(t, nil)
	h.searcher.err = boom
	h.send("Find a 2022 Toyota Corolla under 500000")

	_, err := h.engine.Step(context.Background(), h.state, "yes", intent.Classification{})

	var ce *CollaboratorError
	if !errors.As(err, &ce) || ce.Collaborator != CollaboratorListing {
		t.Fatalf("Step() error = %v, want listing CollaboratorError", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Step() error = %v, want it to wrap %v", err, boom)
	}
}

func TestCollaboratorTimeout(t *testing.T) {
	h := newHarness(t, nil)
	h.searcher.block = true
	cfg := DefaultConfig()
	cfg.CollaboratorTimeout = 20 * time.Millisecond
	h.engine.cfg = cfg
	h.send("Find a 2022 Toyota Corolla under 500000")

	_, err := h.engine.Step(context.Background(), h.state, "yes", intent.Classification{})

	var ce *CollaboratorError
	if !errors.As(err, &ce) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Step() error = %v, want a timed-out CollaboratorError", err)
	}
}

func TestResumeWithoutPendingFails(t *testing.T) {
	h := newHarness(t, corollas)

	_, err := h.engine.Resume(context.Background(), h.state, "yes")
	if err == nil {
		t.Fatal("Resume() on an unsuspended state succeeded")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.Phase
		want     bool
	}{
		{domain.PhaseOnboarding, domain.PhaseDiscovery, true},
		{domain.PhaseOnboarding, domain.PhaseQuotation, false},
		{domain.PhaseDiscovery, domain.PhaseProfiling, true},
		{domain.PhaseDiscovery, domain.PhaseQuotation, false},
		{domain.PhaseProfiling, domain.PhaseQuotation, true},
		{domain.PhaseProfiling, domain.PhaseDiscovery, true},
		{domain.PhaseQuotation, domain.PhaseSubmission, true},
		{domain.PhaseQuotation, domain.PhaseDiscovery, true},
		{domain.PhaseQuotation, domain.PhaseQuotation, true},
		{domain.PhaseSubmission, domain.PhaseCompleted, true},
		{domain.PhaseSubmission, domain.PhaseDiscovery, false},
		{domain.PhaseCompleted, domain.PhaseDiscovery, false},
		{domain.PhaseCompleted, domain.PhaseOnboarding, true},
		{domain.Phase("bogus"), domain.PhaseOnboarding, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMoveToRejectsIllegalHop(t *testing.T) {
	tr := &turn{state: domain.NewConversationState("s", fixedClock())}

	err := tr.moveTo(domain.PhaseCompleted)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("moveTo() error = %v, want ErrIllegalTransition", err)
	}
	if tr.state.Phase != domain.PhaseOnboarding || len(tr.res.Transitions) != 0 {
		t.Fatal("illegal hop changed the state")
	}
}

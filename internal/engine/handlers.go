package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/finance"
	"github.com/ashureev/autofinance/internal/intent"
	"github.com/ashureev/autofinance/internal/interrupt"
	"github.com/ashureev/autofinance/internal/store"
)

func (e *Engine) onboarding(ctx context.Context, t *turn) error {
	if c := t.cls.Fields.Criteria; c != nil {
		return e.startSearch(t, *c)
	}
	if mergeProfile(t) {
		t.say(profileNotedMessage(t.state.Profile), askVehicleMessage)
		return nil
	}
	t.say(welcomeMessage)
	return nil
}

func (e *Engine) discovery(ctx context.Context, t *turn) error {
	if c := t.cls.Fields.Criteria; c != nil {
		return e.startSearch(t, *c)
	}
	if n := t.cls.Fields.Selection; t.cls.Intent == intent.SelectVehicle && n > 0 {
		return e.choose(ctx, t, n)
	}
	noted := mergeProfile(t)
	if noted {
		t.say(profileNotedMessage(t.state.Profile))
	}

	switch {
	case len(t.state.Listings) > 0:
		return e.offerListings(t, "")
	case t.state.SearchCriteria != nil && t.cls.Intent == intent.Confirm:
		return e.suspend(t, domain.AwaitingSearchConfirmation, searchConfirmMessage(*t.state.SearchCriteria))
	case t.state.SearchCriteria != nil:
		t.say(searchAgainMessage)
	default:
		t.say(askVehicleMessage)
	}
	return nil
}

func (e *Engine) profiling(ctx context.Context, t *turn) error {
	if t.state.SelectedVehicle == nil {
		return fmt.Errorf("%w: profiling without a selected vehicle", domain.ErrInvariantViolation)
	}
	if c := t.cls.Fields.Criteria; c != nil && t.cls.Intent == intent.Search {
		return e.startSearch(t, *c)
	}
	mergeProfile(t)
	if !t.state.Profile.Complete() {
		t.say(askProfileMessage(t.state.Profile))
		return nil
	}
	return e.evaluateAndQuote(ctx, t)
}

func (e *Engine) quotation(ctx context.Context, t *turn) error {
	if c := t.cls.Fields.Criteria; c != nil && t.cls.Intent == intent.Search {
		return e.startSearch(t, *c)
	}
	if mergeProfile(t) {
		return e.evaluateAndQuote(ctx, t)
	}
	if t.state.Quote == nil {
		return fmt.Errorf("%w: quotation without a quote", domain.ErrInvariantViolation)
	}

	switch t.cls.Intent {
	case intent.Confirm:
		return e.suspend(t, domain.AwaitingQuoteConfirmation, quoteSummaryMessage(*t.state.SelectedVehicle, *t.state.Quote, *t.state.PolicyTerms))
	case intent.Reject:
		return e.backToListings(t, differentVehicleMessage)
	}
	if t.state.Quote.IsAffordable {
		return e.suspend(t, domain.AwaitingQuoteConfirmation, quoteSummaryMessage(*t.state.SelectedVehicle, *t.state.Quote, *t.state.PolicyTerms))
	}
	t.say(unaffordableMessage(*t.state.Quote, t.state.Profile, *t.state.PolicyTerms))
	return nil
}

func (e *Engine) submission(ctx context.Context, t *turn) error {
	s := t.state
	if s.SelectedVehicle == nil || s.Quote == nil {
		return fmt.Errorf("%w: submission without a quoted vehicle", domain.ErrInvariantViolation)
	}
	if s.Contact == nil {
		s.Contact = &domain.CustomerContact{}
	}
	s.Contact.Merge(t.cls.Fields.Contact)
	if !s.Contact.Complete() {
		t.say(askContactMessage(*s.Contact))
		return nil
	}

	app := domain.Application{
		SessionID: s.SessionID,
		Contact:   *s.Contact,
		Vehicle:   *s.SelectedVehicle,
		Profile:   s.Profile.Clone(),
		Quote:     *s.Quote,
		Status:    domain.StatusPendingReview,
	}
	var id string
	err := e.call(ctx, CollaboratorApplications, func(ctx context.Context) error {
		var err error
		id, err = e.deps.Applications.Create(ctx, app)
		return err
	})
	if err != nil {
		return err
	}

	s.ApplicationID = id
	if err := t.moveTo(domain.PhaseCompleted); err != nil {
		return err
	}
	e.logger.Info("Application submitted", "session_id", s.SessionID, "application_id", id)
	t.say(submittedMessage(id, *s.Contact))
	return nil
}

func (e *Engine) completed(ctx context.Context, t *turn) error {
	if t.cls.Intent == intent.Closing {
		t.say(closingMessage(t.state.ApplicationID))
		return nil
	}
	t.say(completedReminderMessage(t.state.ApplicationID))
	return nil
}

func (e *Engine) statusCheck(ctx context.Context, t *turn) error {
	id := t.cls.Fields.ApplicationID
	if id == "" {
		id = t.state.ApplicationID
	}
	if id == "" {
		t.say(askApplicationIDMessage)
		return nil
	}

	var app *domain.Application
	err := e.call(ctx, CollaboratorApplications, func(ctx context.Context) error {
		var err error
		app, err = e.deps.Applications.Get(ctx, id)
		return err
	}, store.ErrNotFound)
	if errors.Is(err, store.ErrNotFound) {
		t.say(applicationNotFoundMessage(id))
		return nil
	}
	if err != nil {
		return err
	}
	t.say(applicationStatusMessage(*app))
	return nil
}

func (e *Engine) resumeSearch(ctx context.Context, t *turn, d interrupt.Decision) error {
	s := t.state
	switch d.Kind {
	case interrupt.DecisionConfirm:
		listings, err := e.search(ctx, *s.SearchCriteria)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			s.Listings = nil
			t.say(noResultsMessage(*s.SearchCriteria))
			return nil
		}
		s.Listings = listings
		return e.offerListings(t, foundMessage(len(listings), *s.SearchCriteria))
	case interrupt.DecisionReject:
		s.SearchCriteria = nil
		s.Listings = nil
		t.say(searchCancelledMessage)
		return nil
	case interrupt.DecisionModify:
		return e.startSearch(t, *d.Criteria)
	default:
		return e.suspend(t, domain.AwaitingSearchConfirmation, clarifySearchMessage(*s.SearchCriteria))
	}
}

func (e *Engine) resumeSelection(ctx context.Context, t *turn, d interrupt.Decision) error {
	s := t.state
	if len(s.Listings) == 0 {
		t.say(noVehiclesMessage)
		return nil
	}
	switch d.Kind {
	case interrupt.DecisionSelect:
		return e.choose(ctx, t, d.Index)
	case interrupt.DecisionBack:
		s.Listings = nil
		s.SearchCriteria = nil
		t.say(searchCancelledMessage)
		return nil
	default:
		return e.offerListings(t, selectionRangeMessage(len(s.Listings)))
	}
}

func (e *Engine) resumeQuote(ctx context.Context, t *turn, d interrupt.Decision) error {
	s := t.state
	switch d.Kind {
	case interrupt.DecisionConfirm:
		if err := t.moveTo(domain.PhaseSubmission); err != nil {
			return err
		}
		contact := domain.CustomerContact{}
		if s.Contact != nil {
			contact = *s.Contact
		}
		t.say(askContactMessage(contact))
		return nil
	case interrupt.DecisionReject:
		return e.backToListings(t, differentVehicleMessage)
	default:
		return e.suspend(t, domain.AwaitingQuoteConfirmation, clarifyQuoteMessage)
	}
}

// startSearch replaces the criteria and asks the user to confirm the search.
func (e *Engine) startSearch(t *turn, c domain.SearchCriteria) error {
	s := t.state
	if err := t.moveTo(domain.PhaseDiscovery); err != nil {
		return err
	}
	criteria := c.Clone()
	s.SearchCriteria = &criteria
	s.Listings = nil
	s.SelectedVehicle = nil
	s.PolicyTerms = nil
	s.Quote = nil
	return e.suspend(t, domain.AwaitingSearchConfirmation, searchConfirmMessage(criteria))
}

// choose selects listing n (1-based) and moves to Profiling.
func (e *Engine) choose(ctx context.Context, t *turn, n int) error {
	s := t.state
	if len(s.Listings) == 0 {
		t.say(noVehiclesMessage)
		return nil
	}
	if n < 1 || n > len(s.Listings) {
		return e.offerListings(t, selectionRangeMessage(len(s.Listings)))
	}

	v := s.Listings[n-1]
	s.SelectedVehicle = &v
	s.PolicyTerms = nil
	s.Quote = nil
	if err := t.moveTo(domain.PhaseProfiling); err != nil {
		return err
	}
	t.say(selectedMessage(v))
	if !s.Profile.Complete() {
		t.say(askProfileMessage(s.Profile))
		return nil
	}
	return e.evaluateAndQuote(ctx, t)
}

// evaluateAndQuote runs eligibility and, when eligible, prices the loan.
func (e *Engine) evaluateAndQuote(ctx context.Context, t *turn) error {
	s := t.state
	terms, err := e.evaluate(ctx, s.Profile, *s.SelectedVehicle)
	if err != nil {
		return err
	}
	s.PolicyTerms = &terms
	s.Quote = nil

	if !terms.IsEligible {
		s.SelectedVehicle = nil
		if err := t.moveTo(domain.PhaseDiscovery); err != nil {
			return err
		}
		e.logger.Info("Applicant ineligible", "session_id", s.SessionID, "reason", terms.RejectionReason)
		if len(s.Listings) == 0 {
			t.say(ineligibleMessage(terms), searchAgainMessage)
			return nil
		}
		return e.offerListings(t, ineligibleMessage(terms))
	}

	if err := t.moveTo(domain.PhaseQuotation); err != nil {
		return err
	}
	quote, err := finance.BuildQuote(finance.QuoteInput{
		VehiclePrice:     s.SelectedVehicle.Price,
		DownPaymentRatio: e.cfg.DownPaymentRatio,
		Terms:            terms,
		TenureMonths:     finance.Tenure(terms.MaxTenureMonths, e.cfg.DefaultTenureMonths),
		Profile:          s.Profile,
	})
	if err != nil {
		return fmt.Errorf("build quote: %w", err)
	}
	s.Quote = &quote

	if !quote.IsAffordable {
		t.say(unaffordableMessage(quote, s.Profile, terms))
		return nil
	}
	return e.suspend(t, domain.AwaitingQuoteConfirmation, quoteSummaryMessage(*s.SelectedVehicle, quote, terms))
}

// backToListings drops the selected vehicle and re-offers the listings.
func (e *Engine) backToListings(t *turn, lead string) error {
	s := t.state
	s.SelectedVehicle = nil
	s.PolicyTerms = nil
	s.Quote = nil
	if err := t.moveTo(domain.PhaseDiscovery); err != nil {
		return err
	}
	if len(s.Listings) == 0 {
		t.say(lead, searchAgainMessage)
		return nil
	}
	return e.offerListings(t, lead)
}

// offerListings suspends for a vehicle choice from the current listings.
func (e *Engine) offerListings(t *turn, lead string) error {
	options := make([]string, len(t.state.Listings))
	for i, v := range t.state.Listings {
		options[i] = v.Summary()
	}
	t.say(lead)
	return e.suspend(t, domain.AwaitingVehicleSelection, listingsMessage(options), options...)
}

// mergeProfile folds any extracted profile fields into the state.
func mergeProfile(t *turn) bool {
	u := t.cls.Fields.Profile
	if u.IsEmpty() {
		return false
	}
	// Income must stay positive; a zero or negative reading is ignored.
	if u.MonthlyIncome != nil && *u.MonthlyIncome <= 0 {
		u.MonthlyIncome = nil
	}
	if u.ExistingDebt != nil && *u.ExistingDebt < 0 {
		u.ExistingDebt = nil
	}
	return t.state.Profile.Merge(u)
}

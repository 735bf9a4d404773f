// Package engine advances a conversation by one turn.
//
// Each phase has a handler in a dispatch table. A turn either resumes an
// outstanding interrupt or handles a freshly classified message; a pending
// decision always takes precedence over the classification.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/finance"
	"github.com/ashureev/autofinance/internal/intent"
	"github.com/ashureev/autofinance/internal/interrupt"
	"github.com/ashureev/autofinance/internal/listing"
	"github.com/ashureev/autofinance/internal/metrics"
	"github.com/ashureev/autofinance/internal/store"
)

// Collaborator names used in errors and metrics.
const (
	CollaboratorListing      = "listing_search"
	CollaboratorPolicy       = "policy_source"
	CollaboratorApplications = "application_store"
)

// CollaboratorError reports a failed or timed-out collaborator call. The turn
// that produced it must not be persisted.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Evaluator decides policy terms for an applicant and vehicle.
type Evaluator interface {
	Evaluate(ctx context.Context, profile domain.ApplicantProfile, vehicle domain.Vehicle) (domain.PolicyTerms, error)
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Searcher     listing.Searcher
	Evaluator    Evaluator
	Applications store.ApplicationStore
	Interrupts   *interrupt.Controller
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

// Config holds quotation and call settings.
type Config struct {
	DefaultTenureMonths int
	DownPaymentRatio    float64
	// CollaboratorTimeout bounds each collaborator call when positive.
	CollaboratorTimeout time.Duration
}

// DefaultConfig returns the standard quotation settings.
func DefaultConfig() Config {
	return Config{
		DefaultTenureMonths: 60,
		DownPaymentRatio:    0.20,
		CollaboratorTimeout: 10 * time.Second,
	}
}

// Transition is one phase change taken during a turn.
type Transition struct {
	From domain.Phase
	To   domain.Phase
}

// Result is the outcome of one turn.
type Result struct {
	Reply string
	// Prompt is set when the turn ended suspended.
	Prompt      *interrupt.Prompt
	Transitions []Transition
	// Decision is set when the turn resumed an interrupt.
	Decision interrupt.DecisionKind
}

type handler func(ctx context.Context, t *turn) error

type resumeHandler func(ctx context.Context, t *turn, d interrupt.Decision) error

// Engine is the phase transition engine. It holds no per-session state.
type Engine struct {
	deps     Deps
	cfg      Config
	logger   *slog.Logger
	handlers map[domain.Phase]handler
	resumes  map[domain.PendingDecision]resumeHandler
}

// New returns an Engine. Searcher, Evaluator, and Applications are required.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Searcher == nil || deps.Evaluator == nil || deps.Applications == nil {
		return nil, errors.New("engine requires searcher, evaluator, and application store")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interrupts == nil {
		deps.Interrupts = interrupt.NewController(deps.Logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if cfg.DefaultTenureMonths <= 0 {
		cfg.DefaultTenureMonths = 60
	}

	e := &Engine{deps: deps, cfg: cfg, logger: deps.Logger}
	e.handlers = map[domain.Phase]handler{
		domain.PhaseOnboarding: e.onboarding,
		domain.PhaseDiscovery:  e.discovery,
		domain.PhaseProfiling:  e.profiling,
		domain.PhaseQuotation:  e.quotation,
		domain.PhaseSubmission: e.submission,
		domain.PhaseCompleted:  e.completed,
	}
	e.resumes = map[domain.PendingDecision]resumeHandler{
		domain.AwaitingSearchConfirmation: e.resumeSearch,
		domain.AwaitingVehicleSelection:   e.resumeSelection,
		domain.AwaitingQuoteConfirmation:  e.resumeQuote,
	}
	return e, nil
}

// turn carries the mutable state of one Step or Resume call.
type turn struct {
	state *domain.ConversationState
	raw   string
	cls   intent.Classification
	res   Result
	parts []string
}

func (t *turn) say(parts ...string) {
	for _, p := range parts {
		if p != "" {
			t.parts = append(t.parts, p)
		}
	}
}

func (t *turn) result() Result {
	t.res.Reply = strings.Join(t.parts, "\n\n")
	return t.res
}

// Step handles a classified message. If a decision is pending the message is
// treated strictly as its answer and cls is ignored.
func (e *Engine) Step(ctx context.Context, state *domain.ConversationState, raw string, cls intent.Classification) (Result, error) {
	if state.Suspended() {
		return e.Resume(ctx, state, raw)
	}

	t := &turn{state: state, raw: raw, cls: cls}
	switch cls.Intent {
	case intent.Reset:
		return e.Reset(state), nil
	case intent.StatusCheck:
		if err := e.statusCheck(ctx, t); err != nil {
			return Result{}, err
		}
		return t.result(), nil
	}

	h, ok := e.handlers[state.Phase]
	if !ok {
		return Result{}, fmt.Errorf("%w: no handler for phase %q", domain.ErrInvariantViolation, state.Phase)
	}
	if err := h(ctx, t); err != nil {
		return Result{}, err
	}
	return t.result(), nil
}

// Resume interprets raw as the answer to the pending decision.
func (e *Engine) Resume(ctx context.Context, state *domain.ConversationState, raw string) (Result, error) {
	tag := state.Pending
	h, ok := e.resumes[tag]
	if !ok {
		return Result{}, &interrupt.ResumeStateError{Want: tag, Got: state.Pending}
	}

	d, err := e.deps.Interrupts.Resume(state, tag, raw)
	if err != nil {
		return Result{}, err
	}
	e.deps.Metrics.IncInterrupt(string(tag), "resume")

	t := &turn{state: state, raw: raw}
	t.res.Decision = d.Kind
	if err := h(ctx, t, d); err != nil {
		return Result{}, err
	}
	return t.result(), nil
}

// Reset clears the session back to Onboarding.
func (e *Engine) Reset(state *domain.ConversationState) Result {
	from := state.Phase
	state.Reset()

	t := &turn{state: state}
	if from != domain.PhaseOnboarding {
		t.res.Transitions = append(t.res.Transitions, Transition{From: from, To: domain.PhaseOnboarding})
	}
	t.say(resetMessage)
	return t.result()
}

// suspend records tag as pending and appends the prompt to the reply.
func (e *Engine) suspend(t *turn, tag domain.PendingDecision, message string, options ...string) error {
	p, err := e.deps.Interrupts.Suspend(t.state, tag, message, options...)
	if err != nil {
		return err
	}
	e.deps.Metrics.IncInterrupt(string(tag), "suspend")
	t.res.Prompt = &p
	t.say(message)
	return nil
}

// call runs fn under the collaborator timeout and classifies its error.
// Errors matching one of pass are returned unwrapped.
func (e *Engine) call(ctx context.Context, name string, fn func(ctx context.Context) error, pass ...error) error {
	if e.cfg.CollaboratorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CollaboratorTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	for _, p := range pass {
		if errors.Is(err, p) {
			e.deps.Metrics.ObserveCollaborator(name, true, time.Since(start))
			return err
		}
	}
	e.deps.Metrics.ObserveCollaborator(name, err == nil, time.Since(start))
	if err != nil {
		e.logger.Warn("Collaborator call failed", "collaborator", name, "error", err)
		return &CollaboratorError{Collaborator: name, Err: err}
	}
	return nil
}

func (e *Engine) search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Vehicle, error) {
	var out []domain.Vehicle
	err := e.call(ctx, CollaboratorListing, func(ctx context.Context) error {
		var err error
		out, err = e.deps.Searcher.Search(ctx, criteria)
		return err
	})
	if len(out) > domain.MaxListings {
		out = out[:domain.MaxListings]
	}
	return out, err
}

func (e *Engine) evaluate(ctx context.Context, profile domain.ApplicantProfile, vehicle domain.Vehicle) (domain.PolicyTerms, error) {
	var terms domain.PolicyTerms
	err := e.call(ctx, CollaboratorPolicy, func(ctx context.Context) error {
		var err error
		terms, err = e.deps.Evaluator.Evaluate(ctx, profile, vehicle)
		return err
	}, finance.ErrInvalidInput)
	return terms, err
}

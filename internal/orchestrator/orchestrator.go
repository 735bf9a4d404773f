// Package orchestrator runs one conversation turn end to end: it serializes
// the session, loads its checkpoint, routes the message to the engine, and
// persists the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashureev/autofinance/internal/convlog"
	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/engine"
	"github.com/ashureev/autofinance/internal/finance"
	"github.com/ashureev/autofinance/internal/intent"
	"github.com/ashureev/autofinance/internal/interrupt"
	"github.com/ashureev/autofinance/internal/metrics"
	"github.com/ashureev/autofinance/internal/store"
)

// Collaborator names owned by the orchestrator.
const (
	CollaboratorClassifier = "classifier"
	CollaboratorCheckpoint = "checkpoint_store"
)

// CollaboratorError reports a failed collaborator call. The turn was not persisted.
type CollaboratorError = engine.CollaboratorError

// ErrEmptySessionID is returned when Handle is called without a session.
var ErrEmptySessionID = errors.New("session id is required")

const (
	clarifyInputMessage = "I couldn't work out a quote from those details. " +
		"Please double-check your monthly income and employment type and send them again."
	unavailableMessage = "Sorry, I couldn't complete that just now. Please try again in a moment."
)

// Turn outcomes used in metrics and logs.
const (
	outcomeOK           = "ok"
	outcomeClarify      = "clarify"
	outcomeCollaborator = "collaborator_error"
	outcomeError        = "error"
)

// Response is the outward result of one turn.
type Response struct {
	Reply  string
	Intent intent.Intent
	// Prompt is set when the turn ended waiting for a decision.
	Prompt *interrupt.Prompt
	// State is the persisted state after the turn, or the previously
	// persisted state when the turn was not saved.
	State *domain.ConversationState
	// Persisted reports whether the turn was checkpointed.
	Persisted bool
}

// Config holds orchestrator settings.
type Config struct {
	// ClassifierTimeout bounds each classification when positive.
	ClassifierTimeout time.Duration
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store      store.CheckpointStore
	Classifier intent.Classifier
	Engine     *engine.Engine
	Metrics    metrics.Recorder
	ConvLog    convlog.Logger
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Now        func() time.Time
}

// Orchestrator is safe for concurrent use; turns for one session are serialized
// through the checkpoint store lock.
type Orchestrator struct {
	store      store.CheckpointStore
	classifier intent.Classifier
	engine     *engine.Engine
	metrics    metrics.Recorder
	convlog    convlog.Logger
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	cfg        Config
}

// New returns an Orchestrator. Store, Classifier, and Engine are required.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil || deps.Classifier == nil || deps.Engine == nil {
		return nil, errors.New("orchestrator requires store, classifier, and engine")
	}
	o := &Orchestrator{
		store:      deps.Store,
		classifier: deps.Classifier,
		engine:     deps.Engine,
		metrics:    deps.Metrics,
		convlog:    deps.ConvLog,
		logger:     deps.Logger,
		tracer:     deps.Tracer,
		now:        deps.Now,
		cfg:        cfg,
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop{}
	}
	if o.convlog == nil {
		o.convlog = convlog.Noop{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("autofinance/orchestrator")
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

type channelKey struct{}

// WithChannel tags ctx with the transport a message arrived on.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if c, ok := ctx.Value(channelKey{}).(string); ok && c != "" {
		return c
	}
	return "api"
}

// State returns the persisted state for sessionID.
func (o *Orchestrator) State(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	return o.store.Load(ctx, sessionID)
}

// Handle processes one inbound message for sessionID.
//
// A collaborator failure returns a *CollaboratorError together with a
// retry reply; the stored state is left untouched. Calculator input errors
// become a clarification reply and are not persisted either.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, raw string) (Response, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.Handle",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	if sessionID == "" {
		return Response{}, ErrEmptySessionID
	}

	unlock, err := o.store.Lock(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock failed")
		return Response{}, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	loaded, err := o.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{Reply: unavailableMessage}, err
	}
	channel := channelFrom(ctx)
	o.logEvent(channel, loaded, "inbound", "user_message", "", raw)

	working := loaded.Clone()
	res, cls, err := o.route(ctx, working, raw)
	span.SetAttributes(
		attribute.String("phase", string(loaded.Phase)),
		attribute.String("pending", string(loaded.Pending)),
		attribute.String("intent", string(cls.Intent)),
	)

	var collab *CollaboratorError
	switch {
	case err == nil:
	case errors.Is(err, finance.ErrInvalidInput):
		o.logger.Warn("Turn needs clarification", "session_id", sessionID, "phase", loaded.Phase, "error", err)
		o.finish(start, loaded, cls, outcomeClarify)
		o.logEvent(channel, loaded, "outbound", "clarification", cls.Intent, clarifyInputMessage)
		return Response{Reply: clarifyInputMessage, Intent: cls.Intent, State: loaded}, nil
	case errors.As(err, &collab):
		span.RecordError(err)
		span.SetStatus(codes.Error, collab.Collaborator+" failed")
		o.logger.Error("Turn aborted", "session_id", sessionID, "collaborator", collab.Collaborator, "error", collab.Err)
		o.finish(start, loaded, cls, outcomeCollaborator)
		o.logEvent(channel, loaded, "outbound", "error", cls.Intent, unavailableMessage)
		return Response{Reply: unavailableMessage, Intent: cls.Intent, State: loaded}, err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("Turn failed", "session_id", sessionID, "phase", loaded.Phase, "pending", loaded.Pending, "error", err)
		o.finish(start, loaded, cls, outcomeError)
		return Response{}, fmt.Errorf("handle turn: %w", err)
	}

	if err := working.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid state")
		o.logger.Error("Refusing to persist invalid state", "session_id", sessionID, "error", err)
		o.finish(start, loaded, cls, outcomeError)
		return Response{}, fmt.Errorf("validate state: %w", err)
	}
	if err := o.store.Save(ctx, working); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		o.finish(start, loaded, cls, outcomeCollaborator)
		o.logEvent(channel, loaded, "outbound", "error", cls.Intent, unavailableMessage)
		return Response{Reply: unavailableMessage, Intent: cls.Intent, State: loaded},
			&CollaboratorError{Collaborator: CollaboratorCheckpoint, Err: err}
	}

	for _, tr := range res.Transitions {
		o.metrics.ObserveTransition(string(tr.From), string(tr.To))
		o.logger.Info("Phase transition", "session_id", sessionID, "from", tr.From, "to", tr.To)
	}
	o.finish(start, loaded, cls, outcomeOK)
	o.logEvent(channel, working, "outbound", "assistant_reply", cls.Intent, res.Reply)
	span.SetStatus(codes.Ok, "")

	return Response{
		Reply:     res.Reply,
		Intent:    cls.Intent,
		Prompt:    res.Prompt,
		State:     working.Clone(),
		Persisted: true,
	}, nil
}

// route applies the precedence rules: reset first, then a pending decision,
// then a freshly classified message.
func (o *Orchestrator) route(ctx context.Context, state *domain.ConversationState, raw string) (engine.Result, intent.Classification, error) {
	if intent.IsReset(raw) {
		cls := intent.Classification{Intent: intent.Reset, Confidence: 1}
		return o.engine.Reset(state), cls, nil
	}
	if state.Suspended() {
		res, err := o.engine.Resume(ctx, state, raw)
		return res, intent.Classification{}, err
	}

	cls, err := o.classify(ctx, state, raw)
	if err != nil {
		return engine.Result{}, intent.Classification{Intent: intent.Unclear}, err
	}
	res, err := o.engine.Step(ctx, state, raw, cls)
	return res, cls, err
}

func (o *Orchestrator) classify(ctx context.Context, state *domain.ConversationState, raw string) (intent.Classification, error) {
	if o.cfg.ClassifierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ClassifierTimeout)
		defer cancel()
	}
	start := time.Now()
	cls, err := o.classifier.Classify(ctx, intent.ContextFor(state), raw)
	o.metrics.ObserveCollaborator(CollaboratorClassifier, err == nil, time.Since(start))
	if err != nil {
		return intent.Classification{}, &CollaboratorError{Collaborator: CollaboratorClassifier, Err: err}
	}
	return cls, nil
}

func (o *Orchestrator) load(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	state, err := o.store.Load(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Debug("New session", "session_id", sessionID)
		return domain.NewConversationState(sessionID, o.now().UTC()), nil
	}
	if err != nil {
		return nil, &CollaboratorError{Collaborator: CollaboratorCheckpoint, Err: err}
	}
	return state, nil
}

func (o *Orchestrator) finish(start time.Time, state *domain.ConversationState, cls intent.Classification, outcome string) {
	d := time.Since(start)
	o.metrics.ObserveTurn(string(state.Phase), string(cls.Intent), outcome, d)
	o.logger.Debug("Turn finished", "session_id", state.SessionID, "phase", state.Phase,
		"intent", cls.Intent, "outcome", outcome, "duration_ms", d.Milliseconds())
}

func (o *Orchestrator) logEvent(channel string, state *domain.ConversationState, direction, eventType string, in intent.Intent, content string) {
	o.convlog.Log(convlog.Event{
		Timestamp:  o.now().UTC().Format(time.RFC3339Nano),
		SessionID:  state.SessionID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		Phase:      string(state.Phase),
		Pending:    string(state.Pending),
		Intent:     string(in),
		ContentRaw: content,
		Content:    convlog.CleanForReadability(content),
	})
}

// Package interrupt suspends a turn pending a human decision and resumes it
// with the user's reply.
//
// The protocol is two explicit calls backed by the persisted pending tag:
// Suspend records the tag and yields a prompt; the next turn calls Resume with
// the same tag and the raw reply. Resume always clears the tag before the
// reply is interpreted, so an inconclusive answer never leaves a session stuck.
package interrupt

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/intent"
)

var (
	// ErrInvalidResumeState reports a Resume without a matching Suspend.
	ErrInvalidResumeState = errors.New("invalid resume state")
	// ErrAlreadySuspended reports a Suspend while another decision is pending.
	ErrAlreadySuspended = errors.New("session already suspended")
	// ErrInvalidTag reports a Suspend with the empty tag.
	ErrInvalidTag = errors.New("invalid pending decision tag")
)

// ResumeStateError carries the tags involved in an invalid resume.
type ResumeStateError struct {
	Want domain.PendingDecision
	Got  domain.PendingDecision
}

func (e *ResumeStateError) Error() string {
	return fmt.Sprintf("%s: resume %s but pending is %s", ErrInvalidResumeState, e.Want, e.Got)
}

// Unwrap lets errors.Is match ErrInvalidResumeState.
func (e *ResumeStateError) Unwrap() error {
	return ErrInvalidResumeState
}

// Prompt is the outward payload of a suspended turn.
type Prompt struct {
	Tag     domain.PendingDecision `json:"tag"`
	Message string                 `json:"message"`
	Options []string               `json:"options,omitempty"`
}

// DecisionKind is the interpreted answer to a pending question.
type DecisionKind string

// Decision kinds.
const (
	DecisionConfirm    DecisionKind = "confirm"
	DecisionReject     DecisionKind = "reject"
	DecisionModify     DecisionKind = "modify"
	DecisionSelect     DecisionKind = "select"
	DecisionBack       DecisionKind = "back"
	DecisionOutOfRange DecisionKind = "out_of_range"
	DecisionUnclear    DecisionKind = "unclear"
)

// Decision is the result of Resume.
type Decision struct {
	Kind DecisionKind
	// Index is the 1-based listing number for DecisionSelect and DecisionOutOfRange.
	Index int
	// Criteria replaces the pending search for DecisionModify.
	Criteria *domain.SearchCriteria
}

// Controller implements Suspend and Resume over a ConversationState.
type Controller struct {
	logger *slog.Logger
}

// NewController returns a Controller. A nil logger uses slog.Default().
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger}
}

// Suspend records tag as pending and returns the prompt to send.
func (c *Controller) Suspend(state *domain.ConversationState, tag domain.PendingDecision, message string, options ...string) (Prompt, error) {
	if tag == domain.PendingNone || !tag.Valid() {
		return Prompt{}, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	if state.Pending != domain.PendingNone {
		return Prompt{}, fmt.Errorf("%w: %s pending, cannot suspend for %s", ErrAlreadySuspended, state.Pending, tag)
	}
	state.Pending = tag
	c.logger.Debug("turn suspended", "session_id", state.SessionID, "pending", tag)
	return Prompt{Tag: tag, Message: message, Options: options}, nil
}

// Resume clears the pending tag and interprets raw as the answer to tag.
// It fails with ErrInvalidResumeState when tag is not the pending decision.
func (c *Controller) Resume(state *domain.ConversationState, tag domain.PendingDecision, raw string) (Decision, error) {
	if tag == domain.PendingNone || state.Pending != tag {
		return Decision{}, &ResumeStateError{Want: tag, Got: state.Pending}
	}
	state.Pending = domain.PendingNone

	d := interpret(tag, raw, len(state.Listings))
	c.logger.Debug("turn resumed", "session_id", state.SessionID, "pending", tag, "decision", d.Kind)
	return d, nil
}

func interpret(tag domain.PendingDecision, raw string, listings int) Decision {
	switch tag {
	case domain.AwaitingVehicleSelection:
		if n, ok := intent.ParseSelection(raw); ok {
			if n == 0 {
				return Decision{Kind: DecisionBack}
			}
			if n < 1 || n > listings {
				return Decision{Kind: DecisionOutOfRange, Index: n}
			}
			return Decision{Kind: DecisionSelect, Index: n}
		}
		if intent.IsBack(raw) || intent.ParseConfirmation(raw) == intent.ConfirmationNo {
			return Decision{Kind: DecisionBack}
		}
		return Decision{Kind: DecisionUnclear}
	case domain.AwaitingSearchConfirmation:
		confirmation := intent.ParseConfirmation(raw)
		if confirmation == intent.ConfirmationYes {
			return Decision{Kind: DecisionConfirm}
		}
		// "no, a 2021 Civic" names a new search rather than cancelling.
		if c := intent.ExtractCriteria(raw); c != nil {
			return Decision{Kind: DecisionModify, Criteria: c}
		}
		if confirmation == intent.ConfirmationNo {
			return Decision{Kind: DecisionReject}
		}
		return Decision{Kind: DecisionUnclear}
	default:
		switch intent.ParseConfirmation(raw) {
		case intent.ConfirmationYes:
			return Decision{Kind: DecisionConfirm}
		case intent.ConfirmationNo:
			return Decision{Kind: DecisionReject}
		default:
			return Decision{Kind: DecisionUnclear}
		}
	}
}

package orchestrator

import (
	"github.com/google/uuid"

	"github.com/vampirenirmal/docagent/internal/component"
)

// State is the position of a session in its refinement loop.
type State string

const (
	StateNeedsContext    State = "NEEDS_CONTEXT"
	StateContextGathered State = "CONTEXT_GATHERED"
	StateDrafted         State = "DRAFTED"
	StateVerifiedAccept  State = "VERIFIED_ACCEPT"
	StateVerifiedReject  State = "VERIFIED_REJECT"
	StateDone            State = "DONE"
	StateForcedDone      State = "FORCED_DONE"
	StateSkipped         State = "SKIPPED"
)

// Session is the working memory for documenting one component: gathered
// context, the current draft, verifier feedback, and the budget counters.
type Session struct {
	ID        string
	Component *component.Component
	State     State
	Focal     string // focal source text, possibly truncated to budget
	Context   *ContextBundle

	Draft             string
	Suggestion        string // verifier's revision guidance for the writer
	ContextSuggestion string // verifier's hint about missing context

	ReaderAttempts int
	Rejections     int
}

func NewSession(c *component.Component) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Component: c,
		State:     StateNeedsContext,
		Focal:     c.Source,
		Context:   NewContextBundle(),
	}
}

package orchestrator

import (
	"context"
	"log/slog"

	"github.com/vampirenirmal/docagent/internal/agent"
	"github.com/vampirenirmal/docagent/internal/component"
	"github.com/vampirenirmal/docagent/internal/retrieve"
)

// Test modes short-circuit parts of the pipeline.
const (
	TestModeNone         = "none"
	TestModePlaceholder  = "placeholder"   // fixed docstring, no model calls
	TestModeContextPrint = "context_print" // gather context, report it, no draft
)

const placeholderDocstring = "Placeholder docstring written in placeholder test mode; no language model was consulted for this text."

// Status is the terminal result of one documentation session.
type Status string

const (
	StatusDocumented     Status = "documented"
	StatusForced         Status = "forced"
	StatusSkipped        Status = "skipped"
	StatusContextPrinted Status = "context_printed"
)

// Outcome is what Document produced for one component.
type Outcome struct {
	Status    Status
	State     State
	Docstring string
}

// Budgets bound the refinement loop. Exhausting the reader budget proceeds
// with the context at hand; exhausting the verifier budget force-accepts the
// current draft.
type Budgets struct {
	MaxReaderSearchAttempts int
	MaxVerifierRejections   int
	TokenLimit              int
	TestMode                string
}

// Orchestrator runs the multi-role refinement loop for one component at a
// time: gather context until the reader is satisfied, draft, verify, and
// loop on rejection until accepted or out of budget.
type Orchestrator struct {
	reader   *Reader
	searcher *Searcher
	writer   *Writer
	verifier *Verifier
	counter  *agent.Counter
	budgets  Budgets
	sink     EventSink
	logger   *slog.Logger
}

func New(gen agent.Generator, search agent.Searcher, tool *retrieve.Tool, counter *agent.Counter, budgets Budgets, sink EventSink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		reader:   NewReader(gen, logger),
		searcher: NewSearcher(tool, search, logger),
		writer:   NewWriter(gen, logger),
		verifier: NewVerifier(gen, logger),
		counter:  counter,
		budgets:  budgets,
		sink:     sink,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Document runs one component through the refinement loop and returns the
// accepted docstring. Persistent generation failures end the session as
// skipped; budget exhaustion is not a failure.
func (o *Orchestrator) Document(ctx context.Context, comp *component.Component) (Outcome, error) {
	s := NewSession(comp)
	o.emit(s, "session_start", string(comp.Kind))

	o.logger.Info("documenting component",
		"session_id", s.ID,
		"id", comp.ID,
		"kind", comp.Kind,
		"file", comp.File)

	if o.budgets.TestMode == TestModePlaceholder {
		s.State = StateDone
		o.emit(s, "done", "placeholder")
		return Outcome{Status: StatusDocumented, State: StateDone, Docstring: placeholderDocstring}, nil
	}

	s.Focal = o.truncateToTokens(comp.Source, o.budgets.TokenLimit)
	if len(s.Focal) < len(comp.Source) {
		o.logger.Warn("focal component truncated to token budget",
			"session_id", s.ID,
			"id", comp.ID,
			"bytes_kept", len(s.Focal),
			"bytes_total", len(comp.Source))
	}

	// Context gathering: the reader asks, the searcher fetches, until the
	// reader is satisfied or the attempt budget runs out.
	for s.ReaderAttempts < o.budgets.MaxReaderSearchAttempts {
		need, req, err := o.reader.Assess(ctx, s)
		if err != nil {
			return o.skip(s, err)
		}
		if !need {
			break
		}
		s.ReaderAttempts++
		o.searcher.Gather(ctx, s, req)
		o.truncateContext(s)
		o.emit(s, "context_search", "")
	}
	s.State = StateContextGathered

	if o.budgets.TestMode == TestModeContextPrint {
		o.emit(s, "context_print", s.Context.Render())
		return Outcome{Status: StatusContextPrinted, State: StateContextGathered}, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return o.skip(s, err)
		}

		draft, err := o.writer.Draft(ctx, s)
		if err != nil {
			return o.skip(s, err)
		}
		s.Draft = draft
		s.State = StateDrafted
		o.emit(s, "draft", "")

		verdict, err := o.verifier.Check(ctx, s)
		if err != nil {
			return o.skip(s, err)
		}

		if !verdict.NeedRevision {
			s.State = StateVerifiedAccept
			o.emit(s, "verify_accept", "")
			s.State = StateDone
			o.emit(s, "done", "")
			return Outcome{Status: StatusDocumented, State: StateDone, Docstring: s.Draft}, nil
		}

		s.State = StateVerifiedReject
		o.emit(s, "verify_reject", verdict.Suggestion)

		if s.Rejections >= o.budgets.MaxVerifierRejections {
			s.State = StateForcedDone
			o.emit(s, "forced_done", "verifier budget exhausted")
			o.logger.Warn("accepting draft on exhausted verifier budget",
				"session_id", s.ID,
				"id", comp.ID,
				"rejections", s.Rejections)
			return Outcome{Status: StatusForced, State: StateForcedDone, Docstring: s.Draft}, nil
		}
		s.Rejections++
		s.Suggestion = verdict.Suggestion

		// A context complaint routes back through the reader when budget
		// remains; otherwise the writer revises with what it has.
		if verdict.MoreContext && s.ReaderAttempts < o.budgets.MaxReaderSearchAttempts {
			s.ContextSuggestion = verdict.ContextSuggestion
			need, req, err := o.reader.Assess(ctx, s)
			if err != nil {
				return o.skip(s, err)
			}
			if need {
				s.ReaderAttempts++
				o.searcher.Gather(ctx, s, req)
				o.truncateContext(s)
				o.emit(s, "context_search", "after rejection")
			}
		}
	}
}

func (o *Orchestrator) skip(s *Session, err error) (Outcome, error) {
	s.State = StateSkipped
	o.emit(s, "skipped", err.Error())
	o.logger.Error("session skipped",
		"session_id", s.ID,
		"id", s.Component.ID,
		"error", err)
	return Outcome{Status: StatusSkipped, State: StateSkipped}, err
}

func (o *Orchestrator) emit(s *Session, phase, message string) {
	o.sink.Publish(Event{
		Component: s.Component.ID,
		File:      s.Component.File,
		Phase:     phase,
		Message:   message,
	})
}

// truncateToTokens trims text until it fits the token budget. Cuts are
// coarse; the point is bounding prompt size, not preserving syntax.
func (o *Orchestrator) truncateToTokens(text string, limit int) string {
	for o.counter.Count(text) > limit && len(text) > 0 {
		text = text[:len(text)*9/10]
	}
	return text
}

func (o *Orchestrator) truncateContext(s *Session) {
	budget := o.budgets.TokenLimit - o.counter.Count(s.Focal)
	if budget < 0 {
		budget = 0
	}
	s.Context.Truncate(o.counter.Count, budget)
}

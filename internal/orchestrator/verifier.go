package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/docagent/internal/agent"
)

const verifierSystemPrompt = `You review a Python docstring draft against the code it documents. Reject
drafts that are inaccurate, that narrate implementation line by line, that miss a
required section, or that document things the code does not do.

Respond with exactly this structure:
<NEED_REVISION>true or false</NEED_REVISION>
<MORE_CONTEXT>true if the problem is missing information rather than wording</MORE_CONTEXT>
<SUGGESTION>what the writer should change, when revision is needed</SUGGESTION>
<SUGGESTION_CONTEXT>what information is missing, when more context is needed</SUGGESTION_CONTEXT>`

// Verdict is the verifier's decision on a draft.
type Verdict struct {
	NeedRevision      bool
	MoreContext       bool
	Suggestion        string
	ContextSuggestion string
}

// Verifier accepts or rejects drafts, steering rejects either back to the
// writer (wording) or to the reader (missing context).
type Verifier struct {
	gen    agent.Generator
	logger *slog.Logger
}

func NewVerifier(gen agent.Generator, logger *slog.Logger) *Verifier {
	return &Verifier{gen: gen, logger: logger.With("role", "verifier")}
}

func (v *Verifier) Check(ctx context.Context, s *Session) (Verdict, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Code (%s %s):\n\n%s\n\n", s.Component.Kind, s.Component.ID, s.Focal)

	sections := s.Component.RequiredSections()
	names := make([]string, len(sections))
	for i, sec := range sections {
		names[i] = string(sec)
	}
	fmt.Fprintf(&sb, "Required sections: %s\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&sb, "Draft docstring:\n%s\n", s.Draft)

	response, err := v.gen.Complete(ctx, verifierSystemPrompt, sb.String())
	if err != nil {
		return Verdict{}, fmt.Errorf("verifier: %w", err)
	}

	verdict := Verdict{
		NeedRevision: tagBool(response, "NEED_REVISION"),
		MoreContext:  tagBool(response, "MORE_CONTEXT"),
	}
	verdict.Suggestion, _ = tagContent(response, "SUGGESTION")
	verdict.ContextSuggestion, _ = tagContent(response, "SUGGESTION_CONTEXT")

	v.logger.Debug("verification result",
		"session_id", s.ID,
		"id", s.Component.ID,
		"need_revision", verdict.NeedRevision,
		"more_context", verdict.MoreContext)

	return verdict, nil
}

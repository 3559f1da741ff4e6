package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/docagent/internal/agent"
)

// InfoRequest is the reader's structured demand for more context.
type InfoRequest struct {
	Classes   []string
	Functions []string
	Methods   []string
	CallBy    bool
	Queries   []string
}

func (r *InfoRequest) empty() bool {
	return len(r.Classes) == 0 && len(r.Functions) == 0 && len(r.Methods) == 0 &&
		!r.CallBy && len(r.Queries) == 0
}

const readerSystemPrompt = `You decide whether enough context exists to document a piece of Python code.
Examine the focal component and the context gathered so far. If more information is
needed to write an accurate docstring, request it.

Respond with exactly this structure:
<INFO_NEED>true or false</INFO_NEED>
<REQUEST>
  <INTERNAL>
    <CALLS>
      <CLASS>comma-separated class names the code uses, or none</CLASS>
      <FUNCTION>comma-separated function names the code uses, or none</FUNCTION>
      <METHOD>comma-separated method names the code uses, or none</METHOD>
    </CALLS>
    <CALL_BY>true if seeing the callers would help, else false</CALL_BY>
  </INTERNAL>
  <RETRIEVAL>
    <QUERY>a free-form question about an unfamiliar concept, if any</QUERY>
  </RETRIEVAL>
</REQUEST>

Only request names that appear in the focal code. When the context shown already
covers everything the code touches, answer <INFO_NEED>false</INFO_NEED>.`

// Reader decides whether the session has enough context and, when it does
// not, what to fetch next.
type Reader struct {
	gen    agent.Generator
	logger *slog.Logger
}

func NewReader(gen agent.Generator, logger *slog.Logger) *Reader {
	return &Reader{gen: gen, logger: logger.With("role", "reader")}
}

func (r *Reader) Assess(ctx context.Context, s *Session) (bool, *InfoRequest, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Focal %s %s from %s:\n\n%s\n\n", s.Component.Kind, s.Component.ID, s.Component.File, s.Focal)
	if !s.Context.Empty() {
		sb.WriteString("Context gathered so far:\n")
		sb.WriteString(s.Context.Render())
		sb.WriteString("\n\n")
	}
	if s.ContextSuggestion != "" {
		fmt.Fprintf(&sb, "A verifier flagged missing context: %s\n", s.ContextSuggestion)
	}

	response, err := r.gen.Complete(ctx, readerSystemPrompt, sb.String())
	if err != nil {
		return false, nil, fmt.Errorf("reader: %w", err)
	}

	need := tagBool(response, "INFO_NEED")
	req := &InfoRequest{
		Classes:   tagNames(response, "CLASS"),
		Functions: tagNames(response, "FUNCTION"),
		Methods:   tagNames(response, "METHOD"),
		CallBy:    tagBool(response, "CALL_BY"),
		Queries:   tagAll(response, "QUERY"),
	}

	if need && req.empty() {
		// The model asked for context without saying which; treat as done.
		need = false
	}

	r.logger.Debug("reader assessment",
		"session_id", s.ID,
		"id", s.Component.ID,
		"info_need", need,
		"classes", len(req.Classes),
		"functions", len(req.Functions),
		"methods", len(req.Methods),
		"call_by", req.CallBy,
		"queries", len(req.Queries))

	return need, req, nil
}

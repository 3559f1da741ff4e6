package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/docagent/internal/agent"
	"github.com/vampirenirmal/docagent/internal/component"
)

const writerFunctionPrompt = `You write Python docstrings. Given a function or method and its context,
produce a docstring that is accurate, helpful to a developer who has never seen the
code, and free of implementation narration.

Include exactly the sections requested, using Google style (Args:, Returns:,
Raises:, Example:). Do not invent parameters, return values, or exceptions that the
code does not have. Return the docstring body between tags, without quote marks:

<DOCSTRING>
...
</DOCSTRING>`

const writerClassPrompt = `You write Python class docstrings. Given a class and its context, produce a
docstring covering what the class represents, how it is used, its public attributes,
and its constructor parameters.

Include exactly the sections requested, using Google style (Attributes:, Args:,
Example:). Do not document individual methods. Return the docstring body between
tags, without quote marks:

<DOCSTRING>
...
</DOCSTRING>`

// Writer drafts the docstring from the focal code, the gathered context,
// and any verifier feedback from earlier rounds.
type Writer struct {
	gen    agent.Generator
	logger *slog.Logger
}

func NewWriter(gen agent.Generator, logger *slog.Logger) *Writer {
	return &Writer{gen: gen, logger: logger.With("role", "writer")}
}

func (w *Writer) Draft(ctx context.Context, s *Session) (string, error) {
	system := writerFunctionPrompt
	if s.Component.Kind == component.KindClass {
		system = writerClassPrompt
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Focal %s %s from %s:\n\n%s\n\n", s.Component.Kind, s.Component.ID, s.Component.File, s.Focal)

	sections := s.Component.RequiredSections()
	names := make([]string, len(sections))
	for i, sec := range sections {
		names[i] = string(sec)
	}
	fmt.Fprintf(&sb, "Required sections: %s\n\n", strings.Join(names, ", "))

	if !s.Context.Empty() {
		sb.WriteString("Context:\n")
		sb.WriteString(s.Context.Render())
		sb.WriteString("\n\n")
	}
	if s.Draft != "" && s.Suggestion != "" {
		fmt.Fprintf(&sb, "Previous draft:\n%s\n\nRevise it following this feedback: %s\n", s.Draft, s.Suggestion)
	}

	response, err := w.gen.Complete(ctx, system, sb.String())
	if err != nil {
		return "", fmt.Errorf("writer: %w", err)
	}

	draft, ok := tagContent(response, "DOCSTRING")
	if !ok {
		// Some models drop the tags; take the whole response.
		draft = strings.TrimSpace(response)
	}
	draft = strings.Trim(draft, "\"'")

	w.logger.Debug("draft produced",
		"session_id", s.ID,
		"id", s.Component.ID,
		"draft_length", len(draft))

	return draft, nil
}

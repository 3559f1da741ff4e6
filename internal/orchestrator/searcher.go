package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vampirenirmal/docagent/internal/agent"
	"github.com/vampirenirmal/docagent/internal/component"
	"github.com/vampirenirmal/docagent/internal/retrieve"
	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

// Searcher fulfils an InfoRequest: structural lookups go through the
// retrieval tool against the latest parse, free-form queries go to the
// external search provider. Results accumulate in the session's context.
type Searcher struct {
	tool   *retrieve.Tool
	search agent.Searcher
	logger *slog.Logger
}

func NewSearcher(tool *retrieve.Tool, search agent.Searcher, logger *slog.Logger) *Searcher {
	return &Searcher{
		tool:   tool,
		search: search,
		logger: logger.With("role", "searcher"),
	}
}

func (s *Searcher) Gather(ctx context.Context, sess *Session, req *InfoRequest) {
	focal := sess.Component.ID

	for _, name := range req.Classes {
		for _, c := range s.tool.Children(focal, component.KindClass, name) {
			sess.Context.AddClass(c.ID, c.Source)
		}
	}
	for _, name := range req.Functions {
		for _, c := range s.tool.Children(focal, component.KindFunction, name) {
			sess.Context.AddFunction(c.ID, c.Source)
		}
	}
	for _, name := range req.Methods {
		for _, c := range s.tool.Children(focal, component.KindMethod, name) {
			sess.Context.AddMethod(c.ID, c.Source)
		}
	}

	if req.CallBy {
		for _, kind := range []component.Kind{component.KindFunction, component.KindMethod, component.KindClass} {
			for _, c := range s.tool.Parents(focal, kind) {
				sess.Context.AddCaller(c.ID, c.Source)
			}
		}
	}

	for _, query := range req.Queries {
		answer, err := s.search.Search(ctx, query)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrNotFound) {
				s.logger.Debug("external query found nothing",
					"session_id", sess.ID,
					"query", query)
				continue
			}
			// External retrieval is best effort; log and move on.
			s.logger.Warn("external query failed",
				"session_id", sess.ID,
				"query", query,
				"error", err)
			continue
		}
		sess.Context.AddExternal(query, answer)
	}
}

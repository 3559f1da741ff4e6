package retrieve

import (
	"log/slog"
	"strings"

	"github.com/vampirenirmal/docagent/internal/component"
	"github.com/vampirenirmal/docagent/internal/graph"
)

// Provider hands out the latest parse and dependency graph. The run loop
// swaps both after every mutation-triggered re-parse, so results always
// reflect current file contents.
type Provider interface {
	Snapshot() *component.Snapshot
	Graph() *graph.Graph
}

// Tool answers structural context queries about a focal component: what it
// calls (children) and what calls it (parents), filtered by component kind.
type Tool struct {
	provider Provider
	logger   *slog.Logger
}

func New(provider Provider, logger *slog.Logger) *Tool {
	return &Tool{
		provider: provider,
		logger:   logger.With("component", "retriever"),
	}
}

// Children returns dependencies of the focal component matching kind and,
// when name is non-empty, the requested name. Matching is forgiving: exact
// short name, qualified suffix, or substring of the qualified name.
func (t *Tool) Children(focalID string, kind component.Kind, name string) []*component.Component {
	snap := t.provider.Snapshot()
	g := t.provider.Graph()

	var out []*component.Component
	for _, depID := range g.Dependencies(focalID) {
		dep, ok := snap.Lookup(depID)
		if !ok || dep.Kind != kind {
			continue
		}
		if name != "" && !matches(dep, name) {
			continue
		}
		out = append(out, dep)
	}

	t.logger.Debug("child query",
		"focal", focalID,
		"kind", kind,
		"name", name,
		"results", len(out))
	return out
}

// Parents returns the components that reference the focal component,
// filtered by kind.
func (t *Tool) Parents(focalID string, kind component.Kind) []*component.Component {
	snap := t.provider.Snapshot()
	g := t.provider.Graph()

	var out []*component.Component
	for _, depID := range g.Dependents(focalID) {
		dep, ok := snap.Lookup(depID)
		if !ok || dep.Kind != kind {
			continue
		}
		out = append(out, dep)
	}

	t.logger.Debug("parent query",
		"focal", focalID,
		"kind", kind,
		"results", len(out))
	return out
}

func matches(c *component.Component, name string) bool {
	if c.Name == name {
		return true
	}
	if strings.HasSuffix(c.ID, "."+name) {
		return true
	}
	return strings.Contains(c.ID, name)
}

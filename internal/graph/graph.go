package graph

import (
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/vampirenirmal/docagent/internal/component"
)

// Graph holds the dependency edges between components. An edge A -> B means
// A references B, so B should be documented first.
type Graph struct {
	Nodes   map[string]*component.Component
	Edges   map[string][]string
	Reverse map[string][]string
}

// Build resolves each component's raw references into edges. Resolution
// prefers the most specific in-scope candidate: same-class method, then
// same-module component, then imported component. References that resolve
// nowhere produce no edge.
func Build(snap *component.Snapshot, logger *slog.Logger) *Graph {
	log := logger.With("component", "graph")

	g := &Graph{
		Nodes:   snap.Components,
		Edges:   map[string][]string{},
		Reverse: map[string][]string{},
	}

	for _, id := range snap.SortedIDs() {
		c := snap.Components[id]
		info := snap.Files[c.File]

		edgeSet := map[string]bool{}
		for _, ref := range c.Refs() {
			target := resolve(ref, c, info, snap)
			if target == "" || target == c.ID {
				continue
			}
			edgeSet[target] = true
		}

		// Classes depend on their methods so methods are documented first.
		if c.Kind == component.KindClass {
			for _, other := range info.Components {
				if other.Class == c.Name {
					edgeSet[other.ID] = true
				}
			}
		}

		g.Edges[id] = sortByPosition(edgeSet, snap)
	}

	edgeCount := 0
	for id, deps := range g.Edges {
		edgeCount += len(deps)
		for _, dep := range deps {
			g.Reverse[dep] = append(g.Reverse[dep], id)
		}
	}
	for dep := range g.Reverse {
		set := map[string]bool{}
		for _, id := range g.Reverse[dep] {
			set[id] = true
		}
		g.Reverse[dep] = sortByPosition(set, snap)
	}

	log.Info("dependency graph built",
		"nodes", len(g.Nodes),
		"edges", edgeCount)

	return g
}

// Dependencies returns the components id references, in canonical order.
func (g *Graph) Dependencies(id string) []string {
	return g.Edges[id]
}

// Dependents returns the components that reference id, in canonical order.
func (g *Graph) Dependents(id string) []string {
	return g.Reverse[id]
}

func resolve(ref string, c *component.Component, info *component.FileInfo, snap *component.Snapshot) string {
	module := info.Module
	head, rest, _ := strings.Cut(ref, ".")

	// self.x / cls.x resolve against the enclosing class.
	if head == "self" || head == "cls" {
		if c.Class == "" || rest == "" {
			return ""
		}
		attr, _, _ := strings.Cut(rest, ".")
		return lookup(snap, module+"."+c.Class+"."+attr)
	}

	// Same-class sibling method.
	if c.Class != "" && rest == "" {
		if id := lookup(snap, module+"."+c.Class+"."+head); id != "" {
			return id
		}
	}

	// Same-module component (covers Class.method chains too).
	if id := lookup(snap, module+"."+ref); id != "" {
		return id
	}

	// Imported name.
	if target, ok := info.Imports[head]; ok {
		full := target
		if rest != "" {
			full = target + "." + rest
		}
		if id := lookup(snap, full); id != "" {
			return id
		}
		// Relative imports lose their leading dots during parsing; retry
		// anchored at the current package.
		if pkg := parentPackage(module); pkg != "" {
			if id := lookup(snap, pkg+"."+full); id != "" {
				return id
			}
		}
	}

	return ""
}

// lookup accepts a candidate qualified name, trimming trailing attribute
// segments until it matches a known component. Chains like mod.Class.method
// match exactly; mod.obj.attr.deep falls back to the longest known prefix.
func lookup(snap *component.Snapshot, candidate string) string {
	for candidate != "" {
		if _, ok := snap.Components[candidate]; ok {
			return candidate
		}
		idx := strings.LastIndex(candidate, ".")
		if idx < 0 {
			return ""
		}
		candidate = candidate[:idx]
	}
	return ""
}

func parentPackage(module string) string {
	idx := strings.LastIndex(module, ".")
	if idx < 0 {
		return ""
	}
	return module[:idx]
}

func sortByPosition(set map[string]bool, snap *component.Snapshot) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := snap.Components[out[i]], snap.Components[out[j]]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return out[i] < out[j]
	})
	return out
}

type exportNode struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	File         string   `json:"file"`
	StartLine    int      `json:"start_line"`
	EndLine      int      `json:"end_line"`
	HasDocstring bool     `json:"has_docstring"`
	DependsOn    []string `json:"depends_on"`
}

// Export writes the graph as a JSON debug artifact.
func (g *Graph) Export(w io.Writer) error {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]exportNode, 0, len(ids))
	for _, id := range ids {
		c := g.Nodes[id]
		deps := g.Edges[id]
		if deps == nil {
			deps = []string{}
		}
		nodes = append(nodes, exportNode{
			ID:           c.ID,
			Kind:         string(c.Kind),
			File:         c.File,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			HasDocstring: c.Docstring != "",
			DependsOn:    deps,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"components": nodes})
}

package graph

import (
	"log/slog"
	"math/rand"
	"sort"

	"github.com/vampirenirmal/docagent/internal/component"
)

// Order modes for the traversal scheduler.
const (
	OrderDependencyFirst = "dependency_first"
	OrderRandomNode      = "random_node"
	OrderRandomFile      = "random_file"
)

// Order produces the full traversal order over the graph's components.
// dependency_first places every component after its dependencies, breaking
// cycles at the first back edge discovered; the random modes shuffle with
// the supplied source so a fixed seed reproduces the run.
func Order(g *Graph, snap *component.Snapshot, mode string, rng *rand.Rand, logger *slog.Logger) []string {
	log := logger.With("component", "scheduler")
	canonical := snap.SortedIDs()

	switch mode {
	case OrderRandomNode:
		ids := append([]string(nil), canonical...)
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		return ids

	case OrderRandomFile:
		var files []string
		byFile := map[string][]string{}
		for _, id := range canonical {
			f := snap.Components[id].File
			if _, ok := byFile[f]; !ok {
				files = append(files, f)
			}
			byFile[f] = append(byFile[f], id)
		}
		sort.Strings(files)
		rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
		var ids []string
		for _, f := range files {
			ids = append(ids, byFile[f]...)
		}
		return ids
	}

	// dependency_first
	visited := map[string]bool{}
	inStack := map[string]bool{}
	order := make([]string, 0, len(canonical))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		if inStack[id] {
			// Cycle: keep first-discovery order and drop the back edge.
			log.Debug("dependency cycle broken", "at", id)
			return
		}
		inStack[id] = true
		for _, dep := range g.Dependencies(id) {
			visit(dep)
		}
		delete(inStack, id)
		visited[id] = true
		order = append(order, id)
	}

	for _, id := range canonical {
		visit(id)
	}

	return order
}

// Remap re-validates a pending order suffix against a fresh snapshot.
// Identity is the qualified name, so surviving components keep their place;
// vanished ones are dropped with a warning.
func Remap(pending []string, snap *component.Snapshot, logger *slog.Logger) []string {
	out := make([]string, 0, len(pending))
	for _, id := range pending {
		if _, ok := snap.Lookup(id); !ok {
			logger.Warn("component disappeared after re-parse, dropping from traversal",
				"id", id)
			continue
		}
		out = append(out, id)
	}
	return out
}

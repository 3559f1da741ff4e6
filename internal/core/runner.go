package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vampirenirmal/docagent/internal/agent"
	"github.com/vampirenirmal/docagent/internal/component"
	"github.com/vampirenirmal/docagent/internal/config"
	"github.com/vampirenirmal/docagent/internal/graph"
	"github.com/vampirenirmal/docagent/internal/mutate"
	"github.com/vampirenirmal/docagent/internal/orchestrator"
	"github.com/vampirenirmal/docagent/internal/retrieve"
	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

// Summary totals one full run over a repository.
type Summary struct {
	Documented int
	Forced     int
	Skipped    int
	Failed     int
	Usage      agent.Usage
}

// Runner walks a repository's components in order and documents each one.
// It owns the live snapshot and dependency graph, rebuilding both whenever a
// file changes underneath the traversal.
type Runner struct {
	flow    config.FlowConfig
	paths   config.PathsConfig
	scanner *component.Scanner
	orch    *orchestrator.Orchestrator
	mutator *mutate.Mutator
	usage   *agent.Tracker
	logger  *slog.Logger

	snap *component.Snapshot
	g    *graph.Graph
}

func NewRunner(cfg *config.Config, gen agent.Generator, search agent.Searcher, counter *agent.Counter, usage *agent.Tracker, sink orchestrator.EventSink, logger *slog.Logger) *Runner {
	r := &Runner{
		flow:    cfg.Flow,
		paths:   cfg.Paths,
		scanner: component.NewScanner(logger),
		mutator: mutate.New(logger),
		usage:   usage,
		logger:  logger.With("component", "runner"),
	}
	budgets := orchestrator.Budgets{
		MaxReaderSearchAttempts: cfg.Flow.MaxReaderSearchAttempts,
		MaxVerifierRejections:   cfg.Flow.MaxVerifierRejections,
		TokenLimit:              cfg.Flow.ComponentTokenLimit,
		TestMode:                cfg.Flow.TestMode,
	}
	tool := retrieve.New(r, logger)
	r.orch = orchestrator.New(gen, search, tool, counter, budgets, sink, logger)
	return r
}

// Snapshot returns the current parse of the repository.
func (r *Runner) Snapshot() *component.Snapshot { return r.snap }

// Graph returns the current dependency graph.
func (r *Runner) Graph() *graph.Graph { return r.g }

// Run scans the repository, orders its components, and documents them one by
// one. Files are re-parsed after every write so later components always see
// current line numbers and hashes.
func (r *Runner) Run(ctx context.Context, root string) (Summary, error) {
	var sum Summary

	snap, err := r.scanner.Scan(ctx, root)
	if err != nil {
		return sum, fmt.Errorf("scanning %s: %w", root, err)
	}
	r.snap = snap
	r.g = graph.Build(snap, r.logger)

	if r.paths.GraphDir != "" {
		if err := r.exportGraph(); err != nil {
			r.logger.Warn("graph export failed", "dir", r.paths.GraphDir, "error", err)
		}
	}

	seed := r.flow.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	pending := graph.Order(r.g, snap, r.flow.OrderMode, rng, r.logger)

	r.logger.Info("run started",
		"root", root,
		"files", len(snap.Files),
		"components", len(pending),
		"order_mode", r.flow.OrderMode,
		"seed", seed)

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("run aborted", "remaining", len(pending))
			sum.Usage = r.usage.Totals()
			return sum, err
		}

		id := pending[0]
		pending = pending[1:]

		comp, ok := snap.Lookup(id)
		if !ok {
			r.logger.Warn("component vanished before its turn", "id", id)
			sum.Skipped++
			continue
		}

		if r.skipExisting(comp) {
			r.logger.Debug("keeping existing docstring", "id", id)
			sum.Skipped++
			continue
		}

		out, err := r.orch.Document(ctx, comp)
		switch out.Status {
		case orchestrator.StatusSkipped:
			r.logger.Warn("documentation failed", "id", id, "error", err)
			sum.Failed++
			continue
		case orchestrator.StatusContextPrinted:
			sum.Skipped++
			continue
		}

		if werr := r.write(root, id, out.Docstring); werr != nil {
			r.logger.Error("writing docstring failed", "id", id, "error", werr)
			sum.Failed++
			continue
		}
		pending = graph.Remap(pending, snap, r.logger)

		if out.Status == orchestrator.StatusForced {
			sum.Forced++
		} else {
			sum.Documented++
		}
	}

	sum.Usage = r.usage.Totals()
	r.logger.Info("run finished",
		"documented", sum.Documented,
		"forced", sum.Forced,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"requests", sum.Usage.Requests,
		"input_tokens", sum.Usage.InputTokens,
		"output_tokens", sum.Usage.OutputTokens)
	return sum, nil
}

// write inserts the docstring and refreshes the snapshot for the touched
// file. A hash conflict means the file changed since it was parsed: re-parse
// and retry once against the fresh coordinates.
func (r *Runner) write(root, id, docstring string) error {
	comp, ok := r.snap.Lookup(id)
	if !ok {
		return fmt.Errorf("component %s: %w", id, pkgerrors.ErrNotFound)
	}

	res, err := r.mutator.Insert(root, comp, r.snap.Files[comp.File].Hash, docstring)
	if pkgerrors.IsConflict(err) {
		r.logger.Warn("file changed under traversal, re-parsing", "id", id, "file", comp.File)
		if err := r.refresh(comp.File); err != nil {
			return err
		}
		comp, ok = r.snap.Lookup(id)
		if !ok {
			return fmt.Errorf("component %s gone after re-parse: %w", id, pkgerrors.ErrNotFound)
		}
		res, err = r.mutator.Insert(root, comp, r.snap.Files[comp.File].Hash, docstring)
	}
	if err != nil {
		return err
	}

	if res.Changed {
		return r.refresh(comp.File)
	}
	return nil
}

// refresh re-parses one file and rebuilds the graph over the new snapshot.
func (r *Runner) refresh(rel string) error {
	if err := r.snap.Reparse(rel); err != nil {
		return fmt.Errorf("re-parsing %s: %w", rel, err)
	}
	r.g = graph.Build(r.snap, r.logger)
	return nil
}

// skipExisting reports whether a component already carries a docstring worth
// keeping. Stub docstrings of ten words or fewer are always replaced.
func (r *Runner) skipExisting(comp *component.Component) bool {
	if r.flow.OverwriteDocstrings {
		return false
	}
	return len(strings.Fields(comp.Docstring)) > 10
}

func (r *Runner) exportGraph() error {
	dir := r.paths.GraphDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "dependency_graph.json"))
	if err != nil {
		return err
	}
	defer f.Close()
	return r.g.Export(f)
}

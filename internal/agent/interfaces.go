package agent

import "context"

// Generator produces model completions for the role agents.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Searcher answers free-form external queries.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

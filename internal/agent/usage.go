package agent

import "sync"

// Usage accumulates request and token totals across the run.
type Usage struct {
	Requests     int64
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Tracker is a thread-safe usage accumulator shared by every client in the
// process. Cost rates are per million tokens; zero rates disable cost
// accounting.
type Tracker struct {
	mu             sync.Mutex
	usage          Usage
	inputCostPerM  float64
	outputCostPerM float64
}

func NewTracker(inputCostPerM, outputCostPerM float64) *Tracker {
	return &Tracker{
		inputCostPerM:  inputCostPerM,
		outputCostPerM: outputCostPerM,
	}
}

func (t *Tracker) Record(inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Requests++
	t.usage.InputTokens += int64(inputTokens)
	t.usage.OutputTokens += int64(outputTokens)
	t.usage.Cost += float64(inputTokens)/1e6*t.inputCostPerM +
		float64(outputTokens)/1e6*t.outputCostPerM
}

func (t *Tracker) Totals() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

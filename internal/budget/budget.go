// Package budget implements the Executor's Budget Tracker sub-component
// (spec §4.10 "Budget Tracker", made concrete in SPEC_FULL.md §5.2): a
// per-agent append-only cost ledger with a model→price-per-1k-tokens table,
// recovered from original_source/backend/executor.py's cost-estimation
// helpers (the distillation only named the table in passing). Aggregate
// queries take a read lock for a consistent snapshot, matching the teacher's
// run/inmem defensive-copy discipline.
package budget

import (
	"sync"
	"time"
)

// Rate is the per-1k-token price for a model.
type Rate struct {
	InputPer1k  float64
	OutputPer1k float64
}

// DefaultRate is used for any model absent from Rates.
var DefaultRate = Rate{InputPer1k: 0.50, OutputPer1k: 1.50}

// Rates is the model→price table. Populated with the handful of models the
// reference deployment actually selects via AI_ENHANCEMENT_MODEL; unknown
// models fall back to DefaultRate rather than failing the task.
var Rates = map[string]Rate{
	"gpt-4o":      {InputPer1k: 2.50, OutputPer1k: 10.00},
	"gpt-4o-mini": {InputPer1k: 0.15, OutputPer1k: 0.60},
	"gpt-4-turbo": {InputPer1k: 10.00, OutputPer1k: 30.00},
}

// SpendRecord is one entry in the append-only ledger.
type SpendRecord struct {
	Timestamp    time.Time
	TaskID       string
	Model        string
	InputTokens  int
	OutputTokens int
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
}

// Tracker is the in-process cost ledger: an append-only per-agent list of
// spend records with aggregate queries.
type Tracker struct {
	mu      sync.RWMutex
	byAgent map[string][]SpendRecord
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{byAgent: make(map[string][]SpendRecord)}
}

// Record appends a spend entry for agentID, computing cost from Rates
// (falling back to DefaultRate for unknown models).
func (t *Tracker) Record(agentID, taskID, model string, inputTokens, outputTokens int) SpendRecord {
	rate, ok := Rates[model]
	if !ok {
		rate = DefaultRate
	}
	inputCost := float64(inputTokens) / 1000 * rate.InputPer1k
	outputCost := float64(outputTokens) / 1000 * rate.OutputPer1k
	rec := SpendRecord{
		Timestamp: time.Now().UTC(), TaskID: taskID, Model: model,
		InputTokens: inputTokens, OutputTokens: outputTokens,
		InputCost: inputCost, OutputCost: outputCost, TotalCost: inputCost + outputCost,
	}
	t.mu.Lock()
	t.byAgent[agentID] = append(t.byAgent[agentID], rec)
	t.mu.Unlock()
	return rec
}

// PerAgent returns the total cost recorded for agentID.
func (t *Tracker) PerAgent(agentID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, r := range t.byAgent[agentID] {
		total += r.TotalCost
	}
	return total
}

// PerWorkspace sums spend across every agent in agentIDs, for an aggregate
// per-workspace view.
func (t *Tracker) PerWorkspace(agentIDs []string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, id := range agentIDs {
		for _, r := range t.byAgent[id] {
			total += r.TotalCost
		}
	}
	return total
}

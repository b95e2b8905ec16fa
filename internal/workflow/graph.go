package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/telemetry"
)

const (
	// Start and End are the sentinel node names bracketing every graph,
	// matching spec.md §4.4's START/END notation.
	Start = "START"
	End   = "END"
)

// Agent is the uniform contract every workflow node implements (spec.md §4.3
// "Agent contract"): read the current state, return a partial delta. Agents
// MUST NOT mutate state in place; the engine enforces this by handing them a
// value, not a pointer.
type Agent func(ctx context.Context, state ExecutionState) (Delta, error)

// Graph is a directed acyclic graph of named agent nodes (spec.md §4.4
// "Graph topology"). Edges map a node name (or Start) to the node names that
// become eligible once it commits.
type Graph struct {
	Nodes map[string]Agent
	Edges map[string][]string // from -> []to
}

// NewChatGraph builds the core chat workflow topology (spec.md §4.4):
// parallel mode is START -> {sentiment, intent} -> sales -> END; sequential
// mode (ENABLE_PARALLEL_EXECUTION=false) is sentiment -> intent -> sales.
// Parallel mode MUST produce results structurally equivalent to sequential
// mode for fields whose reducers are associative and commutative (sum,
// concat, recursive map-merge); only per-node scheduling order may differ.
func NewChatGraph(sentiment, intent, sales Agent, parallel bool) *Graph {
	g := &Graph{
		Nodes: map[string]Agent{
			"sentiment": sentiment,
			"intent":    intent,
			"sales":     sales,
		},
	}
	if parallel {
		g.Edges = map[string][]string{
			Start:       {"sentiment", "intent"},
			"sentiment": {"sales"},
			"intent":    {"sales"},
			"sales":     {End},
		}
	} else {
		g.Edges = map[string][]string{
			Start:       {"sentiment"},
			"sentiment": {"intent"},
			"intent":    {"sales"},
			"sales":     {End},
		}
	}
	return g
}

// indegree computes, for every real node, how many distinct predecessor
// nodes it has (used to know when all predecessors have committed).
func (g *Graph) indegree() map[string]int {
	deg := map[string]int{}
	for node := range g.Nodes {
		deg[node] = 0
	}
	for from, tos := range g.Edges {
		for _, to := range tos {
			if to == End {
				continue
			}
			if from == Start {
				continue
			}
			deg[to]++
		}
	}
	return deg
}

// frontierFrom returns the real nodes directly reachable from Start.
func (g *Graph) frontierFrom() []string {
	out := append([]string(nil), g.Edges[Start]...)
	sort.Strings(out)
	return out
}

// Engine drives a Graph over an ExecutionState, scheduling nodes respecting
// edges and folding each node's delta into the shared state through the
// field reducers declared on ExecutionState.Merge (spec.md §4.4 "Execution
// algorithm").
type Engine struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// NewEngine constructs an Engine. A nil Logger/Metrics is replaced with a
// noop implementation.
func NewEngine(logger telemetry.Logger, metrics telemetry.Metrics) *Engine {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Engine{Logger: logger, Metrics: metrics}
}

// Run executes g over state until every node has committed or the graph
// reaches End, folding deltas in strictly the order they arrive (spec.md §5
// "reducers are applied strictly in the order deltas arrive; this defines
// the order of active_agents and actions").
//
// Any agent error is recorded into state.ErrorMessage/ExceptionCount, marks
// state.FinishedAt, and is returned to the caller wrapped as a
// apperrors.KindWorkflowError; the caller (the permission prelude in
// internal/api) is responsible for transitioning the thread to FAILED.
// Partial results already folded into state remain visible for diagnostics.
func (e *Engine) Run(ctx context.Context, g *Graph, state *ExecutionState) error {
	deg := g.indegree()
	var mu sync.Mutex // serializes Merge calls so reducer application order is well defined
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	var schedule func(nodes []string)
	schedule = func(nodes []string) {
		for _, name := range nodes {
			name := name
			agent, ok := g.Nodes[name]
			if !ok {
				errOnce.Do(func() { firstErr = fmt.Errorf("workflow graph references unknown node %q", name) })
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()

				mu.Lock()
				snapshot := state.Snapshot()
				mu.Unlock()

				delta, err := agent(ctx, snapshot)

				mu.Lock()
				if err != nil {
					e.Logger.Error(ctx, "agent node failed", "node", name, "err", err)
					state.ExceptionCount++
					state.ErrorMessage = err.Error()
				} else {
					state.Merge(delta)
				}
				next := g.Edges[name]
				mu.Unlock()

				if err != nil {
					errOnce.Do(func() {
						firstErr = apperrors.Wrap(apperrors.KindWorkflowError, err, fmt.Sprintf("agent %q failed", name))
					})
					return
				}

				var ready []string
				mu.Lock()
				for _, to := range next {
					if to == End {
						continue
					}
					deg[to]--
					if deg[to] == 0 {
						ready = append(ready, to)
					}
				}
				mu.Unlock()
				if len(ready) > 0 {
					schedule(ready)
				}
			}()
		}
	}

	schedule(g.frontierFrom())
	wg.Wait()

	mu.Lock()
	state.FinishedAt = time.Now()
	mu.Unlock()

	return firstErr
}

// Package workflow implements the Workflow Graph Engine (WGE, spec.md §4.4):
// a DAG of named agent nodes, a typed execution-state object, per-field
// reducers that deterministically merge concurrent deltas, and a driver that
// schedules nodes respecting edges.
package workflow

import (
	"time"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// SentimentResult is the Sentiment/Prompt-Matching Agent's output.
type SentimentResult struct {
	Level         string // e.g. "positive" | "neutral" | "negative"
	Score         float64
	JourneyStage  string // "awareness" | "consideration" | "decision"
}

// MatchedPrompt is the persona-prompt fragment selected by the
// Sentiment/Prompt-Matching Agent for a (sentiment, journey stage) pair.
type MatchedPrompt struct {
	SystemPrompt string
	Tone         string
	Strategy     string
}

// AppointmentIntent captures the Intent Agent's appointment sub-intent.
type AppointmentIntent struct {
	Detected bool
	Strength float64
	Service  string
	Name     string
	Phone    string
	Time     string // extracted, unresolved, time expression
}

// AssetsIntent captures the Intent Agent's assets sub-intent.
type AssetsIntent struct {
	Detected bool
	Keywords []string
}

// AudioOutputIntent captures the Intent Agent's audio-output sub-intent.
type AudioOutputIntent struct {
	Detected   bool
	Confidence float64
}

// IntentResult is the Intent Agent's full structured output (spec.md §4.3).
type IntentResult struct {
	Appointment AppointmentIntent
	Assets      AssetsIntent
	AudioOutput AudioOutputIntent
}

// AssetItem is a single ranked asset returned by the external Assets Service.
type AssetItem struct {
	ID      string
	Name    string
	Content string
	Remark  string
	Score   int
}

// AssetsData is the Intent Agent's resolved, ranked asset list.
type AssetsData struct {
	Items []AssetItem
}

// BusinessOutputs is the business intent synthesized from AppointmentIntent
// (spec.md §4.3): Status is 1 iff intent_strength >= 0.6 AND Time resolves to
// a parseable future timestamp.
type BusinessOutputs struct {
	Status  int
	Time    int64 // epoch millis, 0 if unresolved
	Service string
	Name    string
	Phone   string
}

// MultimodalOutput is one produced media artifact (e.g. synthesized audio).
type MultimodalOutput struct {
	Type string // "audio" | "image" | "video"
	URL  string
}

// ExecutionState is the runtime value flowing through the Workflow Graph
// Engine for one turn (spec.md §3 "Workflow Execution State"). Agents never
// mutate it directly; they return a Delta that the engine folds in via
// reducers (§4.4).
type ExecutionState struct {
	// identity
	WorkflowID  string
	ThreadID    string
	AssistantID string
	TenantID    string

	// inputs
	Input []domain.Message

	// intermediate per-agent outputs
	SentimentAnalysis *SentimentResult
	IntentAnalysis    *IntentResult
	MatchedPrompt     *MatchedPrompt
	AssetsData        *AssetsData
	BusinessOutputs   *BusinessOutputs
	Actions           []string

	// outputs
	Output            string
	MultimodalOutputs []MultimodalOutput
	InputTokens       int
	OutputTokens      int
	TotalTokens       int

	// diagnostics
	Values         map[string]map[string]any
	ActiveAgents   []string
	ErrorMessage   string
	ExceptionCount int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// NewExecutionState seeds a fresh state for one workflow run.
func NewExecutionState(workflowID, threadID, assistantID, tenantID string, input []domain.Message) *ExecutionState {
	return &ExecutionState{
		WorkflowID:  workflowID,
		ThreadID:    threadID,
		AssistantID: assistantID,
		TenantID:    tenantID,
		Input:       input,
		Values:      map[string]map[string]any{},
		StartedAt:   time.Now(),
	}
}

// Snapshot returns a shallow copy of the state, safe to hand to a caller for
// diagnostics while the engine continues to mutate the original (spec.md §4.4
// "partial results from already-committed deltas are preserved").
func (s *ExecutionState) Snapshot() ExecutionState {
	cp := *s
	cp.Actions = append([]string(nil), s.Actions...)
	cp.ActiveAgents = append([]string(nil), s.ActiveAgents...)
	cp.MultimodalOutputs = append([]MultimodalOutput(nil), s.MultimodalOutputs...)
	cp.Values = make(map[string]map[string]any, len(s.Values))
	for k, v := range s.Values {
		inner := make(map[string]any, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		cp.Values[k] = inner
	}
	return cp
}

package workflow

import "time"

// Delta is a partial update to the ExecutionState produced by a single agent
// (spec.md §3, §4.3 "Uniform behaviour", §9 glossary). Every field is
// optional: a nil/zero value means the agent did not contribute to that
// field. AgentName is mandatory: the agent sets it to its own name and Merge
// appends it to ActiveAgents.
type Delta struct {
	AgentName string

	SentimentAnalysis *SentimentResult
	IntentAnalysis    *IntentResult
	MatchedPrompt     *MatchedPrompt
	AssetsData        *AssetsData
	BusinessOutputs   *BusinessOutputs
	Actions           []string

	Output            *string
	MultimodalOutputs []MultimodalOutput
	InputTokens       int
	OutputTokens      int

	Values         map[string]any // merged under Values[AgentName]
	ErrorMessage   *string
	ExceptionDelta int
	FinishedAt     *time.Time
}

// Merge folds delta into state according to the per-field reducers declared
// in spec.md §4.4. It is the only path by which an agent's output reaches the
// state: agents are never handed a live *ExecutionState to write into. (On an
// agent error, Engine.Run writes ErrorMessage, ExceptionCount and FinishedAt
// itself.)
//
//   - Output/ErrorMessage/FinishedAt: last-write-wins; identity fields are
//     never changed by Merge.
//   - InputTokens/OutputTokens/TotalTokens/ExceptionCount: integer sum.
//   - ActiveAgents/Actions/MultimodalOutputs: ordered concat, in call order.
//   - Values: recursive map-merge, sub-maps keyed by agent name.
//   - SentimentAnalysis/IntentAnalysis/MatchedPrompt/AssetsData/BusinessOutputs:
//     last-write-wins (single-writer fields by graph authoring convention).
func (s *ExecutionState) Merge(d Delta) {
	if d.AgentName != "" {
		s.ActiveAgents = append(s.ActiveAgents, d.AgentName)
	}
	if d.SentimentAnalysis != nil {
		s.SentimentAnalysis = d.SentimentAnalysis
	}
	if d.IntentAnalysis != nil {
		s.IntentAnalysis = d.IntentAnalysis
	}
	if d.MatchedPrompt != nil {
		s.MatchedPrompt = d.MatchedPrompt
	}
	if d.AssetsData != nil {
		s.AssetsData = d.AssetsData
	}
	if d.BusinessOutputs != nil {
		s.BusinessOutputs = d.BusinessOutputs
	}
	if len(d.Actions) > 0 {
		s.Actions = append(s.Actions, d.Actions...)
	}
	if d.Output != nil {
		s.Output = *d.Output
	}
	if len(d.MultimodalOutputs) > 0 {
		s.MultimodalOutputs = append(s.MultimodalOutputs, d.MultimodalOutputs...)
	}
	s.InputTokens += d.InputTokens
	s.OutputTokens += d.OutputTokens
	s.TotalTokens += d.InputTokens + d.OutputTokens
	s.ExceptionCount += d.ExceptionDelta
	if d.ErrorMessage != nil {
		s.ErrorMessage = *d.ErrorMessage
	}
	if d.FinishedAt != nil {
		s.FinishedAt = *d.FinishedAt
	}
	if len(d.Values) > 0 {
		if s.Values == nil {
			s.Values = map[string]map[string]any{}
		}
		agent := d.AgentName
		sub, ok := s.Values[agent]
		if !ok {
			sub = map[string]any{}
			s.Values[agent] = sub
		}
		mergeMapInto(sub, d.Values)
	}
}

// mergeMapInto recursively merges src into dst: nested maps recurse; leaves
// are last-write-wins (spec.md §4.4 Values reducer).
func mergeMapInto(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			dstMap, ok := dst[k].(map[string]any)
			if !ok {
				dstMap = map[string]any{}
				dst[k] = dstMap
			}
			mergeMapInto(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}

package api

import (
	"time"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// messageDTO is the wire shape of domain.Message for request/response
// bodies (spec.md §3 Message, §6 routes that carry raw messages).
type messageDTO struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (m messageDTO) toDomain() domain.Message {
	return domain.Message{Role: domain.Role(m.Role), Text: m.Text, CreatedAt: time.Now()}
}

func messagesToDomain(in []messageDTO) []domain.Message {
	out := make([]domain.Message, 0, len(in))
	for _, m := range in {
		out = append(out, m.toDomain())
	}
	return out
}

// threadRunResponse is the `ThreadRunResponse` spec.md §6 names: the final
// (or, for the status endpoint, latest known) execution outcome.
type threadRunResponse struct {
	RunID           string         `json:"run_id"`
	ThreadID        string         `json:"thread_id"`
	Status          string         `json:"status"`
	Output          string         `json:"output,omitempty"`
	BusinessOutputs map[string]any `json:"business_outputs,omitempty"`
	InputTokens     int            `json:"input_tokens,omitempty"`
	OutputTokens    int            `json:"output_tokens,omitempty"`
	Error           string         `json:"error,omitempty"`
}

func businessOutputsToMap(b *workflow.BusinessOutputs) map[string]any {
	if b == nil {
		return nil
	}
	return map[string]any{
		"status":  b.Status,
		"time":    b.Time,
		"service": b.Service,
		"name":    b.Name,
		"phone":   b.Phone,
	}
}

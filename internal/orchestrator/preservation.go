package orchestrator

import (
	"context"
	"time"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/memory"
)

// PreservationOutcome is the result of one preservation check (spec.md
// §4.5b): "skipped" (empty short-term buffer, nothing to preserve), "filtered"
// (quality gate rejected it), or "preserved".
type PreservationOutcome string

const (
	PreservationSkipped   PreservationOutcome = "skipped"
	PreservationFiltered  PreservationOutcome = "filtered"
	PreservationPreserved PreservationOutcome = "preserved"
)

// PreservationResult reports what happened and why.
type PreservationResult struct {
	Outcome     PreservationOutcome
	Reason      string
	EntryID     string
	MessageCount int
}

// minAverageMessageLength is the quality gate's average user-message length
// threshold in characters (spec.md §4.5b); the minimum user-message count is
// Preserver.MinMessagesToPreserve, defaulting to 2 in EvaluateQuality.
const minAverageMessageLength = 5

// Preserver implements the conversation preservation pipeline (spec.md
// §4.5b): wait (handled by the Temporal workflow's timer, not here) / check
// eligibility / evaluate quality / write to long-term memory.
type Preserver struct {
	Memory                *memory.Store
	MinMessagesToPreserve int
	LongTermTTL           time.Duration
	Now                   func() time.Time
}

func (p *Preserver) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// CheckNeeded reports whether the thread still has short-term content worth
// considering for preservation (spec.md §4.5b "check"): empty or already
// shrunk buffers need no preservation.
func (p *Preserver) CheckNeeded(ctx context.Context, tenantID, threadID string) (bool, string, error) {
	recent, err := p.Memory.GetRecent(ctx, tenantID, threadID, 0)
	if err != nil {
		return false, "", err
	}
	if len(recent) == 0 {
		return false, "empty_buffer", nil
	}
	return true, "", nil
}

// EvaluateQuality applies the quality gate (spec.md §4.5b): at least
// MinMessagesToPreserve user messages (default 2) with an average character
// length of at least 5.
func (p *Preserver) EvaluateQuality(messages []domain.Message) (bool, string) {
	minUser := p.MinMessagesToPreserve
	if minUser <= 0 {
		minUser = 2
	}
	var userMessages []domain.Message
	for _, m := range messages {
		if m.IsUser() {
			userMessages = append(userMessages, m)
		}
	}
	if len(userMessages) < minUser {
		return false, "insufficient_user_engagement"
	}
	total := 0
	for _, m := range userMessages {
		total += m.Len()
	}
	avg := float64(total) / float64(len(userMessages))
	if avg < minAverageMessageLength {
		return false, "messages_too_short"
	}
	return true, "quality_passed"
}

// Preserve writes the current short-term buffer into long-term memory as a
// single summarized entry and shrinks the buffer (spec.md §4.5b "write").
func (p *Preserver) Preserve(ctx context.Context, tenantID, threadID string, summarize func(context.Context, []domain.Message) (string, error)) (PreservationResult, error) {
	needed, reason, err := p.CheckNeeded(ctx, tenantID, threadID)
	if err != nil {
		return PreservationResult{}, err
	}
	if !needed {
		return PreservationResult{Outcome: PreservationSkipped, Reason: reason}, nil
	}

	recent, err := p.Memory.GetRecent(ctx, tenantID, threadID, 0)
	if err != nil {
		return PreservationResult{}, err
	}
	ok, reason := p.EvaluateQuality(recent)
	if !ok {
		return PreservationResult{Outcome: PreservationFiltered, Reason: reason}, nil
	}

	summary, err := summarize(ctx, recent)
	if err != nil {
		return PreservationResult{}, err
	}
	expires := p.now().Add(p.LongTermTTL)
	entryID, err := p.Memory.StoreSummary(ctx, tenantID, threadID, summary, memory.MemoryTypeLongTerm, nil, 0, &expires)
	if err != nil {
		return PreservationResult{}, err
	}
	if err := p.Memory.ShrinkContext(ctx, tenantID, threadID); err != nil {
		return PreservationResult{}, err
	}
	return PreservationResult{Outcome: PreservationPreserved, Reason: "quality_passed", EntryID: entryID, MessageCount: len(recent)}, nil
}

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digitalemployee/orchestrator/internal/agentrt"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
	"github.com/digitalemployee/orchestrator/internal/memory"
)

type fakeThreadRepo struct {
	threads  []domain.Thread
	awakened []string
	scanErr  error
}

func (f *fakeThreadRepo) ScanInactiveThreads(_ context.Context, _ time.Duration, _ int) ([]domain.Thread, error) {
	return f.threads, f.scanErr
}
func (f *fakeThreadRepo) RecordAwakening(_ context.Context, threadID string) error {
	f.awakened = append(f.awakened, threadID)
	return nil
}

type fakeCallbackSender struct {
	sent []CallbackPayload
	err  error
}

func (f *fakeCallbackSender) Send(_ context.Context, _ string, payload any, _ map[string]string, _ time.Duration, _ int) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, payload.(CallbackPayload))
	return nil
}

// staticRoleLoader is a minimal agentrt.PersonaPromptLoader fake local to
// this test file (only RolePrompt is exercised by Awakener).
type staticRoleLoader struct{}

func (staticRoleLoader) MatchPrompt(_ context.Context, _, _, _ string) (agentrt.PersonaPrompt, error) {
	return agentrt.PersonaPrompt{}, nil
}
func (staticRoleLoader) RolePrompt(_ context.Context, _ string) (string, error) {
	return "You are Mia.", nil
}
func (staticRoleLoader) ThreadPrompt(_ context.Context, _ string) (string, error) { return "", nil }

// scriptedAwakeningProvider is a minimal gateway.Provider fake local to this
// test file.
type scriptedAwakeningProvider struct {
	text string
	fail bool
}

func (p *scriptedAwakeningProvider) Complete(_ context.Context, _ gateway.Request) (*gateway.Response, error) {
	if p.fail {
		return nil, context.DeadlineExceeded
	}
	return &gateway.Response{Text: p.text}, nil
}

func newAwakener(repo *fakeThreadRepo, callback *fakeCallbackSender, provider gateway.Provider) *Awakener {
	store := memory.New(memory.Options{Backend: memory.NewFakeBackend(), NShort: 20, NSummary: 1000})
	gw := gateway.New(gateway.Options{
		Providers:       map[string]gateway.Provider{"fake": provider},
		DefaultProvider: "fake",
	})
	return &Awakener{
		Threads: repo, Memory: store, Gateway: gw, Callback: callback,
		Prompts: staticRoleLoader{}, Provider: "fake", Endpoint: "/hook",
		BatchSize: 10, InactiveAfter: time.Hour,
	}
}

func TestAwakener_RunBatch_SkipsThreadsWithoutAssistant(t *testing.T) {
	repo := &fakeThreadRepo{threads: []domain.Thread{{ID: "th1", TenantID: "t1"}}}
	callback := &fakeCallbackSender{}
	a := newAwakener(repo, callback, &scriptedAwakeningProvider{text: "hi there"})

	stats, err := a.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Processed)
	require.Equal(t, 1, stats.Skipped)
	require.Equal(t, 0, stats.Sent)
	require.Empty(t, callback.sent)
}

func TestAwakener_RunBatch_SendsAndRecordsForAssistedThread(t *testing.T) {
	repo := &fakeThreadRepo{threads: []domain.Thread{{ID: "th1", TenantID: "t1", AssistantID: "a1"}}}
	callback := &fakeCallbackSender{}
	a := newAwakener(repo, callback, &scriptedAwakeningProvider{text: "hi there"})

	stats, err := a.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Sent)
	require.Len(t, callback.sent, 1)
	require.Equal(t, "hi there", callback.sent[0].EventContent.Data.Output)
	require.Equal(t, []string{"th1"}, repo.awakened)
}

func TestAwakener_RunBatch_FallsBackToDefaultPromptOnLLMFailure(t *testing.T) {
	repo := &fakeThreadRepo{threads: []domain.Thread{{ID: "th1", TenantID: "t1", AssistantID: "a1"}}}
	callback := &fakeCallbackSender{}
	a := newAwakener(repo, callback, &scriptedAwakeningProvider{fail: true})

	stats, err := a.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Sent)
	require.Equal(t, defaultAwakeningPrompt, callback.sent[0].EventContent.Data.Output)
}

func TestAwakener_RunBatch_PerThreadFailureDoesNotAbortBatch(t *testing.T) {
	repo := &fakeThreadRepo{threads: []domain.Thread{
		{ID: "th1", TenantID: "t1", AssistantID: "a1"},
		{ID: "th2", TenantID: "t1", AssistantID: "a1"},
	}}
	callback := &fakeCallbackSender{err: context.DeadlineExceeded}
	a := newAwakener(repo, callback, &scriptedAwakeningProvider{text: "hi"})

	stats, err := a.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Processed)
	require.Equal(t, 2, stats.Failed)
}

package anthropic

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
)

type fakeMessagesClient struct {
	resp *sdk.Message
	err  error
	last sdk.MessageNewParams
}

func (f *fakeMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.last = body
	return f.resp, f.err
}

func TestClient_Complete_RequiresMessages(t *testing.T) {
	fake := &fakeMessagesClient{resp: &sdk.Message{}}
	client, err := New(Options{Client: fake, DefaultModel: "claude-haiku-4-5", MaxTokens: 256})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), gateway.Request{})
	require.Error(t, err)
}

func TestClient_Complete_TranslatesTextResponse(t *testing.T) {
	fake := &fakeMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "hi there"}},
		Usage:   sdk.Usage{InputTokens: 4, OutputTokens: 2},
	}}
	client, err := New(Options{Client: fake, DefaultModel: "claude-haiku-4-5", MaxTokens: 256})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), gateway.Request{
		Messages: []domain.Message{{Role: domain.RoleUser, Text: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Text)
	require.Equal(t, 4, resp.Usage.InputTokens)
	require.Equal(t, 2, resp.Usage.OutputTokens)
}

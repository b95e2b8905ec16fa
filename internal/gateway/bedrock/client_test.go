package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
)

type fakeRuntime struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeRuntime) Converse(_ context.Context, _ *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return f.out, f.err
}

func TestClient_Complete_TranslatesTextResponse(t *testing.T) {
	fake := &fakeRuntime{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hello from bedrock"}},
			},
		},
		Usage: &brtypes.TokenUsage{InputTokens: aws.Int32(6), OutputTokens: aws.Int32(4), TotalTokens: aws.Int32(10)},
	}}
	client, err := New(Options{Runtime: fake, DefaultModel: "anthropic.claude-haiku-4-5"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), gateway.Request{
		Messages: []domain.Message{{Role: domain.RoleUser, Text: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello from bedrock", resp.Text)
	require.Equal(t, 6, resp.Usage.InputTokens)
}

func TestClient_Complete_RequiresMessages(t *testing.T) {
	client, err := New(Options{Runtime: &fakeRuntime{}, DefaultModel: "m"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), gateway.Request{})
	require.Error(t, err)
}

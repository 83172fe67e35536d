package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/sqlchat/internal/conversation"
)

func streamOf(events ...types.ResponseStream) <-chan types.ResponseStream {
	ch := make(chan types.ResponseStream, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func chunk(s string) types.ResponseStream {
	return &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(s)}}
}

func orchestration(o types.OrchestrationTrace) types.ResponseStream {
	return &types.ResponseStreamMemberTrace{Value: types.TracePart{
		Trace: &types.TraceMemberOrchestrationTrace{Value: o},
	}}
}

func TestCollect_CompletionAndTraceOrder(t *testing.T) {
	events := streamOf(
		orchestration(&types.OrchestrationTraceMemberRationale{Value: types.Rationale{Text: aws.String("thinking")}}),
		orchestration(&types.OrchestrationTraceMemberInvocationInput{Value: types.InvocationInput{
			ActionGroupInvocationInput: &types.ActionGroupInvocationInput{
				ApiPath: aws.String("/querydatabase"),
				Parameters: []types.Parameter{
					{Name: aws.String("query"), Type: aws.String("string"), Value: aws.String("SELECT 1")},
				},
			},
		}}),
		orchestration(&types.OrchestrationTraceMemberObservation{Value: types.Observation{
			ActionGroupInvocationOutput: &types.ActionGroupInvocationOutput{Text: aws.String(`[{"x": 1}]`)},
		}}),
		chunk("The answer "),
		chunk("is 1."),
	)

	resp, err := collect(events, func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "The answer is 1.", resp.Completion)
	require.Len(t, resp.Events, 3)

	turn := conversation.Assemble("q", resp.Completion, resp.Events)
	require.Len(t, turn.Steps, 2)
	assert.Equal(t, "SELECT 1", *turn.Steps[0].SQL)
	assert.Equal(t, conversation.PayloadRows, turn.Steps[1].Result.Kind)
}

func TestCollect_SkipsNonOrchestrationTraces(t *testing.T) {
	events := streamOf(
		&types.ResponseStreamMemberTrace{Value: types.TracePart{
			Trace: &types.TraceMemberPreProcessingTrace{},
		}},
		chunk("ok"),
	)

	resp, err := collect(events, func() error { return nil })
	require.NoError(t, err)
	assert.Empty(t, resp.Events)
	assert.Equal(t, "ok", resp.Completion)
}

func TestCollect_StreamErrorFailsTurn(t *testing.T) {
	boom := errors.New("connection reset")
	resp, err := collect(streamOf(chunk("partial")), func() error { return boom })

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)
}

func TestNewBedrockClient_RequiresIDs(t *testing.T) {
	_, err := NewBedrockClient(nil, "agent", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type fakeSSM struct {
	values map[string]string
	calls  []string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	f.calls = append(f.calls, name)
	v, ok := f.values[name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

func TestResolveIDs_FromParameterStore(t *testing.T) {
	f := &fakeSSM{values: map[string]string{
		DefaultAgentIDParameter:    "AGENT123",
		DefaultAgentAliasParameter: "ALIAS456",
	}}

	ids, err := ResolveIDs(context.Background(), f, IDs{}, DefaultAgentIDParameter, DefaultAgentAliasParameter)
	require.NoError(t, err)
	assert.Equal(t, IDs{AgentID: "AGENT123", AliasID: "ALIAS456"}, ids)
}

func TestResolveIDs_KeepsExplicitIDs(t *testing.T) {
	f := &fakeSSM{values: map[string]string{DefaultAgentAliasParameter: "ALIAS456"}}

	ids, err := ResolveIDs(context.Background(), f, IDs{AgentID: "EXPLICIT"}, DefaultAgentIDParameter, DefaultAgentAliasParameter)
	require.NoError(t, err)
	assert.Equal(t, "EXPLICIT", ids.AgentID)
	assert.Equal(t, []string{DefaultAgentAliasParameter}, f.calls)
}

func TestResolveIDs_MissingParameter(t *testing.T) {
	_, err := ResolveIDs(context.Background(), &fakeSSM{}, IDs{}, DefaultAgentIDParameter, DefaultAgentAliasParameter)
	assert.Error(t, err)
}

func TestResolveIDs_NoClient(t *testing.T) {
	_, err := ResolveIDs(context.Background(), nil, IDs{}, DefaultAgentIDParameter, DefaultAgentAliasParameter)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/sqlchat/internal/agent"
	"github.com/agentoven/sqlchat/internal/chat"
	"github.com/agentoven/sqlchat/internal/conversation"
)

type fakeAgent struct {
	resp *agent.Response
	err  error
	got  agent.Request
	ctx  context.Context
}

func (f *fakeAgent) Invoke(ctx context.Context, req agent.Request) (*agent.Response, error) {
	f.got = req
	f.ctx = ctx
	return f.resp, f.err
}

func TestAsk_AssemblesTrace(t *testing.T) {
	fa := &fakeAgent{resp: &agent.Response{
		Completion: "Nolan Ryan was inducted in 1999.",
		Events: []conversation.RawTraceEvent{
			conversation.RawTraceEvent(`{"orchestrationTrace":{"invocationInput":{"actionGroupInvocationInput":{"apiPath":"/querydatabase","parameters":[{"name":"query","value":"SELECT yearid FROM hall_of_fame"}]}}}}`),
			conversation.RawTraceEvent(`{"orchestrationTrace":{"rationale":{"text":"..."}}}`),
			conversation.RawTraceEvent(`{"orchestrationTrace":{"observation":{"actionGroupInvocationOutput":{"text":"[{\"yearid\": 1999}]"}}}}`),
		},
	}}
	svc := chat.NewService(fa, chat.Options{EnableTrace: true})

	turn, err := svc.Ask(context.Background(), "agent-session", "  When was Nolan Ryan inducted?  ")
	require.NoError(t, err)

	assert.Equal(t, agent.Request{
		Question:    "When was Nolan Ryan inducted?",
		SessionID:   "agent-session",
		EnableTrace: true,
	}, fa.got)
	assert.Equal(t, "When was Nolan Ryan inducted?", turn.Question)
	assert.Equal(t, "Nolan Ryan was inducted in 1999.", turn.Completion)
	require.Len(t, turn.Steps, 2)
	assert.Equal(t, "SELECT yearid FROM hall_of_fame", *turn.Steps[0].SQL)
	assert.Equal(t, [][]string{{"1999"}}, turn.Steps[1].Result.Rows)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	fa := &fakeAgent{}
	_, err := chat.NewService(fa, chat.Options{}).Ask(context.Background(), "s", "   ")
	assert.ErrorIs(t, err, chat.ErrEmptyQuestion)
	assert.Empty(t, fa.got.Question)
}

func TestAsk_AgentFailureIsFatal(t *testing.T) {
	boom := errors.New("throttled")
	fa := &fakeAgent{err: boom}

	turn, err := chat.NewService(fa, chat.Options{}).Ask(context.Background(), "s", "q")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, turn.Steps)
}

func TestAsk_AppliesTimeout(t *testing.T) {
	fa := &fakeAgent{resp: &agent.Response{Completion: "ok"}}

	_, err := chat.NewService(fa, chat.Options{Timeout: time.Minute}).Ask(context.Background(), "s", "q")
	require.NoError(t, err)
	_, hasDeadline := fa.ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestAskHTML(t *testing.T) {
	fa := &fakeAgent{resp: &agent.Response{Completion: "fine"}}

	_, html, err := chat.NewService(fa, chat.Options{}).AskHTML(context.Background(), "s", "how?")
	require.NoError(t, err)
	assert.Contains(t, html, "<div class='user-message'>User: how?</div>")
	assert.Contains(t, html, "<div class='bot-response'>Bot: fine</div>")
}

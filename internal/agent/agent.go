// Package agent talks to the managed conversational agent that turns
// questions into SQL, runs it through the query tool and answers.
package agent

import (
	"context"
	"errors"

	"github.com/agentoven/sqlchat/internal/conversation"
)

// ErrNotConfigured is returned when no agent id or alias id is available.
var ErrNotConfigured = errors.New("agent id and alias id are not configured")

// Request is one question sent to the agent.
type Request struct {
	Question    string
	SessionID   string
	EnableTrace bool
}

// Response is the agent's answer and, when tracing was enabled, the
// ordered trace events it emitted while answering.
type Response struct {
	Completion string
	Events     []conversation.RawTraceEvent
}

// Client invokes the agent. A failed call returns no partial response.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

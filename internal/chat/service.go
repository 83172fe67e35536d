// Package chat runs one question/answer turn: ask the agent, rebuild the
// conversation from its trace, render it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/sqlchat/internal/agent"
	"github.com/agentoven/sqlchat/internal/conversation"
)

// ErrEmptyQuestion is returned when the question is blank.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Options tune a Service.
type Options struct {
	// EnableTrace asks the agent for its execution trace.
	EnableTrace bool
	// Timeout bounds one agent call. Zero means no extra bound.
	Timeout time.Duration
	// Extractor overrides the default trace extractor.
	Extractor *conversation.Extractor
}

// Service answers questions through the agent.
type Service struct {
	agent     agent.Client
	extractor *conversation.Extractor
	opts      Options
}

// NewService creates a Service around an agent client.
func NewService(client agent.Client, opts Options) *Service {
	ex := opts.Extractor
	if ex == nil {
		ex = conversation.NewExtractor()
	}
	return &Service{agent: client, extractor: ex, opts: opts}
}

// Ask runs one turn. Agent failures fail the turn as a whole.
func (s *Service) Ask(ctx context.Context, agentSessionID, question string) (conversation.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return conversation.Turn{}, ErrEmptyQuestion
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.agent.Invoke(ctx, agent.Request{
		Question:    question,
		SessionID:   agentSessionID,
		EnableTrace: s.opts.EnableTrace,
	})
	if err != nil {
		return conversation.Turn{}, fmt.Errorf("ask agent: %w", err)
	}

	turn := s.extractor.Assemble(question, resp.Completion, resp.Events)
	log.Info().
		Str("session", agentSessionID).
		Int("events", len(resp.Events)).
		Int("steps", len(turn.Steps)).
		Dur("duration", time.Since(start)).
		Msg("Turn answered")
	return turn, nil
}

// AskHTML runs one turn and renders it.
func (s *Service) AskHTML(ctx context.Context, agentSessionID, question string) (conversation.Turn, string, error) {
	turn, err := s.Ask(ctx, agentSessionID, question)
	if err != nil {
		return conversation.Turn{}, "", err
	}
	html, err := conversation.Render(turn)
	if err != nil {
		return conversation.Turn{}, "", err
	}
	return turn, html, nil
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentoven/sqlchat/internal/conversation"
)

var tracer = otel.Tracer("sqlchat/agent")

// InvokeAgentAPI is the part of the Bedrock agent runtime client we use.
type InvokeAgentAPI interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// BedrockClient invokes a Bedrock agent alias.
type BedrockClient struct {
	api     InvokeAgentAPI
	agentID string
	aliasID string
}

// NewBedrockClient creates a client for the given agent and alias.
func NewBedrockClient(api InvokeAgentAPI, agentID, aliasID string) (*BedrockClient, error) {
	if agentID == "" || aliasID == "" {
		return nil, ErrNotConfigured
	}
	return &BedrockClient{api: api, agentID: agentID, aliasID: aliasID}, nil
}

// Invoke sends the question and drains the response stream in order.
func (c *BedrockClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "agent.invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.id", c.agentID),
		attribute.String("agent.alias_id", c.aliasID),
		attribute.String("agent.session_id", req.SessionID),
		attribute.Int("agent.question_length", len(req.Question)),
		attribute.Bool("agent.trace_enabled", req.EnableTrace),
	)

	out, err := c.api.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(c.agentID),
		AgentAliasId: aws.String(c.aliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.Question),
		EnableTrace:  aws.Bool(req.EnableTrace),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoke agent")
		return nil, fmt.Errorf("invoke agent: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	resp, err := collect(stream.Events(), stream.Err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read agent stream")
		return nil, err
	}

	span.SetAttributes(attribute.Int("agent.trace_events", len(resp.Events)))
	log.Debug().
		Str("session", req.SessionID).
		Int("trace_events", len(resp.Events)).
		Int("completion_bytes", len(resp.Completion)).
		Msg("Agent turn completed")
	return resp, nil
}

// collect reads the stream until it closes. Chunks are concatenated into
// the completion; trace parts become trace events in arrival order.
func collect(events <-chan types.ResponseStream, streamErr func() error) (*Response, error) {
	var completion strings.Builder
	resp := &Response{}

	for ev := range events {
		switch v := ev.(type) {
		case *types.ResponseStreamMemberChunk:
			completion.Write(v.Value.Bytes)
		case *types.ResponseStreamMemberTrace:
			raw, ok, err := traceEvent(v.Value)
			if err != nil {
				log.Warn().Err(err).Msg("Dropping unencodable trace event")
				continue
			}
			if ok {
				resp.Events = append(resp.Events, raw)
			}
		}
	}
	if err := streamErr(); err != nil {
		return nil, fmt.Errorf("read agent stream: %w", err)
	}

	resp.Completion = completion.String()
	return resp, nil
}

// ── Trace wire documents ────────────────────────────────────

type traceDoc struct {
	OrchestrationTrace orchestrationDoc `json:"orchestrationTrace"`
}

type orchestrationDoc struct {
	InvocationInput *invocationInputDoc `json:"invocationInput,omitempty"`
	Observation     *observationDoc     `json:"observation,omitempty"`
	Rationale       *textDoc            `json:"rationale,omitempty"`
}

type invocationInputDoc struct {
	ActionGroupInvocationInput *actionGroupInputDoc `json:"actionGroupInvocationInput,omitempty"`
}

type actionGroupInputDoc struct {
	ActionGroupName string         `json:"actionGroupName,omitempty"`
	APIPath         string         `json:"apiPath,omitempty"`
	Verb            string         `json:"verb,omitempty"`
	Parameters      []parameterDoc `json:"parameters,omitempty"`
}

type parameterDoc struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

type observationDoc struct {
	Type                        string   `json:"type,omitempty"`
	ActionGroupInvocationOutput *textDoc `json:"actionGroupInvocationOutput,omitempty"`
	FinalResponse               *textDoc `json:"finalResponse,omitempty"`
}

type textDoc struct {
	Text string `json:"text"`
}

// traceEvent converts an orchestration trace part into its JSON wire form.
// Parts that are not orchestration steps are skipped.
func traceEvent(part types.TracePart) (conversation.RawTraceEvent, bool, error) {
	orch, ok := part.Trace.(*types.TraceMemberOrchestrationTrace)
	if !ok {
		return nil, false, nil
	}

	var doc traceDoc
	switch v := orch.Value.(type) {
	case *types.OrchestrationTraceMemberInvocationInput:
		in := v.Value.ActionGroupInvocationInput
		if in == nil {
			return nil, false, nil
		}
		ag := &actionGroupInputDoc{
			ActionGroupName: aws.ToString(in.ActionGroupName),
			APIPath:         aws.ToString(in.ApiPath),
			Verb:            aws.ToString(in.Verb),
		}
		for _, p := range in.Parameters {
			ag.Parameters = append(ag.Parameters, parameterDoc{
				Name:  aws.ToString(p.Name),
				Type:  aws.ToString(p.Type),
				Value: aws.ToString(p.Value),
			})
		}
		doc.OrchestrationTrace.InvocationInput = &invocationInputDoc{ActionGroupInvocationInput: ag}
	case *types.OrchestrationTraceMemberObservation:
		obs := &observationDoc{Type: string(v.Value.Type)}
		if out := v.Value.ActionGroupInvocationOutput; out != nil {
			obs.ActionGroupInvocationOutput = &textDoc{Text: aws.ToString(out.Text)}
		}
		if fin := v.Value.FinalResponse; fin != nil {
			obs.FinalResponse = &textDoc{Text: aws.ToString(fin.Text)}
		}
		doc.OrchestrationTrace.Observation = obs
	case *types.OrchestrationTraceMemberRationale:
		doc.OrchestrationTrace.Rationale = &textDoc{Text: aws.ToString(v.Value.Text)}
	default:
		return nil, false, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

package querytool

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Action-group API paths.
const (
	PathGetSchema     = "/getschema"
	PathQueryDatabase = "/querydatabase"
)

// Parameter is one named parameter of an action-group call.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AgentInfo identifies the calling agent.
type AgentInfo struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Alias   string `json:"alias"`
	Version string `json:"version"`
}

// ActionGroupEvent is the payload a Bedrock agent sends to its action
// group when it decides to call an API operation.
type ActionGroupEvent struct {
	MessageVersion          string            `json:"messageVersion"`
	Agent                   AgentInfo         `json:"agent"`
	InputText               string            `json:"inputText"`
	SessionID               string            `json:"sessionId"`
	ActionGroup             string            `json:"actionGroup"`
	APIPath                 string            `json:"apiPath"`
	HTTPMethod              string            `json:"httpMethod"`
	Parameters              []Parameter       `json:"parameters"`
	SessionAttributes       map[string]string `json:"sessionAttributes,omitempty"`
	PromptSessionAttributes map[string]string `json:"promptSessionAttributes,omitempty"`
}

// Param returns the value of the named parameter.
func (ev ActionGroupEvent) Param(name string) (string, bool) {
	for _, p := range ev.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// ResponseBody maps a content type to its body.
type ResponseBody map[string]struct {
	Body string `json:"body"`
}

// ActionGroupResult is the inner response of an action-group call.
type ActionGroupResult struct {
	ActionGroup    string       `json:"actionGroup"`
	APIPath        string       `json:"apiPath"`
	HTTPMethod     string       `json:"httpMethod"`
	HTTPStatusCode int          `json:"httpStatusCode"`
	ResponseBody   ResponseBody `json:"responseBody"`
}

// ActionGroupResponse is what the action group returns to the agent.
type ActionGroupResponse struct {
	MessageVersion          string            `json:"messageVersion"`
	Response                ActionGroupResult `json:"response"`
	SessionAttributes       map[string]string `json:"sessionAttributes,omitempty"`
	PromptSessionAttributes map[string]string `json:"promptSessionAttributes,omitempty"`
}

// Body returns the application/json body of the response.
func (r ActionGroupResponse) Body() string {
	return r.Response.ResponseBody["application/json"].Body
}

// ActionGroupHandler dispatches action-group events to the Service.
type ActionGroupHandler struct {
	svc *Service
}

// NewActionGroupHandler creates a handler for svc.
func NewActionGroupHandler(svc *Service) *ActionGroupHandler {
	return &ActionGroupHandler{svc: svc}
}

// Handle resolves one event. Operation failures are reported to the agent
// in the response body, never as a returned error, so the agent can react.
func (h *ActionGroupHandler) Handle(ctx context.Context, ev ActionGroupEvent) (ActionGroupResponse, error) {
	status, body := h.dispatch(ctx, ev)

	raw, err := json.Marshal(body)
	if err != nil {
		return ActionGroupResponse{}, err
	}

	log.Info().
		Str("api_path", ev.APIPath).
		Str("session", ev.SessionID).
		Int("status", status).
		Msg("Action group call")

	version := ev.MessageVersion
	if version == "" {
		version = "1.0"
	}
	return ActionGroupResponse{
		MessageVersion: version,
		Response: ActionGroupResult{
			ActionGroup:    ev.ActionGroup,
			APIPath:        ev.APIPath,
			HTTPMethod:     ev.HTTPMethod,
			HTTPStatusCode: status,
			ResponseBody: ResponseBody{
				"application/json": {Body: string(raw)},
			},
		},
		SessionAttributes:       ev.SessionAttributes,
		PromptSessionAttributes: ev.PromptSessionAttributes,
	}, nil
}

func (h *ActionGroupHandler) dispatch(ctx context.Context, ev ActionGroupEvent) (int, any) {
	if ev.HTTPMethod != "" && !strings.EqualFold(ev.HTTPMethod, http.MethodGet) {
		return http.StatusMethodNotAllowed, ErrorBody{StatusCode: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}

	switch strings.TrimSuffix(ev.APIPath, "/") {
	case PathGetSchema:
		tables, err := h.svc.GetSchema(ctx)
		if err != nil {
			return errorStatus(err)
		}
		return http.StatusOK, tables
	case PathQueryDatabase:
		query, ok := ev.Param("query")
		if !ok {
			return http.StatusBadRequest, ErrorBody{StatusCode: http.StatusBadRequest, Message: "Missing required parameter: query"}
		}
		records, err := h.svc.QueryDatabase(ctx, query)
		if err != nil {
			return errorStatus(err)
		}
		return http.StatusOK, records
	default:
		return http.StatusNotFound, ErrorBody{StatusCode: http.StatusNotFound, Message: "Not found"}
	}
}

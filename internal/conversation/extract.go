// Package conversation rebuilds a displayable conversation from the trace
// the agent streams back while answering one question.
//
// The pipeline is Extract → Assemble → Render. A generated SQL statement
// and the observation holding its result arrive on sibling trace events
// with no shared id, so they are correlated only by adjacency. Assemble
// therefore never reorders steps.
package conversation

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fastjson"
)

// DefaultQueryPath is the action-group API path of the query tool.
const DefaultQueryPath = "/querydatabase"

// queryParam is the parameter of the query tool that carries the SQL text.
const queryParam = "query"

// RawTraceEvent is one trace event as emitted by the agent. It is either a
// bare trace ({"orchestrationTrace": ...}) or wrapped in a "trace" envelope.
type RawTraceEvent = json.RawMessage

// Step is the normalized content of one trace event.
type Step struct {
	SQL    *string  `json:"sql,omitempty"`
	Result *Payload `json:"result,omitempty"`
}

// Empty reports whether the step carries no information.
func (s Step) Empty() bool {
	return s.SQL == nil && s.Result == nil
}

// Extractor pulls SQL statements and query results out of trace events.
type Extractor struct {
	// QueryPath is the API path whose "query" parameter is the SQL text.
	QueryPath string
}

// NewExtractor returns an Extractor matching DefaultQueryPath.
func NewExtractor() *Extractor {
	return &Extractor{QueryPath: DefaultQueryPath}
}

// Extract is NewExtractor().Extract.
func Extract(event RawTraceEvent) Step {
	return NewExtractor().Extract(event)
}

// Extract normalizes one event. Malformed events yield an empty step.
func (e *Extractor) Extract(event RawTraceEvent) Step {
	var step Step

	var p fastjson.Parser
	v, err := p.ParseBytes(event)
	if err != nil {
		return step
	}
	orch := orchestration(v)
	if orch == nil {
		return step
	}

	if in := orch.Get("invocationInput", "actionGroupInvocationInput"); in != nil {
		if e.matchesQueryPath(string(in.GetStringBytes("apiPath"))) {
			for _, param := range in.GetArray("parameters") {
				if string(param.GetStringBytes("name")) != queryParam {
					continue
				}
				if val := param.Get("value"); val != nil && val.Type() == fastjson.TypeString {
					sql := string(val.GetStringBytes())
					step.SQL = &sql
				}
				break
			}
		}
	}

	if out := orch.Get("observation", "actionGroupInvocationOutput", "text"); out != nil && out.Type() == fastjson.TypeString {
		if pl, err := ParsePayload(string(out.GetStringBytes())); err == nil {
			step.Result = pl
		}
	}

	return step
}

func (e *Extractor) matchesQueryPath(apiPath string) bool {
	want := e.QueryPath
	if want == "" {
		want = DefaultQueryPath
	}
	return strings.TrimSuffix(apiPath, "/") == strings.TrimSuffix(want, "/")
}

// orchestration unwraps up to two "trace" envelopes and returns the
// orchestration trace, or nil.
func orchestration(v *fastjson.Value) *fastjson.Value {
	for i := 0; i < 3 && v != nil; i++ {
		if o := v.Get("orchestrationTrace"); o != nil {
			return o
		}
		v = v.Get("trace")
	}
	return nil
}

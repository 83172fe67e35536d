package conversation

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

// StepClass is the CSS class shared by every step container.
const StepClass = "default text-left font-sans text-sm font-medium hover:bg-gray-100"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// stepView is the presentation of one step. Kind is one of "sql",
// "rows", "text" or "" (empty container).
type stepView struct {
	Kind    string
	Text    string
	Columns []string
	Rows    [][]string
}

type turnView struct {
	Question   string
	Completion string
	StepClass  string
	Steps      []stepView
}

// Render turns a Turn into an HTML fragment. Question, completion and
// payload text are HTML-escaped. Output is a pure function of turn.
func Render(turn Turn) (string, error) {
	view := turnView{
		Question:   turn.Question,
		Completion: turn.Completion,
		StepClass:  StepClass,
		Steps:      make([]stepView, 0, len(turn.Steps)),
	}
	for _, s := range turn.Steps {
		view.Steps = append(view.Steps, presentStep(s))
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "conversation", view); err != nil {
		return "", fmt.Errorf("render conversation: %w", err)
	}
	return buf.String(), nil
}

func presentStep(s Step) stepView {
	if s.SQL != nil {
		return stepView{Kind: "sql", Text: strings.TrimSpace(*s.SQL)}
	}
	if s.Result == nil {
		return stepView{}
	}
	switch s.Result.Kind {
	case PayloadRows:
		return stepView{Kind: "rows", Columns: s.Result.Columns, Rows: s.Result.Rows}
	case PayloadError:
		return stepView{Kind: "text", Text: s.Result.Message}
	case PayloadEmptyRows, PayloadCatalog:
		return stepView{}
	default:
		return stepView{Kind: "text", Text: s.Result.Text}
	}
}

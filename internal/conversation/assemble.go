package conversation

// Turn is one question/answer exchange with the steps the agent took.
type Turn struct {
	Question   string `json:"question"`
	Completion string `json:"completion"`
	Steps      []Step `json:"steps"`
}

// Assemble builds a Turn using the default Extractor.
func Assemble(question, completion string, events []RawTraceEvent) Turn {
	return NewExtractor().Assemble(question, completion, events)
}

// Assemble extracts every event in arrival order and keeps the non-empty
// steps. Survivors are never reordered.
func (e *Extractor) Assemble(question, completion string, events []RawTraceEvent) Turn {
	steps := make([]Step, 0, len(events))
	for _, ev := range events {
		if step := e.Extract(ev); !step.Empty() {
			steps = append(steps, step)
		}
	}
	return Turn{
		Question:   question,
		Completion: completion,
		Steps:      steps,
	}
}

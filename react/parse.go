package react

import (
	"encoding/json"
	"regexp"
	"strings"
)

// decision is the JSON document the reasoning model answers with.
type decision struct {
	Thought     string         `json:"thought"`
	Action      string         `json:"action"`
	ToolName    string         `json:"tool_name,omitempty"`
	ToolArgs    map[string]any `json:"tool_args,omitempty"`
	FinalAnswer string         `json:"final_answer,omitempty"`
}

var (
	jsonFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseDecision decodes the model response into a decision. A fenced block
// is preferred; without one a raw JSON object embedded in prose is
// extracted. Any response that does not parse, or names an unknown action,
// degrades to finish with the raw text as the answer; parsing never fails.
func parseDecision(text string) decision {
	doc := strings.TrimSpace(text)
	if m := jsonFenceRe.FindStringSubmatch(doc); m != nil {
		doc = strings.TrimSpace(m[1])
	} else if m := jsonObjectRe.FindString(doc); m != "" {
		doc = m
	}

	var d decision
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return decision{Action: ActionFinish, FinalAnswer: strings.TrimSpace(text)}
	}

	switch d.Action {
	case ActionCallTool, ActionFinish:
	default:
		return decision{
			Thought:     d.Thought,
			Action:      ActionFinish,
			FinalAnswer: strings.TrimSpace(text),
		}
	}

	if d.Action == ActionFinish && strings.TrimSpace(d.FinalAnswer) == "" {
		d.FinalAnswer = strings.TrimSpace(text)
	}

	return d
}

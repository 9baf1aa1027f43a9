package planexec

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/util"
	"github.com/hupe1980/planmesh/model"
)

// planToolName is the function the planner model is forced to call to emit
// the structured plan document.
const planToolName = "plan"

var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// rawPlanSchema validates plan documents before decoding, compiled once
// from the reflected RawPlan schema.
var rawPlanSchema = mustCompileRawPlanSchema()

func mustCompileRawPlanSchema() *gojsonschema.Schema {
	data, err := json.Marshal(util.CreateSchema(core.RawPlan{}))
	if err != nil {
		panic(err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(err)
	}
	return schema
}

// rawPlanTool exposes the RawPlan document as the callable function
// definition bound to the planner call.
func rawPlanTool() model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        planToolName,
			Description: "Record the execution plan for the user requirement.",
			Parameters:  util.CreateSchema(core.RawPlan{}),
		},
	}
}

// parseRawPlan extracts the plan document from the planner response. The
// forced tool call is the primary path; plain text with an optional
// ```json fence is the fallback.
func parseRawPlan(msg core.Message) (core.RawPlan, error) {
	if calls := msg.FunctionCalls(); len(calls) > 0 {
		call := calls[0]
		if call.Name != planToolName {
			return core.RawPlan{}, fmt.Errorf("unexpected tool call: %s", call.Name)
		}
		return parseRawPlanJSON(repairTruncatedObject(call.Arguments))
	}

	if text := strings.TrimSpace(msg.Text()); text != "" {
		return parseRawPlanJSON(stripJSONFence(text))
	}

	return core.RawPlan{}, errors.New("no tool calls in planner response")
}

// parseRawPlanJSON validates a candidate document against the RawPlan
// schema and decodes it.
func parseRawPlanJSON(data string) (core.RawPlan, error) {
	doc := []byte(data)

	result, err := rawPlanSchema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return core.RawPlan{}, fmt.Errorf("%w: %v", core.ErrMalformedPlan, err)
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return core.RawPlan{}, fmt.Errorf("%w: %s", core.ErrMalformedPlan, strings.Join(descs, "; "))
	}

	var raw core.RawPlan
	if err := json.Unmarshal(doc, &raw); err != nil {
		return core.RawPlan{}, fmt.Errorf("%w: %v", core.ErrMalformedPlan, err)
	}
	return raw, nil
}

// repairTruncatedObject restores the closing brace of tool arguments cut
// off mid stream.
func repairTruncatedObject(args string) string {
	trimmed := strings.TrimSpace(args)
	if trimmed != "" && !strings.HasSuffix(trimmed, "}") {
		return trimmed + "}"
	}
	return trimmed
}

// stripJSONFence unwraps a ```json fenced block, returning the inner
// document, or the trimmed text when no fence is present.
func stripJSONFence(text string) string {
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

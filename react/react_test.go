package react

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/tool"
)

func weatherTool() tool.Tool {
	return tool.NewFunctionTool(
		"weather_query",
		"Look up the current weather for a city.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
			"required": []string{"city"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			return fmt.Sprintf(`{"city":%q,"condition":"sunny","temp":25}`, args["city"]), nil
		},
	)
}

func failingTool() tool.Tool {
	return tool.NewFunctionTool(
		"flaky",
		"Always fails.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("upstream timeout")
		},
	)
}

func newTestFlow(t *testing.T, tools []tool.Tool, optFns ...func(o *Options)) (*Flow, *model.MockModel) {
	t.Helper()

	mock := model.NewMockModel("react-mock", "test")
	resolver := model.NewResolver(mock)

	f, err := New(resolver, tool.NewRegistry(tools), optFns...)
	require.NoError(t, err)

	return f, mock
}

func decisionJSON(thought, action, toolName, argsJSON, finalAnswer string) string {
	return fmt.Sprintf(
		`{"thought":%q,"action":%q,"tool_name":%q,"tool_args":%s,"final_answer":%q}`,
		thought, action, toolName, argsJSON, finalAnswer,
	)
}

// -------------------- Loop Scenarios --------------------

func TestRunFinishOnFirstIteration(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{weatherTool()})
	mock.AddTextResponse(decisionJSON("nothing to look up", ActionFinish, "", "{}", "It is sunny."))

	final, err := f.Run(context.Background(), f.PrepareInitialState("how is the weather", ""))
	require.NoError(t, err)

	assert.Equal(t, 1, final.ReactIterations(), "exactly one reasoning pass")
	assert.True(t, final.ReactFinished())
	assert.Equal(t, "It is sunny.", final.PlanResult())
	assert.Len(t, mock.Requests(), 1)

	result := f.ExtractResult(final)
	assert.Equal(t, "It is sunny.", result.Answer)
	assert.Equal(t, []string{"nothing to look up"}, result.Thoughts)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, ActionFinish, result.Actions[0].Action)
}

func TestRunToolCallThenFinish(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{weatherTool()})
	mock.AddTextResponse(decisionJSON("need the weather", ActionCallTool, "weather_query", `{"city":"Beijing"}`, ""))
	mock.AddTextResponse(decisionJSON("observation answers it", ActionFinish, "", "{}", "Sunny, 25 degrees."))

	final, err := f.Run(context.Background(), f.PrepareInitialState("how is the weather in Beijing", ""))
	require.NoError(t, err)

	assert.Equal(t, 2, final.ReactIterations())
	assert.Equal(t, "Sunny, 25 degrees.", final.PlanResult())

	// The observation is fed back into the next reasoning call.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	lastMsg := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Contains(t, lastMsg.Text(), "Observation:")
	assert.Contains(t, lastMsg.Text(), "sunny")
}

func TestRunToolErrorBecomesObservation(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{failingTool()})
	mock.AddTextResponse(decisionJSON("try the flaky tool", ActionCallTool, "flaky", "{}", ""))
	mock.AddTextResponse(decisionJSON("give up", ActionFinish, "", "{}", "The tool is unavailable."))

	final, err := f.Run(context.Background(), f.PrepareInitialState("q", ""))
	require.NoError(t, err, "tool failures never fail the run")

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	lastMsg := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Contains(t, lastMsg.Text(), "Observation: Tool execution error:")
	assert.Equal(t, "The tool is unavailable.", final.PlanResult())
}

func TestRunUnknownToolBecomesObservation(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{weatherTool()})
	mock.AddTextResponse(decisionJSON("guess a tool", ActionCallTool, "no_such_tool", "{}", ""))
	mock.AddTextResponse(decisionJSON("stop", ActionFinish, "", "{}", "done"))

	_, err := f.Run(context.Background(), f.PrepareInitialState("q", ""))
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	lastMsg := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Contains(t, lastMsg.Text(), "Error: Unknown tool: no_such_tool")
}

func TestRunUnparseableResponseDegradesToFinish(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{weatherTool()})
	mock.AddTextResponse("The weather is probably fine, no JSON from me.")

	final, err := f.Run(context.Background(), f.PrepareInitialState("q", ""))
	require.NoError(t, err)

	assert.Equal(t, 1, final.ReactIterations())
	assert.True(t, final.ReactFinished())
	assert.Equal(t, "The weather is probably fine, no JSON from me.", final.PlanResult())
}

func TestRunIterationCapForcesFinish(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{weatherTool()}, func(o *Options) {
		o.MaxIterations = 3
	})
	mock.SetHandler(func(req model.Request) (*model.Response, error) {
		// The model never finishes on its own.
		return &model.Response{
			Message:      core.NewAssistantMessage(decisionJSON("keep looking", ActionCallTool, "weather_query", `{"city":"Beijing"}`, "")),
			FinishReason: "stop",
		}, nil
	})

	final, err := f.Run(context.Background(), f.PrepareInitialState("q", ""))
	require.NoError(t, err)

	assert.Equal(t, 3, final.ReactIterations(), "the counter never exceeds the cap")
	assert.True(t, final.ReactFinished())
	assert.Equal(t, capAnswerText, final.PlanResult())
	assert.Len(t, mock.Requests(), 3)
}

func TestRunFirstCallSeedsContextQueryAndTools(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{weatherTool()})
	mock.AddTextResponse(decisionJSON("", ActionFinish, "", "{}", "done"))

	_, err := f.Run(context.Background(), f.PrepareInitialState("how is the weather", "user is in Beijing"))
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 3)
	assert.Contains(t, reqs[0].Messages[0].Text(), "user is in Beijing")
	assert.Contains(t, reqs[0].Messages[1].Text(), "how is the weather")
	assert.Contains(t, reqs[0].Messages[2].Text(), "weather_query")
}

func TestRunModelErrorDegradesToFinish(t *testing.T) {
	f, mock := newTestFlow(t, []tool.Tool{weatherTool()})
	mock.SetHandler(func(req model.Request) (*model.Response, error) {
		return nil, errors.New("connection reset")
	})

	final, err := f.Run(context.Background(), f.PrepareInitialState("q", ""))
	require.NoError(t, err, "a failed reasoning call settles the loop instead of aborting the run")

	assert.True(t, final.ReactFinished())
	assert.Equal(t, "Error during reasoning: connection reset", final.PlanResult())
	assert.Equal(t, 0, final.ReactIterations(), "a failed call completes no reasoning pass")
	assert.Len(t, mock.Requests(), 1, "the loop does not retry the failed call")
}

// -------------------- Decision Parsing --------------------

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name string
		text string
		want decision
	}{
		{
			name: "plain json call_tool",
			text: decisionJSON("think", ActionCallTool, "weather_query", `{"city":"Beijing"}`, ""),
			want: decision{Thought: "think", Action: ActionCallTool, ToolName: "weather_query", ToolArgs: map[string]any{"city": "Beijing"}},
		},
		{
			name: "fenced json finish",
			text: "```json\n" + decisionJSON("done", ActionFinish, "", "{}", "answer") + "\n```",
			want: decision{Thought: "done", Action: ActionFinish, ToolArgs: map[string]any{}, FinalAnswer: "answer"},
		},
		{
			name: "raw json object embedded in prose",
			text: "Let me think about this.\n" +
				`{"thought":"need data","action":"call_tool","tool_name":"weather_query","tool_args":{"city":"Beijing"}}` +
				"\nThat is my decision.",
			want: decision{Thought: "need data", Action: ActionCallTool, ToolName: "weather_query", ToolArgs: map[string]any{"city": "Beijing"}},
		},
		{
			name: "not json degrades to finish with raw text",
			text: "just prose",
			want: decision{Action: ActionFinish, FinalAnswer: "just prose"},
		},
		{
			name: "unknown action degrades to finish with raw text",
			text: `{"thought":"hm","action":"retry"}`,
			want: decision{Thought: "hm", Action: ActionFinish, FinalAnswer: `{"thought":"hm","action":"retry"}`},
		},
		{
			name: "finish without answer falls back to raw text",
			text: `{"action":"finish"}`,
			want: decision{Action: ActionFinish, FinalAnswer: `{"action":"finish"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDecision(tt.text))
		})
	}
}

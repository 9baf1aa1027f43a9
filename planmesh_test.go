package planmesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/config"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/tool"
)

func newResolver() (*model.Resolver, *model.MockModel) {
	mock := model.NewMockModel("mock", "test")
	return model.NewResolver(mock), mock
}

func TestNewPlanExecuteOrchestrator(t *testing.T) {
	resolver, _ := newResolver()

	orch, err := New(core.StrategyPlanExecute, resolver, tool.NewRegistry(nil))
	require.NoError(t, err)
	assert.Equal(t, core.StrategyPlanExecute, orch.Strategy())

	state := orch.PrepareInitialState("query", "context")
	assert.Equal(t, "query", state.Query())
	assert.Equal(t, 0, state.PlanIterations())
}

func TestNewReactOrchestrator(t *testing.T) {
	resolver, mock := newResolver()
	mock.AddTextResponse(`{"thought":"done","action":"finish","final_answer":"the answer"}`)

	orch, err := New(core.StrategyReact, resolver, tool.NewRegistry(nil))
	require.NoError(t, err)
	assert.Equal(t, core.StrategyReact, orch.Strategy())

	final, err := orch.Run(context.Background(), orch.PrepareInitialState("query", ""))
	require.NoError(t, err)
	assert.Equal(t, "the answer", orch.ExtractResult(final).Answer)
}

func TestNewUnknownStrategy(t *testing.T) {
	resolver, _ := newResolver()

	_, err := New(core.Strategy("tree_of_thought"), resolver, tool.NewRegistry(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestNewMaxModelCallsBound(t *testing.T) {
	resolver, mock := newResolver()
	// The model would keep calling tools forever without the bound.
	mock.SetHandler(func(req model.Request) (*model.Response, error) {
		return &model.Response{
			Message:      core.NewAssistantMessage(`{"thought":"again","action":"call_tool","tool_name":"missing","tool_args":{}}`),
			FinishReason: "stop",
		}, nil
	})

	orch, err := New(core.StrategyReact, resolver, tool.NewRegistry(nil), func(o *Options) {
		o.MaxModelCalls = 2
	})
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), orch.PrepareInitialState("query", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded max model calls")
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxPlanIterations = 3
	cfg.MaxReactIterations = 7
	cfg.MaxConcurrentTasks = 2

	var opts Options
	FromConfig(cfg)(&opts)

	assert.Equal(t, 3, opts.MaxPlanIterations)
	assert.Equal(t, 7, opts.MaxReactIterations)
	assert.Equal(t, 2, opts.MaxConcurrentTasks)
	assert.Equal(t, 5000, opts.ToolResultWarnBytes)
}

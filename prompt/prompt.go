package prompt

import (
	"fmt"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/util"
)

// TimeLayout formats the CURRENT_TIME template variable.
const TimeLayout = "Mon Jan 02 2006 15:04:05 -0700"

var templates = map[core.Strategy]map[core.Role]string{
	core.StrategyPlanExecute: {
		core.RolePlanner:  plannerTemplate,
		core.RoleWorker:   workerTemplate,
		core.RoleReporter: reporterTemplate,
	},
	core.StrategyReact: {
		core.RoleReact: reasoningTemplate,
	},
}

// System renders the system prompt for a strategy role. Caller supplied vars
// override the base variables.
func System(strategy core.Strategy, role core.Role, vars map[string]any) (string, error) {
	tmpl, ok := templates[strategy][role]
	if !ok {
		return "", fmt.Errorf("no prompt template for %s/%s", strategy, role)
	}

	now := time.Now()
	merged := map[string]any{
		"CURRENT_TIME":      now.Format(TimeLayout),
		"CURRENT_TIMESTAMP": now.Unix(),
	}
	for k, v := range vars {
		merged[k] = v
	}

	return util.RenderTemplate(tmpl, merged)
}

// MustSystem renders a system prompt and panics on template errors. Intended
// for wiring static prompts at construction time.
func MustSystem(strategy core.Strategy, role core.Role, vars map[string]any) string {
	out, err := System(strategy, role, vars)
	if err != nil {
		panic(err)
	}
	return out
}

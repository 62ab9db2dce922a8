package ir

import (
	"encoding/json"
	"fmt"

	"github.com/coregraph/taskgraph/contracts"
	"github.com/coregraph/taskgraph/internal/adaptive"
)

// Normalize returns a deep copy of g with graph-wide defaults propagated
// down to each task: budget inherited from defaults.budget when a task
// leaves its own policy.budget unset, a verify block synthesized for llm
// tasks that omit one (or whose schema is empty) from run.llm.output_schema,
// and every llm task's adaptive policy (created if absent) filled out from
// its routing profile's default table. Det tasks' adaptive policies are left
// as they are.
func Normalize(g *contracts.Graph) (*contracts.Graph, error) {
	out, err := deepCopy(g)
	if err != nil {
		return nil, fmt.Errorf("copying graph for normalization: %w", err)
	}

	for _, task := range out.Tasks {
		if task.Policy.Budget == nil && out.Defaults.Budget != nil {
			b := *out.Defaults.Budget
			task.Policy.Budget = &b
		}

		if task.Run.Kind == contracts.RunLLM && task.Run.LLM != nil {
			if task.Verify == nil {
				task.Verify = &contracts.Verify{Schema: task.Run.LLM.OutputSchema}
			} else if len(task.Verify.Schema) == 0 {
				task.Verify.Schema = task.Run.LLM.OutputSchema
			}

			if task.Policy.Adaptive == nil {
				task.Policy.Adaptive = &contracts.Adaptive{}
			}
			adaptive.ApplyProfileDefaults(task.Policy.Adaptive)
		}
	}

	return out, nil
}

// deepCopy round-trips g through JSON so that mutating the copy never
// touches the caller's graph, including its nested Mapping/JSONSchema maps.
func deepCopy(g *contracts.Graph) (*contracts.Graph, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	var copy contracts.Graph
	if err := json.Unmarshal(raw, &copy); err != nil {
		return nil, err
	}
	return &copy, nil
}

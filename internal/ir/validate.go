package ir

import (
	"fmt"
	"sort"

	"github.com/coregraph/taskgraph/contracts"
	"github.com/coregraph/taskgraph/internal/scheduler"
)

// Validate checks structural invariants of a normalized graph: every task id
// is non-empty and unique, the root task exists, every dependency references
// a task that exists, the dependency relation is acyclic, and every llm task
// carries a non-empty verify schema post-normalization.
func Validate(g *contracts.Graph) error {
	seen := make(map[contracts.TaskID]bool, len(g.Tasks))
	for _, task := range g.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task with empty id: %w", contracts.ErrEmptyTaskID)
		}
		if seen[task.ID] {
			return fmt.Errorf("task id %q: %w", task.ID, contracts.ErrDuplicateTaskID)
		}
		seen[task.ID] = true
	}

	idx := g.Index()
	if _, ok := idx[g.Root]; !ok {
		return fmt.Errorf("root %q: %w", g.Root, contracts.ErrRootNotFound)
	}

	// Deterministic iteration for reproducible error messages.
	ids := make([]contracts.TaskID, 0, len(g.Tasks))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		task := idx[id]
		for _, dep := range task.Deps {
			if _, ok := idx[dep]; !ok {
				return fmt.Errorf("task %q depends on %q: %w", id, dep, contracts.ErrDepNotFound)
			}
		}
	}

	if scheduler.New().DetectCycle(g) {
		return contracts.ErrDAGCycle
	}

	for _, id := range ids {
		task := idx[id]
		if task.Run.Kind != contracts.RunLLM {
			continue
		}
		if task.Verify == nil || len(task.Verify.Schema) == 0 {
			return fmt.Errorf("task %q: %w", id, contracts.ErrMissingSchema)
		}
	}

	return nil
}

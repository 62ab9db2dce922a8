// Package scheduler linearizes a task graph into a deterministic total
// order consistent with its dependency edges.
package scheduler

import (
	"sort"

	"github.com/coregraph/taskgraph/contracts"
)

type scheduler struct{}

// New returns a contracts.Scheduler backed by Kahn's algorithm.
func New() contracts.Scheduler {
	return &scheduler{}
}

// Linearize produces a total order consistent with every task's Deps list.
// Ties are broken deterministically by ascending TaskID: both the initial
// zero-indegree frontier and the per-step set of newly-freed dependents are
// visited in sorted order, per spec §4.2.
func (s *scheduler) Linearize(g *contracts.Graph) ([]contracts.TaskID, error) {
	indegree := make(map[contracts.TaskID]int, len(g.Tasks))
	dependents := make(map[contracts.TaskID][]contracts.TaskID, len(g.Tasks))

	for _, task := range g.Tasks {
		id := task.ID
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		indegree[id] += len(task.Deps)
		for _, dep := range task.Deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var frontier []contracts.TaskID
	for id, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

	order := make([]contracts.TaskID, 0, len(g.Tasks))
	for len(frontier) > 0 {
		// Pop the smallest id.
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var freed []contracts.TaskID
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				freed = append(freed, dep)
			}
		}
		sort.Slice(freed, func(i, j int) bool { return freed[i] < freed[j] })

		// Merge freed into frontier, keeping it sorted.
		frontier = append(frontier, freed...)
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })
	}

	if len(order) != len(g.Tasks) {
		return nil, contracts.ErrScheduleIncomplete
	}
	return order, nil
}

// DetectCycle reports whether the graph's dependency relation contains a
// cycle (true means cyclic), using DFS with color marking.
func (s *scheduler) DetectCycle(g *contracts.Graph) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	idx := g.Index()
	colors := make(map[contracts.TaskID]int, len(g.Tasks))
	for _, task := range g.Tasks {
		colors[task.ID] = white
	}

	var visit func(id contracts.TaskID) bool
	visit = func(id contracts.TaskID) bool {
		colors[id] = gray
		task, ok := idx[id]
		if ok {
			for _, dep := range task.Deps {
				switch colors[dep] {
				case gray:
					return true
				case white:
					if visit(dep) {
						return true
					}
				}
			}
		}
		colors[id] = black
		return false
	}

	for _, task := range g.Tasks {
		if colors[task.ID] == white {
			if visit(task.ID) {
				return true
			}
		}
	}
	return false
}

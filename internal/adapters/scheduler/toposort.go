package scheduler

import (
	"sort"

	"github.com/eleven-am/benchtop/internal/domain"
)

// topoResult is the outcome of one Kahn pass over the registry.
type topoResult struct {
	// order lists every step whose countable in-degree drained, in the
	// order the queue processed it. Dangling steps appear here too so they
	// still release their dependents; placement skips them.
	order []string
	// dangling lists steps referencing at least one id absent from the
	// registry. They can never be placed.
	dangling []string
	// cycle lists steps sitting on a dependency cycle.
	cycle []string
	// blocked lists steps that are not on a cycle themselves but sit
	// downstream of one.
	blocked []string
}

// topoSort runs Kahn's algorithm over the registry. Only edges whose
// dependency exists in the registry count toward in-degree. Seeding and
// batch release happen in sorted id order so the result is deterministic
// regardless of registration order.
func topoSort(registry map[string]*domain.Step) topoResult {
	var result topoResult

	indegree := make(map[string]int, len(registry))
	dependents := make(map[string][]string)
	for _, id := range sortedIDs(registry) {
		step := registry[id]
		indegree[id] = 0
		hasDangling := false
		for _, depID := range step.Dependencies {
			if _, exists := registry[depID]; exists {
				indegree[id]++
				dependents[depID] = append(dependents[depID], id)
			} else {
				hasDangling = true
			}
		}
		if hasDangling {
			result.dangling = append(result.dangling, id)
		}
	}

	var queue []string
	for _, id := range sortedIDs(registry) {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	reached := make(map[string]bool, len(registry))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		reached[id] = true
		result.order = append(result.order, id)

		var freed []string
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(reached) == len(registry) {
		return result
	}

	unreached := make(map[string]bool)
	for id := range registry {
		if !reached[id] {
			unreached[id] = true
		}
	}
	onCycle := extractCycles(registry, unreached)
	for _, id := range sortedIDs(registry) {
		if !unreached[id] {
			continue
		}
		if onCycle[id] {
			result.cycle = append(result.cycle, id)
		} else {
			result.blocked = append(result.blocked, id)
		}
	}
	return result
}

// extractCycles finds the steps that lie on a dependency cycle among the
// unreached remainder of a Kahn pass. Depth-first traversal with in-progress
// marks: revisiting an in-progress node closes a cycle, and everything on
// the stack back to that node belongs to it.
func extractCycles(registry map[string]*domain.Step, unreached map[string]bool) map[string]bool {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(unreached))
	onCycle := make(map[string]bool)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		stack = append(stack, id)
		for _, depID := range registry[id].Dependencies {
			if !unreached[depID] {
				continue
			}
			switch state[depID] {
			case unvisited:
				visit(depID)
			case visiting:
				for i := len(stack) - 1; i >= 0; i-- {
					onCycle[stack[i]] = true
					if stack[i] == depID {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	ids := make([]string, 0, len(unreached))
	for id := range unreached {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return onCycle
}

package scheduler

import (
	"sort"
	"time"

	"github.com/eleven-am/benchtop/internal/domain"
)

// dependencyFloor computes the earliest time a step may start: the latest
// known end among its dependencies, preferring actual ends over scheduled
// ones. ok is false when a dependency is missing from the registry or has no
// end of either kind, meaning the step cannot be placed yet. An empty
// dependency set resolves to the zero time with ok true.
func dependencyFloor(step *domain.Step, registry map[string]*domain.Step) (time.Time, bool) {
	var floor time.Time
	for _, depID := range step.Dependencies {
		dep, exists := registry[depID]
		if !exists {
			return time.Time{}, false
		}
		end := dep.ActualEnd
		if end == nil {
			end = dep.ScheduledEnd
		}
		if end == nil {
			return time.Time{}, false
		}
		if end.After(floor) {
			floor = *end
		}
	}
	return floor, true
}

// updateReadyStatus promotes every Pending step whose dependencies have all
// actually completed. Scheduled-but-unfinished dependencies never satisfy
// readiness. The latest dependency completion is recorded as the step's
// earliest possible start. Returns the promoted steps in id order.
func updateReadyStatus(registry map[string]*domain.Step) []*domain.Step {
	var promoted []*domain.Step
	for _, id := range sortedIDs(registry) {
		step := registry[id]
		if step.Status != domain.StepStatusPending {
			continue
		}

		satisfied := true
		var earliest *time.Time
		for _, depID := range step.Dependencies {
			dep, exists := registry[depID]
			if !exists || dep.Status != domain.StepStatusCompleted {
				satisfied = false
				break
			}
			if dep.ActualEnd != nil && (earliest == nil || dep.ActualEnd.After(*earliest)) {
				end := *dep.ActualEnd
				earliest = &end
			}
		}
		if !satisfied {
			continue
		}

		step.Status = domain.StepStatusReady
		if earliest != nil {
			step.EarliestPossibleStart = earliest
		}
		promoted = append(promoted, step)
	}
	return promoted
}

func sortedIDs(steps map[string]*domain.Step) []string {
	ids := make([]string, 0, len(steps))
	for id := range steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

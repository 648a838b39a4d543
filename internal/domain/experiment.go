package domain

import (
	"github.com/google/uuid"
)

// Experiment groups the steps of one protocol run into a single dependency
// graph. Ownership and sharing are first-class so notifications always have
// an address.
type Experiment struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Owner       string           `json:"owner,omitempty"`
	SharedWith  []string         `json:"shared_with,omitempty"`
	Steps       map[string]*Step `json:"steps"`
}

func NewExperiment(name, description string) *Experiment {
	return &Experiment{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Steps:       make(map[string]*Step),
	}
}

func (e *Experiment) WithOwner(owner string) *Experiment {
	e.Owner = owner
	return e
}

func (e *Experiment) WithSharedWith(recipients ...string) *Experiment {
	e.SharedWith = append(e.SharedWith, recipients...)
	return e
}

func (e *Experiment) AddStep(step *Step) {
	if e.Steps == nil {
		e.Steps = make(map[string]*Step)
	}
	e.Steps[step.ID] = step
}

func (e *Experiment) GetStep(id string) (*Step, bool) {
	step, ok := e.Steps[id]
	return step, ok
}

// Clone deep-copies the experiment, including every step, so snapshots
// handed to callers never alias registry state.
func (e *Experiment) Clone() *Experiment {
	clone := &Experiment{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Owner:       e.Owner,
	}
	if e.SharedWith != nil {
		clone.SharedWith = append([]string(nil), e.SharedWith...)
	}
	if e.Steps != nil {
		clone.Steps = make(map[string]*Step, len(e.Steps))
		for id, step := range e.Steps {
			clone.Steps[id] = step.Clone()
		}
	}
	return clone
}

// Recipients returns the owner plus everyone the experiment is shared with,
// deduplicated, preserving owner-first order.
func (e *Experiment) Recipients() []string {
	seen := make(map[string]bool, len(e.SharedWith)+1)
	var recipients []string
	if e.Owner != "" {
		seen[e.Owner] = true
		recipients = append(recipients, e.Owner)
	}
	for _, r := range e.SharedWith {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		recipients = append(recipients, r)
	}
	return recipients
}

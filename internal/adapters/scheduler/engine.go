package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/benchtop/internal/domain"
	"github.com/eleven-am/benchtop/internal/ports"
)

// Engine owns the authoritative step registry across all experiments. Every
// mutation of a step's status or timestamps happens under one exclusive
// mutex, including the readiness pass, so no caller ever observes a torn
// transition. Queries return deep clones.
type Engine struct {
	config domain.SchedulerConfig
	events ports.EventManager
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	steps       map[string]*domain.Step
	experiments map[string]*domain.Experiment
	stepOwner   map[string]string
	flagged     map[string]bool
	conflicts   map[string]bool

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Engine)

// WithClock replaces the engine's time source, used by the timeout monitor
// and by transitions invoked without an explicit timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(config domain.SchedulerConfig, events ports.EventManager, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:      config,
		events:      events,
		logger:      logger.With("component", "scheduler"),
		now:         time.Now,
		steps:       make(map[string]*domain.Step),
		experiments: make(map[string]*domain.Experiment),
		stepOwner:   make(map[string]string),
		flagged:     make(map[string]bool),
		conflicts:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return domain.ErrAlreadyStarted
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true

	e.wg.Add(1)
	go e.monitor()

	e.logger.Debug("scheduler started", "timeout_check_interval", e.config.TimeoutCheckInterval)
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return domain.ErrNotStarted
	}
	e.cancel()
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Debug("scheduler stopped")
	return nil
}

// AddExperiment registers the experiment and its steps into the registry.
// Step ids colliding with an already registered step are rejected
// individually; the rest of the experiment still registers and the
// collisions come back joined, each a *domain.DuplicateStepError.
func (e *Engine) AddExperiment(experiment *domain.Experiment) error {
	if experiment == nil {
		return domain.Error{Type: domain.ErrorTypeValidation, Message: "experiment is nil"}
	}
	if experiment.ID == "" {
		return domain.Error{Type: domain.ErrorTypeValidation, Message: "experiment id is empty"}
	}

	events, err := e.addExperiment(experiment)
	e.publish(events)
	return err
}

func (e *Engine) addExperiment(experiment *domain.Experiment) ([]domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.experiments[experiment.ID]; exists {
		return nil, domain.Error{
			Type:    domain.ErrorTypeConflict,
			Message: "experiment already registered",
			Details: map[string]interface{}{"experiment_id": experiment.ID},
		}
	}

	registered := &domain.Experiment{
		ID:          experiment.ID,
		Name:        experiment.Name,
		Description: experiment.Description,
		Owner:       experiment.Owner,
		SharedWith:  append([]string(nil), experiment.SharedWith...),
		Steps:       make(map[string]*domain.Step, len(experiment.Steps)),
	}

	var errs []error
	for _, id := range sortedIDs(experiment.Steps) {
		if owner, taken := e.stepOwner[id]; taken {
			errs = append(errs, &domain.DuplicateStepError{
				StepID:     id,
				Experiment: experiment.ID,
				Existing:   owner,
			})
			continue
		}
		clone := experiment.Steps[id].Clone()
		registered.Steps[id] = clone
		e.steps[id] = clone
		e.stepOwner[id] = experiment.ID
	}
	e.experiments[experiment.ID] = registered

	e.logger.Info("experiment registered",
		"experiment_id", experiment.ID,
		"name", experiment.Name,
		"steps", len(registered.Steps),
		"rejected", len(errs))

	return e.refreshReadinessLocked(), errors.Join(errs...)
}

func (e *Engine) GetStep(id string) (*domain.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step, exists := e.steps[id]
	if !exists {
		return nil, fmt.Errorf("step %q: %w", id, domain.ErrStepNotFound)
	}
	return step.Clone(), nil
}

func (e *Engine) AllSteps() []*domain.Step {
	e.mu.Lock()
	defer e.mu.Unlock()

	steps := make([]*domain.Step, 0, len(e.steps))
	for _, id := range sortedIDs(e.steps) {
		steps = append(steps, e.steps[id].Clone())
	}
	return steps
}

func (e *Engine) Experiments() []*domain.Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.experiments))
	for id := range e.experiments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	experiments := make([]*domain.Experiment, 0, len(ids))
	for _, id := range ids {
		experiments = append(experiments, e.experiments[id].Clone())
	}
	return experiments
}

// UpcomingSteps returns steps due to act within [now, now+window): Pending
// and Ready steps whose scheduled or earliest possible start falls inside
// the window, plus Running steps whose expected end does. Sorted by that
// effective time. A non-positive window falls back to the configured
// lookahead.
func (e *Engine) UpcomingSteps(window time.Duration) []*domain.Step {
	if window <= 0 {
		window = e.config.LookaheadWindow
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	horizon := now.Add(window)

	type entry struct {
		step *domain.Step
		at   time.Time
	}
	var entries []entry
	for _, id := range sortedIDs(e.steps) {
		step := e.steps[id]
		var at *time.Time
		switch step.Status {
		case domain.StepStatusPending, domain.StepStatusReady:
			at = step.ScheduledStart
			if at == nil {
				at = step.EarliestPossibleStart
			}
		case domain.StepStatusRunning:
			at = step.ExpectedEnd()
		default:
			continue
		}
		if at == nil || at.Before(now) || !at.Before(horizon) {
			continue
		}
		entries = append(entries, entry{step: step.Clone(), at: *at})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at.Equal(entries[j].at) {
			return entries[i].step.ID < entries[j].step.ID
		}
		return entries[i].at.Before(entries[j].at)
	})

	steps := make([]*domain.Step, len(entries))
	for i, en := range entries {
		steps[i] = en.step
	}
	return steps
}

// StartStep moves a Ready or Paused step to Running. A nil at means the
// current clock time. Readiness and conflicts are re-evaluated afterwards.
func (e *Engine) StartStep(id string, at *time.Time) error {
	events, err := e.startStep(id, at)
	e.publish(events)
	return err
}

func (e *Engine) startStep(id string, at *time.Time) ([]domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step, exists := e.steps[id]
	if !exists {
		return nil, fmt.Errorf("step %q: %w", id, domain.ErrStepNotFound)
	}

	t := e.resolveTime(at)
	if err := step.Start(t); err != nil {
		e.logger.Warn("start rejected", "step_id", id, "status", step.Status, "error", err)
		return nil, err
	}
	e.logger.Info("step started", "step_id", id, "name", step.Name, "at", t)

	expID, expName, recipients := e.ownerInfoLocked(id)
	events := []domain.Event{&domain.StepStartedEvent{
		StepID:         id,
		StepName:       step.Name,
		ExperimentID:   expID,
		ExperimentName: expName,
		Recipients:     recipients,
		StartedAt:      t,
	}}
	events = append(events, e.refreshReadinessLocked()...)
	events = append(events, e.scanConflictsLocked(e.currentConflictsLocked())...)
	return events, nil
}

// PauseStep suspends a Running Task step, banking its active time.
func (e *Engine) PauseStep(id string) error {
	events, err := e.pauseStep(id)
	e.publish(events)
	return err
}

func (e *Engine) pauseStep(id string) ([]domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step, exists := e.steps[id]
	if !exists {
		return nil, fmt.Errorf("step %q: %w", id, domain.ErrStepNotFound)
	}

	t := e.now()
	if err := step.Pause(t); err != nil {
		e.logger.Warn("pause rejected", "step_id", id, "status", step.Status, "error", err)
		return nil, err
	}
	delete(e.flagged, id)
	e.clearConflictsLocked(id)
	e.logger.Info("step paused", "step_id", id, "name", step.Name, "elapsed", step.Elapsed)

	expID, expName, recipients := e.ownerInfoLocked(id)
	return []domain.Event{&domain.StepPausedEvent{
		StepID:         id,
		StepName:       step.Name,
		ExperimentID:   expID,
		ExperimentName: expName,
		Recipients:     recipients,
		PausedAt:       t,
		Elapsed:        step.Elapsed,
	}}, nil
}

// CompleteStep finishes a Running or Paused step. A nil at means the current
// clock time. Dependents are re-evaluated for readiness afterwards.
func (e *Engine) CompleteStep(id string, at *time.Time) error {
	events, err := e.completeStep(id, at)
	e.publish(events)
	return err
}

func (e *Engine) completeStep(id string, at *time.Time) ([]domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step, exists := e.steps[id]
	if !exists {
		return nil, fmt.Errorf("step %q: %w", id, domain.ErrStepNotFound)
	}

	t := e.resolveTime(at)
	if err := step.Complete(t); err != nil {
		e.logger.Warn("complete rejected", "step_id", id, "status", step.Status, "error", err)
		return nil, err
	}
	delete(e.flagged, id)
	e.clearConflictsLocked(id)
	e.logger.Info("step completed", "step_id", id, "name", step.Name, "elapsed", step.Elapsed)

	expID, expName, recipients := e.ownerInfoLocked(id)
	events := []domain.Event{&domain.StepCompletedEvent{
		StepID:         id,
		StepName:       step.Name,
		ExperimentID:   expID,
		ExperimentName: expName,
		Recipients:     recipients,
		CompletedAt:    t,
		Elapsed:        step.Elapsed,
	}}
	events = append(events, e.refreshReadinessLocked()...)
	events = append(events, e.scanConflictsLocked(e.currentConflictsLocked())...)
	return events, nil
}

// OverrideStep force-sets a non-terminal step to Skipped or Error. An
// administrative action: no event is published and dependents are not
// re-evaluated, since neither target status satisfies a dependency.
func (e *Engine) OverrideStep(id string, status domain.StepStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	step, exists := e.steps[id]
	if !exists {
		return fmt.Errorf("step %q: %w", id, domain.ErrStepNotFound)
	}

	if err := step.Override(status); err != nil {
		e.logger.Warn("override rejected", "step_id", id, "status", step.Status, "error", err)
		return err
	}
	delete(e.flagged, id)
	e.clearConflictsLocked(id)
	e.logger.Info("step overridden", "step_id", id, "name", step.Name, "status", status)
	return nil
}

// CalculateInitialSchedule places every step that has not yet run (Pending
// or Ready) relative to base (zero base means now) in topological order.
// Steps behind a dangling dependency or a cycle are reported unplaced; a
// cycle additionally comes back as a *domain.CycleError. The rest of the
// pass still applies.
func (e *Engine) CalculateInitialSchedule(base time.Time) (*domain.ScheduleReport, error) {
	report, events, err := e.calculateSchedule(base)
	e.publish(events)
	return report, err
}

func (e *Engine) calculateSchedule(base time.Time) (*domain.ScheduleReport, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if base.IsZero() {
		base = e.now()
	}

	topo := topoSort(e.steps)

	unplaced := make(map[string]bool)
	for _, id := range topo.dangling {
		unplaced[id] = true
		e.logger.Warn("step references unknown dependency", "step_id", id)
	}
	for _, id := range topo.cycle {
		unplaced[id] = true
	}
	for _, id := range topo.blocked {
		unplaced[id] = true
	}

	placed := 0
	for _, id := range topo.order {
		if unplaced[id] {
			continue
		}
		step := e.steps[id]
		if step.Status != domain.StepStatusPending && step.Status != domain.StepStatusReady {
			continue
		}

		if len(step.Dependencies) == 0 {
			start := base
			if step.ScheduledStart != nil {
				start = *step.ScheduledStart
			}
			step.Schedule(start)
			placed++
			continue
		}

		floor, ok := dependencyFloor(step, e.steps)
		if !ok {
			unplaced[id] = true
			e.logger.Warn("step dependencies unresolved", "step_id", id)
			continue
		}
		start := floor
		if step.ScheduledStart != nil && step.ScheduledStart.After(start) {
			start = *step.ScheduledStart
		}
		step.Schedule(start)
		placed++
	}

	unplacedIDs := make([]string, 0, len(unplaced))
	for id := range unplaced {
		unplacedIDs = append(unplacedIDs, id)
	}
	sort.Strings(unplacedIDs)

	report := &domain.ScheduleReport{
		Base:     base,
		Placed:   placed,
		Unplaced: unplacedIDs,
	}

	var err error
	if len(topo.cycle) > 0 {
		cycleErr := domain.NewCycleError(topo.cycle)
		report.Cycle = cycleErr.Steps
		err = cycleErr
		e.logger.Warn("dependency cycle detected", "steps", cycleErr.Steps)
	}

	e.logger.Info("schedule computed",
		"base", base,
		"placed", placed,
		"unplaced", len(unplacedIDs))

	events := e.refreshReadinessLocked()
	events = append(events, e.scanConflictsLocked(e.currentConflictsLocked())...)
	events = append(events, &domain.ScheduleComputedEvent{
		Base:       base,
		Placed:     placed,
		Unplaced:   unplacedIDs,
		Cycle:      report.Cycle,
		ComputedAt: e.now(),
	})
	return report, events, err
}

// CheckForConflicts reports every pair of Running steps contending for the
// same resource token, one pair per detection. Pairs observed for the first
// time also publish a ResourceConflict event.
func (e *Engine) CheckForConflicts() []domain.ResourceConflict {
	pairs, events := e.checkConflicts()
	e.publish(events)
	return pairs
}

func (e *Engine) checkConflicts() ([]domain.ResourceConflict, []domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pairs := e.currentConflictsLocked()
	return pairs, e.scanConflictsLocked(pairs)
}

// CheckTimeouts flags Running steps whose active time exceeds their expected
// duration, at most once per running stint, and publishes a StepTimeout
// event per new flag. Returns the newly flagged steps.
func (e *Engine) CheckTimeouts() []*domain.Step {
	overdue, events := e.checkTimeouts()
	e.publish(events)
	return overdue
}

func (e *Engine) checkTimeouts() ([]*domain.Step, []domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var overdue []*domain.Step
	var events []domain.Event
	for _, id := range sortedIDs(e.steps) {
		step := e.steps[id]
		if step.Status != domain.StepStatusRunning || e.flagged[id] {
			continue
		}
		if !step.Overdue(now) {
			continue
		}

		e.flagged[id] = true
		active := step.ActiveElapsed(now)
		e.logger.Warn("step overdue",
			"step_id", id,
			"name", step.Name,
			"duration", step.Duration,
			"active", active)

		expID, expName, recipients := e.ownerInfoLocked(id)
		events = append(events, &domain.StepTimeoutEvent{
			StepID:         id,
			StepName:       step.Name,
			ExperimentID:   expID,
			ExperimentName: expName,
			Recipients:     recipients,
			Duration:       step.Duration,
			Active:         active,
			DetectedAt:     now,
		})
		overdue = append(overdue, step.Clone())
	}
	return overdue, events
}

func (e *Engine) refreshReadinessLocked() []domain.Event {
	promoted := updateReadyStatus(e.steps)
	if len(promoted) == 0 {
		return nil
	}

	now := e.now()
	events := make([]domain.Event, 0, len(promoted))
	for _, step := range promoted {
		e.logger.Info("step ready", "step_id", step.ID, "name", step.Name)

		var earliest *time.Time
		if step.EarliestPossibleStart != nil {
			t := *step.EarliestPossibleStart
			earliest = &t
		}
		expID, expName, recipients := e.ownerInfoLocked(step.ID)
		events = append(events, &domain.StepReadyEvent{
			StepID:         step.ID,
			StepName:       step.Name,
			ExperimentID:   expID,
			ExperimentName: expName,
			Recipients:     recipients,
			EarliestStart:  earliest,
			ReadyAt:        now,
		})
	}
	return events
}

// currentConflictsLocked pairs up Running steps holding the same non-empty
// resource token. Pair orientation is stable: the lower id comes first.
func (e *Engine) currentConflictsLocked() []domain.ResourceConflict {
	byResource := make(map[string][]*domain.Step)
	for _, id := range sortedIDs(e.steps) {
		step := e.steps[id]
		if step.Status != domain.StepStatusRunning || step.ResourceNeeded == "" {
			continue
		}
		byResource[step.ResourceNeeded] = append(byResource[step.ResourceNeeded], step)
	}

	resources := make([]string, 0, len(byResource))
	for resource := range byResource {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	var pairs []domain.ResourceConflict
	for _, resource := range resources {
		holders := byResource[resource]
		for i := 0; i < len(holders); i++ {
			for j := i + 1; j < len(holders); j++ {
				pairs = append(pairs, domain.ResourceConflict{
					Resource:  resource,
					StepID:    holders[i].ID,
					StepName:  holders[i].Name,
					OtherID:   holders[j].ID,
					OtherName: holders[j].Name,
				})
			}
		}
	}
	return pairs
}

// scanConflictsLocked refreshes conflict tracking against the current pair
// set and returns an event for every pair observed for the first time.
// Pairs no longer conflicting drop out of tracking, so a re-emerging
// conflict notifies again.
func (e *Engine) scanConflictsLocked(pairs []domain.ResourceConflict) []domain.Event {
	seen := make(map[string]bool, len(pairs))
	var events []domain.Event
	now := e.now()
	for _, pair := range pairs {
		key := pair.Resource + "|" + pair.StepID + "|" + pair.OtherID
		seen[key] = true
		if e.conflicts[key] {
			continue
		}

		e.logger.Warn("resource conflict detected",
			"resource", pair.Resource,
			"step_id", pair.StepID,
			"conflicting_step_id", pair.OtherID)

		expID, _, recipients := e.ownerInfoLocked(pair.StepID)
		otherExpID, _, otherRecipients := e.ownerInfoLocked(pair.OtherID)
		events = append(events, &domain.ResourceConflictEvent{
			Resource:            pair.Resource,
			StepID:              pair.StepID,
			StepName:            pair.StepName,
			ExperimentID:        expID,
			ConflictingStepID:   pair.OtherID,
			ConflictingStepName: pair.OtherName,
			ConflictingExpID:    otherExpID,
			Recipients:          mergeRecipients(recipients, otherRecipients),
			DetectedAt:          now,
		})
	}
	e.conflicts = seen
	return events
}

// clearConflictsLocked drops tracking entries naming a step that left
// Running, re-arming notification for any conflict it re-enters.
func (e *Engine) clearConflictsLocked(stepID string) {
	for key := range e.conflicts {
		parts := strings.Split(key, "|")
		if len(parts) == 3 && (parts[1] == stepID || parts[2] == stepID) {
			delete(e.conflicts, key)
		}
	}
}

func (e *Engine) ownerInfoLocked(stepID string) (string, string, []string) {
	expID, ok := e.stepOwner[stepID]
	if !ok {
		return "", "", nil
	}
	experiment, ok := e.experiments[expID]
	if !ok {
		return expID, "", nil
	}
	return experiment.ID, experiment.Name, experiment.Recipients()
}

func (e *Engine) resolveTime(at *time.Time) time.Time {
	if at != nil {
		return *at
	}
	return e.now()
}

func (e *Engine) publish(events []domain.Event) {
	if e.events == nil {
		return
	}
	for _, event := range events {
		if err := e.events.Publish(event); err != nil {
			e.logger.Debug("event not delivered", "key", event.Key(), "error", err)
		}
	}
}

func mergeRecipients(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var merged []string
	for _, recipients := range [][]string{a, b} {
		for _, r := range recipients {
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			merged = append(merged, r)
		}
	}
	return merged
}

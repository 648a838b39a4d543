package domain

import (
	"testing"
	"time"
)

func ts(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func TestNewStepDefaults(t *testing.T) {
	step := NewStep("Wash", 4*time.Minute, StepTypeTask)

	if step.ID == "" {
		t.Error("expected generated id")
	}
	if step.Status != StepStatusPending {
		t.Errorf("expected pending status, got %s", step.Status)
	}
	if step.ResourceNeeded != ResourceUserAttention {
		t.Errorf("expected task to default to user_attention, got %q", step.ResourceNeeded)
	}

	timer := NewStep("Pretreat", 30*time.Minute, StepTypeFixedDuration)
	if timer.ResourceNeeded != "" {
		t.Errorf("expected no default resource for fixed_duration, got %q", timer.ResourceNeeded)
	}
}

func TestStepScheduleInvariant(t *testing.T) {
	step := NewStep("Pretreat", 30*time.Minute, StepTypeFixedDuration)
	start := ts(9, 0)

	step.Schedule(start)

	if step.ScheduledStart == nil || !step.ScheduledStart.Equal(start) {
		t.Fatalf("expected scheduled start %v, got %v", start, step.ScheduledStart)
	}
	if step.ScheduledEnd == nil || !step.ScheduledEnd.Equal(start.Add(30*time.Minute)) {
		t.Fatalf("expected scheduled end %v, got %v", start.Add(30*time.Minute), step.ScheduledEnd)
	}
}

func TestStepStartGuards(t *testing.T) {
	tests := []struct {
		name    string
		status  StepStatus
		allowed bool
	}{
		{"pending rejected", StepStatusPending, false},
		{"ready allowed", StepStatusReady, true},
		{"running rejected", StepStatusRunning, false},
		{"paused allowed", StepStatusPaused, true},
		{"completed rejected", StepStatusCompleted, false},
		{"skipped rejected", StepStatusSkipped, false},
		{"error rejected", StepStatusError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := NewStep("Treat", time.Hour, StepTypeFixedDuration)
			step.Status = tt.status

			err := step.Start(ts(9, 5))

			if tt.allowed {
				if err != nil {
					t.Fatalf("expected start to succeed, got %v", err)
				}
				if step.Status != StepStatusRunning {
					t.Errorf("expected running, got %s", step.Status)
				}
				if step.ActualStart == nil || !step.ActualStart.Equal(ts(9, 5)) {
					t.Errorf("expected actual start %v, got %v", ts(9, 5), step.ActualStart)
				}
				return
			}

			if err == nil {
				t.Fatal("expected rejection")
			}
			if !IsTransition(err) {
				t.Errorf("expected transition error, got %v", err)
			}
			if step.Status != tt.status {
				t.Errorf("status changed on rejected start: %s", step.Status)
			}
		})
	}
}

func TestStepPauseOnlyForTasks(t *testing.T) {
	types := []struct {
		name     string
		stepType StepType
		pausable bool
	}{
		{"fixed_duration", StepTypeFixedDuration, false},
		{"task", StepTypeTask, true},
		{"fixed_start", StepTypeFixedStart, false},
		{"automated_task", StepTypeAutomatedTask, false},
	}
	statuses := []StepStatus{
		StepStatusPending, StepStatusReady, StepStatusRunning,
		StepStatusPaused, StepStatusCompleted, StepStatusSkipped, StepStatusError,
	}

	for _, tc := range types {
		t.Run(tc.name, func(t *testing.T) {
			for _, status := range statuses {
				step := NewStep("X", time.Minute, tc.stepType)
				step.Status = status
				start := ts(10, 0)
				step.ActualStart = &start

				err := step.Pause(ts(10, 30))

				shouldPause := tc.pausable && status == StepStatusRunning
				if shouldPause {
					if err != nil {
						t.Fatalf("status %s: expected pause to succeed, got %v", status, err)
					}
					if step.Status != StepStatusPaused {
						t.Errorf("expected paused, got %s", step.Status)
					}
					continue
				}

				if err == nil {
					t.Fatalf("type %s status %s: expected rejection", tc.stepType, status)
				}
				if step.Status != status {
					t.Errorf("status changed on rejected pause: %s", step.Status)
				}
			}
		})
	}
}

func TestStepElapsedAcrossPauseResume(t *testing.T) {
	step := NewStep("Wash", 30*time.Minute, StepTypeTask)
	step.Status = StepStatusReady

	if err := step.Start(ts(9, 0)); err != nil {
		t.Fatal(err)
	}
	if err := step.Pause(ts(9, 10)); err != nil {
		t.Fatal(err)
	}
	if step.Elapsed != 10*time.Minute {
		t.Fatalf("expected 10m elapsed after pause, got %v", step.Elapsed)
	}

	if err := step.Start(ts(9, 20)); err != nil {
		t.Fatal(err)
	}
	if !step.ActualStart.Equal(ts(9, 20)) {
		t.Errorf("resume should restamp actual start, got %v", step.ActualStart)
	}

	if err := step.Complete(ts(9, 35)); err != nil {
		t.Fatal(err)
	}
	if step.Status != StepStatusCompleted {
		t.Errorf("expected completed, got %s", step.Status)
	}
	if step.Elapsed != 25*time.Minute {
		t.Errorf("expected 25m total active time, got %v", step.Elapsed)
	}
	if step.ActualEnd == nil || !step.ActualEnd.Equal(ts(9, 35)) {
		t.Errorf("expected actual end 09:35, got %v", step.ActualEnd)
	}
}

func TestStepCompleteFromPausedKeepsElapsed(t *testing.T) {
	step := NewStep("Wash", 30*time.Minute, StepTypeTask)
	step.Status = StepStatusReady

	if err := step.Start(ts(9, 0)); err != nil {
		t.Fatal(err)
	}
	if err := step.Pause(ts(9, 12)); err != nil {
		t.Fatal(err)
	}
	if err := step.Complete(ts(9, 50)); err != nil {
		t.Fatal(err)
	}

	if step.Elapsed != 12*time.Minute {
		t.Errorf("pause already banked the interval, got %v", step.Elapsed)
	}
}

func TestStepCompleteGuards(t *testing.T) {
	for _, status := range []StepStatus{StepStatusPending, StepStatusReady, StepStatusCompleted, StepStatusSkipped} {
		step := NewStep("X", time.Minute, StepTypeFixedDuration)
		step.Status = status

		if err := step.Complete(ts(11, 0)); err == nil {
			t.Errorf("status %s: expected rejection", status)
		} else if !IsTransition(err) {
			t.Errorf("status %s: expected transition error, got %v", status, err)
		}
	}
}

func TestStepOverride(t *testing.T) {
	step := NewStep("X", time.Minute, StepTypeFixedDuration)
	step.Status = StepStatusRunning

	if err := step.Override(StepStatusSkipped); err != nil {
		t.Fatalf("expected override to succeed, got %v", err)
	}
	if step.Status != StepStatusSkipped {
		t.Errorf("expected skipped, got %s", step.Status)
	}

	if err := step.Override(StepStatusError); err == nil {
		t.Error("expected override of finished step to be rejected")
	}

	fresh := NewStep("Y", time.Minute, StepTypeTask)
	if err := fresh.Override(StepStatusRunning); err == nil {
		t.Error("expected non-administrative target to be rejected")
	}
}

func TestStepExpectedEnd(t *testing.T) {
	step := NewStep("Recover", time.Hour, StepTypeFixedStart)

	if step.ExpectedEnd() != nil {
		t.Error("expected nil before any times are known")
	}

	step.Schedule(ts(9, 0))
	if end := step.ExpectedEnd(); end == nil || !end.Equal(ts(10, 0)) {
		t.Errorf("expected scheduled projection 10:00, got %v", end)
	}

	step.Status = StepStatusReady
	if err := step.Start(ts(9, 30)); err != nil {
		t.Fatal(err)
	}
	if end := step.ExpectedEnd(); end == nil || !end.Equal(ts(10, 30)) {
		t.Errorf("expected running projection 10:30, got %v", end)
	}

	if err := step.Complete(ts(10, 45)); err != nil {
		t.Fatal(err)
	}
	if end := step.ExpectedEnd(); end == nil || !end.Equal(ts(10, 45)) {
		t.Errorf("expected actual end 10:45, got %v", end)
	}
}

func TestStepOverdue(t *testing.T) {
	step := NewStep("Treat", time.Hour, StepTypeFixedDuration)
	step.Status = StepStatusReady
	if err := step.Start(ts(9, 0)); err != nil {
		t.Fatal(err)
	}

	if step.Overdue(ts(9, 59)) {
		t.Error("not overdue before the duration elapses")
	}
	if !step.Overdue(ts(10, 1)) {
		t.Error("expected overdue after the duration elapses")
	}

	paused := NewStep("Wash", 10*time.Minute, StepTypeTask)
	paused.Status = StepStatusReady
	if err := paused.Start(ts(9, 0)); err != nil {
		t.Fatal(err)
	}
	if err := paused.Pause(ts(9, 5)); err != nil {
		t.Fatal(err)
	}
	if paused.Overdue(ts(11, 0)) {
		t.Error("paused steps are never overdue")
	}
}

func TestStepClone(t *testing.T) {
	step := NewStep("Image", 20*time.Minute, StepTypeAutomatedTask).
		WithDependencies("dep-1").
		WithResource("microscope").
		WithMetadata(map[string]interface{}{"dish": 1})
	step.Schedule(ts(9, 0))

	clone := step.Clone()

	clone.Dependencies[0] = "dep-2"
	clone.Metadata["dish"] = 2
	*clone.ScheduledStart = ts(12, 0)

	if step.Dependencies[0] != "dep-1" {
		t.Error("clone shares dependency slice")
	}
	if step.Metadata["dish"] != 1 {
		t.Error("clone shares metadata map")
	}
	if !step.ScheduledStart.Equal(ts(9, 0)) {
		t.Error("clone shares scheduled start pointer")
	}
}

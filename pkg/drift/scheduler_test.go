package drift

import (
	"context"
	"testing"
)

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	f := newDifferFixture(t)
	sched := NewScheduler(f.differ, StaticSource{}, "not a cron expr")

	if err := sched.Start(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
	if sched.IsRunning() {
		t.Error("scheduler must not run after a failed start")
	}
}

func TestSchedulerEmptyScheduleIsDisabled(t *testing.T) {
	f := newDifferFixture(t)
	sched := NewScheduler(f.differ, StaticSource{}, "")

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("empty schedule should be a no-op, got %v", err)
	}
	if sched.IsRunning() {
		t.Error("empty schedule must leave the scheduler stopped")
	}
	if next := sched.NextRun(); next != nil {
		t.Errorf("NextRun = %v, want nil", next)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	f := newDifferFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := NewScheduler(f.differ, StaticSource{}, "0 * * * *")
	if err := sched.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !sched.IsRunning() {
		t.Fatal("scheduler should be running")
	}
	if sched.NextRun() == nil {
		t.Error("expected a next run time")
	}

	sched.Stop()
	if sched.IsRunning() {
		t.Error("scheduler should be stopped")
	}
}

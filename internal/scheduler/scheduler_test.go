package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/percussion/percussioncms-sub111/internal/config"
	"github.com/percussion/percussioncms-sub111/internal/ems"
)

type fakePurger struct{ calls chan time.Time }

func (f *fakePurger) PurgeExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	select {
	case f.calls <- now:
	default:
	}
	return 2, nil
}

type fakeRefresher struct{ calls chan struct{} }

func (f *fakeRefresher) RefreshReference(ctx context.Context) (*ems.ReferenceData, error) {
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return &ems.ReferenceData{}, nil
}

type fakePruner struct{ days chan int }

func (f *fakePruner) PruneTraffic(ctx context.Context, retentionDays int) (int64, error) {
	select {
	case f.days <- retentionDays:
	default:
	}
	return 0, nil
}

func newTestScheduler(t *testing.T) *Service {
	t.Helper()
	svc, err := New()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func testSchedule() config.SchedulerConfig {
	return config.SchedulerConfig{
		ResetPurgeCron:   "*/15 * * * *",
		EMSRefreshCron:   "0 * * * *",
		TrafficPruneCron: "30 3 * * *",
	}
}

func TestAddJobValidation(t *testing.T) {
	svc := newTestScheduler(t)
	noop := func(ctx context.Context) error { return nil }

	tests := []struct {
		name     string
		jobName  string
		cronExpr string
		task     Task
		want     error
	}{
		{"empty name", " ", "* * * * *", noop, ErrEmptyJobName},
		{"empty cron", "job", "", noop, ErrEmptyCronExpr},
		{"nil task", "job", "* * * * *", nil, ErrNilTask},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddJob(tc.jobName, tc.cronExpr, 0, tc.task); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := svc.AddJob("job", "not a cron", 0, noop); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}

	var nilService *Service
	if _, err := nilService.AddJob("job", "* * * * *", 0, noop); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRegisterMaintenanceJobsSkipsMissingTargets(t *testing.T) {
	svc := newTestScheduler(t)

	jobs, err := RegisterMaintenanceJobs(svc, Maintenance{
		Resets:        &fakePurger{calls: make(chan time.Time, 1)},
		Traffic:       &fakePruner{days: make(chan int, 1)},
		RetentionDays: 0,
		Schedule:      testSchedule(),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected only the reset purge job, got %d", len(jobs))
	}
	if _, ok := jobs[JobPasswordResetPurge]; !ok {
		t.Fatalf("missing %s job", JobPasswordResetPurge)
	}
}

func TestMaintenanceJobsRun(t *testing.T) {
	svc := newTestScheduler(t)

	fixed := time.Date(2024, 5, 1, 3, 30, 0, 0, time.UTC)
	purger := &fakePurger{calls: make(chan time.Time, 1)}
	refresher := &fakeRefresher{calls: make(chan struct{}, 1)}
	pruner := &fakePruner{days: make(chan int, 1)}

	jobs, err := RegisterMaintenanceJobs(svc, Maintenance{
		Resets:        purger,
		EMS:           refresher,
		Traffic:       pruner,
		RetentionDays: 90,
		Schedule:      testSchedule(),
		Now:           func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(jobs) != 3 || len(svc.Jobs()) != 3 {
		t.Fatalf("expected three jobs, got %d", len(jobs))
	}

	svc.Start()
	for _, job := range jobs {
		if err := job.RunNow(); err != nil {
			t.Fatalf("run %s: %v", job.Name(), err)
		}
	}

	select {
	case got := <-purger.calls:
		if !got.Equal(fixed) {
			t.Fatalf("purge used %v, want %v", got, fixed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reset purge did not run")
	}
	select {
	case <-refresher.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("ems refresh did not run")
	}
	select {
	case days := <-pruner.days:
		if days != 90 {
			t.Fatalf("prune used %d days", days)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("traffic prune did not run")
	}
}

func TestSingletonRequiresInit(t *testing.T) {
	if service != nil {
		t.Skip("singleton already initialized by another test")
	}
	if _, err := AddJob("job", "* * * * *", 0, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

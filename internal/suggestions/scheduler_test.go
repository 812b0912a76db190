package suggestions

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/log"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startScheduler(t *testing.T, cache *recordingCache) (*fakeSessions, *fakeJobs, *Builder) {
	t.Helper()
	sessions := newFakeSessions(&fakeClient{})
	jobs := newFakeJobs()
	worker := NewBuilder(sessions, cache, BuilderOptions{}, log.NullLogger())
	s := NewScheduler(sessions, jobs, cache, worker, 0, -1, log.NullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return sessions, jobs, worker
}

func scheduledCount(jobs *fakeJobs) func() bool {
	return func() bool {
		scheduled, _, _ := jobs.snapshot()
		return len(scheduled) > 0
	}
}

func TestScheduler_WarmCacheDefersFirstRun(t *testing.T) {
	cache := newMemoryCache(t)
	cache.Put(movieKey, []string{"x"})
	sessions, jobs, worker := startScheduler(t, cache)

	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1"})
	eventually(t, scheduledCount(jobs), "job was not scheduled")

	scheduled, _, _ := jobs.snapshot()
	job := scheduled[0]
	if job.Name != JobName {
		t.Errorf("Name = %q, want %q", job.Name, JobName)
	}
	if job.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", job.Interval, DefaultInterval)
	}
	if job.InitialDelay != DefaultInitialDelay {
		t.Errorf("InitialDelay = %v, want %v", job.InitialDelay, DefaultInitialDelay)
	}
	if job.Params[ParamUserID] != "u1" || job.Params[ParamServerID] != "s1" {
		t.Errorf("Params = %v", job.Params)
	}
	if job.Worker != domain.Worker(worker) {
		t.Error("job does not run the builder")
	}
}

func TestScheduler_ColdCacheRunsImmediately(t *testing.T) {
	sessions, jobs, _ := startScheduler(t, newMemoryCache(t))

	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1"})
	eventually(t, scheduledCount(jobs), "job was not scheduled")

	scheduled, _, _ := jobs.snapshot()
	if scheduled[0].InitialDelay != 0 {
		t.Errorf("InitialDelay = %v, want 0 for an empty cache", scheduled[0].InitialDelay)
	}
}

func TestScheduler_SignOutCancels(t *testing.T) {
	sessions, jobs, _ := startScheduler(t, newMemoryCache(t))

	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1"})
	eventually(t, scheduledCount(jobs), "job was not scheduled")

	sessions.set(nil)
	eventually(t, func() bool {
		_, cancelled, _ := jobs.snapshot()
		return len(cancelled) == 1 && cancelled[0] == JobName
	}, "job was not cancelled")
}

func TestScheduler_InitialNilDoesNothing(t *testing.T) {
	sessions, jobs, _ := startScheduler(t, newMemoryCache(t))

	sessions.set(nil)
	time.Sleep(50 * time.Millisecond)

	scheduled, cancelled, _ := jobs.snapshot()
	if len(scheduled) != 0 || len(cancelled) != 0 {
		t.Errorf("scheduled %d, cancelled %d; want no calls", len(scheduled), len(cancelled))
	}
}

func TestScheduler_SameSessionNotRescheduled(t *testing.T) {
	sessions, jobs, _ := startScheduler(t, newMemoryCache(t))

	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1"})
	eventually(t, scheduledCount(jobs), "job was not scheduled")

	// Same identity, different display name
	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1", Username: "renamed"})
	time.Sleep(50 * time.Millisecond)

	scheduled, _, _ := jobs.snapshot()
	if len(scheduled) != 1 {
		t.Errorf("scheduled %d times, want 1", len(scheduled))
	}
}

func TestScheduler_UserSwitchReschedules(t *testing.T) {
	sessions, jobs, _ := startScheduler(t, newMemoryCache(t))

	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1"})
	eventually(t, scheduledCount(jobs), "job was not scheduled")

	sessions.set(&domain.Session{ServerID: "s1", UserID: "u2"})
	eventually(t, func() bool {
		scheduled, _, _ := jobs.snapshot()
		return len(scheduled) == 2
	}, "job was not rescheduled")

	scheduled, cancelled, _ := jobs.snapshot()
	if got := scheduled[1].Params[ParamUserID]; got != "u2" {
		t.Errorf("rescheduled for %q, want u2", got)
	}
	if len(cancelled) != 0 {
		t.Errorf("switching users cancelled the job %d times", len(cancelled))
	}
}

func TestScheduler_FailedRegistrationRetriedOnReemit(t *testing.T) {
	sessions, jobs, _ := startScheduler(t, newMemoryCache(t))
	jobs.setFailure(errBoom)

	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1"})
	eventually(t, func() bool { return jobs.attemptCount() == 1 }, "registration was not attempted")

	jobs.setFailure(nil)
	sessions.set(&domain.Session{ServerID: "s1", UserID: "u1"})
	eventually(t, scheduledCount(jobs), "same session was not registered after a failed attempt")

	scheduled, _, _ := jobs.snapshot()
	if got := scheduled[0].Params[ParamUserID]; got != "u1" {
		t.Errorf("scheduled for %q, want u1", got)
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		interval     time.Duration
		delay        time.Duration
		wantInterval time.Duration
		wantDelay    time.Duration
	}{
		{"defaults", 0, -1, DefaultInterval, DefaultInitialDelay},
		{"explicit", time.Hour, time.Minute, time.Hour, time.Minute},
		{"zero delay kept", time.Hour, 0, time.Hour, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(nil, nil, nil, nil, tt.interval, tt.delay, nil)
			if s.interval != tt.wantInterval || s.initialDelay != tt.wantDelay {
				t.Errorf("got (%v, %v), want (%v, %v)", s.interval, s.initialDelay, tt.wantInterval, tt.wantDelay)
			}
		})
	}
}

package domain

import (
	"context"
	"time"
)

// JobState is the latest reported state of a unique job
type JobState int

const (
	JobEnqueued JobState = iota
	JobRunning
	JobSucceeded
	JobFailed
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobEnqueued:
		return "enqueued"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// InProgress reports whether a job in this state still has work pending.
func (s JobState) InProgress() bool {
	return s == JobEnqueued || s == JobRunning
}

// WorkResult is what a worker reports back to the job facility
type WorkResult int

const (
	WorkSuccess WorkResult = iota
	WorkRetry
	WorkFailure
)

func (r WorkResult) String() string {
	switch r {
	case WorkSuccess:
		return "success"
	case WorkRetry:
		return "retry"
	default:
		return "failure"
	}
}

// JobParams are the string parameters bound to a job registration
type JobParams map[string]string

// Worker executes one run of a scheduled job.
type Worker interface {
	Work(ctx context.Context, params JobParams) WorkResult
}

// WorkerFunc adapts a function to Worker
type WorkerFunc func(ctx context.Context, params JobParams) WorkResult

func (f WorkerFunc) Work(ctx context.Context, params JobParams) WorkResult { return f(ctx, params) }

// PeriodicJob describes a unique recurring job registration
type PeriodicJob struct {
	Name         string
	Interval     time.Duration
	InitialDelay time.Duration
	Params       JobParams
	Worker       Worker
}

// JobScheduler is the host's persistent job facility.
type JobScheduler interface {
	// ScheduleUniquePeriodic registers job, updating any registration with the same name
	ScheduleUniquePeriodic(ctx context.Context, job PeriodicJob) error

	// CancelUnique cancels the named registration; unknown names are a no-op
	CancelUnique(name string) error

	// ObserveState streams the job's state until ctx is done
	ObserveState(ctx context.Context, name string) <-chan JobState
}

// Package jobs runs named periodic jobs under a suture supervisor.
//
// Each registration is one supervised service that waits its initial delay,
// runs the worker, and repeats every interval. A worker reporting Retry is
// re-run after an exponential backoff bounded by the interval. The latest
// state of every job is published on a per-name signal and recorded in a
// ledger so observers see the last known state across restarts.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/metrics"
	"github.com/mmcdole/kinotv/internal/signal"
	"github.com/mmcdole/kinotv/internal/store"
)

var (
	ErrNotStarted = errors.New("job facility is not running")
	ErrInvalidJob = errors.New("invalid job registration")
)

// Ledger persists the last reported state per job name.
type Ledger interface {
	Record(name string, rec store.JobRecord) error
	Last(name string) (store.JobRecord, bool)
}

// Options tunes retry and shutdown behaviour. Zero values pick defaults.
type Options struct {
	RetryInitial time.Duration // first backoff after a Retry result
	StopTimeout  time.Duration // how long Cancel waits for a running worker
}

// Facility implements domain.JobScheduler.
type Facility struct {
	sup    *suture.Supervisor
	ledger Ledger
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex // serializes registration changes
	running bool
	jobs    map[string]*registration
	cancel  context.CancelFunc
	done    chan struct{} // closed once the supervisor has returned

	statesMu sync.Mutex
	states   map[string]*signal.Signal[domain.JobState]
}

type registration struct {
	job   domain.PeriodicJob
	token suture.ServiceToken
}

var _ domain.JobScheduler = (*Facility)(nil)

// NewFacility creates a facility. ledger may be nil to keep state in memory only.
func NewFacility(ledger Ledger, opts Options, logger *slog.Logger) *Facility {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 30 * time.Second
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	sup := suture.New("jobs", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		Timeout:          opts.StopTimeout,
	})

	return &Facility{
		sup:    sup,
		ledger: ledger,
		opts:   opts,
		logger: logger,
		jobs:   make(map[string]*registration),
		states: make(map[string]*signal.Signal[domain.JobState]),
	}
}

// Start runs the supervisor until ctx is done or Stop is called. Jobs can
// only be scheduled while the facility is running.
func (f *Facility) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return errors.New("job facility already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	errCh := f.sup.ServeBackground(ctx)
	done := make(chan struct{})
	f.running = true
	f.cancel = cancel
	f.done = done

	go func() {
		defer close(done)
		err := <-errCh
		f.mu.Lock()
		f.running = false
		f.jobs = make(map[string]*registration)
		f.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Error("job supervisor stopped", "error", err)
		}
	}()
	return nil
}

// Stop cancels every job and blocks until the supervisor has returned, so
// in-flight runs have finished their writes. Stop on a facility that was
// never started returns immediately.
func (f *Facility) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done
	f.logger.Debug("job facility stopped")
}

// ScheduleUniquePeriodic registers job under its name. An identical live
// registration (same interval and params) is kept as is; anything else
// replaces it.
func (f *Facility) ScheduleUniquePeriodic(ctx context.Context, job domain.PeriodicJob) error {
	if job.Name == "" || job.Worker == nil || job.Interval <= 0 {
		return fmt.Errorf("%w: name, worker and a positive interval are required", ErrInvalidJob)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return ErrNotStarted
	}

	if existing, ok := f.jobs[job.Name]; ok {
		if existing.job.Interval == job.Interval && maps.Equal(existing.job.Params, job.Params) {
			f.logger.Debug("job already registered", "job", job.Name)
			return nil
		}
		delete(f.jobs, job.Name)
		if err := f.sup.RemoveAndWait(existing.token, f.opts.StopTimeout); err != nil {
			f.logger.Warn("failed to stop replaced job", "error", err, "job", job.Name)
		}
		f.logger.Info("replacing job registration", "job", job.Name)
	}

	job.Params = maps.Clone(job.Params)
	f.publish(job.Name, domain.JobEnqueued, "")

	svc := &service{f: f, job: job}
	f.jobs[job.Name] = &registration{job: job, token: f.sup.Add(svc)}

	f.logger.Info("scheduled job",
		"job", job.Name,
		"interval", job.Interval,
		"initialDelay", job.InitialDelay,
	)
	return nil
}

// CancelUnique stops the named job, waiting for an in-flight run to return.
func (f *Facility) CancelUnique(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	reg, ok := f.jobs[name]
	if !ok {
		return nil
	}
	delete(f.jobs, name)

	err := f.sup.RemoveAndWait(reg.token, f.opts.StopTimeout)
	f.publish(name, domain.JobCancelled, "")
	f.logger.Info("cancelled job", "job", name)
	if err != nil {
		return fmt.Errorf("failed to stop job %s: %w", name, err)
	}
	return nil
}

// ObserveState streams the latest state of the named job until ctx is done.
func (f *Facility) ObserveState(ctx context.Context, name string) <-chan domain.JobState {
	return f.stateSignal(name).Subscribe(ctx)
}

// State returns the latest state of the named job, if any is known.
func (f *Facility) State(name string) (domain.JobState, bool) {
	return f.stateSignal(name).Get()
}

// Registered reports whether name has a live registration.
func (f *Facility) Registered(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	return ok
}

// Close ends every state subscription.
func (f *Facility) Close() {
	f.statesMu.Lock()
	defer f.statesMu.Unlock()
	for _, s := range f.states {
		s.Close()
	}
}

// stateSignal returns the state signal for name, seeding a new one from the
// ledger. Only terminal states are trusted; an in-progress record belongs to
// a process that is gone.
func (f *Facility) stateSignal(name string) *signal.Signal[domain.JobState] {
	f.statesMu.Lock()
	defer f.statesMu.Unlock()

	if s, ok := f.states[name]; ok {
		return s
	}

	s := signal.New[domain.JobState]()
	if f.ledger != nil {
		if rec, ok := f.ledger.Last(name); ok && !rec.State.InProgress() {
			s.Set(rec.State)
		}
	}
	f.states[name] = s
	return s
}

func (f *Facility) publish(name string, state domain.JobState, runID string) {
	f.stateSignal(name).Set(state)
	metrics.JobStateTransitions.WithLabelValues(name, state.String()).Inc()

	if f.ledger != nil {
		rec := store.JobRecord{State: state, RunID: runID, UpdatedAt: time.Now().Unix()}
		if err := f.ledger.Record(name, rec); err != nil {
			f.logger.Warn("failed to record job state", "error", err, "job", name)
		}
	}
	f.logger.Debug("job state", "job", name, "state", state.String(), "runID", runID)
}

func (f *Facility) newBackOff(interval time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryInitial
	b.MaxInterval = interval
	b.MaxElapsedTime = interval
	b.Reset()
	return b
}

// sleep waits for d or until ctx is done, reporting whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// service is the supervised loop for one registration.
type service struct {
	f      *Facility
	job    domain.PeriodicJob
	served bool
}

func (s *service) String() string { return "job:" + s.job.Name }

// Serve implements suture.Service.
func (s *service) Serve(ctx context.Context) error {
	delay := s.job.InitialDelay
	if s.served {
		// Restarted by the supervisor; don't rerun immediately
		delay = s.job.Interval
	}
	s.served = true

	for {
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		s.execute(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay = s.job.Interval
	}
}

// execute runs the worker until it succeeds, fails, or retries run out.
func (s *service) execute(ctx context.Context) {
	name := s.job.Name
	b := s.f.newBackOff(s.job.Interval)

	for {
		runID := uuid.NewString()
		s.f.publish(name, domain.JobRunning, runID)

		result := s.run(ctx, runID)
		if ctx.Err() != nil {
			return
		}

		switch result {
		case domain.WorkSuccess:
			s.f.publish(name, domain.JobSucceeded, runID)
			return
		case domain.WorkFailure:
			s.f.publish(name, domain.JobFailed, runID)
			return
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			s.f.logger.Warn("job retries exhausted until next interval", "job", name, "runID", runID)
			s.f.publish(name, domain.JobFailed, runID)
			return
		}

		s.f.logger.Info("job will retry", "job", name, "runID", runID, "delay", wait)
		s.f.publish(name, domain.JobEnqueued, runID)
		if !sleep(ctx, wait) {
			return
		}
	}
}

func (s *service) run(ctx context.Context, runID string) (result domain.WorkResult) {
	defer func() {
		if r := recover(); r != nil {
			s.f.logger.Error("job panicked", "job", s.job.Name, "runID", runID, "panic", r)
			result = domain.WorkFailure
		}
	}()

	start := time.Now()
	result = s.job.Worker.Work(ctx, s.job.Params)
	s.f.logger.Info("job run finished",
		"job", s.job.Name,
		"runID", runID,
		"result", result.String(),
		"duration", time.Since(start),
	)
	return result
}

package suggestions

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/kinotv/internal/domain"
)

// DefaultInitialDelay defers the first run when the cache can already serve
// something, keeping session start free of background traffic.
const DefaultInitialDelay = 30 * time.Second

// DefaultInterval is how often suggestions are rebuilt.
const DefaultInterval = 12 * time.Hour

// Scheduler keeps the suggestion job registered exactly while a session is
// active. It does no network I/O itself.
type Scheduler struct {
	sessions     domain.SessionSource
	jobs         domain.JobScheduler
	cache        domain.SuggestionCache
	worker       domain.Worker
	interval     time.Duration
	initialDelay time.Duration
	logger       *slog.Logger
}

// NewScheduler creates a Scheduler. Non-positive durations pick the defaults.
func NewScheduler(sessions domain.SessionSource, jobs domain.JobScheduler, cache domain.SuggestionCache,
	worker domain.Worker, interval, initialDelay time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if initialDelay < 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Scheduler{
		sessions:     sessions,
		jobs:         jobs,
		cache:        cache,
		worker:       worker,
		interval:     interval,
		initialDelay: initialDelay,
		logger:       logger,
	}
}

// Run follows the active session until ctx is done or the session stream ends.
func (s *Scheduler) Run(ctx context.Context) error {
	var current *domain.Session
	sessions := s.sessions.ActiveSession(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next, ok := <-sessions:
			if !ok {
				return nil
			}
			// A failed transition leaves current as is so a re-emission retries it
			if s.handle(ctx, current, next) {
				current = next
			}
		}
	}
}

// handle applies one session transition and reports whether it took effect.
func (s *Scheduler) handle(ctx context.Context, prev, next *domain.Session) bool {
	switch {
	case next == nil:
		if prev == nil {
			return true
		}
		if err := s.jobs.CancelUnique(JobName); err != nil {
			s.logger.Error("failed to cancel suggestion job", "error", err)
			return false
		}
		s.logger.Info("cancelled suggestion job", "userID", prev.UserID)
		return true

	case prev.Same(next):
		// Same user re-emitted; the registration already covers it
		return true

	default:
		if err := s.register(ctx, next); err != nil {
			s.logger.Error("failed to schedule suggestion job", "error", err, "userID", next.UserID)
			return false
		}
		return true
	}
}

func (s *Scheduler) register(ctx context.Context, session *domain.Session) error {
	delay := s.initialDelay
	if s.cache.IsEmpty() {
		delay = 0
	}

	err := s.jobs.ScheduleUniquePeriodic(ctx, domain.PeriodicJob{
		Name:         JobName,
		Interval:     s.interval,
		InitialDelay: delay,
		Params: domain.JobParams{
			ParamUserID:   session.UserID,
			ParamServerID: session.ServerID,
		},
		Worker: s.worker,
	})
	if err != nil {
		return err
	}
	s.logger.Info("scheduled suggestion job", "userID", session.UserID, "serverID", session.ServerID, "initialDelay", delay)
	return nil
}

package suggestions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/signal"
)

const (
	defaultMaterializeTimeout = 30 * time.Second
	materializeConcurrency    = 4
)

// JobObserver streams the state of a named job
type JobObserver interface {
	ObserveState(ctx context.Context, name string) <-chan domain.JobState
}

// ClientSource returns the media client of the active session
type ClientSource interface {
	Client(serverID, userID string) (domain.MediaClient, error)
}

// Presenter turns job state, cache contents and the active session into one
// Resource stream per library row.
type Presenter struct {
	sessions domain.SessionSource
	jobs     JobObserver
	cache    domain.SuggestionCache
	clients  ClientSource
	timeout  time.Duration
	logger   *slog.Logger

	group singleflight.Group
}

// NewPresenter creates a Presenter.
func NewPresenter(sessions domain.SessionSource, jobs JobObserver, cache domain.SuggestionCache, clients ClientSource, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		sessions: sessions,
		jobs:     jobs,
		cache:    cache,
		clients:  clients,
		timeout:  defaultMaterializeTimeout,
		logger:   logger,
	}
}

type materialized struct {
	seq      uint64
	resource domain.Resource
}

// Suggestions streams the Resource for one library row until ctx is done.
// The channel always holds the latest value; intermediate values may be skipped.
func (p *Presenter) Suggestions(ctx context.Context, libraryID string, kind domain.ItemKind) <-chan domain.Resource {
	out := signal.New[domain.Resource]()
	ch := out.Subscribe(ctx)
	go p.run(ctx, libraryID, kind, out)
	return ch
}

func (p *Presenter) run(ctx context.Context, libraryID string, kind domain.ItemKind, out *signal.Signal[domain.Resource]) {
	defer out.Close()

	sessions := p.sessions.ActiveSession(ctx)
	changes := p.cache.Changes(ctx)
	results := make(chan materialized, 1)

	var (
		started    bool
		session    *domain.Session
		jobStates  <-chan domain.JobState
		stopJob    = func() {}
		inProgress bool
		seq        uint64 // bumped on every resolve; stale results are dropped
	)
	defer func() { stopJob() }()

	emit := func(r domain.Resource) {
		if last, ok := out.Get(); ok && last.Equal(r) {
			return
		}
		out.Set(r)
	}

	resolve := func() {
		seq++
		if session == nil {
			emit(domain.EmptyResource())
			return
		}
		if inProgress {
			emit(domain.LoadingResource())
			return
		}

		key := domain.CacheKey{UserID: session.UserID, LibraryID: libraryID, Kind: kind}
		ids, ok := p.cache.Get(key)
		if !ok || len(ids) == 0 {
			emit(domain.EmptyResource())
			return
		}
		go p.materialize(ctx, *session, key, ids, seq, results)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case next, ok := <-sessions:
			if !ok {
				return
			}
			if started && session.Same(next) {
				continue
			}
			started = true

			stopJob()
			stopJob = func() {}
			jobStates = nil
			inProgress = false
			session = next

			if next != nil {
				jobCtx, cancel := context.WithCancel(ctx)
				stopJob = cancel
				jobStates = p.jobs.ObserveState(jobCtx, JobName)
			}
			resolve()

		case state, ok := <-jobStates:
			if !ok {
				jobStates = nil
				continue
			}
			if state.InProgress() == inProgress {
				continue
			}
			inProgress = state.InProgress()
			resolve()

		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if session != nil && !inProgress {
				resolve()
			}

		case r := <-results:
			if r.seq == seq {
				emit(r.resource)
			}
		}
	}
}

// materialize resolves ids to items and reports the Resource for seq.
// Any failure yields Empty.
func (p *Presenter) materialize(ctx context.Context, session domain.Session, key domain.CacheKey, ids []string, seq uint64, results chan<- materialized) {
	r := domain.EmptyResource()

	items, err := p.load(ctx, session, key, ids)
	switch {
	case err != nil:
		p.logger.Warn("failed to materialize suggestions", "error", err, "key", key.String())
	case len(items) > 0:
		r = domain.SuccessResource(items)
	}

	select {
	case results <- materialized{seq: seq, resource: r}:
	case <-ctx.Done():
	}
}

// load coalesces identical materializations across rows and subscribers.
func (p *Presenter) load(ctx context.Context, session domain.Session, key domain.CacheKey, ids []string) ([]*domain.MediaItem, error) {
	flightKey := session.ServerID + "|" + key.String() + "|" + strings.Join(ids, ",")

	ch := p.group.DoChan(flightKey, func() (any, error) {
		// Shared by every waiter, so not bound to any one caller's ctx
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.fetch(fetchCtx, session, ids)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		items := res.Val.([]*domain.MediaItem)
		return append([]*domain.MediaItem(nil), items...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Presenter) fetch(ctx context.Context, session domain.Session, ids []string) ([]*domain.MediaItem, error) {
	client, err := p.clients.Client(session.ServerID, session.UserID)
	if err != nil {
		return nil, err
	}

	items := make([]*domain.MediaItem, len(ids))
	pl := pool.New().WithMaxGoroutines(materializeConcurrency).WithErrors().WithContext(ctx).WithCancelOnError()
	for i, id := range ids {
		pl.Go(func(ctx context.Context) error {
			item, err := client.GetItem(ctx, id)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := pl.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

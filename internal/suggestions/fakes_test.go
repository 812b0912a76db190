package suggestions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/log"
	"github.com/mmcdole/kinotv/internal/signal"
	"github.com/mmcdole/kinotv/internal/store"
)

// fakeLibrary holds canned responses for one library, keyed by query shape.
type fakeLibrary struct {
	played     []*domain.MediaItem
	favorites  []*domain.MediaItem
	contextual []*domain.MediaItem
	random     []*domain.MediaItem
	fresh      []*domain.MediaItem
	err        error
}

type fakeClient struct {
	mu       sync.Mutex
	views    []domain.Library
	viewsErr error
	libs     map[string]*fakeLibrary
	queries  []domain.ItemQuery

	items   map[string]*domain.MediaItem
	getErr  error
	gate    chan struct{} // when set, GetItem blocks until closed
	getHits int
}

func (c *fakeClient) GetLibraryViews(ctx context.Context) ([]domain.Library, error) {
	return c.views, c.viewsErr
}

func (c *fakeClient) GetItems(ctx context.Context, q domain.ItemQuery) ([]*domain.MediaItem, error) {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	c.mu.Unlock()

	lib, ok := c.libs[q.ParentID]
	if !ok {
		return nil, domain.ErrLibraryNotFound
	}
	if lib.err != nil {
		return nil, lib.err
	}
	switch {
	case q.Played != nil && *q.Played:
		return lib.played, nil
	case q.Favorite:
		return lib.favorites, nil
	case len(q.GenreIDs) > 0:
		return lib.contextual, nil
	case q.SortBy == domain.SortDateCreated:
		return lib.fresh, nil
	default:
		return lib.random, nil
	}
}

func (c *fakeClient) GetItem(ctx context.Context, id string) (*domain.MediaItem, error) {
	c.mu.Lock()
	c.getHits++
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.getErr != nil {
		return nil, c.getErr
	}
	item, ok := c.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (c *fakeClient) hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getHits
}

func (c *fakeClient) queriesFor(libID string) []domain.ItemQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.ItemQuery
	for _, q := range c.queries {
		if q.ParentID == libID {
			out = append(out, q)
		}
	}
	return out
}

// fakeSessions is both the active-session source and the client provider.
type fakeSessions struct {
	active     *signal.Signal[*domain.Session]
	client     domain.MediaClient
	restorable bool

	mu       sync.Mutex
	restored int
	live     bool
}

func newFakeSessions(client domain.MediaClient) *fakeSessions {
	return &fakeSessions{active: signal.New[*domain.Session](), client: client, restorable: true}
}

func (s *fakeSessions) ActiveSession(ctx context.Context) <-chan *domain.Session {
	return s.active.Subscribe(ctx)
}

func (s *fakeSessions) RestoreSession(serverID, userID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored++
	if !s.restorable {
		return nil, domain.ErrNoSession
	}
	s.live = true
	return &domain.Session{ServerID: serverID, UserID: userID}, nil
}

func (s *fakeSessions) Client(serverID, userID string) (domain.MediaClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return nil, domain.ErrNoSession
	}
	return s.client, nil
}

func (s *fakeSessions) set(session *domain.Session) {
	s.mu.Lock()
	s.live = session != nil
	s.mu.Unlock()
	s.active.Set(session)
}

// fakeJobs records registrations and lets tests drive job state.
type fakeJobs struct {
	mu        sync.Mutex
	scheduled []domain.PeriodicJob
	cancelled []string
	observed  int
	attempts  int
	failWith  error // returned by ScheduleUniquePeriodic while set
	states    map[string]*signal.Signal[domain.JobState]
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{states: make(map[string]*signal.Signal[domain.JobState])}
}

func (j *fakeJobs) ScheduleUniquePeriodic(ctx context.Context, job domain.PeriodicJob) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts++
	if j.failWith != nil {
		return j.failWith
	}
	j.scheduled = append(j.scheduled, job)
	return nil
}

func (j *fakeJobs) setFailure(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failWith = err
}

func (j *fakeJobs) attemptCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts
}

func (j *fakeJobs) CancelUnique(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = append(j.cancelled, name)
	return nil
}

func (j *fakeJobs) ObserveState(ctx context.Context, name string) <-chan domain.JobState {
	j.mu.Lock()
	j.observed++
	j.mu.Unlock()
	return j.state(name).Subscribe(ctx)
}

func (j *fakeJobs) state(name string) *signal.Signal[domain.JobState] {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.states[name]
	if !ok {
		s = signal.New[domain.JobState]()
		j.states[name] = s
	}
	return s
}

func (j *fakeJobs) snapshot() ([]domain.PeriodicJob, []string, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.PeriodicJob(nil), j.scheduled...), append([]string(nil), j.cancelled...), j.observed
}

// recordingCache wraps a real store and counts saves.
type recordingCache struct {
	*store.SuggestionStore
	mu    sync.Mutex
	saves int
}

func (c *recordingCache) Save() error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.SuggestionStore.Save()
}

func (c *recordingCache) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func newMemoryCache(t *testing.T) *recordingCache {
	t.Helper()
	db, err := store.Open("", "")
	if err != nil {
		t.Fatal(err)
	}
	s, err := store.NewSuggestionStore(db, store.DefaultMemoryEntries, log.NullLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return &recordingCache{SuggestionStore: s}
}

var errBoom = errors.New("boom")

func movie(id string, genres ...string) *domain.MediaItem {
	item := &domain.MediaItem{ID: id, Title: "Movie " + id, Type: domain.MediaTypeMovie}
	for _, g := range genres {
		item.Genres = append(item.Genres, domain.Genre{ID: g, Name: g})
	}
	return item
}

func episode(id, seriesID string, genres ...string) *domain.MediaItem {
	item := movie(id, genres...)
	item.Type = domain.MediaTypeEpisode
	item.ShowID = seriesID
	return item
}

func show(id string, genres ...string) *domain.MediaItem {
	item := movie(id, genres...)
	item.Type = domain.MediaTypeShow
	return item
}

// waitFor reads from ch until want matches or the deadline passes, returning
// the last value seen.
func waitFor(t *testing.T, ch <-chan domain.Resource, want func(domain.Resource) bool) domain.Resource {
	t.Helper()
	var last domain.Resource
	deadline := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed; last = %v", last.State)
			}
			last = r
			if want(r) {
				return r
			}
		case <-deadline:
			t.Fatalf("timed out; last = %v", last.State)
		}
	}
}

func isState(s domain.ResourceState) func(domain.Resource) bool {
	return func(r domain.Resource) bool { return r.State == s }
}

package suggestions

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/log"
)

type presenterHarness struct {
	client   *fakeClient
	sessions *fakeSessions
	jobs     *fakeJobs
	cache    *recordingCache
	p        *Presenter
}

func newPresenterHarness(t *testing.T) *presenterHarness {
	t.Helper()
	client := &fakeClient{items: map[string]*domain.MediaItem{
		"x": movie("x"),
		"y": movie("y"),
	}}
	h := &presenterHarness{
		client:   client,
		sessions: newFakeSessions(client),
		jobs:     newFakeJobs(),
		cache:    newMemoryCache(t),
	}
	h.p = NewPresenter(h.sessions, h.jobs, h.cache, h.sessions, log.NullLogger())
	return h
}

func (h *presenterHarness) subscribe(t *testing.T) <-chan domain.Resource {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return h.p.Suggestions(ctx, movieKey.LibraryID, movieKey.Kind)
}

func (h *presenterHarness) signIn() {
	h.sessions.set(&domain.Session{ServerID: "s1", UserID: movieKey.UserID})
}

func itemIDs(r domain.Resource) []string {
	ids := make([]string, len(r.Items))
	for i, item := range r.Items {
		ids[i] = item.ID
	}
	return ids
}

func TestPresenter_NoSessionIsEmpty(t *testing.T) {
	h := newPresenterHarness(t)
	ch := h.subscribe(t)

	h.sessions.set(nil)
	waitFor(t, ch, isState(domain.ResourceEmpty))

	if _, _, observed := h.jobs.snapshot(); observed != 0 {
		t.Errorf("job state observed %d times without a session", observed)
	}
	if h.client.hits() != 0 {
		t.Error("items fetched without a session")
	}
}

func TestPresenter_CachedIDsMaterialize(t *testing.T) {
	h := newPresenterHarness(t)
	h.cache.Put(movieKey, []string{"x"})
	h.jobs.state(JobName).Set(domain.JobSucceeded)
	ch := h.subscribe(t)

	h.signIn()
	r := waitFor(t, ch, isState(domain.ResourceSuccess))
	if ids := itemIDs(r); len(ids) != 1 || ids[0] != "x" {
		t.Errorf("items = %v, want [x]", ids)
	}
}

func TestPresenter_MaterializeOrder(t *testing.T) {
	h := newPresenterHarness(t)
	h.cache.Put(movieKey, []string{"y", "x"})
	ch := h.subscribe(t)

	h.signIn()
	r := waitFor(t, ch, isState(domain.ResourceSuccess))
	if ids := itemIDs(r); len(ids) != 2 || ids[0] != "y" || ids[1] != "x" {
		t.Errorf("items = %v, want [y x]", ids)
	}
}

func TestPresenter_FetchFailureIsEmpty(t *testing.T) {
	h := newPresenterHarness(t)
	h.client.getErr = domain.ErrServerOffline
	h.cache.Put(movieKey, []string{"x"})
	h.jobs.state(JobName).Set(domain.JobSucceeded)
	ch := h.subscribe(t)

	h.signIn()
	waitFor(t, ch, isState(domain.ResourceEmpty))

	// Nothing else follows the failure
	select {
	case r := <-ch:
		if r.State != domain.ResourceEmpty {
			t.Errorf("unexpected %v after failed materialization", r.State)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPresenter_MissingItemIsEmpty(t *testing.T) {
	h := newPresenterHarness(t)
	h.cache.Put(movieKey, []string{"x", "gone"})
	ch := h.subscribe(t)

	h.signIn()
	waitFor(t, ch, isState(domain.ResourceEmpty))
}

func TestPresenter_JobStates(t *testing.T) {
	tests := []struct {
		state domain.JobState
		want  domain.ResourceState
	}{
		{domain.JobEnqueued, domain.ResourceLoading},
		{domain.JobRunning, domain.ResourceLoading},
		{domain.JobSucceeded, domain.ResourceEmpty},
		{domain.JobFailed, domain.ResourceEmpty},
		{domain.JobCancelled, domain.ResourceEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := newPresenterHarness(t)
			h.jobs.state(JobName).Set(tt.state)
			ch := h.subscribe(t)

			h.signIn()
			waitFor(t, ch, isState(tt.want))
		})
	}
}

func TestPresenter_LoadingThenSuccess(t *testing.T) {
	h := newPresenterHarness(t)
	jobState := h.jobs.state(JobName)
	jobState.Set(domain.JobRunning)
	ch := h.subscribe(t)

	h.signIn()
	waitFor(t, ch, isState(domain.ResourceLoading))

	// Writes during a run do not leak out while it is in progress
	h.cache.Put(movieKey, []string{"x"})
	jobState.Set(domain.JobSucceeded)

	r := waitFor(t, ch, isState(domain.ResourceSuccess))
	if ids := itemIDs(r); len(ids) != 1 || ids[0] != "x" {
		t.Errorf("items = %v, want [x]", ids)
	}
}

func TestPresenter_NoStaleSuccessAfterLoading(t *testing.T) {
	h := newPresenterHarness(t)
	h.client.gate = make(chan struct{})
	h.cache.Put(movieKey, []string{"x"})
	jobState := h.jobs.state(JobName)
	jobState.Set(domain.JobSucceeded)
	ch := h.subscribe(t)

	h.signIn()
	eventually(t, func() bool { return h.client.hits() > 0 }, "materialization did not start")

	jobState.Set(domain.JobRunning)
	waitFor(t, ch, isState(domain.ResourceLoading))

	// The old materialization completes after the run started
	close(h.client.gate)
	select {
	case r := <-ch:
		t.Errorf("got %v after Loading, want nothing", r.State)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPresenter_CacheWriteRefreshes(t *testing.T) {
	h := newPresenterHarness(t)
	ch := h.subscribe(t)

	h.signIn()
	waitFor(t, ch, isState(domain.ResourceEmpty))

	h.cache.Put(movieKey, []string{"x"})
	r := waitFor(t, ch, isState(domain.ResourceSuccess))
	if ids := itemIDs(r); len(ids) != 1 || ids[0] != "x" {
		t.Errorf("items = %v, want [x]", ids)
	}
}

func TestPresenter_SignOutClears(t *testing.T) {
	h := newPresenterHarness(t)
	h.cache.Put(movieKey, []string{"x"})
	ch := h.subscribe(t)

	h.signIn()
	waitFor(t, ch, isState(domain.ResourceSuccess))

	h.sessions.set(nil)
	waitFor(t, ch, isState(domain.ResourceEmpty))
}

func TestPresenter_OtherUsersCacheIgnored(t *testing.T) {
	h := newPresenterHarness(t)
	h.cache.Put(domain.CacheKey{UserID: "someone-else", LibraryID: movieKey.LibraryID, Kind: movieKey.Kind}, []string{"x"})
	ch := h.subscribe(t)

	h.signIn()
	waitFor(t, ch, isState(domain.ResourceEmpty))
}

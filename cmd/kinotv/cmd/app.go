package cmd

import (
	"errors"
	"fmt"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/jobs"
	"github.com/mmcdole/kinotv/internal/mediaserver/jellyfin"
	"github.com/mmcdole/kinotv/internal/session"
	"github.com/mmcdole/kinotv/internal/store"
	"github.com/mmcdole/kinotv/internal/suggestions"
)

// app holds the services shared by the subcommands for one server.
type app struct {
	db       *store.DB
	cache    *store.SuggestionStore
	sessions *session.Manager
	jobs     *jobs.Facility
	builder  *suggestions.Builder
}

func newApp(serverURL string) (*app, error) {
	db, err := store.Open(cfg.Cache.Dir, serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	cache, err := store.NewSuggestionStore(db, cfg.Suggestions.MemoryEntries, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	clientOpts := jellyfin.Options{
		Timeout:           cfg.Client.Timeout,
		RequestsPerSecond: cfg.Client.RequestsPerSecond,
		Burst:             cfg.Client.Burst,
		BreakerFailures:   cfg.Client.BreakerFailures,
		BreakerTimeout:    cfg.Client.BreakerTimeout,
	}
	newClient := func(creds domain.Credentials) domain.MediaClient {
		return jellyfin.NewClient(creds.ServerURL, creds.Token, creds.UserID, clientOpts, logger)
	}

	sessions := session.NewManager(
		jellyfin.NewAuthenticator(logger),
		store.NewSessionStore(db),
		cache,
		newClient,
		logger,
	)

	builder := suggestions.NewBuilder(sessions, cache, suggestions.BuilderOptions{
		SeedLimit:       cfg.Suggestions.SeedLimit,
		ContextualLimit: cfg.Suggestions.ContextualLimit,
		RandomLimit:     cfg.Suggestions.RandomLimit,
		FreshLimit:      cfg.Suggestions.FreshLimit,
		Concurrency:     cfg.Suggestions.Concurrency,
	}, logger)

	return &app{
		db:       db,
		cache:    cache,
		sessions: sessions,
		jobs:     jobs.NewFacility(store.NewJobLedger(db), jobs.Options{}, logger),
		builder:  builder,
	}, nil
}

// openConfigured opens the app for the configured server and restores the
// saved session.
func openConfigured() (*app, *domain.Session, error) {
	if err := requireConfigured(); err != nil {
		return nil, nil, err
	}

	a, err := newApp(cfg.Server.URL)
	if err != nil {
		return nil, nil, err
	}

	s, err := a.sessions.RestoreSession(cfg.Server.ServerID, cfg.Server.UserID)
	if err != nil {
		a.Close()
		if errors.Is(err, domain.ErrNoSession) {
			return nil, nil, fmt.Errorf("saved session not found; run 'kinotv login' again")
		}
		return nil, nil, err
	}
	return a, s, nil
}

func (a *app) scheduler() *suggestions.Scheduler {
	return suggestions.NewScheduler(a.sessions, a.jobs, a.cache, a.builder,
		cfg.Suggestions.Interval, cfg.Suggestions.InitialDelay, logger)
}

func (a *app) presenter() *suggestions.Presenter {
	return suggestions.NewPresenter(a.sessions, a.jobs, a.cache, a.sessions, logger)
}

// Close waits for in-flight jobs before the cache is saved and the DB closed.
func (a *app) Close() {
	a.jobs.Stop()
	a.jobs.Close()
	a.sessions.Close()
	if err := a.cache.Save(); err != nil {
		logger.Error("failed to save suggestions on exit", "error", err)
	}
	a.cache.Close()
	a.db.Close()
}

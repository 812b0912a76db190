package suggestions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/metrics"
)

// JobName is the unique periodic job that refreshes suggestions.
const JobName = "suggestions"

// Job parameter keys
const (
	ParamUserID   = "userId"
	ParamServerID = "serverId"
)

// SessionProvider hands out media clients for a server/user pair, restoring
// stored sessions on demand.
type SessionProvider interface {
	RestoreSession(serverID, userID string) (*domain.Session, error)
	Client(serverID, userID string) (domain.MediaClient, error)
}

// BuilderOptions bounds the per-library queries. Zero values pick defaults.
type BuilderOptions struct {
	SeedLimit       int // seeds kept after series dedup
	SeedFetch       int // history items fetched to pick seeds from
	ContextualLimit int
	RandomLimit     int
	FreshLimit      int
	Concurrency     int // libraries processed at once
}

func (o BuilderOptions) withDefaults() BuilderOptions {
	if o.SeedLimit <= 0 {
		o.SeedLimit = 3
	}
	if o.SeedFetch < o.SeedLimit {
		o.SeedFetch = max(10, o.SeedLimit)
	}
	if o.ContextualLimit <= 0 {
		o.ContextualLimit = 12
	}
	if o.RandomLimit <= 0 {
		o.RandomLimit = 8
	}
	if o.FreshLimit <= 0 {
		o.FreshLimit = 8
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	return o
}

// Builder rebuilds the suggestion list of every movie and show library of a
// user. It implements domain.Worker for the job facility.
type Builder struct {
	sessions SessionProvider
	cache    domain.SuggestionCache
	opts     BuilderOptions
	logger   *slog.Logger

	runMu sync.Mutex // one run per process
}

var _ domain.Worker = (*Builder)(nil)

// NewBuilder creates a Builder writing into cache.
func NewBuilder(sessions SessionProvider, cache domain.SuggestionCache, opts BuilderOptions, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		sessions: sessions,
		cache:    cache,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Work implements domain.Worker.
func (b *Builder) Work(ctx context.Context, params domain.JobParams) domain.WorkResult {
	return b.Run(ctx, params[ParamServerID], params[ParamUserID])
}

// Run performs one full refresh for the given user.
func (b *Builder) Run(ctx context.Context, serverID, userID string) domain.WorkResult {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	start := time.Now()
	result := b.run(ctx, serverID, userID)

	metrics.SuggestionRuns.WithLabelValues(result.String()).Inc()
	metrics.SuggestionRunDuration.Observe(time.Since(start).Seconds())
	b.logger.Info("suggestion run finished",
		"userID", userID,
		"serverID", serverID,
		"result", result.String(),
		"duration", time.Since(start),
	)
	return result
}

func (b *Builder) run(ctx context.Context, serverID, userID string) domain.WorkResult {
	if serverID == "" || userID == "" {
		b.logger.Error("suggestion run rejected", "error", domain.ErrMissingParams)
		return domain.WorkFailure
	}

	client, err := b.client(serverID, userID)
	if err != nil {
		b.logger.Error("failed to restore session", "error", err, "userID", userID)
		return domain.WorkFailure
	}

	libraries, err := client.GetLibraryViews(ctx)
	if err != nil {
		b.logger.Warn("failed to fetch library views", "error", err, "userID", userID)
		if ctx.Err() != nil || domain.IsConnectivity(err) {
			return domain.WorkRetry
		}
		return domain.WorkFailure
	}

	p := pool.New().WithMaxGoroutines(b.opts.Concurrency).WithErrors().WithContext(ctx)
	for _, lib := range libraries {
		kind, ok := lib.Kind()
		if !ok {
			continue
		}
		p.Go(func(ctx context.Context) error {
			// Cooperative cancellation: never start a library after the job is cancelled
			if ctx.Err() != nil {
				return nil
			}
			key := domain.CacheKey{UserID: userID, LibraryID: lib.ID, Kind: kind}
			if err := b.buildLibrary(ctx, client, key); err != nil {
				b.recordLibraryError(err, lib)
				return fmt.Errorf("library %s: %w", lib.ID, err)
			}
			return nil
		})
	}
	runErr := p.Wait()

	// Partial work from this run is kept even when it reports Retry
	if err := b.cache.Save(); err != nil {
		b.logger.Error("failed to save suggestions", "error", err, "userID", userID)
	}

	switch {
	case ctx.Err() != nil:
		return domain.WorkRetry
	case domain.IsConnectivity(runErr):
		return domain.WorkRetry
	default:
		return domain.WorkSuccess
	}
}

func (b *Builder) client(serverID, userID string) (domain.MediaClient, error) {
	client, err := b.sessions.Client(serverID, userID)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, domain.ErrNoSession) {
		return nil, err
	}
	if _, err := b.sessions.RestoreSession(serverID, userID); err != nil {
		return nil, err
	}
	return b.sessions.Client(serverID, userID)
}

func (b *Builder) recordLibraryError(err error, lib domain.Library) {
	kind := "other"
	if domain.IsConnectivity(err) {
		kind = "connectivity"
	}
	metrics.SuggestionLibraryErrors.WithLabelValues(kind).Inc()
	b.logger.Warn("failed to build library suggestions", "error", err, "libID", lib.ID, "library", lib.Name)
}

// buildLibrary runs the seed → genres → candidates pipeline for one library
// and writes the combined id list (possibly empty) into the cache.
func (b *Builder) buildLibrary(ctx context.Context, client domain.MediaClient, key domain.CacheKey) error {
	seeds, err := b.fetchSeeds(ctx, client, key)
	if err != nil {
		return fmt.Errorf("seeds: %w", err)
	}

	exclude := make([]string, 0, len(seeds))
	for _, s := range seeds {
		exclude = append(exclude, s.SeriesKey())
	}
	types := []domain.MediaType{key.Kind.MediaType()}

	genres, err := b.seedGenres(ctx, client, key, seeds)
	if err != nil {
		return fmt.Errorf("seed genres: %w", err)
	}

	var contextual []*domain.MediaItem
	if len(genres) > 0 {
		contextual, err = client.GetItems(ctx, domain.ItemQuery{
			ParentID:   key.LibraryID,
			Types:      types,
			GenreIDs:   genres,
			ExcludeIDs: exclude,
			SortBy:     domain.SortRandom,
			Limit:      b.opts.ContextualLimit,
		})
		if err != nil {
			return fmt.Errorf("contextual: %w", err)
		}
	}

	random, err := client.GetItems(ctx, domain.ItemQuery{
		ParentID:   key.LibraryID,
		Types:      types,
		ExcludeIDs: exclude,
		SortBy:     domain.SortRandom,
		Limit:      b.opts.RandomLimit,
	})
	if err != nil {
		return fmt.Errorf("random: %w", err)
	}

	fresh, err := client.GetItems(ctx, domain.ItemQuery{
		ParentID:   key.LibraryID,
		Types:      types,
		ExcludeIDs: exclude,
		SortBy:     domain.SortDateCreated,
		Descending: true,
		Limit:      b.opts.FreshLimit,
	})
	if err != nil {
		return fmt.Errorf("fresh: %w", err)
	}

	ids := CombineCandidates(contextual, random, fresh)
	b.cache.Put(key, ids)
	b.logger.Debug("built library suggestions",
		"libID", key.LibraryID,
		"kind", string(key.Kind),
		"seeds", len(seeds),
		"count", len(ids),
	)
	return nil
}

// fetchSeeds returns recently played items, falling back to favorites when
// there is no history. Show libraries seed from episodes.
func (b *Builder) fetchSeeds(ctx context.Context, client domain.MediaClient, key domain.CacheKey) ([]*domain.MediaItem, error) {
	historyType := domain.MediaTypeMovie
	if key.Kind == domain.KindSeries {
		historyType = domain.MediaTypeEpisode
	}

	played, err := client.GetItems(ctx, domain.ItemQuery{
		ParentID:   key.LibraryID,
		Types:      []domain.MediaType{historyType},
		Played:     domain.Bool(true),
		SortBy:     domain.SortDatePlayed,
		Descending: true,
		Limit:      b.opts.SeedFetch,
	})
	if err != nil {
		return nil, err
	}
	if seeds := SelectSeeds(played, b.opts.SeedLimit); len(seeds) > 0 {
		return seeds, nil
	}

	favorites, err := client.GetItems(ctx, domain.ItemQuery{
		ParentID:   key.LibraryID,
		Types:      []domain.MediaType{historyType, key.Kind.MediaType()},
		Favorite:   true,
		SortBy:     domain.SortDatePlayed,
		Descending: true,
		Limit:      b.opts.SeedFetch,
	})
	if err != nil {
		return nil, err
	}
	return SelectSeeds(favorites, b.opts.SeedLimit), nil
}

// seedGenres collects the distinct genres of the seeds. Episodes rarely carry
// genres of their own, so show libraries also read each seed's series.
func (b *Builder) seedGenres(ctx context.Context, client domain.MediaClient, key domain.CacheKey, seeds []*domain.MediaItem) ([]string, error) {
	if key.Kind != domain.KindSeries {
		return CollectGenres(seeds), nil
	}

	sources := make([]*domain.MediaItem, 0, 2*len(seeds))
	for _, seed := range seeds {
		if seed.ShowID == "" {
			sources = append(sources, seed)
			continue
		}
		series, err := client.GetItem(ctx, seed.ShowID)
		if err != nil {
			if ctx.Err() != nil || domain.IsConnectivity(err) {
				return nil, err
			}
			b.logger.Debug("failed to fetch seed series", "error", err, "seriesID", seed.ShowID)
			sources = append(sources, seed)
			continue
		}
		sources = append(sources, series, seed)
	}
	return CollectGenres(sources), nil
}

// SelectSeeds keeps the first item of each series (or standalone item), in
// order, up to limit.
func SelectSeeds(items []*domain.MediaItem, limit int) []*domain.MediaItem {
	seen := make(map[string]struct{}, len(items))
	seeds := make([]*domain.MediaItem, 0, min(limit, len(items)))
	for _, item := range items {
		if len(seeds) >= limit {
			break
		}
		k := item.SeriesKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		seeds = append(seeds, item)
	}
	return seeds
}

// CollectGenres returns the distinct genre ids across seeds in first-seen order.
func CollectGenres(seeds []*domain.MediaItem) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, s := range seeds {
		for _, g := range s.Genres {
			if g.ID == "" {
				continue
			}
			if _, ok := seen[g.ID]; ok {
				continue
			}
			seen[g.ID] = struct{}{}
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// CombineCandidates concatenates the lists in priority order and keeps the
// first occurrence of every id. The result is never nil.
func CombineCandidates(lists ...[]*domain.MediaItem) []string {
	var ids []string
	for _, list := range lists {
		for _, item := range list {
			ids = append(ids, item.ID)
		}
	}
	return DistinctIDs(ids)
}

// DistinctIDs removes repeated ids, preserving first-seen order.
func DistinctIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

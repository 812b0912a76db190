package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/metrics"
	"github.com/mmcdole/kinotv/internal/signal"
)

// DefaultMemoryEntries bounds the memory tier.
const DefaultMemoryEntries = 8

// suggestionEntry is the durable form of a cached id list
type suggestionEntry struct {
	IDs     []string `json:"ids"`
	SavedAt int64    `json:"saved_at"`
}

// parked holds an entry evicted from memory before it was saved
type parked struct {
	ids     []string
	version uint64
}

// SuggestionStore implements domain.SuggestionCache.
//
// Reads check memory, then parked entries, then BoltDB (promoting hits into
// memory). Writes only touch memory until Save. Memory evicts the
// least-recently-inserted key; an evicted unsaved entry is parked so Save
// still persists it.
type SuggestionStore struct {
	db     *DB
	codec  *codec
	logger *slog.Logger

	mu       sync.Mutex
	capacity int
	memory   *lru.Cache[domain.CacheKey, []string]
	dirty    map[domain.CacheKey]uint64 // key -> version of unsaved value
	pending  map[domain.CacheKey]parked
	version  uint64

	saveMu sync.Mutex // one Save at a time so an older snapshot never lands last

	changes   *signal.Signal[uint64]
	closeOnce sync.Once

	afterLoad func(domain.CacheKey) // test hook, runs between the disk read and promotion
}

// NewSuggestionStore creates a store over db holding at most capacity entries in memory.
func NewSuggestionStore(db *DB, capacity int, logger *slog.Logger) (*SuggestionStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultMemoryEntries
	}

	c, err := newCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}

	s := &SuggestionStore{
		db:       db,
		codec:    c,
		logger:   logger,
		capacity: capacity,
		dirty:    make(map[domain.CacheKey]uint64),
		pending:  make(map[domain.CacheKey]parked),
		changes:  signal.NewWith(uint64(0)),
	}
	if err := s.resetMemory(); err != nil {
		c.close()
		return nil, err
	}
	return s, nil
}

// resetMemory replaces the memory tier. Callers hold s.mu (or own s exclusively).
func (s *SuggestionStore) resetMemory() error {
	memory, err := lru.NewWithEvict[domain.CacheKey, []string](s.capacity, s.onEvict)
	if err != nil {
		return fmt.Errorf("failed to create memory tier: %w", err)
	}
	s.memory = memory
	return nil
}

// onEvict runs synchronously inside memory.Add, so s.mu is already held.
func (s *SuggestionStore) onEvict(key domain.CacheKey, ids []string) {
	metrics.StoreEvictions.Inc()
	if v, ok := s.dirty[key]; ok {
		s.pending[key] = parked{ids: ids, version: v}
		delete(s.dirty, key)
	}
	s.logger.Debug("evicted suggestions from memory", "key", key.String())
}

func (s *SuggestionStore) Get(key domain.CacheKey) ([]string, bool) {
	for {
		s.mu.Lock()
		if ids, ok := s.cached(key); ok {
			s.mu.Unlock()
			metrics.StoreLookups.WithLabelValues("memory").Inc()
			return clone(ids), true
		}
		version := s.version
		s.mu.Unlock()

		ids, ok := s.load(key)
		if s.afterLoad != nil {
			s.afterLoad(key)
		}

		s.mu.Lock()
		// A Put or Clear while we were reading disk makes the read stale
		if s.version != version {
			s.mu.Unlock()
			continue
		}
		if ok {
			s.memory.Add(key, ids)
		}
		s.mu.Unlock()

		if !ok {
			metrics.StoreLookups.WithLabelValues("miss").Inc()
			return nil, false
		}
		metrics.StoreLookups.WithLabelValues("durable").Inc()
		return clone(ids), true
	}
}

// cached returns key from memory or the parked entries. Callers hold s.mu.
func (s *SuggestionStore) cached(key domain.CacheKey) ([]string, bool) {
	if ids, ok := s.memory.Peek(key); ok {
		return ids, true
	}
	if p, ok := s.pending[key]; ok {
		return p.ids, true
	}
	return nil, false
}

// load reads key from BoltDB. Any read or decode failure is a miss.
func (s *SuggestionStore) load(key domain.CacheKey) ([]string, bool) {
	raw, err := s.db.get(bucketSuggestions, durableKey(key))
	if err != nil {
		s.logger.Warn("failed to read suggestions", "error", err, "key", key.String())
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var entry suggestionEntry
	if err := s.codec.unmarshal(raw, &entry); err != nil {
		s.logger.Warn("failed to decode suggestions", "error", err, "key", key.String())
		return nil, false
	}
	if entry.IDs == nil {
		entry.IDs = []string{}
	}
	return entry.IDs, true
}

func (s *SuggestionStore) Put(key domain.CacheKey, ids []string) {
	ids = clone(ids)

	s.mu.Lock()
	s.version++
	version := s.version
	delete(s.pending, key)
	s.memory.Add(key, ids)
	s.dirty[key] = version
	s.mu.Unlock()

	s.changes.Set(version)
	s.logger.Debug("cached suggestions", "key", key.String(), "count", len(ids))
}

// Save writes every unsaved entry to BoltDB in one transaction. Entries that
// fail to save stay dirty and are retried by the next Save.
func (s *SuggestionStore) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	type snap struct {
		key     domain.CacheKey
		version uint64
	}

	s.mu.Lock()
	if len(s.dirty) == 0 && len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	now := time.Now().Unix()
	entries := make(map[string][]byte, len(s.dirty)+len(s.pending))
	saved := make([]snap, 0, len(s.dirty)+len(s.pending))
	encode := func(key domain.CacheKey, ids []string, version uint64) error {
		data, err := s.codec.marshal(suggestionEntry{IDs: ids, SavedAt: now})
		if err != nil {
			return err
		}
		entries[durableKey(key)] = data
		saved = append(saved, snap{key: key, version: version})
		return nil
	}
	for key, version := range s.dirty {
		ids, _ := s.memory.Peek(key)
		if err := encode(key, ids, version); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to encode suggestions: %w", err)
		}
	}
	for key, p := range s.pending {
		if err := encode(key, p.ids, p.version); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to encode suggestions: %w", err)
		}
	}
	s.mu.Unlock()

	if err := s.db.putAll(bucketSuggestions, entries); err != nil {
		s.logger.Error("failed to save suggestions", "error", err, "count", len(entries))
		return fmt.Errorf("failed to save suggestions: %w", err)
	}

	// Clear only what this snapshot covered; newer Puts stay dirty
	s.mu.Lock()
	for _, e := range saved {
		if v, ok := s.dirty[e.key]; ok && v == e.version {
			delete(s.dirty, e.key)
		}
		if p, ok := s.pending[e.key]; ok && p.version == e.version {
			delete(s.pending, e.key)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("saved suggestions", "count", len(entries), "persistent", s.db.Persistent())
	return nil
}

func (s *SuggestionStore) IsEmpty() bool {
	s.mu.Lock()
	inMemory := s.memory.Len() > 0 || len(s.pending) > 0
	s.mu.Unlock()
	if inMemory {
		return false
	}
	return s.db.isEmpty(bucketSuggestions)
}

func (s *SuggestionStore) Changes(ctx context.Context) <-chan uint64 {
	return s.changes.Subscribe(ctx)
}

// MemoryLen reports how many entries the memory tier holds.
func (s *SuggestionStore) MemoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Len()
}

// InMemory reports whether key is held by the memory tier.
func (s *SuggestionStore) InMemory(key domain.CacheKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Contains(key)
}

// Clear drops every entry from both tiers.
func (s *SuggestionStore) Clear() error {
	s.mu.Lock()
	s.version++
	version := s.version
	s.dirty = make(map[domain.CacheKey]uint64)
	s.pending = make(map[domain.CacheKey]parked)
	err := s.resetMemory()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.changes.Set(version)
	if err := s.db.clear(bucketSuggestions); err != nil {
		return fmt.Errorf("failed to clear suggestions: %w", err)
	}
	s.logger.Info("cleared suggestion cache")
	return nil
}

// Close releases the codec. The DB is owned by the caller.
func (s *SuggestionStore) Close() error {
	s.closeOnce.Do(func() {
		s.changes.Close()
		s.codec.close()
	})
	return nil
}

// durableKey escapes each component so no two keys can collide.
func durableKey(key domain.CacheKey) string {
	return url.PathEscape(key.UserID) + "/" + url.PathEscape(key.LibraryID) + "/" + url.PathEscape(string(key.Kind))
}

func clone(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

package domain

import "context"

// SuggestionCache handles the two-tier suggestion cache (BoltDB + memory).
// Presenter reads, builder writes.
type SuggestionCache interface {
	// Get returns the cached ids for key, loading from disk on a memory miss
	Get(key CacheKey) ([]string, bool)

	// Put replaces the memory entry for key; nothing is written until Save
	Put(key CacheKey, ids []string)

	// Save flushes unsaved entries to durable storage
	Save() error

	// IsEmpty reports whether neither tier holds any entry
	IsEmpty() bool

	// Changes streams a generation number bumped on every Put until ctx is done
	Changes(ctx context.Context) <-chan uint64
}

package domain

import "context"

// SortField selects the server-side ordering of an item query
type SortField string

const (
	SortNone        SortField = ""
	SortDatePlayed  SortField = "DatePlayed"
	SortDateCreated SortField = "DateCreated"
	SortRandom      SortField = "Random"
)

// ItemQuery filters a library item listing.
type ItemQuery struct {
	ParentID   string      // Library scope
	Types      []MediaType // Item kinds to include
	GenreIDs   []string    // Any-of genre filter
	ExcludeIDs []string    // Items never returned
	SortBy     SortField
	Descending bool
	Played     *bool // nil = either
	Favorite   bool  // only favorites when true
	Limit      int   // 0 = server default
}

// MediaClient is the slice of the remote media API the suggestion engine needs.
type MediaClient interface {
	// GetLibraryViews returns the user's top-level libraries
	GetLibraryViews(ctx context.Context) ([]Library, error)

	// GetItems returns items matching the query
	GetItems(ctx context.Context, query ItemQuery) ([]*MediaItem, error)

	// GetItem materializes a single item
	GetItem(ctx context.Context, itemID string) (*MediaItem, error)
}

// Bool returns a pointer to b, for optional query filters.
func Bool(b bool) *bool { return &b }

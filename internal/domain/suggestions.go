package domain

import "fmt"

// ItemKind is the media-type tag a suggestion list is built for.
type ItemKind string

const (
	KindMovie  ItemKind = "MOVIE"
	KindSeries ItemKind = "SERIES"
)

// KindForCollection maps a library collection type to the kind of items
// suggested for it. Only movie and show libraries are supported.
func KindForCollection(collectionType string) (ItemKind, bool) {
	switch collectionType {
	case "movies":
		return KindMovie, true
	case "tvshows":
		return KindSeries, true
	default:
		return "", false
	}
}

// MediaType returns the catalog type listed for this kind.
func (k ItemKind) MediaType() MediaType {
	if k == KindSeries {
		return MediaTypeShow
	}
	return MediaTypeMovie
}

// CacheKey identifies one cached suggestion list.
type CacheKey struct {
	UserID    string
	LibraryID string
	Kind      ItemKind
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.LibraryID, k.Kind)
}

// ResourceState tags the active variant of a Resource.
type ResourceState int

const (
	ResourceEmpty ResourceState = iota
	ResourceLoading
	ResourceSuccess
)

func (s ResourceState) String() string {
	switch s {
	case ResourceLoading:
		return "loading"
	case ResourceSuccess:
		return "success"
	default:
		return "empty"
	}
}

// Resource is the presentation value for a suggestion row.
// Items is only set when State is ResourceSuccess.
type Resource struct {
	State ResourceState
	Items []*MediaItem
}

// EmptyResource reports no data and no refresh in flight.
func EmptyResource() Resource { return Resource{State: ResourceEmpty} }

// LoadingResource reports a refresh in flight.
func LoadingResource() Resource { return Resource{State: ResourceLoading} }

// SuccessResource wraps materialized items.
func SuccessResource(items []*MediaItem) Resource {
	return Resource{State: ResourceSuccess, Items: items}
}

// Equal compares state and item identity (not item contents).
func (r Resource) Equal(o Resource) bool {
	if r.State != o.State || len(r.Items) != len(o.Items) {
		return false
	}
	for i := range r.Items {
		if r.Items[i].ID != o.Items[i].ID {
			return false
		}
	}
	return true
}

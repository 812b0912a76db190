package jellyfin

import (
	"time"

	"github.com/mmcdole/kinotv/internal/domain"
)

// MapLibraries converts Jellyfin user views to domain libraries
func MapLibraries(items []Item) []domain.Library {
	libraries := make([]domain.Library, 0, len(items))
	for _, item := range items {
		libraries = append(libraries, domain.Library{
			ID:             item.ID,
			Name:           item.Name,
			CollectionType: item.CollectionType,
		})
	}
	return libraries
}

// MapItems converts Jellyfin items to domain media items, skipping types
// the client does not model.
func MapItems(items []Item) []*domain.MediaItem {
	out := make([]*domain.MediaItem, 0, len(items))
	for _, item := range items {
		if mi, ok := MapItem(item); ok {
			out = append(out, mi)
		}
	}
	return out
}

// MapItem converts a single Jellyfin item to a domain media item
func MapItem(item Item) (*domain.MediaItem, bool) {
	mediaType, ok := mapType(item.Type)
	if !ok {
		return nil, false
	}

	mi := &domain.MediaItem{
		ID:        item.ID,
		Title:     item.Name,
		SortTitle: item.SortName,
		LibraryID: item.ParentID,
		Summary:   item.Overview,
		Year:      item.ProductionYear,
		Duration:  ticksToDuration(item.RunTimeTicks),
		Type:      mediaType,
		Rating:    item.CommunityRating,
		Genres:    mapGenres(item.GenreItems),
		Streams:   mapStreams(item.MediaStreams),
	}

	if mi.SortTitle == "" {
		mi.SortTitle = mi.Title
	}

	if item.DateCreated != "" {
		if t, err := time.Parse(time.RFC3339, item.DateCreated); err == nil {
			mi.AddedAt = t.Unix()
		}
	}

	if item.UserData != nil {
		mi.IsPlayed = item.UserData.Played
		mi.Favorite = item.UserData.IsFavorite
	}

	if mediaType == domain.MediaTypeEpisode {
		mi.ShowTitle = item.SeriesName
		mi.ShowID = item.SeriesID
		mi.SeasonNum = item.ParentIndexNumber
		mi.EpisodeNum = item.IndexNumber
	}

	return mi, true
}

func mapType(t string) (domain.MediaType, bool) {
	switch t {
	case "Movie":
		return domain.MediaTypeMovie, true
	case "Series":
		return domain.MediaTypeShow, true
	case "Season":
		return domain.MediaTypeSeason, true
	case "Episode":
		return domain.MediaTypeEpisode, true
	default:
		return 0, false
	}
}

// itemType is the inverse of mapType for IncludeItemTypes
func itemType(t domain.MediaType) string {
	switch t {
	case domain.MediaTypeShow:
		return "Series"
	case domain.MediaTypeSeason:
		return "Season"
	case domain.MediaTypeEpisode:
		return "Episode"
	default:
		return "Movie"
	}
}

func mapGenres(pairs []NameIDPair) []domain.Genre {
	if len(pairs) == 0 {
		return nil
	}
	genres := make([]domain.Genre, 0, len(pairs))
	for _, p := range pairs {
		genres = append(genres, domain.Genre{ID: p.ID, Name: p.Name})
	}
	return genres
}

func mapStreams(streams []MediaStream) []domain.MediaStream {
	if len(streams) == 0 {
		return nil
	}
	out := make([]domain.MediaStream, 0, len(streams))
	for _, s := range streams {
		title := s.Title
		if title == "" {
			title = s.DisplayTitle
		}
		out = append(out, domain.MediaStream{
			Index:     s.Index,
			Type:      domain.StreamType(s.Type),
			Codec:     s.Codec,
			Language:  s.Language,
			Title:     title,
			IsDefault: s.IsDefault,
			IsForced:  s.IsForced,
			External:  s.IsExternal,
		})
	}
	return out
}

// ticksToDuration converts Jellyfin 100-nanosecond ticks to time.Duration
func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks * 100) // 100ns per tick
}

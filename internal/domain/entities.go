package domain

import (
	"fmt"
	"time"
)

// MediaType distinguishes content types
type MediaType int

const (
	MediaTypeMovie MediaType = iota
	MediaTypeShow
	MediaTypeSeason
	MediaTypeEpisode
)

// String returns the lowercase name used in logs and the CLI
func (t MediaType) String() string {
	switch t {
	case MediaTypeMovie:
		return "movie"
	case MediaTypeShow:
		return "show"
	case MediaTypeSeason:
		return "season"
	case MediaTypeEpisode:
		return "episode"
	default:
		return "unknown"
	}
}

// Genre is a server-side genre reference
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MediaItem represents a catalog entry (movie, series or episode)
type MediaItem struct {
	ID        string        // Server-specific unique identifier
	Title     string        // Display title
	SortTitle string        // Title used for sorting
	LibraryID string        // Parent library ID
	Summary   string        // Plot synopsis
	Year      int           // Release year
	AddedAt   int64         // Unix timestamp when added to library
	Duration  time.Duration // Total runtime
	IsPlayed  bool          // Whether item is marked as watched
	Favorite  bool          // Whether the user marked it as a favorite
	Type      MediaType     // Movie, Show or Episode

	// Episode-specific fields (empty for movies)
	ShowTitle  string // Parent show name
	ShowID     string // Parent show ID
	SeasonNum  int    // Season number (0 = specials)
	EpisodeNum int    // Episode number within season

	Genres []Genre

	// Rating (0-10 scale, audience/community rating)
	Rating float64

	// Audio/video/subtitle streams of the default media source
	Streams []MediaStream
}

// SeriesKey returns the identity used to collapse episodes of the same series.
func (m MediaItem) SeriesKey() string {
	if m.ShowID != "" {
		return m.ShowID
	}
	return m.ID
}

// FormattedDuration returns the duration in a human-readable format
func (m MediaItem) FormattedDuration() string {
	h := int(m.Duration.Hours())
	mins := int(m.Duration.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// EpisodeCode returns the formatted episode code (e.g., "S01E05")
func (m MediaItem) EpisodeCode() string {
	if m.Type != MediaTypeEpisode {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", m.SeasonNum, m.EpisodeNum)
}

// Description returns secondary info for display
func (m MediaItem) Description() string {
	switch {
	case m.Type == MediaTypeEpisode:
		return m.ShowTitle + " " + m.EpisodeCode()
	case m.Year > 0:
		return fmt.Sprintf("%d", m.Year)
	case m.Duration > 0:
		return m.FormattedDuration()
	default:
		return ""
	}
}

// StreamType identifies the kind of a media stream
type StreamType string

const (
	StreamVideo    StreamType = "Video"
	StreamAudio    StreamType = "Audio"
	StreamSubtitle StreamType = "Subtitle"
)

// MediaStream is a single audio, video or subtitle track
type MediaStream struct {
	Index     int
	Type      StreamType
	Codec     string
	Language  string // ISO 639-1 or 639-2 code as reported by the server
	Title     string
	IsDefault bool
	IsForced  bool
	External  bool
}

// Library represents a media server library section
type Library struct {
	ID             string // Server-specific unique identifier
	Name           string // Display name
	CollectionType string // Server collection type: "movies", "tvshows", ...
}

// Kind reports the suggestion kind served by this library.
func (l Library) Kind() (ItemKind, bool) {
	return KindForCollection(l.CollectionType)
}

package jellyfin

// AuthResponse represents the response from Jellyfin's AuthenticateByName endpoint
type AuthResponse struct {
	User        User   `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
}

// User represents a Jellyfin user
type User struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	ServerID string `json:"ServerId"`
}

// SystemInfo represents the public system info from Jellyfin
type SystemInfo struct {
	ServerName  string `json:"ServerName"`
	Version     string `json:"Version"`
	ProductName string `json:"ProductName"`
	ID          string `json:"Id"`
}

// ItemsResponse represents a list of items from Jellyfin
type ItemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// Item represents a media item from Jellyfin (library view, movie, series, episode)
type Item struct {
	ID                string        `json:"Id"`
	Name              string        `json:"Name"`
	SortName          string        `json:"SortName"`
	Overview          string        `json:"Overview"`
	Type              string        `json:"Type"`
	CollectionType    string        `json:"CollectionType,omitempty"` // For libraries: "movies", "tvshows"
	DateCreated       string        `json:"DateCreated,omitempty"`
	ProductionYear    int           `json:"ProductionYear,omitempty"`
	RunTimeTicks      int64         `json:"RunTimeTicks,omitempty"` // Duration in 100-nanosecond units
	CommunityRating   float64       `json:"CommunityRating,omitempty"`
	ParentID          string        `json:"ParentId,omitempty"`
	SeriesID          string        `json:"SeriesId,omitempty"`
	SeriesName        string        `json:"SeriesName,omitempty"`
	ParentIndexNumber int           `json:"ParentIndexNumber,omitempty"` // Season number
	IndexNumber       int           `json:"IndexNumber,omitempty"`       // Episode number
	GenreItems        []NameIDPair  `json:"GenreItems,omitempty"`
	UserData          *UserData     `json:"UserData,omitempty"`
	MediaStreams      []MediaStream `json:"MediaStreams,omitempty"`
}

// NameIDPair is Jellyfin's reference to another entity (genres, studios)
type NameIDPair struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

// UserData contains user-specific data for an item
type UserData struct {
	PlayCount      int    `json:"PlayCount"`
	IsFavorite     bool   `json:"IsFavorite"`
	Played         bool   `json:"Played"`
	LastPlayedDate string `json:"LastPlayedDate,omitempty"`
}

// MediaStream represents a video, audio, or subtitle stream
type MediaStream struct {
	Codec        string `json:"Codec"`
	Language     string `json:"Language,omitempty"`
	DisplayTitle string `json:"DisplayTitle,omitempty"`
	Title        string `json:"Title,omitempty"`
	Type         string `json:"Type"` // "Video", "Audio", "Subtitle"
	Index        int    `json:"Index"`
	IsDefault    bool   `json:"IsDefault"`
	IsForced     bool   `json:"IsForced"`
	IsExternal   bool   `json:"IsExternal"`
}

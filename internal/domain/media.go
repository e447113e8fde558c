package domain

import "time"

// Format selects what the extractor should retrieve for an item.
type Format string

const (
	FormatBest  Format = "best"
	FormatAudio Format = "audio"
)

// ValidFormat reports whether f is a known retrieval format.
func ValidFormat(f Format) bool {
	return f == FormatBest || f == FormatAudio
}

// MediaItem is one extractable entry discovered during analysis. Immutable
// after creation; the id is unique within its owning session only.
type MediaItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail"`
	Duration  int      `json:"duration,omitempty"`
	Views     int64    `json:"views,omitempty"`
	URL       string   `json:"url"`
	Platform  Platform `json:"platform"`
}

// Session records the outcome of analyzing one URL. Items keep playlist
// order. Sessions are owned by the registry that created them; everyone else
// sees copies.
type Session struct {
	ID            string
	SourceURL     string
	Platform      Platform
	IsPlaylist    bool
	PlaylistTitle string
	Items         []MediaItem
	CreatedAt     time.Time
}

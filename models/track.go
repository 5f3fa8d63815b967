package models

// Track is the most recent play reported by Last.fm for a user.
type Track struct {
	Song       string `json:"song"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	NowPlaying bool   `json:"nowPlaying"`
}

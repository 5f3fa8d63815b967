package lastfm

import "fmt"

// Session is the durable credential returned by auth.getSession. The
// key never expires and authorizes signed calls on the user's behalf.
type Session struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

type sessionResponse struct {
	Session Session `json:"session"`
}

// UserInfo is the subset of user.getInfo the handshake cares about.
type UserInfo struct {
	Name     string `json:"name"`
	RealName string `json:"realname"`
}

type userInfoResponse struct {
	User UserInfo `json:"user"`
}

// APIError is a Last.fm application-level error. The API reports these
// in the response body (sometimes with HTTP 200), so every response is
// probed for one before decoding.
type APIError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("last.fm API error %d: %s", e.Code, e.Message)
}

// Structs to represent the Last.fm API response for user.getrecenttracks
type recentTracksResponse struct {
	RecentTracks recentTracks `json:"recenttracks"`
}

type recentTracks struct {
	Tracks []apiTrack `json:"track"`
}

type apiTrack struct {
	Artist textField  `json:"artist"`
	Album  textField  `json:"album"`
	Name   string     `json:"name"`
	Attr   *trackAttr `json:"@attr,omitempty"`
}

// textField is Last.fm's {"#text": "...", "mbid": "..."} convention.
type textField struct {
	MBID string `json:"mbid"`
	Text string `json:"#text"`
}

type trackAttr struct {
	NowPlaying string `json:"nowplaying"`
}

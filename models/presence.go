package models

import "strconv"

// Hash field names for the presence record. Identity fields live in the
// same hash as the play metadata but are written once at handshake time;
// a refresh only touches the fields in TrackFields.
const (
	FieldRealName     = "realName"
	FieldSessionKey   = "sessionKey"
	FieldRecentSong   = "recentSong"
	FieldRecentArtist = "recentArtist"
	FieldRecentAlbum  = "recentAlbum"
	FieldNowPlaying   = "nowPlaying"
)

// Presence is a user's cached listening state.
type Presence struct {
	User
	RecentSong   string `json:"recentSong"`
	RecentArtist string `json:"recentArtist"`
	RecentAlbum  string `json:"recentAlbum"`
	NowPlaying   bool   `json:"nowPlaying"`
}

// TrackFields is the full presence portion of the user hash for a given
// play. A nil track means no recent activity: blank metadata, not
// playing.
func TrackFields(track *Track) map[string]any {
	if track == nil {
		track = &Track{}
	}
	return map[string]any{
		FieldRecentSong:   track.Song,
		FieldRecentArtist: track.Artist,
		FieldRecentAlbum:  track.Album,
		FieldNowPlaying:   strconv.FormatBool(track.NowPlaying),
	}
}

// IdentityFields is the handshake-time portion of the user hash.
func IdentityFields(user User) map[string]any {
	return map[string]any{
		FieldRealName:   user.RealName,
		FieldSessionKey: user.SessionKey,
	}
}

// PresenceFromHash rebuilds a presence record from its stored hash
// fields. Missing fields fall back to zero values, so an empty map
// yields the "no cached presence" default payload.
func PresenceFromHash(username string, fields map[string]string) Presence {
	nowPlaying, _ := strconv.ParseBool(fields[FieldNowPlaying])
	return Presence{
		User: User{
			Username:   username,
			RealName:   fields[FieldRealName],
			SessionKey: fields[FieldSessionKey],
		},
		RecentSong:   fields[FieldRecentSong],
		RecentArtist: fields[FieldRecentArtist],
		RecentAlbum:  fields[FieldRecentAlbum],
		NowPlaying:   nowPlaying,
	}
}

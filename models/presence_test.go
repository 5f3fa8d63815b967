package models

import "testing"

func TestPresenceFromHashRoundTrip(t *testing.T) {
	track := &Track{Song: "Cosmia", Artist: "Joanna Newsom", Album: "Ys", NowPlaying: true}
	user := User{Username: "alice", RealName: "Alice Liddell", SessionKey: "sk-123"}

	fields := make(map[string]string)
	for k, v := range TrackFields(track) {
		fields[k] = v.(string)
	}
	for k, v := range IdentityFields(user) {
		fields[k] = v.(string)
	}

	p := PresenceFromHash("alice", fields)
	if p.User != user {
		t.Errorf("user = %+v, want %+v", p.User, user)
	}
	if p.RecentSong != "Cosmia" || p.RecentArtist != "Joanna Newsom" || p.RecentAlbum != "Ys" {
		t.Errorf("track fields = %+v", p)
	}
	if !p.NowPlaying {
		t.Error("nowPlaying lost in round trip")
	}
}

func TestTrackFieldsNilTrack(t *testing.T) {
	fields := TrackFields(nil)
	if fields[FieldRecentSong] != "" || fields[FieldRecentArtist] != "" || fields[FieldRecentAlbum] != "" {
		t.Errorf("nil track must blank the metadata, got %v", fields)
	}
	if fields[FieldNowPlaying] != "false" {
		t.Errorf("nil track nowPlaying = %v, want false", fields[FieldNowPlaying])
	}
}

func TestPresenceFromHashEmpty(t *testing.T) {
	p := PresenceFromHash("ghost", map[string]string{})
	if p.Username != "ghost" {
		t.Errorf("username = %q, want ghost", p.Username)
	}
	if p.NowPlaying || p.RecentSong != "" || p.RealName != "" {
		t.Errorf("empty hash must yield a default payload, got %+v", p)
	}
}

func TestPresenceFromHashBadBool(t *testing.T) {
	p := PresenceFromHash("alice", map[string]string{FieldNowPlaying: "not-a-bool"})
	if p.NowPlaying {
		t.Error("unparseable nowPlaying must default to false")
	}
}

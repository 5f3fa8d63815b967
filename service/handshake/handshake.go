package handshake

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lfm-globe/globe/models"
	"github.com/lfm-globe/globe/service/lastfm"
	"github.com/lfm-globe/globe/service/poller"
	"github.com/lfm-globe/globe/service/token"
	"github.com/lfm-globe/globe/store"
)

// ErrBadCredential means the auth code did not resolve to a usable
// Last.fm identity.
var ErrBadCredential = errors.New("auth code did not resolve to a username")

// Service turns a Last.fm auth callback into a stored identity, a
// first presence record, a queue entry for the pollers, and the user's
// first location-change token.
type Service struct {
	store  store.Store
	lastfm *lastfm.Client
	tokens *token.Service
}

func NewService(s store.Store, client *lastfm.Client, tokens *token.Service) *Service {
	return &Service{store: s, lastfm: client, tokens: tokens}
}

// Result is everything the callback handler needs to send the user on
// to the location picker.
type Result struct {
	User     models.User
	Presence models.Presence
	Token    string
}

// Complete performs the full handshake for an auth callback code.
func (s *Service) Complete(ctx context.Context, authCode string) (*Result, error) {
	sess, err := s.lastfm.GetSession(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("session exchange failed: %w", err)
	}
	if sess.Key == "" {
		return nil, ErrBadCredential
	}

	info, err := s.lastfm.GetUserInfo(ctx, sess.Key)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}

	user := models.User{
		Username:   info.Name,
		RealName:   info.RealName,
		SessionKey: sess.Key,
	}
	if user.Username == "" {
		user.Username = sess.Name
	}
	if user.Username == "" {
		return nil, ErrBadCredential
	}

	// A fetch failure here is not worth failing the whole handshake
	// over; the pollers will fill the record in on the next cycle.
	track, err := s.lastfm.RecentTrack(ctx, user.Username)
	if err != nil {
		log.Printf("Error fetching recent track for %s during handshake: %v", user.Username, err)
		track = nil
	}

	fields := models.TrackFields(track)
	for k, v := range models.IdentityFields(user) {
		fields[k] = v
	}
	if err := s.store.HashSet(ctx, store.PresenceKey(user.Username), fields); err != nil {
		return nil, fmt.Errorf("failed to store presence for %s: %w", user.Username, err)
	}

	// First-time enqueue. If the user already existed this can briefly
	// duplicate them across tiers; the next re-file collapses it.
	nowPlaying := track != nil && track.NowPlaying
	if err := s.store.Append(ctx, poller.DestinationQueue(nowPlaying), user.Username); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", user.Username, err)
	}

	locToken, err := s.tokens.Issue(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue location token: %w", err)
	}

	log.Printf("Completed handshake for %s (now playing: %t)", user.Username, nowPlaying)

	presence := models.Presence{User: user}
	if track != nil {
		presence.RecentSong = track.Song
		presence.RecentArtist = track.Artist
		presence.RecentAlbum = track.Album
		presence.NowPlaying = track.NowPlaying
	}

	return &Result{
		User:     user,
		Presence: presence,
		Token:    locToken,
	}, nil
}

package handshake

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lfm-globe/globe/models"
	"github.com/lfm-globe/globe/service/lastfm"
	"github.com/lfm-globe/globe/service/token"
	"github.com/lfm-globe/globe/store"
)

// fakeLastFM serves the three API methods the handshake touches.
func fakeLastFM(t *testing.T, nowPlaying bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch method := r.URL.Query().Get("method"); method {
		case "auth.getSession":
			if r.URL.Query().Get("token") == "bad-code" {
				fmt.Fprint(w, `{"error":4,"message":"Invalid authentication token supplied"}`)
				return
			}
			fmt.Fprint(w, `{"session":{"name":"alice","key":"sk-123","subscriber":0}}`)
		case "user.getInfo":
			fmt.Fprint(w, `{"user":{"name":"alice","realname":"Alice Liddell"}}`)
		case "user.getRecentTracks":
			var attr string
			if nowPlaying {
				attr = `,"@attr":{"nowplaying":"true"}`
			}
			fmt.Fprintf(w, `{"recenttracks":{"track":[
				{"name":"Cosmia","artist":{"#text":"Joanna Newsom","mbid":""},
				 "album":{"#text":"Ys","mbid":""}%s}]}}`, attr)
		default:
			t.Errorf("unexpected API method %q", method)
			fmt.Fprint(w, `{"error":3,"message":"Invalid Method"}`)
		}
	}))
}

func newTestService(t *testing.T, apiURL string) (*Service, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := store.NewRedisWithClient(client)
	svc := NewService(st, lastfm.NewClient(apiURL, "key", "secret"), token.NewService(st, time.Hour))
	return svc, client
}

func TestCompleteHandshakePlayingUser(t *testing.T) {
	ts := fakeLastFM(t, true)
	defer ts.Close()
	svc, client := newTestService(t, ts.URL)
	ctx := context.Background()

	res, err := svc.Complete(ctx, "good-code")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if res.User.Username != "alice" || res.User.RealName != "Alice Liddell" {
		t.Errorf("user = %+v, want alice / Alice Liddell", res.User)
	}
	if res.User.SessionKey != "sk-123" {
		t.Errorf("session key = %q, want sk-123", res.User.SessionKey)
	}
	if !res.Presence.NowPlaying || res.Presence.RecentSong != "Cosmia" {
		t.Errorf("presence = %+v, want Cosmia now playing", res.Presence)
	}
	if res.Token == "" {
		t.Error("handshake must issue a location token")
	}

	// Stored record carries identity and play state.
	fields, err := client.HGetAll(ctx, store.PresenceKey("alice")).Result()
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	p := models.PresenceFromHash("alice", fields)
	if p.SessionKey != "sk-123" || p.RecentSong != "Cosmia" || !p.NowPlaying {
		t.Errorf("stored presence = %+v", p)
	}

	// A playing user starts on the priority queue.
	queued, err := client.LRange(ctx, store.PriorityQueue, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(queued) != 1 || queued[0] != "alice" {
		t.Errorf("priority queue = %v, want [alice]", queued)
	}

	// The returned token must actually redeem.
	tokens := token.NewService(store.NewRedisWithClient(client), time.Hour)
	if err := tokens.Redeem(ctx, "alice", res.Token); err != nil {
		t.Errorf("issued token did not redeem: %v", err)
	}
}

func TestCompleteHandshakeIdleUser(t *testing.T) {
	ts := fakeLastFM(t, false)
	defer ts.Close()
	svc, client := newTestService(t, ts.URL)
	ctx := context.Background()

	res, err := svc.Complete(ctx, "good-code")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Presence.NowPlaying {
		t.Error("idle user must not be marked now playing")
	}

	queued, err := client.LRange(ctx, store.RegularQueue, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(queued) != 1 || queued[0] != "alice" {
		t.Errorf("regular queue = %v, want [alice]", queued)
	}
}

func TestCompleteHandshakeBadCode(t *testing.T) {
	ts := fakeLastFM(t, false)
	defer ts.Close()
	svc, _ := newTestService(t, ts.URL)

	_, err := svc.Complete(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("Complete with a bad code must fail")
	}
	var apiErr *lastfm.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("error = %v, want a wrapped lastfm.APIError", err)
	}
}

func TestCompleteHandshakeUnresolvableUsername(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("method") {
		case "auth.getSession":
			fmt.Fprint(w, `{"session":{"name":"","key":"sk-123","subscriber":0}}`)
		case "user.getInfo":
			fmt.Fprint(w, `{"user":{"name":"","realname":""}}`)
		}
	}))
	defer ts.Close()
	svc, _ := newTestService(t, ts.URL)

	_, err := svc.Complete(context.Background(), "odd-code")
	if !errors.Is(err, ErrBadCredential) {
		t.Errorf("Complete = %v, want ErrBadCredential", err)
	}
}

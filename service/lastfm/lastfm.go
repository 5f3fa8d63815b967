package lastfm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lfm-globe/globe/models"
	"golang.org/x/time/rate"
)

const DefaultAPIURL = "https://ws.audioscrobbler.com/2.0/"

// Client wraps the Last.fm web API: the signed session handshake and
// the unsigned recent-tracks lookup the pollers live on.
type Client struct {
	apiURL     string
	apiKey     string
	secret     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiURL, apiKey, secret string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// Last.fm unofficial rate limit is ~5 requests per second
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// GetSession exchanges the callback auth code for a session credential
// via the signed auth.getSession call.
func (c *Client) GetSession(ctx context.Context, authCode string) (*Session, error) {
	params := url.Values{}
	params.Set("token", authCode)

	var resp sessionResponse
	if err := c.get(ctx, "auth.getSession", params, true, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// GetUserInfo fetches the authenticated user's profile via the signed
// user.getInfo call.
func (c *Client) GetUserInfo(ctx context.Context, sessionKey string) (*UserInfo, error) {
	params := url.Values{}
	params.Set("sk", sessionKey)

	var resp userInfoResponse
	if err := c.get(ctx, "user.getInfo", params, true, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// RecentTrack fetches the user's most recent play. A nil track with a
// nil error means the user has no listening history at all, which is a
// normal state.
func (c *Client) RecentTrack(ctx context.Context, username string) (*models.Track, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	params := url.Values{}
	params.Set("user", username)
	params.Set("limit", "1")

	var resp recentTracksResponse
	if err := c.get(ctx, "user.getRecentTracks", params, false, &resp); err != nil {
		return nil, err
	}

	tracks := resp.RecentTracks.Tracks
	if len(tracks) == 0 {
		return nil, nil
	}

	t := tracks[0]
	return &models.Track{
		Song:       t.Name,
		Artist:     t.Artist.Text,
		Album:      t.Album.Text,
		NowPlaying: t.Attr != nil && t.Attr.NowPlaying == "true",
	}, nil
}

// get performs one API call. Signed calls carry an api_sig computed
// over the sorted parameter list; the API excludes format and callback
// from the signature.
func (c *Client) get(ctx context.Context, method string, params url.Values, signed bool, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	if signed {
		params.Set("api_sig", c.sign(params))
	}
	params.Set("format", "json")

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	apiURL := c.apiURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	// The API reports failures in the body, occasionally alongside an
	// HTTP 200, so check for one before anything else.
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d, body: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

// sign computes the md5 method signature: every parameter sorted
// alphabetically by name, concatenated as namevalue pairs, followed by
// the shared secret.
func (c *Client) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params.Get(k))
	}
	sb.WriteString(c.secret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

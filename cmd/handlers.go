package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lfm-globe/globe/service/handshake"
	"github.com/lfm-globe/globe/service/lastfm"
	"github.com/lfm-globe/globe/service/token"
	"github.com/lfm-globe/globe/store"
)

// jsonResponse returns a JSON response
func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `
		<html>
		<head><title>Last.fm Globe</title></head>
		<body>
			<h1>Last.fm Globe</h1>
			<p>See who is listening to what, where.</p>
			<p><a href="https://www.last.fm/api/auth/">Connect your Last.fm account</a> to claim a spot on the globe.</p>
		</body>
		</html>
	`)
}

// handleAuthCallback completes the Last.fm handshake and sends the user
// on to the location picker with their username and claim token.
func (app *application) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing auth code", http.StatusBadRequest)
		return
	}

	res, err := app.handshake.Complete(r.Context(), code)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		var apiErr *lastfm.APIError
		switch {
		case errors.Is(err, handshake.ErrBadCredential):
			http.Error(w, "Bad credential", http.StatusUnauthorized)
		case errors.As(err, &apiErr):
			http.Error(w, "Last.fm rejected the handshake", http.StatusBadGateway)
		default:
			http.Error(w, "Handshake failed", http.StatusInternalServerError)
		}
		return
	}

	dest := fmt.Sprintf("%s?username=%s&token=%s",
		app.locatePath, url.QueryEscape(res.User.Username), url.QueryEscape(res.Token))
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

type claimLocationRequest struct {
	Username  string  `json:"username"`
	Token     string  `json:"token"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// handleClaimLocation redeems a claim token and writes the user's
// position into the geospatial index.
func (app *application) handleClaimLocation(w http.ResponseWriter, r *http.Request) {
	var req claimLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := app.tokens.Redeem(ctx, req.Username, req.Token); err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			http.Error(w, "Invalid location token", http.StatusUnprocessableEntity)
		} else {
			log.Printf("Token redemption failed for %s: %v", req.Username, err)
			http.Error(w, "Token redemption failed", http.StatusInternalServerError)
		}
		return
	}

	fields, err := app.store.HashGetAll(ctx, store.PresenceKey(req.Username))
	if err != nil {
		log.Printf("Presence lookup failed for %s: %v", req.Username, err)
		http.Error(w, "Presence lookup failed", http.StatusInternalServerError)
		return
	}
	if len(fields) == 0 {
		http.Error(w, "No presence record for user", http.StatusUnprocessableEntity)
		return
	}

	if err := app.store.GeoAdd(ctx, store.GeoIndex, req.Username, req.Longitude, req.Latitude); err != nil {
		log.Printf("Geo index write failed for %s: %v", req.Username, err)
		http.Error(w, "Failed to record location", http.StatusUnprocessableEntity)
		return
	}

	fmt.Fprint(w, "Success")
}

// handlePresenceFeed answers map queries: everyone claimed within the
// viewport radius, with their cached listening state.
func (app *application) handlePresenceFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		http.Error(w, "Invalid latitude", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil {
		http.Error(w, "Invalid longitude", http.StatusBadRequest)
		return
	}
	zoom, err := strconv.Atoi(q.Get("zoom"))
	if err != nil {
		http.Error(w, "Invalid zoom", http.StatusBadRequest)
		return
	}

	entries, err := app.geo.Query(r.Context(), lat, lon, zoom)
	if err != nil {
		log.Printf("Presence feed query failed: %v", err)
		http.Error(w, "Feed query failed", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, entries)
}

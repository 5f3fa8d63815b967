package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", app.home)
	mux.HandleFunc("GET /auth_callback", app.handleAuthCallback)
	mux.HandleFunc("POST /claim_location", app.handleClaimLocation)
	mux.HandleFunc("GET /presence_feed", app.handlePresenceFeed)

	standard := alice.New(app.recoverPanic, app.logRequest)
	return standard.Then(mux)
}

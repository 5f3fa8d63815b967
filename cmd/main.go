package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/lfm-globe/globe/config"
	"github.com/lfm-globe/globe/service/geo"
	"github.com/lfm-globe/globe/service/handshake"
	"github.com/lfm-globe/globe/service/lastfm"
	"github.com/lfm-globe/globe/service/poller"
	"github.com/lfm-globe/globe/service/token"
	"github.com/lfm-globe/globe/store"
)

type application struct {
	store      store.Store
	handshake  *handshake.Service
	tokens     *token.Service
	geo        *geo.Engine
	locatePath string
}

func main() {
	config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewRedis(ctx, viper.GetString("redis.addr"), viper.GetInt("redis.db"))
	if err != nil {
		log.Fatalf("Error connecting to store: %v", err)
	}
	defer st.Close()

	lastfmClient := lastfm.NewClient(
		viper.GetString("lastfm.api_url"),
		viper.GetString("lastfm.api_key"),
		viper.GetString("lastfm.api_secret"),
	)

	tokenTTL := time.Duration(viper.GetInt("token.ttl_seconds")) * time.Second
	tokens := token.NewService(st, tokenTTL)

	app := &application{
		store:      st,
		handshake:  handshake.NewService(st, lastfmClient, tokens),
		tokens:     tokens,
		geo:        geo.NewEngine(st),
		locatePath: viper.GetString("server.locate_path"),
	}

	pollDelay := time.Duration(viper.GetInt("poller.delay_ms")) * time.Millisecond
	scheduler := poller.NewScheduler(st, lastfmClient, pollDelay)
	scheduler.Start()

	serverAddr := fmt.Sprintf("%s:%s", viper.GetString("server.host"), viper.GetString("server.port"))
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("Server running at: http://%s\n", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}

	// Both workers finish their in-flight iteration (re-file included)
	// before this returns, so no user is stranded between queues.
	scheduler.Stop()
	log.Println("Shutdown complete")
}

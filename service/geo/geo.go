package geo

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/lfm-globe/globe/models"
	"github.com/lfm-globe/globe/store"
)

// kmPerDegree converts degrees of latitude to kilometers on a
// spherical Earth.
const kmPerDegree = 111.325

// FeedEntry pairs a user's cached presence with their claimed position.
type FeedEntry struct {
	User      models.Presence `json:"user"`
	Longitude float64         `json:"longitude"`
	Latitude  float64         `json:"latitude"`
}

// Engine answers map-viewport queries over the geospatial index.
type Engine struct {
	store store.Store
}

func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// SearchRadiusKm derives the search radius for a map zoom level. The
// viewport spans a fixed 360-degree field at zoom 0 and halves with
// each level; the degree span converts to ground distance at the
// equatorial scale.
func SearchRadiusKm(zoom int) float64 {
	return (360.0 / math.Exp2(float64(zoom))) * kmPerDegree
}

// Query returns every user claimed within the viewport's radius of the
// given center, each enriched with their cached presence record. Hits
// without a presence record still appear, carrying just the username.
// Result order is unspecified.
func (e *Engine) Query(ctx context.Context, centerLat, centerLon float64, zoom int) ([]FeedEntry, error) {
	hits, err := e.store.GeoRadius(ctx, store.GeoIndex, centerLon, centerLat, SearchRadiusKm(zoom))
	if err != nil {
		return nil, fmt.Errorf("geo radius query failed: %w", err)
	}

	// Enrichment lookups are independent, so issue them all at once.
	entries := make([]FeedEntry, len(hits))
	g, ctx := errgroup.WithContext(ctx)
	for i, hit := range hits {
		i, hit := i, hit
		g.Go(func() error {
			fields, err := e.store.HashGetAll(ctx, store.PresenceKey(hit.Username))
			if err != nil {
				return fmt.Errorf("presence lookup for %s failed: %w", hit.Username, err)
			}
			entries[i] = FeedEntry{
				User:      models.PresenceFromHash(hit.Username, fields),
				Longitude: hit.Longitude,
				Latitude:  hit.Latitude,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

package poller

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/lfm-globe/globe/models"
	"github.com/lfm-globe/globe/store"
)

// ActivitySource is the slice of the Last.fm client the scheduler
// needs: the most recent play for a user, nil when there is none.
type ActivitySource interface {
	RecentTrack(ctx context.Context, username string) (*models.Track, error)
}

// Scheduler runs one worker per queue tier. Each worker blocks on its
// queue, refreshes the popped user's presence from the activity API,
// and re-files the user into the tier matching the fresh nowPlaying
// state. Listeners who are mid-song land in the priority queue and get
// polled again sooner.
type Scheduler struct {
	store    store.Store
	activity ActivitySource
	delay    time.Duration

	// popCtx only governs the blocking pop. Once a worker holds a
	// username the rest of the iteration runs on a background context,
	// so shutdown can never strand a user between queues.
	popCtx  context.Context
	popStop context.CancelFunc
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewScheduler(s store.Store, activity ActivitySource, delay time.Duration) *Scheduler {
	popCtx, popStop := context.WithCancel(context.Background())
	return &Scheduler{
		store:    s,
		activity: activity,
		delay:    delay,
		popCtx:   popCtx,
		popStop:  popStop,
		quit:     make(chan struct{}),
	}
}

// Start launches both workers.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.run(store.PriorityQueue)
	go s.run(store.RegularQueue)
}

// Stop signals both workers and blocks until they have exited. A worker
// idling in its blocking pop is interrupted immediately; a worker with
// an iteration in flight finishes it, re-file included, before exiting.
func (s *Scheduler) Stop() {
	close(s.quit)
	s.popStop()
	s.wg.Wait()
}

func (s *Scheduler) run(queue string) {
	defer s.wg.Done()
	log.Printf("Presence poller started on %s", queue)

	for {
		select {
		case <-s.quit:
			log.Printf("Presence poller on %s stopped", queue)
			return
		default:
		}

		username, err := s.store.BlockingPop(s.popCtx, queue)
		if err != nil {
			if s.stopping() || errors.Is(err, context.Canceled) {
				log.Printf("Presence poller on %s stopped", queue)
				return
			}
			log.Printf("Error popping from %s: %v", queue, err)
			// Store fault. Wait out one delay so a dead store doesn't
			// turn this loop into a hot spin.
			if !s.pause() {
				return
			}
			continue
		}

		s.Refresh(context.Background(), username)

		// Fixed inter-poll delay, per worker, so the two tiers drain
		// independently within the external API's rate budget.
		if !s.pause() {
			log.Printf("Presence poller on %s stopped", queue)
			return
		}
	}
}

// Refresh performs one full polling iteration for username: fetch the
// most recent play, overwrite the presence record, and re-file the user
// into exactly one queue. The user is assumed to have just been popped
// and is therefore in neither queue.
func (s *Scheduler) Refresh(ctx context.Context, username string) {
	var nowPlaying bool

	track, err := s.activity.RecentTrack(ctx, username)
	if err != nil {
		// The user must not be dropped from both queues over a flaky
		// API call. Re-file on the last known state and let the next
		// cycle retry; the stale presence record stays as-is.
		log.Printf("Error fetching recent track for %s: %v", username, err)
		nowPlaying = s.lastKnownNowPlaying(ctx, username)
	} else {
		// Full replace: a nil track writes blank metadata.
		if err := s.store.HashSet(ctx, store.PresenceKey(username), models.TrackFields(track)); err != nil {
			log.Printf("Error updating presence for %s: %v", username, err)
		}
		nowPlaying = track != nil && track.NowPlaying
	}

	if err := s.refile(ctx, username, nowPlaying); err != nil {
		log.Printf("Error re-filing %s: %v", username, err)
	}
}

// refile removes username from both queues, then appends it to the
// destination tier. The removals are no-ops when the user is absent,
// which also collapses the brief duplication a concurrent handshake
// can cause.
func (s *Scheduler) refile(ctx context.Context, username string, nowPlaying bool) error {
	for _, queue := range []string{store.PriorityQueue, store.RegularQueue} {
		if err := s.store.Remove(ctx, queue, username); err != nil {
			return err
		}
	}
	return s.store.Append(ctx, DestinationQueue(nowPlaying), username)
}

func (s *Scheduler) lastKnownNowPlaying(ctx context.Context, username string) bool {
	fields, err := s.store.HashGetAll(ctx, store.PresenceKey(username))
	if err != nil {
		log.Printf("Error reading cached presence for %s: %v", username, err)
		return false
	}
	nowPlaying, _ := strconv.ParseBool(fields[models.FieldNowPlaying])
	return nowPlaying
}

// pause waits out the inter-poll delay. It returns false when the
// scheduler is stopping.
func (s *Scheduler) pause() bool {
	select {
	case <-s.quit:
		return false
	case <-time.After(s.delay):
		return true
	}
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// DestinationQueue maps a nowPlaying state to the queue tier that
// should poll the user next.
func DestinationQueue(nowPlaying bool) string {
	if nowPlaying {
		return store.PriorityQueue
	}
	return store.RegularQueue
}

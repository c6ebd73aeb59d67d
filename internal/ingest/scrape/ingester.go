package scrape

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hostwatch/agent/internal/config"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

// pollInterval bounds how quickly a turn_off_scrape flip is noticed;
// it is independent of (and much shorter than) the reporter's own
// scrape_interval_seconds tick.
const pollInterval = time.Second

// Ingester drives the Subscriber's subscribe/unsubscribe state from
// runtime config and feeds every decoded Snapshot into an endpoint
// tracker, binding spec.md §4.5's abstract scraper concretely (§4.7).
// Grounded on the reporter's ticker/done/WaitGroup shutdown shape.
type Ingester struct {
	sub     *Subscriber
	tracker *endpoint.Tracker
	cfg     *config.Manager

	done chan struct{}
	wg   sync.WaitGroup

	mu          sync.Mutex
	lastApplied int
}

// New creates an Ingester over an already-connected Subscriber.
func New(sub *Subscriber, tracker *endpoint.Tracker, cfg *config.Manager) *Ingester {
	return &Ingester{
		sub:     sub,
		tracker: tracker,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// Start begins the background watch loop that keeps the subscription
// in sync with turn_off_scrape.
func (in *Ingester) Start(ctx context.Context) {
	in.wg.Add(1)
	go in.run(ctx)
}

func (in *Ingester) run(ctx context.Context) {
	defer in.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	in.syncSubscription()
	for {
		select {
		case <-ticker.C:
			in.syncSubscription()
		case <-ctx.Done():
			in.sub.Unsubscribe()
			return
		case <-in.done:
			in.sub.Unsubscribe()
			return
		}
	}
}

func (in *Ingester) syncSubscription() {
	turnedOff := in.cfg.Load().TurnOffScrape
	switch {
	case turnedOff && in.sub.Subscribed():
		if err := in.sub.Unsubscribe(); err != nil {
			log.Printf("scrape: unsubscribe failed: %v", err)
		}
	case !turnedOff && !in.sub.Subscribed():
		if err := in.sub.Subscribe(in.handle); err != nil {
			log.Printf("scrape: subscribe failed: %v", err)
		}
	}
}

func (in *Ingester) handle(snap Snapshot) {
	in.tracker.ApplyScrape(snap.ContainerID, snap.ScrapeTimeMicros, snap.seen())

	in.mu.Lock()
	in.lastApplied++
	in.mu.Unlock()
}

// AppliedCount reports how many snapshots have been merged so far.
func (in *Ingester) AppliedCount() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lastApplied
}

// Stop ends the watch loop and unsubscribes.
func (in *Ingester) Stop() {
	close(in.done)
	in.wg.Wait()
}

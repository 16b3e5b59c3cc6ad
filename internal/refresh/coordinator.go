// Package refresh drives periodic and on-demand quote refresh cycles
// against the fund registry.
package refresh

import (
	"errors"
	"log"
	"sync"
	"time"

	"FundBoard/internal/model"
	"FundBoard/internal/quote"
	"FundBoard/internal/registry"
	"FundBoard/internal/store"
)

// ErrNoCodes is returned by ManualRefresh when nothing is registered.
var ErrNoCodes = errors.New("refresh: no registered codes")

// State of the coordinator.
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Coordinator runs refresh batches under a single-flight guard: a
// request arriving while one is active is dropped, not queued.
type Coordinator struct {
	mu      sync.Mutex
	state   State
	dropped int64

	reg     *registry.Registry
	fetcher quote.Fetcher
	history store.History
}

// New creates a Coordinator. history may be a NoopHistory.
func New(reg *registry.Registry, fetcher quote.Fetcher, history store.History) *Coordinator {
	return &Coordinator{reg: reg, fetcher: fetcher, history: history}
}

// State returns Idle or Refreshing.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dropped returns how many requests have been dropped by the
// single-flight guard.
func (c *Coordinator) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// RequestRefresh fetches fresh snapshots for codes sequentially and
// commits them in one merge. A per-code failure stages the latest
// committed snapshot for that code instead and never aborts the rest
// of the batch. Returns false when the request was dropped because a
// batch was already in flight.
func (c *Coordinator) RequestRefresh(codes []string) bool {
	c.mu.Lock()
	if c.state == Refreshing {
		c.dropped++
		c.mu.Unlock()
		log.Printf("[WARN] refresh in flight, dropped request for %d codes", len(codes))
		return false
	}
	c.state = Refreshing
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
	}()

	start := time.Now()
	unique := uniqueCodes(codes)
	staged := make([]model.Snapshot, 0, len(unique))
	failed := 0

	// Sequential on purpose: bounds the load on the quote endpoint.
	for _, code := range unique {
		snap, err := c.fetcher.FetchSnapshot(code)
		if err != nil {
			failed++
			log.Printf("[WARN] refresh %s: %v", code, err)
			// Fall back to the committed snapshot read at failure
			// time, not a batch-start copy, so a concurrent edit
			// isn't clobbered.
			if old, ok := c.reg.Get(code); ok {
				staged = append(staged, old)
			}
			continue
		}
		staged = append(staged, *snap)
	}

	if len(staged) > 0 {
		c.reg.UpsertMany(staged)
	}

	if err := c.history.RecordBatch(&store.BatchRecord{
		Requested:  len(unique),
		Updated:    len(unique) - failed,
		Failed:     failed,
		DurationMs: time.Since(start).Milliseconds(),
	}); err != nil {
		log.Printf("[ERROR] record refresh batch: %v", err)
	}

	log.Printf("[INFO] refresh batch done: %d requested, %d failed, %s",
		len(unique), failed, time.Since(start).Round(time.Millisecond))
	return true
}

// ManualRefresh runs a full-registry batch. It is rejected up front
// when no codes are registered; when a batch is already in flight the
// request is dropped and started is false.
func (c *Coordinator) ManualRefresh() (started bool, err error) {
	codes := c.reg.Codes()
	if len(codes) == 0 {
		return false, ErrNoCodes
	}
	return c.RequestRefresh(codes), nil
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

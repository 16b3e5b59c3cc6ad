package refresh

import (
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/robfig/cron/v3"

	"FundBoard/internal/registry"
	"FundBoard/internal/store"
)

const (
	// DefaultIntervalMs is used when nothing valid is persisted.
	DefaultIntervalMs = 30000
	// MinIntervalMs is the floor enforced on the import path and when
	// loading a persisted value.
	MinIntervalMs = 5000
)

// Scheduler owns the periodic refresh timer. The cron entry is
// rebuilt whenever the registered code set or the interval changes.
type Scheduler struct {
	mu         sync.Mutex
	cron       *cron.Cron
	entryID    cron.EntryID
	hasEntry   bool
	intervalMs int

	coord *Coordinator
	reg   *registry.Registry
	st    store.Store
}

// NewScheduler loads the persisted interval (falling back to
// defaultMs when absent or below the floor) and prepares the cron.
func NewScheduler(coord *Coordinator, reg *registry.Registry, st store.Store, defaultMs int) *Scheduler {
	if defaultMs <= 0 {
		defaultMs = DefaultIntervalMs
	}
	s := &Scheduler{
		cron:       cron.New(),
		intervalMs: defaultMs,
		coord:      coord,
		reg:        reg,
		st:         st,
	}
	if raw, ok, err := st.Get(store.KeyRefreshMs); err != nil {
		log.Printf("[WARN] load refresh interval: %v", err)
	} else if ok {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= MinIntervalMs {
			s.intervalMs = ms
		}
	}
	return s
}

// Start builds the timer entry and starts the cron.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.rebuildLocked()
	s.mu.Unlock()
	s.cron.Start()
	log.Printf("[INFO] refresh scheduler started (interval %dms)", s.Interval())
}

// Stop stops the cron gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[INFO] refresh scheduler stopped")
}

// Interval returns the current interval in milliseconds.
func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervalMs
}

// SetInterval persists ms and rebuilds the timer. The import path
// enforces the 5000ms floor before calling this; the direct settings
// path deliberately does not (the asymmetry is observed behavior,
// kept pending product clarification).
func (s *Scheduler) SetInterval(ms int) {
	s.mu.Lock()
	s.intervalMs = ms
	if err := s.st.Set(store.KeyRefreshMs, strconv.Itoa(ms)); err != nil {
		log.Printf("[ERROR] persist refresh interval: %v", err)
	}
	s.rebuildLocked()
	s.mu.Unlock()
}

// CodeSetChanged rebuilds the timer entry after funds were added or
// removed, so an empty registry stops polling and a first fund starts
// it.
func (s *Scheduler) CodeSetChanged() {
	s.mu.Lock()
	s.rebuildLocked()
	s.mu.Unlock()
}

func (s *Scheduler) rebuildLocked() {
	if s.hasEntry {
		s.cron.Remove(s.entryID)
		s.hasEntry = false
	}
	if s.reg.Len() == 0 {
		return
	}
	spec := fmt.Sprintf("@every %dms", s.intervalMs)
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		log.Printf("[ERROR] schedule refresh: %v", err)
		return
	}
	s.entryID = id
	s.hasEntry = true
}

func (s *Scheduler) tick() {
	codes := s.reg.Codes()
	if len(codes) == 0 {
		return
	}
	s.coord.RequestRefresh(codes)
}

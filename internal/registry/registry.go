// Package registry owns the deduplicated, code-keyed collection of fund
// snapshots and its canonical display order.
package registry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"FundBoard/internal/model"
	"FundBoard/internal/store"
)

// Dedupe returns list with duplicate codes removed, keeping the first
// occurrence. Entries with an empty code are dropped. Idempotent:
// Dedupe(Dedupe(l)) == Dedupe(l).
func Dedupe(list []model.Snapshot) []model.Snapshot {
	seen := make(map[string]bool, len(list))
	out := make([]model.Snapshot, 0, len(list))
	for _, f := range list {
		if f.Code == "" || seen[f.Code] {
			continue
		}
		seen[f.Code] = true
		out = append(out, f)
	}
	return out
}

// Registry holds at most one snapshot per fund code, in append order.
type Registry struct {
	mu    sync.Mutex
	funds []model.Snapshot
	st    store.Store

	// OnCodesAdded, when set, is invoked (outside the lock) with the
	// codes newly joining the registry. OnCodesRemoved likewise for
	// deletions. Wired to the collapse reconciler and the scheduler.
	OnCodesAdded   func(codes []string)
	OnCodesRemoved func(codes []string)
}

// New loads the persisted fund list, dedupes it, and persists the
// deduped form back.
func New(st store.Store) (*Registry, error) {
	r := &Registry{st: st}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.persistLocked()
	r.mu.Unlock()
	return r, nil
}

// Reload re-reads the fund list from the persistence store.
func (r *Registry) Reload() error {
	raw, ok, err := r.st.Get(store.KeyFunds)
	if err != nil {
		return fmt.Errorf("load funds: %w", err)
	}
	var funds []model.Snapshot
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &funds); err != nil {
			return fmt.Errorf("decode funds: %w", err)
		}
	}
	r.mu.Lock()
	r.funds = Dedupe(funds)
	r.mu.Unlock()
	return nil
}

// Snapshots returns a copy of the registry in canonical order.
func (r *Registry) Snapshots() []model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Snapshot, len(r.funds))
	copy(out, r.funds)
	return out
}

// Get returns the committed snapshot for code, if present.
func (r *Registry) Get(code string) (model.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.funds {
		if f.Code == code {
			return f, true
		}
	}
	return model.Snapshot{}, false
}

// Codes returns the registered codes in canonical order.
func (r *Registry) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.funds))
	for _, f := range r.funds {
		codes = append(codes, f.Code)
	}
	return codes
}

// Len returns the number of registered funds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.funds)
}

// UpsertMany merges snapshots by code: an existing entry is replaced
// whole, an absent code is appended. Returns codes that were newly
// appended. Used by the refresh coordinator, so a fresh fetch result
// always wins over older registry data for the same code.
func (r *Registry) UpsertMany(snaps []model.Snapshot) []string {
	r.mu.Lock()
	var added []string
	for _, s := range snaps {
		if s.Code == "" {
			continue
		}
		idx := -1
		for i, f := range r.funds {
			if f.Code == s.Code {
				idx = i
				break
			}
		}
		if idx >= 0 {
			r.funds[idx] = s
		} else {
			r.funds = append(r.funds, s)
			added = append(added, s.Code)
		}
	}
	r.funds = Dedupe(r.funds)
	r.persistLocked()
	r.mu.Unlock()

	r.notifyAdded(added)
	return added
}

// Append adds only snapshots whose code is absent from the registry;
// existing entries are never overwritten. Returns the appended codes.
// Used by search-add and import.
func (r *Registry) Append(snaps []model.Snapshot) []string {
	r.mu.Lock()
	present := make(map[string]bool, len(r.funds))
	for _, f := range r.funds {
		present[f.Code] = true
	}
	var added []string
	for _, s := range Dedupe(snaps) {
		if present[s.Code] {
			continue
		}
		present[s.Code] = true
		r.funds = append(r.funds, s)
		added = append(added, s.Code)
	}
	if len(added) > 0 {
		r.persistLocked()
	}
	r.mu.Unlock()

	r.notifyAdded(added)
	return added
}

// Remove deletes the snapshot for code. Positions, favorites, groups
// and collapse flags are left alone: stale references are tolerated,
// cleanup belongs to whoever asked for the deletion.
func (r *Registry) Remove(code string) bool {
	r.mu.Lock()
	idx := -1
	for i, f := range r.funds {
		if f.Code == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.funds = append(r.funds[:idx], r.funds[idx+1:]...)
	r.persistLocked()
	r.mu.Unlock()

	if r.OnCodesRemoved != nil {
		r.OnCodesRemoved([]string{code})
	}
	return true
}

func (r *Registry) notifyAdded(codes []string) {
	if len(codes) > 0 && r.OnCodesAdded != nil {
		r.OnCodesAdded(codes)
	}
}

func (r *Registry) persistLocked() {
	data, err := json.Marshal(r.funds)
	if err != nil {
		log.Printf("[ERROR] encode funds: %v", err)
		return
	}
	if err := r.st.Set(store.KeyFunds, string(data)); err != nil {
		log.Printf("[ERROR] persist funds: %v", err)
	}
}

// Package position owns per-code holding records.
package position

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"FundBoard/internal/model"
	"FundBoard/internal/store"
)

// Ledger keeps at most one position per fund code. A missing entry
// means "no holding".
type Ledger struct {
	mu        sync.Mutex
	positions map[string]model.Position
	st        store.Store
}

// New loads the persisted position map.
func New(st store.Store) (*Ledger, error) {
	l := &Ledger{st: st}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the position map from the persistence store.
func (l *Ledger) Reload() error {
	raw, ok, err := l.st.Get(store.KeyPositions)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	positions := make(map[string]model.Position)
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &positions); err != nil {
			return fmt.Errorf("decode positions: %w", err)
		}
	}
	l.mu.Lock()
	l.positions = positions
	l.mu.Unlock()
	return nil
}

// Get returns the position for code, if one exists.
func (l *Ledger) Get(code string) (model.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[code]
	return p, ok
}

// All returns a copy of the full position map.
func (l *Ledger) All() map[string]model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]model.Position, len(l.positions))
	for k, v := range l.positions {
		out[k] = v
	}
	return out
}

// Set stores the position for code, replacing any existing record.
func (l *Ledger) Set(code string, p model.Position) error {
	if code == "" {
		return fmt.Errorf("position: empty code")
	}
	if p.Shares < 0 || p.CostPrice < 0 || p.LastTradeNav < 0 {
		return fmt.Errorf("position %s: negative field", code)
	}
	l.mu.Lock()
	l.positions[code] = p
	l.persistLocked()
	l.mu.Unlock()
	return nil
}

// Clear removes the position for code.
func (l *Ledger) Clear(code string) {
	l.mu.Lock()
	delete(l.positions, code)
	l.persistLocked()
	l.mu.Unlock()
}

// MergeFrom overwrites existing records whole, per incoming code. Codes
// absent from incoming are untouched.
func (l *Ledger) MergeFrom(incoming map[string]model.Position) {
	if len(incoming) == 0 {
		return
	}
	l.mu.Lock()
	for code, p := range incoming {
		if code == "" {
			continue
		}
		l.positions[code] = p
	}
	l.persistLocked()
	l.mu.Unlock()
}

func (l *Ledger) persistLocked() {
	data, err := json.Marshal(l.positions)
	if err != nil {
		log.Printf("[ERROR] encode positions: %v", err)
		return
	}
	if err := l.st.Set(store.KeyPositions, string(data)); err != nil {
		log.Printf("[ERROR] persist positions: %v", err)
	}
}

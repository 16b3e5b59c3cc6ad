package refresh

import (
	"testing"

	"FundBoard/internal/model"
	"FundBoard/internal/quote"
	"FundBoard/internal/store"
)

func TestNewScheduler_LoadsPersistedInterval(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   int
	}{
		{"valid", "8000", 8000},
		{"below floor falls back", "3000", DefaultIntervalMs},
		{"garbage falls back", "soon", DefaultIntervalMs},
		{"absent falls back", "", DefaultIntervalMs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			if tt.stored != "" {
				st.Set(store.KeyRefreshMs, tt.stored)
			}
			reg := newTestRegistry(t)
			s := NewScheduler(New(reg, &quote.MockFetcher{}, store.NewNoopHistory()), reg, st, 0)
			if s.Interval() != tt.want {
				t.Errorf("expected interval %d, got %d", tt.want, s.Interval())
			}
		})
	}
}

func TestScheduler_RebuildsEntryOnCodeSetAndIntervalChange(t *testing.T) {
	st := store.NewMemoryStore()
	reg := newTestRegistry(t)
	s := NewScheduler(New(reg, &quote.MockFetcher{}, store.NewNoopHistory()), reg, st, 0)

	s.Start()
	defer s.Stop()
	if s.hasEntry {
		t.Fatal("empty registry must not schedule a timer entry")
	}

	reg.Append([]model.Snapshot{{Code: "000001"}})
	s.CodeSetChanged()
	if !s.hasEntry {
		t.Fatal("expected a timer entry once a code is registered")
	}
	first := s.entryID

	s.SetInterval(8000)
	if !s.hasEntry {
		t.Fatal("interval change must keep the timer scheduled")
	}
	if s.entryID == first {
		t.Errorf("interval change should replace the entry, id still %d", first)
	}

	reg.Remove("000001")
	s.CodeSetChanged()
	if s.hasEntry {
		t.Error("removing the last code should drop the timer entry")
	}
}

func TestSetInterval_PersistsWithoutFloor(t *testing.T) {
	st := store.NewMemoryStore()
	reg := newTestRegistry(t)
	s := NewScheduler(New(reg, &quote.MockFetcher{}, store.NewNoopHistory()), reg, st, 0)

	// The direct settings path has no 5000ms floor.
	s.SetInterval(2000)
	if s.Interval() != 2000 {
		t.Errorf("expected interval 2000, got %d", s.Interval())
	}
	raw, ok, _ := st.Get(store.KeyRefreshMs)
	if !ok || raw != "2000" {
		t.Errorf("expected persisted interval 2000, got %q (present=%v)", raw, ok)
	}
}

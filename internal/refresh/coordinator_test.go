package refresh

import (
	"errors"
	"reflect"
	"runtime"
	"sync"
	"testing"

	"FundBoard/internal/model"
	"FundBoard/internal/quote"
	"FundBoard/internal/registry"
	"FundBoard/internal/store"
)

func newTestRegistry(t *testing.T, snaps ...model.Snapshot) *registry.Registry {
	t.Helper()
	r, err := registry.New(store.NewMemoryStore())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if len(snaps) > 0 {
		r.Append(snaps)
	}
	return r
}

func TestRequestRefresh_PartialFailureKeepsOldSnapshot(t *testing.T) {
	oldB := model.Snapshot{Code: "B", Name: "Fund B", EstimatedNav: "2.00"}
	reg := newTestRegistry(t,
		model.Snapshot{Code: "A", Name: "Fund A", EstimatedNav: "1.00"},
		oldB,
	)
	fetcher := &quote.MockFetcher{
		Snapshots: map[string]*model.Snapshot{
			"A": {Code: "A", Name: "Fund A", EstimatedNav: "1.50"},
		},
		Errors: map[string]error{"B": errors.New("timeout")},
	}
	c := New(reg, fetcher, store.NewNoopHistory())

	if !c.RequestRefresh([]string{"A", "B"}) {
		t.Fatal("expected batch to run")
	}

	a, _ := reg.Get("A")
	if a.EstimatedNav != "1.50" {
		t.Errorf("A should have the fresh snapshot, got %s", a.EstimatedNav)
	}
	b, _ := reg.Get("B")
	if !reflect.DeepEqual(b, oldB) {
		t.Errorf("B should keep the pre-batch snapshot, got %+v", b)
	}
	if c.State() != Idle {
		t.Errorf("coordinator should end Idle, got %s", c.State())
	}
}

func TestRequestRefresh_DedupesCodes(t *testing.T) {
	reg := newTestRegistry(t, model.Snapshot{Code: "A"})
	fetcher := &quote.MockFetcher{}
	c := New(reg, fetcher, store.NewNoopHistory())

	c.RequestRefresh([]string{"A", "A", "", "A"})
	if !reflect.DeepEqual(fetcher.Calls, []string{"A"}) {
		t.Errorf("expected one fetch for A, got %v", fetcher.Calls)
	}
}

func TestRequestRefresh_DropsWhileRefreshing(t *testing.T) {
	reg := newTestRegistry(t, model.Snapshot{Code: "A"})
	block := make(chan struct{})
	fetcher := &quote.MockFetcher{Block: block}
	c := New(reg, fetcher, store.NewNoopHistory())

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		close(started)
		c.RequestRefresh([]string{"A"})
	}()
	<-started
	// Wait until the first batch has entered Refreshing.
	for c.State() != Refreshing {
		runtime.Gosched()
	}

	if c.RequestRefresh([]string{"A"}) {
		t.Error("second request should be dropped, not queued")
	}
	if c.Dropped() != 1 {
		t.Errorf("expected dropped counter 1, got %d", c.Dropped())
	}

	close(block)
	wg.Wait()

	if got := len(fetcher.Calls); got != 1 {
		t.Errorf("expected a single fetch batch, got %d calls", got)
	}
	if c.State() != Idle {
		t.Errorf("coordinator should end Idle, got %s", c.State())
	}
}

func TestManualRefresh_RejectsEmptyRegistry(t *testing.T) {
	reg := newTestRegistry(t)
	c := New(reg, &quote.MockFetcher{}, store.NewNoopHistory())

	if _, err := c.ManualRefresh(); !errors.Is(err, ErrNoCodes) {
		t.Errorf("expected ErrNoCodes, got %v", err)
	}
}

func TestManualRefresh_RunsFullRegistry(t *testing.T) {
	reg := newTestRegistry(t, model.Snapshot{Code: "A"}, model.Snapshot{Code: "B"})
	fetcher := &quote.MockFetcher{}
	c := New(reg, fetcher, store.NewNoopHistory())

	started, err := c.ManualRefresh()
	if err != nil || !started {
		t.Fatalf("expected manual refresh to start, got started=%v err=%v", started, err)
	}
	if !reflect.DeepEqual(fetcher.Calls, []string{"A", "B"}) {
		t.Errorf("expected fetches for A and B, got %v", fetcher.Calls)
	}
}

func TestRequestRefresh_FailedUnknownCodeIsSkipped(t *testing.T) {
	reg := newTestRegistry(t)
	fetcher := &quote.MockFetcher{Errors: map[string]error{"X": errors.New("boom")}}
	c := New(reg, fetcher, store.NewNoopHistory())

	c.RequestRefresh([]string{"X"})
	if reg.Len() != 0 {
		t.Errorf("failed fetch of an unregistered code must not add anything, got %d", reg.Len())
	}
}

package position

import (
	"reflect"
	"testing"

	"FundBoard/internal/model"
	"FundBoard/internal/store"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(store.NewMemoryStore())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l
}

func TestSetGetClear(t *testing.T) {
	l := newTestLedger(t)
	p := model.Position{Shares: 100, CostPrice: 1.25, LastTradeNav: 1.30, LastTradeDate: "2026-08-01"}
	if err := l.Set("000001", p); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok := l.Get("000001")
	if !ok || !reflect.DeepEqual(got, p) {
		t.Errorf("expected %+v, got %+v (ok=%v)", p, got, ok)
	}

	l.Clear("000001")
	if _, ok := l.Get("000001"); ok {
		t.Error("expected position cleared; absence means no holding")
	}
}

func TestSet_RejectsNegativeFields(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Set("000001", model.Position{Shares: -1}); err == nil {
		t.Error("expected error for negative shares")
	}
	if err := l.Set("", model.Position{}); err == nil {
		t.Error("expected error for empty code")
	}
}

func TestMergeFrom_WholeRecordReplace(t *testing.T) {
	l := newTestLedger(t)
	l.Set("000001", model.Position{Shares: 100, CostPrice: 1.25, LastTradeNav: 1.30, LastTradeDate: "2026-08-01"})
	l.Set("000002", model.Position{Shares: 50, CostPrice: 2.00})

	l.MergeFrom(map[string]model.Position{
		// Overwrites the full record, not individual fields: the
		// missing cost price really does become zero.
		"000001": {Shares: 20},
		"000003": {Shares: 5, CostPrice: 3.10},
	})

	got, _ := l.Get("000001")
	if got.Shares != 20 || got.CostPrice != 0 || got.LastTradeDate != "" {
		t.Errorf("expected whole-record replace, got %+v", got)
	}
	untouched, _ := l.Get("000002")
	if untouched.Shares != 50 {
		t.Errorf("codes absent from incoming must stay untouched, got %+v", untouched)
	}
	if _, ok := l.Get("000003"); !ok {
		t.Error("expected new position appended")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	l, err := New(st)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	l.Set("000001", model.Position{Shares: 10, CostPrice: 1.5})

	reloaded, err := New(st)
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	got, ok := reloaded.Get("000001")
	if !ok || got.Shares != 10 {
		t.Errorf("position lost across reload: %+v (ok=%v)", got, ok)
	}
}

package registry

import (
	"reflect"
	"testing"

	"FundBoard/internal/model"
	"FundBoard/internal/store"
)

func snap(code, nav string) model.Snapshot {
	return model.Snapshot{Code: code, Name: "Fund " + code, EstimatedNav: nav}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(store.NewMemoryStore())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	list := []model.Snapshot{
		snap("000001", "1.23"),
		snap("000002", "2.00"),
		snap("000001", "9.99"),
		{Code: ""},
		snap("000002", "8.88"),
	}
	got := Dedupe(list)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].EstimatedNav != "1.23" {
		t.Errorf("first occurrence should survive, got nav %s", got[0].EstimatedNav)
	}
	if got[1].EstimatedNav != "2.00" {
		t.Errorf("first occurrence should survive, got nav %s", got[1].EstimatedNav)
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	list := []model.Snapshot{
		snap("000001", "1.23"),
		snap("000001", "9.99"),
		snap("000003", "3.00"),
	}
	once := Dedupe(list)
	twice := Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedupe not idempotent: %v vs %v", once, twice)
	}
}

func TestUpsertMany_ReplacesAndAppends(t *testing.T) {
	r := newTestRegistry(t)
	r.Append([]model.Snapshot{snap("000001", "1.00"), snap("000002", "2.00")})

	added := r.UpsertMany([]model.Snapshot{snap("000001", "1.50"), snap("000003", "3.00")})
	if !reflect.DeepEqual(added, []string{"000003"}) {
		t.Errorf("expected added [000003], got %v", added)
	}

	codes := r.Codes()
	if !reflect.DeepEqual(codes, []string{"000001", "000002", "000003"}) {
		t.Errorf("append order broken: %v", codes)
	}
	got, _ := r.Get("000001")
	if got.EstimatedNav != "1.50" {
		t.Errorf("upsert should replace the whole snapshot, got nav %s", got.EstimatedNav)
	}
}

func TestAppend_NeverOverwrites(t *testing.T) {
	r := newTestRegistry(t)
	r.Append([]model.Snapshot{snap("000001", "1.23")})

	added := r.Append([]model.Snapshot{snap("000001", "9.99"), snap("000002", "2.00")})
	if !reflect.DeepEqual(added, []string{"000002"}) {
		t.Errorf("expected added [000002], got %v", added)
	}
	got, _ := r.Get("000001")
	if got.EstimatedNav != "1.23" {
		t.Errorf("existing snapshot must not be overwritten, got nav %s", got.EstimatedNav)
	}
}

func TestRemove_NoCascade(t *testing.T) {
	r := newTestRegistry(t)
	r.Append([]model.Snapshot{snap("000001", "1.00"), snap("000002", "2.00")})

	if !r.Remove("000001") {
		t.Fatal("expected remove to succeed")
	}
	if r.Remove("000001") {
		t.Error("second remove should report missing")
	}
	if !reflect.DeepEqual(r.Codes(), []string{"000002"}) {
		t.Errorf("unexpected codes after remove: %v", r.Codes())
	}
}

func TestNew_LoadsAndDedupesPersistedState(t *testing.T) {
	st := store.NewMemoryStore()
	st.Set(store.KeyFunds, `[{"code":"000001","dwjz":"1.10"},{"code":"000001","dwjz":"9.99"},{"code":"000002","dwjz":"2.20"}]`)

	r, err := New(st)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 funds after load dedupe, got %d", r.Len())
	}
	got, _ := r.Get("000001")
	if got.PreviousNav != "1.10" {
		t.Errorf("first persisted occurrence should win, got %s", got.PreviousNav)
	}
}

func TestOnCodesAdded_FiresForNewCodesOnly(t *testing.T) {
	r := newTestRegistry(t)
	var notified []string
	r.OnCodesAdded = func(codes []string) { notified = append(notified, codes...) }

	r.Append([]model.Snapshot{snap("000001", "1.00")})
	r.Append([]model.Snapshot{snap("000001", "9.99")})
	r.UpsertMany([]model.Snapshot{snap("000001", "1.01"), snap("000002", "2.00")})

	if !reflect.DeepEqual(notified, []string{"000001", "000002"}) {
		t.Errorf("unexpected notifications: %v", notified)
	}
}

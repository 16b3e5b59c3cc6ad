package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FundBoard/internal/layout"
	"FundBoard/internal/model"
	"FundBoard/internal/position"
	"FundBoard/internal/quote"
	"FundBoard/internal/refresh"
	"FundBoard/internal/registry"
	"FundBoard/internal/store"
	"FundBoard/internal/transfer"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	st := store.NewMemoryStore()
	reg, err := registry.New(st)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	ledger, err := position.New(st)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	lay, err := layout.New(st)
	if err != nil {
		t.Fatalf("new layout: %v", err)
	}
	fetcher := &quote.MockFetcher{}
	coord := refresh.New(reg, fetcher, store.NewNoopHistory())
	sched := refresh.NewScheduler(coord, reg, st, 0)
	engine := transfer.NewEngine(st, reg, ledger, lay, sched, coord)
	srv := New(":0", Deps{
		Registry:  reg,
		Ledger:    ledger,
		Layout:    lay,
		Coord:     coord,
		Scheduler: sched,
		Engine:    engine,
		Searcher:  &quote.MockSearcher{},
		Delivery:  &transfer.DirDelivery{Dir: t.TempDir()},
	})
	return srv, reg
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleState(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.Append([]model.Snapshot{{Code: "000001", Name: "Fund A"}})

	rec := do(t, srv, "GET", "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var state map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	for _, key := range []string{"funds", "positions", "favorites", "groups",
		"collapsedCodes", "currentTab", "viewMode", "refreshMs", "refreshing",
		"droppedRefreshes", "importMsg"} {
		if _, ok := state[key]; !ok {
			t.Errorf("state missing %q", key)
		}
	}
	if string(state["currentTab"]) != `"all"` {
		t.Errorf("expected default tab all, got %s", state["currentTab"])
	}
}

func TestHandleAddFunds(t *testing.T) {
	srv, reg := newTestServer(t)

	rec := do(t, srv, "POST", "/api/funds", `{"funds":[{"code":"000001","name":"Fund A"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if _, ok := reg.Get("000001"); !ok {
		t.Error("fund should be in the registry")
	}

	rec = do(t, srv, "POST", "/api/funds", `{"funds":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty fund list should 400, got %d", rec.Code)
	}
}

func TestHandleDeleteFund(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.Append([]model.Snapshot{{Code: "000001"}})

	if rec := do(t, srv, "DELETE", "/api/funds/000001", ""); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if reg.Len() != 0 {
		t.Error("fund should be removed")
	}
	if rec := do(t, srv, "DELETE", "/api/funds/000001", ""); rec.Code != http.StatusNotFound {
		t.Errorf("deleting a missing fund should 404, got %d", rec.Code)
	}
}

func TestHandleManualRefresh_EmptyRegistry(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv, "POST", "/api/refresh", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("refresh with no funds should 400, got %d", rec.Code)
	}
}

func TestHandleSetRefreshInterval(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, "PUT", "/api/settings/refresh", `{"refreshMs":2000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	// The direct settings path accepts any positive interval.
	if !strings.Contains(rec.Body.String(), "2000") {
		t.Errorf("expected interval 2000, got %s", rec.Body.String())
	}

	rec = do(t, srv, "PUT", "/api/settings/refresh", `{"refreshMs":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-positive interval should 400, got %d", rec.Code)
	}
}

func TestHandleSetViewMode(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := do(t, srv, "PUT", "/api/viewmode", `{"mode":"list"}`); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if rec := do(t, srv, "PUT", "/api/viewmode", `{"mode":"grid"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode should 400, got %d", rec.Code)
	}
}

func TestHandleImport_BadPayloadSetsTransientMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, "POST", "/api/import", `{"funds":[`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := srv.currentImportMsg(); got != "import failed: invalid file format" {
		t.Errorf("unexpected import message %q", got)
	}
}

func TestHandleExport_Download(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.Append([]model.Snapshot{{Code: "000001", Name: "Fund A"}})

	rec := do(t, srv, "GET", "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="fund-config-`) {
		t.Errorf("unexpected content disposition %q", cd)
	}

	var payload transfer.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Funds) != 1 || payload.Funds[0].Code != "000001" {
		t.Errorf("unexpected funds in export: %+v", payload.Funds)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, "GET", "/api/search?key=", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty keyword should return [], got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePositions(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, "PUT", "/api/positions/000001", `{"shares":100,"costPrice":1.25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, "PUT", "/api/positions/000001", `{"shares":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative shares should 400, got %d", rec.Code)
	}
	if rec := do(t, srv, "DELETE", "/api/positions/000001", ""); rec.Code != http.StatusOK {
		t.Errorf("clear position status %d", rec.Code)
	}
}

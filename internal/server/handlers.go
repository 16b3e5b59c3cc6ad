package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"FundBoard/internal/model"
	"FundBoard/internal/refresh"
	"FundBoard/internal/transfer"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readAll(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return data, nil
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// handleState returns everything a rendering layer needs in one call.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"funds":            s.deps.Registry.Snapshots(),
		"positions":        s.deps.Ledger.All(),
		"favorites":        s.deps.Layout.Favorites(),
		"groups":           s.deps.Layout.Groups(),
		"collapsedCodes":   s.deps.Layout.CollapsedCodes(),
		"currentTab":       s.deps.Layout.CurrentTab(),
		"viewMode":         s.deps.Layout.ViewMode(),
		"refreshMs":        s.deps.Scheduler.Interval(),
		"refreshing":       s.deps.Coord.State() == refresh.Refreshing,
		"droppedRefreshes": s.deps.Coord.Dropped(),
		"importMsg":        s.currentImportMsg(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("key"))
	if keyword == "" {
		writeJSON(w, http.StatusOK, []model.SearchResult{})
		return
	}
	results, err := s.deps.Searcher.Search(keyword)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// handleAddFunds appends codes picked from search results, then
// refreshes only the codes that were actually new.
func (s *Server) handleAddFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Funds []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"funds"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Funds) == 0 {
		writeError(w, http.StatusBadRequest, "no funds given")
		return
	}

	snaps := make([]model.Snapshot, 0, len(req.Funds))
	for _, f := range req.Funds {
		if f.Code == "" {
			continue
		}
		snaps = append(snaps, model.Snapshot{Code: f.Code, Name: f.Name})
	}
	added := s.deps.Registry.Append(snaps)
	started := false
	if len(added) > 0 {
		started = s.deps.Coord.RequestRefresh(added)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added":          added,
		"refreshStarted": started,
	})
}

func (s *Server) handleDeleteFund(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !s.deps.Registry.Remove(code) {
		writeError(w, http.StatusNotFound, "unknown fund "+code)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": code})
}

func (s *Server) handleManualRefresh(w http.ResponseWriter, r *http.Request) {
	started, err := s.deps.Coord.ManualRefresh()
	if err != nil {
		if errors.Is(err, refresh.ErrNoCodes) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"started": started})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	s.deps.Layout.ToggleFavorite(chi.URLParam(r, "code"))
	writeJSON(w, http.StatusOK, map[string]any{
		"favorites":  s.deps.Layout.Favorites(),
		"currentTab": s.deps.Layout.CurrentTab(),
	})
}

func (s *Server) handleToggleCollapse(w http.ResponseWriter, r *http.Request) {
	s.deps.Layout.ToggleCollapse(chi.URLParam(r, "code"))
	writeJSON(w, http.StatusOK, map[string]any{
		"collapsedCodes": s.deps.Layout.CollapsedCodes(),
	})
}

func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "group name is required")
		return
	}
	g := s.deps.Layout.AddGroup(req.Name)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroups(w http.ResponseWriter, r *http.Request) {
	var groups []model.Group
	if err := decodeBody(r, &groups); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.deps.Layout.UpdateGroups(groups)
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":     s.deps.Layout.Groups(),
		"currentTab": s.deps.Layout.CurrentTab(),
	})
}

func (s *Server) handleRemoveGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Layout.RemoveGroup(id) {
		writeError(w, http.StatusNotFound, "unknown group "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currentTab": s.deps.Layout.CurrentTab(),
	})
}

func (s *Server) handleToggleFundInGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.deps.Layout.ToggleFundInGroup(req.Code, chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]any{"groups": s.deps.Layout.Groups()})
}

func (s *Server) handleAddFundsToCurrentGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	added := s.deps.Layout.AddFundsToCurrentGroup(req.Codes)
	writeJSON(w, http.StatusOK, map[string]any{"added": added})
}

func (s *Server) handleRemoveFundFromCurrentGroup(w http.ResponseWriter, r *http.Request) {
	s.deps.Layout.RemoveFundFromCurrentGroup(chi.URLParam(r, "code"))
	writeJSON(w, http.StatusOK, map[string]any{"groups": s.deps.Layout.Groups()})
}

func (s *Server) handleSetTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab string `json:"tab"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.deps.Layout.SetCurrentTab(req.Tab)
	writeJSON(w, http.StatusOK, map[string]any{"currentTab": s.deps.Layout.CurrentTab()})
}

func (s *Server) handleSetViewMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Layout.SetViewMode(model.ViewMode(req.Mode)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewMode": s.deps.Layout.ViewMode()})
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var pos model.Position
	if err := decodeBody(r, &pos); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := chi.URLParam(r, "code")
	if err := s.deps.Ledger.Set(code, pos); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": code, "position": pos})
}

func (s *Server) handleClearPosition(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	s.deps.Ledger.Clear(code)
	writeJSON(w, http.StatusOK, map[string]string{"cleared": code})
}

// handleSetRefreshInterval is the direct settings path. It has no
// interval floor; only the import path enforces one.
func (s *Server) handleSetRefreshInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshMs int `json:"refreshMs"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshMs <= 0 {
		writeError(w, http.StatusBadRequest, "refreshMs must be positive")
		return
	}
	s.deps.Scheduler.SetInterval(req.RefreshMs)
	writeJSON(w, http.StatusOK, map[string]any{"refreshMs": s.deps.Scheduler.Interval()})
}

// handleExport serves the transfer payload as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	payload, err := s.deps.Engine.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filename := fmt.Sprintf("fund-config-%d.json", time.Now().UnixMilli())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeJSON(w, http.StatusOK, payload)
}

// handleExportToFile writes the payload through the configured
// delivery and reports the filename once the delivery confirms.
func (s *Server) handleExportToFile(w http.ResponseWriter, r *http.Request) {
	filename, err := s.deps.Engine.ExportTo(s.deps.Delivery)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": filename})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := readAll(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.deps.Engine.Import(data)
	if err != nil {
		if errors.Is(err, transfer.ErrBadPayload) {
			s.setImportMsg("import failed: invalid file format")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Package server exposes the core state and mutators over HTTP for
// any rendering layer.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"FundBoard/internal/layout"
	"FundBoard/internal/position"
	"FundBoard/internal/quote"
	"FundBoard/internal/refresh"
	"FundBoard/internal/registry"
	"FundBoard/internal/transfer"
)

// importMsgTTL is how long a failed-import message stays visible.
const importMsgTTL = 4 * time.Second

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Registry  *registry.Registry
	Ledger    *position.Ledger
	Layout    *layout.Manager
	Coord     *refresh.Coordinator
	Scheduler *refresh.Scheduler
	Engine    *transfer.Engine
	Searcher  quote.Searcher
	Delivery  transfer.Delivery
}

// Server is the HTTP server for the presentation contract.
type Server struct {
	router *chi.Mux
	http   *http.Server
	deps   Deps

	msgMu     sync.Mutex
	importMsg string
}

// New builds the router and handlers.
func New(addr string, deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	s.routes()
	s.http = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func (s *Server) routes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/search", s.handleSearch)

		r.Post("/funds", s.handleAddFunds)
		r.Delete("/funds/{code}", s.handleDeleteFund)
		r.Post("/refresh", s.handleManualRefresh)

		r.Post("/favorites/{code}/toggle", s.handleToggleFavorite)
		r.Post("/collapse/{code}/toggle", s.handleToggleCollapse)

		r.Post("/groups", s.handleAddGroup)
		r.Put("/groups", s.handleUpdateGroups)
		r.Delete("/groups/{id}", s.handleRemoveGroup)
		r.Post("/groups/{id}/toggle", s.handleToggleFundInGroup)
		r.Post("/groups/current/funds", s.handleAddFundsToCurrentGroup)
		r.Delete("/groups/current/funds/{code}", s.handleRemoveFundFromCurrentGroup)

		r.Put("/tab", s.handleSetTab)
		r.Put("/viewmode", s.handleSetViewMode)

		r.Put("/positions/{code}", s.handleSetPosition)
		r.Delete("/positions/{code}", s.handleClearPosition)

		r.Put("/settings/refresh", s.handleSetRefreshInterval)

		r.Get("/export", s.handleExport)
		r.Post("/export/file", s.handleExportToFile)
		r.Post("/import", s.handleImport)
	})
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	log.Printf("[INFO] http server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// setImportMsg publishes a transient user-visible message that clears
// itself after a fixed delay.
func (s *Server) setImportMsg(msg string) {
	s.msgMu.Lock()
	s.importMsg = msg
	s.msgMu.Unlock()
	time.AfterFunc(importMsgTTL, func() {
		s.msgMu.Lock()
		if s.importMsg == msg {
			s.importMsg = ""
		}
		s.msgMu.Unlock()
	})
}

func (s *Server) currentImportMsg() string {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()
	return s.importMsg
}

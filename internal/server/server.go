// server.go — Localhost HTTP surface for the extension and clients.
// The extension streams lifecycle events over /ws (or batches them to
// POST /events) and pushes page-state snapshots; inspection clients talk
// to POST /query or the read-only convenience endpoints. Binds loopback
// only; an optional shared key gates every route.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tabscope/tabscope/internal/config"
	"github.com/tabscope/tabscope/internal/dispatch"
	"github.com/tabscope/tabscope/internal/ledger"
	"github.com/tabscope/tabscope/internal/pagestate"
	"github.com/tabscope/tabscope/internal/util"
)

// KeyHeader carries the shared API key when one is configured.
const KeyHeader = "X-Tabscope-Key"

// maxPostBody bounds incoming extension POST bodies (5MB, matches the
// extension's own batching limit).
const maxPostBody = 5 << 20

// Server wires the ledger, page-state store and dispatcher to HTTP.
type Server struct {
	cfg      config.Config
	ledger   *ledger.Ledger
	pages    *pagestate.Store
	disp     *dispatch.Dispatcher
	upgrader websocket.Upgrader
	version  string
}

// New creates a server over already-constructed components.
func New(cfg config.Config, l *ledger.Ledger, pages *pagestate.Store, disp *dispatch.Dispatcher, version string) *Server {
	return &Server{
		cfg:    cfg,
		ledger: l,
		pages:  pages,
		disp:   disp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The daemon binds loopback only; the extension connects with
			// a chrome-extension:// origin, so origin checking is moot.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		version: version,
	}
}

// Addr returns the loopback listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requireKey)

	// Extension-facing ingestion
	r.Get("/ws", s.handleWS)
	r.Post("/events", s.handleEvents)
	r.Post("/snapshot/cookies", s.handleCookieSnapshot)
	r.Post("/snapshot/storage", s.handleStorageSnapshot)

	// Client-facing queries
	r.Post("/query", s.handleQuery)
	r.Get("/requests", s.handleRequests)
	r.Get("/cookies", s.handleCookies)
	r.Get("/storage", s.handleStorage)
	r.Get("/status", s.handleStatus)
	r.Get("/export/har", s.handleExportHAR)

	return r
}

// requireKey rejects requests lacking the configured shared key.
// No-op when no key is configured.
func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get(KeyHeader) != s.cfg.APIKey {
			util.JSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

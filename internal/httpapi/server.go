// Package httpapi is the HTTP adapter for the command facade: a thin
// net/http mux translating REST-ish requests into facade calls and
// facade errors into status codes (validation 400, not-found 404,
// process conflict 409, everything else 500).
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketomega/mcp-supervisor/internal/facade"
	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
)

// Server owns the mux and the facade it dispatches to.
type Server struct {
	facade *facade.Facade
	mux    *http.ServeMux
}

// NewServer builds a Server with every route registered.
func NewServer(f *facade.Facade) *Server {
	s := &Server{facade: f, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /mcp/sources", s.handleListSources)
	s.mux.HandleFunc("POST /mcp/sources", s.handleCreateSource)
	s.mux.HandleFunc("POST /mcp/sources/{id}/sync", s.handleSyncSource)
	s.mux.HandleFunc("POST /mcp/sources/{id}/cloud-sync", s.handleSyncCloudSubscriptions)
	s.mux.HandleFunc("POST /mcp/sources/{id}/cloud-base-url", s.handleSetCloudBaseURL)

	s.mux.HandleFunc("GET /mcp/tools", s.handleListTools)
	s.mux.HandleFunc("POST /mcp/tools/import", s.handleImportManifest)
	s.mux.HandleFunc("POST /mcp/tools/{id}/start", s.handleStartTool)
	s.mux.HandleFunc("POST /mcp/tools/{id}/stop", s.handleStopTool)
	s.mux.HandleFunc("POST /mcp/tools/{id}/env", s.handleUpdateToolEnv)
	s.mux.HandleFunc("PATCH /mcp/tools/{id}/config", s.handleApplyPendingConfig)
	s.mux.HandleFunc("POST /mcp/tools/{id}/resolve-conflict", s.handleResolveConflict)
	s.mux.HandleFunc("GET /mcp/tools/{id}/logs", s.handleGetLogs)
	s.mux.HandleFunc("DELETE /mcp/tools/{id}/logs", s.handleClearLogs)
	s.mux.HandleFunc("GET /mcp/tools/{id}/logs/stream", s.handleStreamLogs)
}

// ServeHTTP lets Server itself satisfy http.Handler, useful for tests
// that want to drive it via httptest.NewServer without a Start call.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on addr with graceful shutdown on SIGINT/SIGTERM.
// Supervised children are left to the OS on shutdown; only in-flight
// HTTP requests are drained.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("[HTTP] received signal %v, shutting down gracefully", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] graceful shutdown error: %v", err)
		}
	}()

	log.Printf("[HTTP] mcp-supervisor listening on %s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		log.Println("[HTTP] server stopped gracefully")
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mcperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

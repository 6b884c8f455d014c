package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"
)

// APIServer exposes the stored scan results over HTTP. Read-only: the
// daemon never mutates discovered servers and neither does its API.
type APIServer struct {
	logger hclog.Logger
	store  *Store
	addr   string
	server *http.Server
}

func NewAPIServer(logger hclog.Logger, store *Store, addr string) (*APIServer, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid api address %q: %w", addr, err)
	}

	a := &APIServer{
		logger: logger.Named("api"),
		store:  store,
		addr:   addr,
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

func (a *APIServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", a.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/results", a.handleResults)
		r.Get("/candidates", a.handleCandidates)
		r.Get("/servers", a.handleServers)
	})
	return r
}

// Start blocks serving the API until the context is cancelled.
func (a *APIServer) Start(ctx context.Context, ready chan<- struct{}) error {
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}()

	a.logger.Info("api listening", "addr", listener.Addr().String())
	if ready != nil {
		close(ready)
	}

	if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	count, updatedAt := a.store.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"scans":        count,
		"last_scan_at": updatedAt,
	})
}

func (a *APIServer) handleResults(w http.ResponseWriter, _ *http.Request) {
	results, ok := a.store.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scan completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *APIServer) handleCandidates(w http.ResponseWriter, _ *http.Request) {
	results, ok := a.store.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scan completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, results.Candidates())
}

func (a *APIServer) handleServers(w http.ResponseWriter, _ *http.Request) {
	results, ok := a.store.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scan completed yet"})
		return
	}
	servers := results.ConfirmedServers()
	if servers == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package httpserver exposes a running Imposter over HTTP: status and scheme
// introspection, metrics, and a fetch endpoint that serves a URL through a
// session's job factory.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/imposter-project/imposter-protocol/internal/adapter"
	"github.com/imposter-project/imposter-protocol/internal/cmdline"
	"github.com/imposter-project/imposter-protocol/internal/jobfactory"
	"github.com/imposter-project/imposter-protocol/internal/metrics"
	"github.com/imposter-project/imposter-protocol/internal/system"
	"github.com/imposter-project/imposter-protocol/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// HTTPAdapter runs the imposter behind an HTTP server
type HTTPAdapter struct {
	configDir string
}

// NewAdapter creates a new HTTP server adapter
func NewAdapter(configDir string) adapter.Adapter {
	return &HTTPAdapter{configDir: configDir}
}

// Start initialises the imposter and serves until interrupted
func (a *HTTPAdapter) Start() {
	imposter := adapter.InitialiseImposter(a.configDir)
	defer imposter.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := NewServer(imposter)
	if err := srv.Serve(ctx, ":"+imposter.Config.ServerPort); err != nil {
		logger.Errorf("error starting server: %v", err)
	}
}

// Server routes the system endpoints of one Imposter
type Server struct {
	imposter *adapter.Imposter
	router   *chi.Mux
}

func NewServer(imposter *adapter.Imposter) *Server {
	s := &Server{imposter: imposter}

	router := chi.NewRouter()
	router.Route("/system", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/schemes", s.handleSchemes)
		r.Get("/metrics", metrics.Handler().ServeHTTP)
	})
	router.HandleFunc("/fetch", s.handleFetch)
	s.router = router
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("server is listening on %s...", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Debugln("shutting down http server")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, system.Status{
		Status:     "ok",
		InstanceID: s.imposter.InstanceID,
		Ready:      s.imposter.Lifecycle.IsReady(),
		Partitions: s.imposter.Sessions.Partitions(),
	})
}

func (s *Server) handleSchemes(w http.ResponseWriter, r *http.Request) {
	sessions := make(map[string]jobfactory.Snapshot)
	for _, partition := range s.imposter.Sessions.Partitions() {
		if ctx, ok := s.imposter.Sessions.Lookup(partition); ok {
			sessions[partition] = ctx.Snapshot()
		}
	}
	respondJSON(w, system.Schemes{
		StandardSchemes:      s.imposter.Registry.GetStandardSchemes(),
		ServiceWorkerSchemes: s.imposter.Tables.ServiceWorkerSchemes(),
		Privileged:           s.imposter.Registry.Describe(),
		Switches:             s.imposter.CmdLine.CopySwitchesTo(nil, cmdline.SchemeSwitches...),
		Sessions:             sessions,
	})
}

// handleFetch serves ?url= through the job factory of ?session=. Only schemes
// with a registered or intercepting handler may be fetched.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		respondError(w, http.StatusBadRequest, errors.New("url parameter is required"))
		return
	}
	partition := r.URL.Query().Get("session")

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// built-in file and network handlers are not exposed
	session := s.imposter.Sessions.FromPartition(partition)
	if !session.IsCustomized(req.URL.Scheme) {
		logger.Warnf("refusing fetch of %s on session %q - scheme has no custom handler", target, partition)
		respondError(w, http.StatusForbidden, fmt.Errorf("scheme %q has no custom handler on session %q", req.URL.Scheme, partition))
		return
	}
	for key, values := range r.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := session.Client().Do(req)
	if err != nil {
		logger.Warnf("fetch of %s on session %q failed: %v", target, partition, err)
		respondError(w, http.StatusBadGateway, err)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Warnf("error copying response body of %s: %v", target, err)
	}
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{Error: err.Error(), Status: status})
}

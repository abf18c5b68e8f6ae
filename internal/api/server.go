// Package api serves the latest screen results to the dashboard.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/model"
)

// ResultStore is the read side of the recorder.
type ResultStore interface {
	LoadResults(ctx context.Context, side model.Side) (*model.ScreenResult, error)
}

type apiRoute struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

// Server is the dashboard read API.
type Server struct {
	store  ResultStore
	router *mux.Router
}

// NewServer builds the router over store.
func NewServer(store ResultStore) *Server {
	s := &Server{store: store, router: mux.NewRouter()}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	for _, r := range s.routes() {
		api.HandleFunc(r.Path, r.Handler).Methods(r.Method)
	}
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return s
}

func (s *Server) routes() []apiRoute {
	return []apiRoute{
		{Path: "/{side}/candidates", Method: http.MethodGet, Handler: s.getCandidates},
		{Path: "/{side}/options", Method: http.MethodGet, Handler: s.getOptions},
		{Path: "/{side}/options.csv", Method: http.MethodGet, Handler: s.getOptionsCSV},
		{Path: "/{side}/summary", Method: http.MethodGet, Handler: s.getSummary},
	}
}

// Handler returns the router behind the zstd middleware.
func (s *Server) Handler() http.Handler {
	return zstdMiddleware(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("read api listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Infof("read api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

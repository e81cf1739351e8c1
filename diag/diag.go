// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
/*
Package diag implements the diagnostics HTTP server of the guardian:

  - /metrics serves the Prometheus metrics.
  - /status serves the most recent guardian status as JSON.
  - /status/containers/{id} serves a single container (or its tombstone).
  - /status/projects serves the names of the live containers grouped by
    their composer projects.
  - /healthz answers 200 while the guardian can reach the container engine,
    and 503 while it is degraded or stopped.
*/
package diag

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thediveo/whaleguardian/guardian"
	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
)

// StatusProvider provides the current guardian status; a guardian.Guardian is
// a StatusProvider.
type StatusProvider interface {
	Status() guardian.Status
}

// Server is the diagnostics HTTP server.
type Server struct {
	status   StatusProvider
	gatherer prometheus.Gatherer
	log      *zap.Logger
	router   *mux.Router
}

// New returns a new diagnostics server for the specified status provider and
// metrics gatherer.
func New(status StatusProvider, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	s := &Server{
		status:   status,
		gatherer: gatherer,
		log:      logging.Component(log, "diag"),
		router:   mux.NewRouter(),
	}
	s.router.Handle("/metrics",
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/status/containers/{id}", s.handleContainer).Methods(http.MethodGet)
	s.router.HandleFunc("/status/projects", s.handleProjects).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve diagnostics on the specified listener until the context gets
// cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutctx)
	}()
	s.log.Info("serving diagnostics", zap.String("addr", l.Addr().String()))
	err := server.Serve(l)
	<-done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe diagnostics on the specified address until the context gets
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "cannot serve diagnostics on '%s'", addr)
	}
	return s.Serve(ctx, l)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleContainer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st := s.status.Status()
	if c, ok := st.Snapshot.Container(id); ok {
		s.writeJSON(w, http.StatusOK, c)
		return
	}
	if c, ok := st.Snapshot.Tombstone(id); ok {
		s.writeJSON(w, http.StatusOK, c)
		return
	}
	http.Error(w, "no such container", http.StatusNotFound)
}

// projects is the JSON rendering of a portfolio.
type projects struct {
	Projects   map[string][]string `json:"projects"`
	Standalone []string            `json:"standalone"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	pf := s.status.Status().Snapshot.Portfolio()
	resp := projects{
		Projects:   map[string][]string{},
		Standalone: pf.Project("").ContainerNames(),
	}
	for _, name := range pf.Names() {
		resp.Projects[name] = pf.Project(name).ContainerNames()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	switch st := s.status.Status(); st.State {
	case guardian.StateDegraded, guardian.StateStopped:
		http.Error(w, string(st.State), http.StatusServiceUnavailable)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("cannot write response", zap.Error(err))
	}
}

// Package adminserver exposes the coordinator's control plane over HTTP:
// listing reports, adding/removing them, and reading a report's snapshot as
// JSON. It is a thin translation layer in front of coordinator.Coordinator's
// Call-based API; it holds no aggregation logic of its own.
package adminserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"go2spectra/internal/coordinator"
)

// ReportFactory builds a coordinator.Report for a given name/key-field/window
// request. cmd/ns-coordinator registers one factory per supported report
// type (currently "exact").
type ReportFactory func(name string, keyFields []string, window time.Duration, tickCount uint32) (coordinator.Report, error)

// Server is the coordinator's HTTP admin surface.
type Server struct {
	coord      *coordinator.Coordinator
	factories  map[string]ReportFactory
	httpServer *http.Server
}

// New builds a Server bound to coord, with the given report factories keyed
// by report type name.
func New(coord *coordinator.Coordinator, listenAddr string, factories map[string]ReportFactory) *Server {
	s := &Server{coord: coord, factories: factories}

	r := mux.NewRouter()
	r.HandleFunc("/reports", s.listReportsHandler).Methods("GET")
	r.HandleFunc("/reports", s.addReportHandler).Methods("POST")
	r.HandleFunc("/reports/{name}", s.deleteReportHandler).Methods("DELETE")
	r.HandleFunc("/reports/{name}/snapshot", s.snapshotHandler).Methods("GET")
	r.HandleFunc("/stats", s.statsHandler).Methods("GET")

	s.httpServer = &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("admin server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server failed: %v", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) listReportsHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.coord.ListReports()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": names})
}

type addReportRequest struct {
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	KeyFields []string `json:"key_fields"`
	Window    string   `json:"window"`
	TickCount uint32   `json:"tick_count"`
}

func (s *Server) addReportHandler(w http.ResponseWriter, r *http.Request) {
	var req addReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	factory, ok := s.factories[req.Type]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown report type: %s", req.Type))
		return
	}

	window, err := time.ParseDuration(req.Window)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid window: %w", err))
		return
	}

	report, err := factory(req.Name, req.KeyFields, window, req.TickCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.coord.AddReport(report); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"name": req.Name})
}

func (s *Server) deleteReportHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.coord.DeleteReport(name); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	snap, err := s.coord.GetReportSnapshot(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Globals().Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("admin server: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

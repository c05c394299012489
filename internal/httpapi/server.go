// v0
// server.go
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"nrgchamp/ctrlcore/internal/config"
)

// StatusSource exposes whatever the last control-loop cycle produced per
// device, for the read-only status surface.
type StatusSource interface {
	DeviceStatus(device string) (DeviceStatus, bool)
	AllDeviceStatus() map[string]DeviceStatus
}

// DeviceStatus is one device's row in the status response.
type DeviceStatus struct {
	Device           string `json:"device"`
	Terminal         string `json:"terminal"`
	Skipped          bool   `json:"skipped"`
	CommandSent      bool   `json:"command_sent"`
	VetoedByHoldDown bool   `json:"vetoed_by_hold_down"`
	CauseReason      int    `json:"cause_reason"`
}

// Server is the status/health HTTP surface (spec §6): read-only, built on
// gorilla/mux routing and gorilla/handlers access logging, matching the
// rest of the pack's HTTP services.
type Server struct {
	cfg    *config.AppConfig
	log    *slog.Logger
	status StatusSource
	http   *http.Server
}

func NewServer(cfg *config.AppConfig, log *slog.Logger, status StatusSource) *Server {
	s := &Server{cfg: cfg, log: log.With(slog.String("component", "httpapi")), status: status}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.getStatusAll).Methods(http.MethodGet)
	r.HandleFunc("/status/{device}", s.getStatusDevice).Methods(http.MethodGet)
	r.HandleFunc("/nodeset/reload", s.postReload).Methods(http.MethodPost)

	logged := handlers.LoggingHandler(os.Stdout, r)

	s.http = &http.Server{
		Addr:    cfg.HTTPBind,
		Handler: logged,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info("http server starting", "bind", s.cfg.HTTPBind)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("http server stopping")
	return s.http.Shutdown(ctx)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) getStatusAll(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status.AllDeviceStatus())
}

func (s *Server) getStatusDevice(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]
	st, ok := s.status.DeviceStatus(device)
	if !ok {
		http.Error(w, "unknown device", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (s *Server) postReload(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.ReloadProperties(); err != nil {
		s.log.Error("properties reload failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("properties reloaded")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("reloaded"))
}

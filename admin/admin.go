/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

// Package admin exposes the operational HTTP surface of the server:
// liveness and persistence queue depth, the health signal required to
// detect an unreachable store before memory fills up.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/version"
	"github.com/gorilla/mux"
)

const defaultPendingThreshold = 1000

// QueueReporter reports how many pubsub items await durable storage.
type QueueReporter interface {
	QueueDepths() (add, del int32)
}

// Config represents admin HTTP server configuration.
type Config struct {
	Port             int `yaml:"port"`
	PendingThreshold int `yaml:"pending_threshold"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (cfg *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type proxy Config
	p := proxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	*cfg = Config(p)
	if cfg.PendingThreshold <= 0 {
		cfg.PendingThreshold = defaultPendingThreshold
	}
	return nil
}

// Server serves the admin endpoints on a dedicated port.
type Server struct {
	cfg      *Config
	reporter QueueReporter
	started  time.Time
	srv      *http.Server
}

// New returns an initialized admin server.
func New(cfg *Config, reporter QueueReporter) *Server {
	s := &Server{
		cfg:      cfg,
		reporter: reporter,
		started:  time.Now(),
	}
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/queues", s.handleQueues).Methods("GET")
	s.srv = &http.Server{Handler: r}
	return s
}

// Start listens on the configured port. It returns after the listener
// is bound; serving happens on its own goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()
	log.Infof("admin server listening at %d...", s.cfg.Port)
	return nil
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Pending int32  `json:"pending_items"`
}

type queuesResponse struct {
	Add    int32 `json:"add"`
	Delete int32 `json:"delete"`
}

// handleHealth reports liveness. The status degrades when the
// persistence queues pile up past the configured threshold, the signal
// of a store that has been unreachable for several flush cycles.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var add, del int32
	if s.reporter != nil {
		add, del = s.reporter.QueueDepths()
	}
	res := healthResponse{
		Status:  "up",
		Version: version.ApplicationVersion.String(),
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
		Pending: add + del,
	}
	code := http.StatusOK
	if int(add+del) > s.cfg.PendingThreshold {
		res.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(&res)
}

func (s *Server) handleQueues(w http.ResponseWriter, _ *http.Request) {
	var res queuesResponse
	if s.reporter != nil {
		res.Add, res.Delete = s.reporter.QueueDepths()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&res)
}

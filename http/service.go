// Package http provides the debug HTTP service of a coordinator or storage
// server: Prometheus metrics, a JSON dump of the node's state and a
// liveness probe.
package http

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// State is implemented by nodes that can report their state.
type State interface {
	// State returns a JSON-encodable view of the node.
	State() (interface{}, error)
}

// Service provides HTTP service.
type Service struct {
	addr   string
	ln     net.Listener
	server *http.Server

	state State

	log *log.Entry
}

// NewService returns an uninitialized HTTP service.
func NewService(logger *log.Logger, addr string, state State) *Service {
	s := &Service{
		addr:  addr,
		state: state,
		log:   logger.WithField("component", "http"),
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Use(s.withLogging)

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// Start starts the service.
func (s *Service) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP serve: %s", err)
		}
	}()
	s.log.Infof("Debug service listening on %s", ln.Addr())
	return nil
}

// Close closes the service.
func (s *Service) Close() error {
	return s.server.Close()
}

// Addr returns the address on which the Service is listening
func (s *Service) Addr() net.Addr {
	return s.ln.Addr()
}

// ServeHTTP allows Service to serve HTTP requests.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

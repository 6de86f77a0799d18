// Package store provides a storage server of the transactional key-value
// store. Each server owns one partition of the keys and validates every
// access against per-key read and write timestamps, so that transactions
// take effect in the order of their ids. Writes stay in a per-client buffer
// until the client's two-phase commit reaches DoCommit.
package store

import (
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/network"
)

// Store is a storage server: an Engine behind a message server.
type Store struct {
	Name          string
	ListenAddress string

	engine *Engine
	server *network.Server

	log *log.Entry
}

// NewStore returns a server named name. The name must match the one
// clients use in <server>.<key> targets.
func NewStore(logger *log.Logger, name, listenAddress string) *Store {
	s := &Store{
		Name:          name,
		ListenAddress: listenAddress,
		engine:        NewEngine(logger),
		log:           logger.WithField("component", "store"),
	}

	router := network.NewRouter(logger)
	newCohort(logger, s.engine).register(router)
	s.server = network.NewServer(logger, name, listenAddress, router)
	return s
}

// Start begins serving clients.
func (s *Store) Start() error {
	if err := s.server.Start(); err != nil {
		return err
	}
	s.log.Infof("Store %s started on %s", s.Name, s.server.Addr())
	return nil
}

// Addr returns the bound address; valid after Start.
func (s *Store) Addr() net.Addr {
	return s.server.Addr()
}

func (s *Store) Engine() *Engine {
	return s.engine
}

// State reports the committed store for the debug service.
func (s *Store) State() (interface{}, error) {
	return s.engine.State()
}

// Close drops every client connection.
func (s *Store) Close() error {
	return s.server.Close()
}

package network

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/txnpb"
)

const acceptBackoff = 10 * time.Millisecond

// Server accepts connections on one address and serves each of them on its
// own goroutine. Responses are written back on the connection the request
// arrived on.
type Server struct {
	name       string
	addr       string
	dispatcher Dispatcher

	ln     net.Listener
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup

	log *log.Entry
}

// NewServer returns a server that answers as name.
func NewServer(logger *log.Logger, name, addr string, d Dispatcher) *Server {
	return &Server{
		name:       name,
		addr:       addr,
		dispatcher: d,
		conns:      make(map[net.Conn]struct{}),
		log:        logger.WithField("component", "server"),
	}
}

// Start binds the listen address and begins accepting connections.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}
	s.ln = ln
	s.log.Infof("%s listening on %s", s.name, ln.Addr())

	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the bound address; valid after Start.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				s.log.Warnf("accept: %s", err)
				time.Sleep(acceptBackoff)
				continue
			}
			s.log.Errorf("accept: %s", err)
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	peer := conn.RemoteAddr().String()
	s.log.Infof("Got connection from %s", peer)
	r := bufio.NewReader(conn)
	for {
		msg, err := txnpb.ReadFrame(r)
		if err != nil {
			if errors.Cause(err) == io.EOF || s.isClosed() {
				s.log.Infof("Connection lost with %s", peer)
			} else {
				s.log.Warnf("Dropping connection with %s: %s", peer, err)
			}
			return
		}

		client := msg.Origin
		if client == "" {
			client = peer
		}
		resp := s.dispatcher.Dispatch(client, msg)
		if resp == nil {
			continue
		}
		resp.ID = xid.New().String()
		resp.InResponseTo = msg.ID
		resp.Origin = s.name
		resp.Destination = msg.Origin

		s.log.Debugf("Sending %s to %s", resp, client)
		if err := txnpb.WriteFrame(conn, resp); err != nil {
			s.log.Warnf("Dropping connection with %s: %s", peer, err)
			return
		}
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting, closes every open connection and waits for the
// connection goroutines to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

package network

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/txnpb"
)

// ErrClosed is returned for requests on a peer whose connection is gone.
var ErrClosed = errors.New("connection closed")

const writeTimeout = 3 * time.Second

// Peer is the client end of one persistent connection to a named remote.
type Peer struct {
	Name   string
	addr   string
	origin string

	conn    net.Conn
	wmu     sync.Mutex
	pending *Pending

	done      chan struct{}
	closeOnce sync.Once

	log *log.Entry
}

// Dial connects to the remote called name at addr, giving up after
// connectTimeout. Outbound messages carry origin as their sender.
func Dial(ctx context.Context, logger *log.Logger, origin, name, addr string, connectTimeout time.Duration) (*Peer, error) {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s at %s", name, addr)
	}

	p := &Peer{
		Name:    name,
		addr:    addr,
		origin:  origin,
		conn:    conn,
		pending: NewPending(),
		done:    make(chan struct{}),
		log:     logger.WithField("component", "peer-"+name),
	}
	p.log.Infof("Connected to %s at %s", name, addr)
	go p.readLoop()
	return p, nil
}

// Call sends msg and waits for its response, ctx cancellation or loss of
// the connection.
func (p *Peer) Call(ctx context.Context, msg *txnpb.Envelope) (*txnpb.Envelope, error) {
	if msg.ID == "" {
		msg.ID = xid.New().String()
	}
	ch := p.pending.Register(msg.ID)
	if err := p.Send(msg); err != nil {
		p.pending.Forget(msg.ID)
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		p.pending.Forget(msg.ID)
		return nil, ctx.Err()
	case <-p.done:
		p.pending.Forget(msg.ID)
		return nil, ErrClosed
	}
}

// Send writes msg without waiting for a response.
func (p *Peer) Send(msg *txnpb.Envelope) error {
	if msg.ID == "" {
		msg.ID = xid.New().String()
	}
	msg.Origin = p.origin
	msg.Destination = p.Name

	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	p.wmu.Lock()
	defer p.wmu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return txnpb.WriteFrame(p.conn, msg)
}

func (p *Peer) readLoop() {
	defer p.Close()
	r := bufio.NewReader(p.conn)
	for {
		msg, err := txnpb.ReadFrame(r)
		if err != nil {
			select {
			case <-p.done:
			default:
				p.log.Warnf("Connection lost with %s: %s", p.Name, err)
			}
			return
		}
		if msg.InResponseTo == "" {
			p.log.Warnf("Dont recognize unsolicited %s from %s", msg.Kind, p.Name)
			continue
		}
		if !p.pending.Resolve(msg) {
			p.log.Warnf("Dropping %s: nobody waiting for %s", msg, msg.InResponseTo)
		}
	}
}

// Close tears the connection down; pending calls return ErrClosed.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}

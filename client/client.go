// Package client is the transaction orchestrator. A Client holds one
// connection to the coordinator and one to every storage server, runs
// BEGIN/SET/GET/COMMIT/ABORT for a single session, and drives the two-phase
// commit across the servers written during the transaction.
package client

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/common"
	"github.com/txn-kv-store/config"
	"github.com/txn-kv-store/metric"
	"github.com/txn-kv-store/network"
	"github.com/txn-kv-store/txnpb"
	"go.uber.org/atomic"
)

const coordinatorName = "coordinator"

// Caller is a connection to one remote. *network.Peer satisfies it.
type Caller interface {
	Call(ctx context.Context, msg *txnpb.Envelope) (*txnpb.Envelope, error)
	Send(msg *txnpb.Envelope) error
	Close() error
}

// GetResult is the outcome of a successful GET.
type GetResult struct {
	Server string
	Key    string
	Value  string
	Found  bool
}

func (r GetResult) String() string {
	return fmt.Sprintf("%s.%s = %s", r.Server, r.Key, r.Value)
}

// Client is one operator session. Its methods are meant to be called from a
// single goroutine; Txn may be read from anywhere.
type Client struct {
	ID string

	coordinator Caller
	servers     map[string]Caller
	timeout     time.Duration

	mu           sync.Mutex
	phase        common.Phase
	currTxn      *atomic.Int64
	participants map[string]struct{}

	log *log.Entry
}

// New builds a client over already established connections. servers is
// keyed by the names used in <server>.<key> targets.
func New(logger *log.Logger, id string, coordinator Caller, servers map[string]Caller, timeout time.Duration) *Client {
	if id == "" {
		id = xid.New().String()
	}
	if timeout <= 0 {
		timeout = common.DefaultRequestTimeout
	}
	return &Client{
		ID:           id,
		coordinator:  coordinator,
		servers:      servers,
		timeout:      timeout,
		phase:        common.Idle,
		currTxn:      atomic.NewInt64(common.NoTxn),
		participants: make(map[string]struct{}),
		log:          logger.WithField("component", "client-"+id),
	}
}

// Connect dials every member of cluster. A member that cannot be reached
// within the connect timeout is logged and left in place as a dead
// connection, so requests to it fail instead of the whole session.
func Connect(ctx context.Context, logger *log.Logger, id string, cluster *config.Cluster) *Client {
	if id == "" {
		id = xid.New().String()
	}
	dial := func(name, addr string) Caller {
		p, err := network.Dial(ctx, logger, id, name, addr, cluster.Timeouts.Connect)
		if err != nil {
			logger.WithField("component", "client-"+id).Errorf("Giving up on %s: %s", name, err)
			return unreachable{name: name, err: err}
		}
		return p
	}

	servers := make(map[string]Caller, len(cluster.Servers))
	for _, name := range cluster.ServerNames() {
		servers[name] = dial(name, cluster.Servers[name])
	}
	return New(logger, id, dial(coordinatorName, cluster.Coordinator), servers, cluster.Timeouts.Request)
}

// Txn returns the current transaction id, or common.NoTxn when idle.
func (c *Client) Txn() int64 {
	return c.currTxn.Load()
}

func (c *Client) InTxn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == common.Active
}

// Participants lists the servers written during the current transaction.
func (c *Client) Participants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedParticipants()
}

// Begin asks the coordinator for a fresh transaction id.
func (c *Client) Begin(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == common.Active {
		return common.NoTxn, errors.Wrapf(ErrTxnInProgress, "txn %d", c.currTxn.Load())
	}

	resp, err := c.call(ctx, coordinatorName, c.coordinator, txnpb.NewRequestTxnID(), txnpb.KindNewTxnID)
	if err != nil {
		return common.NoTxn, err
	}
	c.currTxn.Store(resp.TxnID)
	c.participants = make(map[string]struct{})
	c.phase = common.Active
	c.log.Infof("[txn %d] begin", resp.TxnID)
	return resp.TxnID, nil
}

// Set stages value for target at its server. The server becomes a commit
// participant even when the write is rejected or times out.
func (c *Client) Set(ctx context.Context, target, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != common.Active {
		return ErrNoTransaction
	}
	server, key, peer, err := c.resolve(target)
	if err != nil {
		return err
	}

	txn := c.currTxn.Load()
	c.participants[server] = struct{}{}
	resp, err := c.call(ctx, server, peer, txnpb.NewWrite(txn, key, value), txnpb.KindWriteResult)
	if err != nil {
		return err
	}
	if !resp.Success {
		c.log.Warnf("[txn %d] write %s rejected", txn, target)
		return errors.Wrapf(ErrRejected, "write %s", target)
	}
	return nil
}

// Get reads target as seen by the current transaction.
func (c *Client) Get(ctx context.Context, target string) (GetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != common.Active {
		return GetResult{}, ErrNoTransaction
	}
	server, key, peer, err := c.resolve(target)
	if err != nil {
		return GetResult{}, err
	}

	txn := c.currTxn.Load()
	resp, err := c.call(ctx, server, peer, txnpb.NewRead(txn, key), txnpb.KindReadResult)
	if err != nil {
		return GetResult{}, err
	}
	if !resp.Success {
		c.log.Warnf("[txn %d] read %s rejected", txn, target)
		return GetResult{}, errors.Wrapf(ErrRejected, "read %s", target)
	}
	return GetResult{Server: server, Key: key, Value: resp.Value, Found: resp.Found}, nil
}

// Commit runs two-phase commit over the participants. DoCommit goes out
// only when every participant accepted TryCommit in time; otherwise every
// participant is told to Abort and ErrCommitAborted is returned. The
// session is idle afterwards either way.
func (c *Client) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != common.Active {
		return ErrNoTransaction
	}
	txn := c.currTxn.Load()
	participants := c.sortedParticipants()
	defer c.reset()

	failures := c.tryCommit(ctx, txn, participants)
	if len(failures) > 0 {
		c.broadcast(participants, func() *txnpb.Envelope { return txnpb.NewAbort(txn) })
		metric.ClientTxns.WithLabelValues("aborted").Inc()
		c.log.Warnf("[txn %d] abort: %s", txn, strings.Join(failures, "; "))
		return errors.Wrapf(ErrCommitAborted, "txn %d: %s", txn, strings.Join(failures, "; "))
	}

	c.broadcast(participants, func() *txnpb.Envelope { return txnpb.NewDoCommit(txn) })
	metric.ClientTxns.WithLabelValues("committed").Inc()
	c.log.Infof("[txn %d] committed on %v", txn, participants)
	return nil
}

// Abort drops the current transaction and tells the participants to
// discard what they staged for it.
func (c *Client) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != common.Active {
		return ErrNoTransaction
	}
	txn := c.currTxn.Load()
	c.broadcast(c.sortedParticipants(), func() *txnpb.Envelope { return txnpb.NewAbort(txn) })
	c.reset()
	metric.ClientTxns.WithLabelValues("aborted").Inc()
	c.log.Infof("[txn %d] aborted by operator", txn)
	return nil
}

// Close drops every connection; in-flight calls fail.
func (c *Client) Close() error {
	var err error
	if cerr := c.coordinator.Close(); cerr != nil {
		err = cerr
	}
	for _, peer := range c.servers {
		if cerr := peer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// tryCommit asks every participant to validate txn under one shared
// deadline and waits for all of them. It returns a reason per participant
// that did not accept.
func (c *Client) tryCommit(ctx context.Context, txn int64, participants []string) []string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type vote struct {
		server string
		err    error
	}
	votes := make(chan vote, len(participants))
	for _, server := range participants {
		go func(server string) {
			resp, err := c.call(ctx, server, c.servers[server], txnpb.NewTryCommit(txn), txnpb.KindTryCommitResult)
			if err == nil && !resp.Success {
				err = errors.Wrapf(ErrRejected, "%s refused to commit", server)
			}
			votes <- vote{server: server, err: err}
		}(server)
	}

	var failures []string
	for range participants {
		v := <-votes
		if v.err != nil {
			failures = append(failures, v.err.Error())
		}
	}
	sort.Strings(failures)
	return failures
}

// broadcast sends a one-way message to each server, logging failures.
func (c *Client) broadcast(servers []string, build func() *txnpb.Envelope) {
	for _, server := range servers {
		msg := build()
		if err := c.servers[server].Send(msg); err != nil {
			c.log.Errorf("Failed to send %s to %s: %s", msg.Kind, server, err)
		}
	}
}

// call sends msg to peer and waits up to the request timeout for a
// response of kind want. Transport failures become ErrTimeout unless the
// parent context was cancelled.
func (c *Client) call(ctx context.Context, name string, peer Caller, msg *txnpb.Envelope, want txnpb.Kind) (*txnpb.Envelope, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	kind := msg.Kind
	start := time.Now()
	resp, err := peer.Call(reqCtx, msg)
	metric.RequestDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, txnpb.ErrFrameTooLarge) {
			return nil, errors.Wrapf(ErrUsage, "%s to %s: %s", kind, name, err)
		}
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "%s to %s", kind, name)
		}
		c.log.Errorf("%s to %s failed: %s", kind, name, err)
		return nil, errors.Wrapf(ErrTimeout, "%s to %s: %s", kind, name, err)
	}
	if resp.Kind != want {
		c.log.Errorf("%s to %s answered with %s", kind, name, resp.Kind)
		return nil, errors.Wrapf(ErrTimeout, "%s to %s: unexpected %s", kind, name, resp.Kind)
	}
	return resp, nil
}

// resolve splits <server>.<key> on the first dot.
func (c *Client) resolve(target string) (string, string, Caller, error) {
	i := strings.IndexByte(target, '.')
	if i <= 0 || i == len(target)-1 {
		return "", "", nil, errors.Wrapf(ErrUsage, "target %q is not <server>.<key>", target)
	}
	server, key := target[:i], target[i+1:]
	peer, ok := c.servers[server]
	if !ok {
		return "", "", nil, errors.Wrapf(ErrUnknownTarget, "%q", server)
	}
	return server, key, peer, nil
}

func (c *Client) reset() {
	c.phase = common.Idle
	c.currTxn.Store(common.NoTxn)
	c.participants = make(map[string]struct{})
}

func (c *Client) sortedParticipants() []string {
	servers := make([]string, 0, len(c.participants))
	for server := range c.participants {
		servers = append(servers, server)
	}
	sort.Strings(servers)
	return servers
}

// unreachable stands in for a member that could not be dialed.
type unreachable struct {
	name string
	err  error
}

func (u unreachable) Call(context.Context, *txnpb.Envelope) (*txnpb.Envelope, error) {
	return nil, errors.Wrapf(network.ErrClosed, "%s unreachable (%s)", u.name, u.err)
}

func (u unreachable) Send(*txnpb.Envelope) error {
	return errors.Wrapf(network.ErrClosed, "%s unreachable (%s)", u.name, u.err)
}

func (u unreachable) Close() error {
	return nil
}

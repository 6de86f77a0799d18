package network

import (
	"sync"

	"github.com/txn-kv-store/txnpb"
)

// Pending correlates outbound requests with their responses. Each waiter is
// resolved at most once.
type Pending struct {
	mu      sync.Mutex
	waiters map[string]chan *txnpb.Envelope
}

func NewPending() *Pending {
	return &Pending{waiters: make(map[string]chan *txnpb.Envelope)}
}

// Register creates the waiter for request id.
func (p *Pending) Register(id string) <-chan *txnpb.Envelope {
	ch := make(chan *txnpb.Envelope, 1)
	p.mu.Lock()
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch
}

// Resolve hands resp to the waiter registered under resp.InResponseTo. It
// returns false when nobody is waiting, e.g. the caller already timed out.
func (p *Pending) Resolve(resp *txnpb.Envelope) bool {
	p.mu.Lock()
	ch, ok := p.waiters[resp.InResponseTo]
	delete(p.waiters, resp.InResponseTo)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// Forget drops the waiter for id without resolving it.
func (p *Pending) Forget(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

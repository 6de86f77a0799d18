package network

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/txn-kv-store/txnpb"
)

func TestPendingResolve(t *testing.T) {
	p := NewPending()
	ch := p.Register("r1")
	assert.Equal(t, 1, p.Len())

	resp := &txnpb.Envelope{Kind: txnpb.KindWriteResult, InResponseTo: "r1", Success: true}
	assert.True(t, p.Resolve(resp))
	assert.Equal(t, resp, <-ch)
	assert.Equal(t, 0, p.Len())

	// duplicate delivery has nobody left to wake
	assert.False(t, p.Resolve(resp))
}

func TestPendingForget(t *testing.T) {
	p := NewPending()
	p.Register("r1")
	p.Forget("r1")
	assert.False(t, p.Resolve(&txnpb.Envelope{InResponseTo: "r1"}))
	assert.Equal(t, 0, p.Len())
}

func TestPendingConcurrent(t *testing.T) {
	p := NewPending()
	const n = 200

	chans := make([]<-chan *txnpb.Envelope, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chans[i] = p.Register(strconv.Itoa(i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.True(t, p.Resolve(&txnpb.Envelope{InResponseTo: strconv.Itoa(i), Key: strconv.Itoa(i)}))
		}(i)
	}
	wg.Wait()

	for i, ch := range chans {
		assert.Equal(t, strconv.Itoa(i), (<-ch).Key)
	}
	assert.Equal(t, 0, p.Len())
}

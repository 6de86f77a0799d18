package store

import (
	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/metric"
	"github.com/txn-kv-store/network"
	"github.com/txn-kv-store/txnpb"
)

// Cohort is the storage server's side of the commit protocol. It turns
// inbound messages into engine calls and their results into responses.
type Cohort struct {
	engine *Engine
	log    *log.Entry
}

func newCohort(logger *log.Logger, engine *Engine) *Cohort {
	return &Cohort{
		engine: engine,
		log:    logger.WithField("component", "cohort"),
	}
}

func (c *Cohort) register(r *network.Router) {
	r.Register(txnpb.KindWrite, c.handleWrite)
	r.Register(txnpb.KindRead, c.handleRead)
	r.Register(txnpb.KindTryCommit, c.handleTryCommit)
	r.Register(txnpb.KindDoCommit, c.handleDoCommit)
	r.Register(txnpb.KindAbort, c.handleAbort)
}

func (c *Cohort) handleWrite(client string, msg *txnpb.Envelope) *txnpb.Envelope {
	ok := c.engine.Write(client, msg.Key, msg.Value, msg.TxnID)
	metric.ServerOps.WithLabelValues("write", metric.Result(ok)).Inc()
	return txnpb.NewWriteResult(ok)
}

func (c *Cohort) handleRead(client string, msg *txnpb.Envelope) *txnpb.Envelope {
	res := c.engine.Read(client, msg.Key, msg.TxnID)
	metric.ServerOps.WithLabelValues("read", metric.Result(res.Success)).Inc()
	return txnpb.NewReadResult(res.Success, res.Value, res.Found)
}

func (c *Cohort) handleTryCommit(client string, msg *txnpb.Envelope) *txnpb.Envelope {
	ok := c.engine.TryCommit(client, msg.TxnID)
	metric.ServerOps.WithLabelValues("trycommit", metric.Result(ok)).Inc()
	c.log.Infof("[txn %d] prepared=%t for %s", msg.TxnID, ok, client)
	return txnpb.NewTryCommitResult(ok)
}

// DoCommit and Abort are one-way.
func (c *Cohort) handleDoCommit(client string, msg *txnpb.Envelope) *txnpb.Envelope {
	c.engine.DoCommit(client, msg.TxnID)
	metric.ServerOps.WithLabelValues("docommit", metric.Result(true)).Inc()
	return nil
}

func (c *Cohort) handleAbort(client string, msg *txnpb.Envelope) *txnpb.Envelope {
	c.engine.Abort(client, msg.TxnID)
	metric.ServerOps.WithLabelValues("abort", metric.Result(true)).Inc()
	return nil
}

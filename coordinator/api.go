package coordinator

import (
	"github.com/txn-kv-store/txnpb"
)

// handleRequestTxnID issues the next id. If it cannot be issued the request
// goes unanswered and the client times out.
func (c *Coordinator) handleRequestTxnID(client string, msg *txnpb.Envelope) *txnpb.Envelope {
	id, err := c.authority.Next()
	if err != nil {
		c.log.Errorf("Unable to issue txn id to %s: %s", client, err)
		return nil
	}
	c.log.Infof("Issued txn %d to %s", id, client)
	return txnpb.NewTxnIDResponse(id)
}

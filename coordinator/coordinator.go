package coordinator

import (
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/network"
	"github.com/txn-kv-store/txnpb"
)

// Coordinator serves transaction ids to clients.
type Coordinator struct {
	ID            string
	ListenAddress string

	authority *Authority
	server    *network.Server

	log *log.Entry
}

// NewCoordinator wires the id authority behind a message server.
func NewCoordinator(logger *log.Logger, nodeID, listenAddress string, authority *Authority) *Coordinator {
	if nodeID == "" {
		nodeID = "coordinator"
	}
	c := &Coordinator{
		ID:            nodeID,
		ListenAddress: listenAddress,
		authority:     authority,
		log:           logger.WithField("component", "coordinator"),
	}

	router := network.NewRouter(logger)
	router.Register(txnpb.KindRequestTxnID, c.handleRequestTxnID)
	c.server = network.NewServer(logger, nodeID, listenAddress, router)
	return c
}

func (c *Coordinator) Start() error {
	if err := c.server.Start(); err != nil {
		return err
	}
	c.log.Infof("Coordinator %s started on %s", c.ID, c.server.Addr())
	return nil
}

// Addr returns the bound address; valid after Start.
func (c *Coordinator) Addr() net.Addr {
	return c.server.Addr()
}

// Close stops serving and releases the authority state.
func (c *Coordinator) Close() error {
	err := c.server.Close()
	if aerr := c.authority.Close(); err == nil {
		err = aerr
	}
	return err
}

// State reports the authority's counter for the debug service.
func (c *Coordinator) State() (interface{}, error) {
	return map[string]int64{"last_txn_id": c.authority.Last()}, nil
}

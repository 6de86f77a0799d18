// Package network carries envelopes between clients, the coordinator and
// storage servers over persistent TCP connections.
package network

import (
	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/metric"
	"github.com/txn-kv-store/txnpb"
)

// HandlerFunc handles one inbound message from client. A nil return sends
// no response.
type HandlerFunc func(client string, msg *txnpb.Envelope) *txnpb.Envelope

// Dispatcher routes an inbound message to its handler.
type Dispatcher interface {
	Dispatch(client string, msg *txnpb.Envelope) *txnpb.Envelope
}

// Router maps message kinds to handlers. Handlers must be registered before
// the router is handed to a Server.
type Router struct {
	handlers map[txnpb.Kind]HandlerFunc
	log      *log.Entry
}

func NewRouter(logger *log.Logger) *Router {
	return &Router{
		handlers: make(map[txnpb.Kind]HandlerFunc),
		log:      logger.WithField("component", "router"),
	}
}

// Register sets the handler for kind, replacing any previous one.
func (r *Router) Register(kind txnpb.Kind, h HandlerFunc) {
	r.handlers[kind] = h
}

// Dispatch runs the handler registered for msg.Kind. Unknown kinds are
// logged and dropped.
func (r *Router) Dispatch(client string, msg *txnpb.Envelope) *txnpb.Envelope {
	h, ok := r.handlers[msg.Kind]
	if !ok {
		r.log.Warnf("Dont recognize msg %s from %s", msg.Kind, client)
		metric.UnrecognizedMessages.Inc()
		return nil
	}
	r.log.Debugf("Got %s from %s", msg, client)
	return h(client, msg)
}

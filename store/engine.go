package store

import (
	"time"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/subchen/go-trylock/v2"
	"github.com/txn-kv-store/common"
	"github.com/txn-kv-store/metric"
)

const stateLockTimeout = 100 * time.Millisecond

// Entry is a committed value together with the ids of the newest
// transactions allowed to read and write it.
type Entry struct {
	Value        string `json:"value"`
	LastReadTxn  int64  `json:"last_read_txn"`
	LastWriteTxn int64  `json:"last_write_txn"`
}

// ReadResult is the outcome of Engine.Read. Found is false when neither the
// committed store nor the client's buffer holds the key.
type ReadResult struct {
	Success bool
	Value   string
	Found   bool
}

// session is the server-side view of one client: the txn id last seen from
// it and the writes staged by that transaction.
type session struct {
	bufferTxn int64
	buffer    map[string]string
}

// Engine applies timestamp ordering to a committed key/value map with a
// private write buffer per client. All operations are serialised.
type Engine struct {
	mu       trylock.TryLocker
	actual   map[string]*Entry
	sessions map[string]*session

	log *log.Entry
}

func NewEngine(logger *log.Logger) *Engine {
	return &Engine{
		mu:       trylock.New(),
		actual:   make(map[string]*Entry),
		sessions: make(map[string]*session),
		log:      logger.WithField("component", "engine"),
	}
}

func (e *Engine) session(client string) *session {
	s, ok := e.sessions[client]
	if !ok {
		s = &session{bufferTxn: common.NoTxn, buffer: make(map[string]string)}
		e.sessions[client] = s
	}
	return s
}

// observe records txn as the client's current transaction. An older txn
// than the one already seen is an ordering anomaly: it is reported and
// processing continues. A newer txn while an old one still has staged
// writes means the old one was abandoned, so its buffer is dropped.
func (e *Engine) observe(client string, txn int64, op string) *session {
	s := e.session(client)
	switch {
	case txn < s.bufferTxn:
		e.log.WithField("client", client).Errorf("!!! TXN ORDERING VIOLATED !!! %s RECVD %d over %d", op, txn, s.bufferTxn)
		metric.OrderingAnomalies.WithLabelValues(op).Inc()
	case txn > s.bufferTxn && s.bufferTxn != common.NoTxn && len(s.buffer) > 0:
		e.log.WithField("client", client).Warnf("Discarding %d staged writes of abandoned txn %d", len(s.buffer), s.bufferTxn)
		s.buffer = make(map[string]string)
	}
	s.bufferTxn = txn
	return s
}

// writable is the timestamp-ordering write rule.
func writable(entry *Entry, txn int64) bool {
	return txn >= entry.LastReadTxn && txn >= entry.LastWriteTxn
}

// Write stages value for key in the client's buffer. On a committed key the
// write is allowed only if no newer transaction has read or written it; the
// key's write timestamp is claimed immediately.
func (e *Engine) Write(client, key, value string, txn int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.observe(client, txn, "write")
	if entry, ok := e.actual[key]; ok {
		if !writable(entry, txn) {
			e.log.Infof("[txn %d] write %s denied: last read %d, last write %d", txn, key, entry.LastReadTxn, entry.LastWriteTxn)
			return false
		}
		entry.LastWriteTxn = txn
	}
	s.buffer[key] = value
	return true
}

// Read returns the client's staged value for key if any, else the committed
// one. A committed key can be read only if no newer transaction wrote it.
func (e *Engine) Read(client, key string, txn int64) ReadResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.observe(client, txn, "read")
	staged, buffered := s.buffer[key]

	entry, ok := e.actual[key]
	if !ok {
		return ReadResult{Success: true, Value: staged, Found: buffered}
	}
	if txn < entry.LastWriteTxn {
		e.log.Infof("[txn %d] read %s denied: last write %d", txn, key, entry.LastWriteTxn)
		return ReadResult{}
	}
	if txn > entry.LastReadTxn {
		entry.LastReadTxn = txn
	}
	if buffered {
		return ReadResult{Success: true, Value: staged, Found: true}
	}
	return ReadResult{Success: true, Value: entry.Value, Found: true}
}

// TryCommit re-validates every staged write against the current committed
// timestamps. It changes nothing besides the client's current txn.
func (e *Engine) TryCommit(client string, txn int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.observe(client, txn, "trycommit")
	for key := range s.buffer {
		if entry, ok := e.actual[key]; ok && !writable(entry, txn) {
			e.log.Infof("[txn %d] cannot commit %s: last read %d, last write %d", txn, key, entry.LastReadTxn, entry.LastWriteTxn)
			return false
		}
	}
	return true
}

// DoCommit moves the client's staged writes into the committed store and
// leaves the client idle.
func (e *Engine) DoCommit(client string, txn int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session(client)
	if txn < s.bufferTxn {
		e.log.WithField("client", client).Errorf("!!! TXN ORDERING VIOLATED !!! docommit RECVD %d over %d", txn, s.bufferTxn)
		metric.OrderingAnomalies.WithLabelValues("docommit").Inc()
	}

	for key, value := range s.buffer {
		entry, ok := e.actual[key]
		if !ok {
			e.actual[key] = &Entry{Value: value, LastReadTxn: common.NoTxn, LastWriteTxn: txn}
			continue
		}
		entry.Value = value
		if txn > entry.LastWriteTxn {
			entry.LastWriteTxn = txn
		}
	}
	e.log.Infof("[txn %d] committed %d keys for %s", txn, len(s.buffer), client)
	s.buffer = make(map[string]string)
	s.bufferTxn = common.NoTxn
}

// Abort discards the client's staged writes. Timestamps claimed by the
// aborted writes are kept. An abort for a txn older than the client's
// current one is ignored.
func (e *Engine) Abort(client string, txn int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session(client)
	if s.bufferTxn != common.NoTxn && txn < s.bufferTxn {
		e.log.WithField("client", client).Warnf("Ignoring abort of txn %d, current txn is %d", txn, s.bufferTxn)
		return
	}
	e.log.Infof("[txn %d] aborted, dropping %d staged writes of %s", txn, len(s.buffer), client)
	s.buffer = make(map[string]string)
	s.bufferTxn = common.NoTxn
}

// Snapshot returns a copy of the committed store.
func (e *Engine) Snapshot() map[string]Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

func (e *Engine) snapshot() map[string]Entry {
	out := make(map[string]Entry, len(e.actual))
	for k, v := range e.actual {
		var c Entry
		if err := copier.Copy(&c, v); err != nil {
			e.log.Warnf("snapshot of %s: %s", k, err)
			continue
		}
		out[k] = c
	}
	return out
}

// State is Snapshot for the debug service; it gives up rather than queue
// behind a busy store.
func (e *Engine) State() (interface{}, error) {
	if !e.mu.RTryLockTimeout(stateLockTimeout) {
		return nil, errors.New("store is busy")
	}
	defer e.mu.RUnlock()
	return e.snapshot(), nil
}

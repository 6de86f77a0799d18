package coordinator

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/txn-kv-store/metric"
	"go.uber.org/atomic"
)

// DefaultReserveWindow is how many ids are reserved per write of the state file.
const DefaultReserveWindow = 1000

// Authority issues strictly increasing transaction ids.
//
// With a state file, ids are reserved in windows: the end of the current
// window is persisted before any id inside it is handed out, and a restart
// resumes after the persisted mark. Ids skipped by a restart are never
// reissued.
type Authority struct {
	last *atomic.Int64

	mu       sync.Mutex
	reserved int64
	window   int64
	db       *persistDB

	log *log.Entry
}

// NewAuthority returns an in-memory authority when statePath is empty.
func NewAuthority(logger *log.Logger, statePath string, window int64) (*Authority, error) {
	if window <= 0 {
		window = DefaultReserveWindow
	}
	a := &Authority{
		last:   atomic.NewInt64(0),
		window: window,
		log:    logger.WithField("component", "authority"),
	}
	if statePath == "" {
		return a, nil
	}

	db, err := newDBConn(statePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open authority state %s", statePath)
	}
	mark, err := db.load()
	if err != nil {
		db.close()
		return nil, err
	}
	a.db = db
	a.reserved = mark
	a.last.Store(mark)
	a.log.Infof("Resuming txn ids after %d", mark)
	return a, nil
}

// Next returns a fresh transaction id.
func (a *Authority) Next() (int64, error) {
	id := a.last.Inc()
	if a.db != nil {
		if err := a.reserve(id); err != nil {
			return 0, err
		}
	}
	metric.LastTxnID.Set(float64(id))
	return id, nil
}

func (a *Authority) reserve(id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id <= a.reserved {
		return nil
	}
	mark := id + a.window
	if err := a.db.save(mark); err != nil {
		return errors.Wrapf(err, "reserve txn ids up to %d", mark)
	}
	a.log.Debugf("Reserved txn ids up to %d", mark)
	a.reserved = mark
	return nil
}

// Last returns the most recently issued id, 0 if none.
func (a *Authority) Last() int64 {
	return a.last.Load()
}

func (a *Authority) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.close()
}

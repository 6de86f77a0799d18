package coordinator

import (
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var (
	authorityBucket = []byte("authority")
	reservedKey     = []byte("reserved_txn_id")
)

type persistDB struct {
	db      *bolt.DB
	options bolt.Options
}

func newDBConn(file string) (s *persistDB, err error) {
	s = &persistDB{options: bolt.Options{Timeout: 1 * time.Second}}
	s.db, err = bolt.Open(file, 0600, &s.options)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(authorityBucket)
		return err
	})
	if err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// load returns the persisted reservation mark, 0 on a fresh file.
func (s *persistDB) load() (mark int64, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(authorityBucket).Get(reservedKey)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return errors.Errorf("corrupt reservation mark of %d bytes", len(v))
		}
		mark = int64(binary.BigEndian.Uint64(v))
		return nil
	})
	return mark, err
}

func (s *persistDB) save(mark int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v := make([]byte, 8)
		binary.BigEndian.PutUint64(v, uint64(mark))
		return tx.Bucket(authorityBucket).Put(reservedKey, v)
	})
}

func (s *persistDB) close() error {
	return s.db.Close()
}

package pkv

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/omg/pkg/log"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store using an embedded bbolt database, one
// bucket per namespace.
type BoltStore struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// Open creates or opens the PKV database file under dataDir, creating
// one bucket per fixed namespace. A corrupt or unreadable file is
// reported as ErrStorageUnavailable rather than silently recreated.
func Open(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "omg.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, ns := range namespaces {
			if _, err := tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
				return fmt.Errorf("create bucket %s: %w", ns, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &BoltStore{db: db, logger: log.WithComponent("pkv")}, nil
}

// encodeValue prefixes value with an 8-byte big-endian expiry deadline
// (unix nanos, zero meaning no expiry) derived from the caller's ttl
// hint, so a later read can discard a stale entry without any
// background sweeper.
func encodeValue(value []byte, ttlHintNanos int64) []byte {
	var deadline uint64
	if ttlHintNanos > 0 {
		deadline = uint64(time.Now().UnixNano() + ttlHintNanos)
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], deadline)
	copy(buf[8:], value)
	return buf
}

// decodeValue splits a stored record into its payload, reporting
// expired=true for a record whose deadline has passed (or that is too
// short to carry one). Expired records stay in the bucket until the
// next Put overwrites them; readers just refuse to return them.
func decodeValue(stored []byte) (value []byte, expired bool) {
	if len(stored) < 8 {
		return nil, true
	}
	deadline := binary.BigEndian.Uint64(stored[:8])
	if deadline != 0 && uint64(time.Now().UnixNano()) > deadline {
		return nil, true
	}
	out := make([]byte, len(stored)-8)
	copy(out, stored[8:])
	return out, false
}

func (s *BoltStore) Get(namespace Namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("unknown namespace: %s", namespace)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		decoded, expired := decodeValue(data)
		if expired {
			return ErrNotFound
		}
		value = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BoltStore) Put(namespace Namespace, key string, value []byte, ttlHintNanos int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("unknown namespace: %s", namespace)
		}
		return b.Put([]byte(key), encodeValue(value, ttlHintNanos))
	})
}

func (s *BoltStore) Delete(namespace Namespace, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("unknown namespace: %s", namespace)
		}
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) Range(namespace Namespace, prefix string, limit int) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("unknown namespace: %s", namespace)
		}
		c := b.Cursor()
		p := []byte(prefix)
		count := 0
		for k, v := c.Seek(p); k != nil && hasPrefix(k, p); k, v = c.Next() {
			if limit > 0 && count >= limit {
				break
			}
			decoded, expired := decodeValue(v)
			if expired {
				continue
			}
			out[string(k)] = decoded
			count++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)

package peer

import (
	"encoding/json"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pharos-net/pharos/internal/wire"
)

var bucketPeers = []byte("peers")

// Store persists known peer addresses so a restarted node can re-register
// them immediately instead of waiting out a discovery round.
type Store struct {
	db *bolt.DB
}

// Record is one persisted peer row.
type Record struct {
	Addr     string    `json:"addr" yaml:"addr"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen"`
}

// OpenStore opens (or creates) the peer database inside dir.
func OpenStore(dir string) (*Store, error) {
	db, err := bolt.Open(filepath.Join(dir, "peers.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPeers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the given peers, replacing any previous record per address.
func (s *Store) Save(peers []Peer) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketPeers)
		for _, p := range peers {
			data, err := json.Marshal(Record{Addr: p.Addr.String(), LastSeen: p.LastSeen})
			if err != nil {
				return err
			}
			if err := bkt.Put(p.Addr[:], data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns every stored peer address. Records that no longer parse are
// skipped rather than failing the whole load.
func (s *Store) Load() ([]wire.Addr, error) {
	var out []wire.Addr
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).ForEach(func(k, _ []byte) error {
			if len(k) != wire.AddrLen {
				return nil
			}
			var a wire.Addr
			copy(a[:], k)
			out = append(out, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Records returns every stored peer record, skipping rows that no longer
// unmarshal.
func (s *Store) Records() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Forget removes a single address.
func (s *Store) Forget(addr wire.Addr) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).Delete(addr[:])
	})
}

package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// BoltStore persists cache entries across sessions in a single local BoltDB
// file. Each cache namespace maps to one bucket.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the persistence file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("cache storage path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Save writes the store's current entries into the named bucket, replacing
// its previous contents.
func Save[T any](b *BoltStore, bucket string, s *Store[T]) error {
	entries := s.Export()
	return b.db.Update(func(tx *bbolt.Tx) error {
		if existing := tx.Bucket([]byte(bucket)); existing != nil {
			if err := tx.DeleteBucket([]byte(bucket)); err != nil {
				return fmt.Errorf("reset bucket %s: %w", bucket, err)
			}
		}
		bk, err := tx.CreateBucket([]byte(bucket))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		for id, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal cache entry %s: %w", id, err)
			}
			if err := bk.Put([]byte(id), data); err != nil {
				return fmt.Errorf("put cache entry %s: %w", id, err)
			}
		}
		return nil
	})
}

// Load restores persisted entries from the named bucket into the store.
// Rows that fail shape validation are dropped silently rather than aborting
// the whole load.
func Load[T any](b *BoltStore, bucket string, s *Store[T]) error {
	restored := make(map[string]Entry[T])
	dropped := 0

	err := b.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket([]byte(bucket))
		if bk == nil {
			return nil // nothing persisted yet
		}
		return bk.ForEach(func(k, v []byte) error {
			var e Entry[T]
			if err := json.Unmarshal(v, &e); err != nil || e.LastUsed.IsZero() {
				dropped++
				return nil
			}
			restored[string(k)] = e
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("load cache bucket %s: %w", bucket, err)
	}

	if dropped > 0 {
		log.Warn().Str("bucket", bucket).Int("dropped", dropped).Msg("dropped malformed persisted cache entries")
	}
	s.Restore(restored)
	return nil
}

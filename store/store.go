// Package store persists the results of finished parameter values in a
// bolt database, so that an interrupted sweep can be resumed without
// recomputing them. Each sweep configuration gets its own bucket, keyed
// by a fingerprint, so a checkpoint is never resumed into a different
// sweep.
package store

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"

	"github.com/crobine/evosample/sample"
)

var log = logging.MustGetLogger("store")

// Fingerprint derives a stable bucket name from the parts of a sweep
// configuration that must match for results to be reusable.
func Fingerprint(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("sweep-%016x", h.Sum64())
}

// Store is a checkpoint database for one sweep.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open opens (creating if needed) the checkpoint database at path,
// using the given configuration fingerprint as the bucket name.
func Open(path, fingerprint string) (*Store, error) {
	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, bucket: []byte(fingerprint)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func valueKey(value float64) []byte {
	return []byte(strconv.FormatFloat(value, 'g', -1, 64))
}

// Save stores the results for one finished parameter value.
func (s *Store) Save(value float64, results []sample.Result) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put(valueKey(value), data)
	})
	if err != nil {
		log.Error("Error saving checkpoint: ", err)
	}
	return err
}

// Load returns the stored results for a parameter value, or nil if the
// value has not been checkpointed for this sweep.
func (s *Store) Load(value float64) ([]sample.Result, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(valueKey(value)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, err
	}

	var results []sample.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}

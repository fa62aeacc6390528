// Package store persists records and uploaded blobs in a bbolt database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/values"
)

const (
	bucketRecords   = "records"
	bucketBlobs     = "blobs"
	bucketBlobTypes = "blob_types"
)

var (
	// ErrNotFound is returned when a record or blob does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidRecord is returned for records that are not JSON objects.
	ErrInvalidRecord = errors.New("store: record must be an object")
)

var initDB = map[string]func(*bolt.Tx) error{
	"initialize record table": func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRecords))
		return err
	},
	"initialize blob tables": func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketBlobs)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBlobTypes))
		return err
	},
}

// Store is safe for concurrent use.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := fn(tx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record returns the record stored under id.
func (s *Store) Record(id string) (values.Tree, error) {
	var tree values.Tree
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketRecords)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &tree)
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// PutRecord replaces the record stored under id.
func (s *Store) PutRecord(id string, tree values.Tree) error {
	if tree == nil {
		return ErrInvalidRecord
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", id, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRecords)).Put([]byte(id), data)
	})
}

// PatchRecord merges patch into the record under id and returns the result.
// Missing records start empty. A nil leaf in patch stores an explicit null.
func (s *Store) PatchRecord(id string, patch map[string]any) (values.Tree, error) {
	var out values.Tree
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRecords))
		current := values.Tree{}
		if v := b.Get([]byte(id)); v != nil {
			if err := json.Unmarshal(v, &current); err != nil {
				return fmt.Errorf("store: decode %s: %w", id, err)
			}
		}
		merged, ok := diff.Apply(map[string]any(current), patch).(map[string]any)
		if !ok {
			return ErrInvalidRecord
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", id, err)
		}
		out = values.Tree(merged)
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRecord removes the record under id.
func (s *Store) DeleteRecord(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRecords)).Delete([]byte(id))
	})
}

// RecordIDs lists the stored record ids in key order.
func (s *Store) RecordIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRecords)).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Blob is uploaded content.
type Blob struct {
	Key         string
	ContentType string
	Data        []byte
}

// NewBlobKey returns a fresh key under prefix, e.g. "avatars/01H...".
func NewBlobKey(prefix string) string {
	id := ulid.Make().String()
	if prefix == "" {
		return id
	}
	return prefix + "/" + id
}

// PutBlob stores data under key.
func (s *Store) PutBlob(key, contentType string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketBlobs)).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketBlobTypes)).Put([]byte(key), []byte(contentType))
	})
}

// Blob returns the blob stored under key.
func (s *Store) Blob(key string) (Blob, error) {
	blob := Blob{Key: key}
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketBlobs)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		blob.Data = append([]byte(nil), v...)
		blob.ContentType = string(tx.Bucket([]byte(bucketBlobTypes)).Get([]byte(key)))
		return nil
	})
	if err != nil {
		return Blob{}, err
	}
	return blob, nil
}

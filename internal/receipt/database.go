package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "checks"

// ErrNotFound is returned when a check does not exist
var ErrNotFound = errors.New("check not found")

// DB defines the interface for database operations
type DB interface {
	// SaveCheck saves a check to the database
	SaveCheck(check *Check) error

	// GetCheck retrieves a check by ID
	GetCheck(id string) (*Check, error)

	// ListChecks returns all checks, newest first
	ListChecks() ([]*Check, error)

	// DeleteCheck removes a check from the database
	DeleteCheck(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveCheck saves a check to the database
func (b *BoltDB) SaveCheck(check *Check) error {
	data, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("marshaling check: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(check.ID), data)
	})
}

// GetCheck retrieves a check by ID
func (b *BoltDB) GetCheck(id string) (*Check, error) {
	var check *Check
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &check)
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

// ListChecks returns all checks, newest first
func (b *BoltDB) ListChecks() ([]*Check, error) {
	checks := make([]*Check, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var check Check
			if err := json.Unmarshal(v, &check); err != nil {
				return fmt.Errorf("unmarshaling check %s: %w", k, err)
			}
			checks = append(checks, &check)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(checks, func(i, j int) bool {
		return checks[i].CreatedAt.After(checks[j].CreatedAt)
	})
	return checks, nil
}

// DeleteCheck removes a check from the database
func (b *BoltDB) DeleteCheck(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "invoices"

// ErrNotFound is returned when a record or its file does not exist.
var ErrNotFound = errors.New("not found")

// DB defines the interface for record persistence
type DB interface {
	// SaveInvoice stores a record, replacing any record with the same ID
	SaveInvoice(record *Record) error

	// GetInvoice retrieves a record by ID
	GetInvoice(id string) (*Record, error)

	// ListInvoices returns all records, newest first
	ListInvoices() ([]*Record, error)

	// DeleteInvoice removes a record
	DeleteInvoice(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB stores each record as one JSON document keyed by ID.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file at path.
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

// SaveInvoice stores a record
func (b *BoltDB) SaveInvoice(record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling invoice %s: %w", record.ID, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(record.ID), data)
	})
}

// GetInvoice retrieves a record by ID
func (b *BoltDB) GetInvoice(id string) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("invoice %s: %w", id, ErrNotFound)
		}
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("unmarshaling invoice %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListInvoices returns all records, newest first
func (b *BoltDB) ListInvoices() ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling invoice %s: %w", k, err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// DeleteInvoice removes a record. Deleting a missing record is not an error.
func (b *BoltDB) DeleteInvoice(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

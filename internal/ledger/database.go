package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "ledger"

// Collection names. Each holds a JSON array, except settings which holds
// a single object.
const (
	collectionParties        = "parties"
	collectionPurchases      = "purchases"
	collectionSales          = "sales"
	collectionPayments       = "payments"
	collectionStock          = "stock"
	collectionStockMovements = "stock_movements"
	collectionSettings       = "settings"
	collectionAlerts         = "alerts"
)

// DB defines the interface for the document store
type DB interface {
	// GetAll returns the stored document for a collection, or nil when the
	// collection has never been written
	GetAll(collection string) (json.RawMessage, error)

	// ReplaceAll overwrites a collection
	ReplaceAll(collection string, data json.RawMessage) error

	// ReplaceMany overwrites several collections in one transaction
	ReplaceMany(changes map[string]json.RawMessage) error

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

// GetAll returns a copy of the collection document
func (b *BoltDB) GetAll(collection string) (json.RawMessage, error) {
	var data json.RawMessage
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(collection))
		if v != nil {
			// bbolt values are only valid for the life of the transaction
			data = append(json.RawMessage(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	return data, nil
}

// ReplaceAll overwrites a collection
func (b *BoltDB) ReplaceAll(collection string, data json.RawMessage) error {
	return b.ReplaceMany(map[string]json.RawMessage{collection: data})
}

// ReplaceMany overwrites several collections atomically
func (b *BoltDB) ReplaceMany(changes map[string]json.RawMessage) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for collection, data := range changes {
			if !json.Valid(data) {
				return fmt.Errorf("writing %s: invalid json", collection)
			}
			if err := bucket.Put([]byte(collection), data); err != nil {
				return fmt.Errorf("writing %s: %w", collection, err)
			}
		}
		return nil
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// record is implemented by every entity stored in an array collection
type record interface {
	key() string
}

// loadAll decodes a collection, returning an empty slice for one never written.
func loadAll[T any](db DB, collection string) ([]T, error) {
	data, err := db.GetAll(collection)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", collection, err)
	}
	return items, nil
}

// saveAll encodes and writes a whole collection.
func saveAll[T any](db DB, collection string, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", collection, err)
	}
	return db.ReplaceAll(collection, data)
}

// findByID returns the index of the record with id, or -1.
func findByID[T record](items []T, id string) int {
	for i, item := range items {
		if item.key() == id {
			return i
		}
	}
	return -1
}

// filterBy returns the items keep accepts, never nil.
func filterBy[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0)
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// changeSet stages several collections for one ReplaceMany call.
type changeSet map[string]json.RawMessage

// stage adds a marshaled collection to the change set.
func stage[T any](cs changeSet, collection string, items T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", collection, err)
	}
	cs[collection] = data
	return nil
}

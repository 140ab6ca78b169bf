// Package docstore persists raw documents by id so that query results can
// be materialised with titles and snippets. It is a bbolt file mapping
// document ids to a (title, body) record.
package docstore

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/quiverdb/quiver/pkg/errors"
)

var documentsBucket = []byte("documents")

// Store is a persistent DocID -> (Title, Body) mapping.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the document store file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening docstore %s: %v", errors.ErrStorage, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialising docstore %s: %v", errors.ErrStorage, path, err)
	}
	return &Store{db: db}, nil
}

// Put stores (title, body) under docID, overwriting any previous record.
func (s *Store) Put(docID, title, body string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Put([]byte(docID), encodeDocument(title, body))
	})
	if err != nil {
		return fmt.Errorf("%w: storing document %q: %v", errors.ErrStorage, docID, err)
	}
	return nil
}

// Get returns the stored (title, body) for docID.
func (s *Store) Get(docID string) (title, body string, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(documentsBucket).Get([]byte(docID))
		if raw == nil {
			return fmt.Errorf("%w: %q", errors.ErrDocumentNotFound, docID)
		}
		var decodeErr error
		title, body, decodeErr = decodeDocument(raw)
		if decodeErr != nil {
			return fmt.Errorf("document %q: %w", docID, decodeErr)
		}
		return nil
	})
	return title, body, err
}

// Has reports whether docID is present in the store.
func (s *Store) Has(docID string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(documentsBucket).Get([]byte(docID)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: reading document %q: %v", errors.ErrStorage, docID, err)
	}
	return found, nil
}

// Keys returns every document id in the store, in byte order.
func (s *Store) Keys() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating documents: %v", errors.ErrStorage, err)
	}
	return ids, nil
}

// Count returns the number of stored documents.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(documentsBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: reading docstore stats: %v", errors.ErrStorage, err)
	}
	return n, nil
}

// Close releases the underlying store file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Documents are stored as a length-prefixed title followed by the verbatim
// body.
func encodeDocument(title, body string) []byte {
	buf := make([]byte, 0, 4+len(title)+len(body))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(title)))
	buf = append(buf, title...)
	buf = append(buf, body...)
	return buf
}

func decodeDocument(data []byte) (title, body string, err error) {
	if len(data) < 4 {
		return "", "", fmt.Errorf("%w: record too short", errors.ErrCorrupt)
	}
	titleLen := int(binary.LittleEndian.Uint32(data))
	if 4+titleLen > len(data) {
		return "", "", fmt.Errorf("%w: title length %d exceeds record", errors.ErrCorrupt, titleLen)
	}
	return string(data[4 : 4+titleLen]), string(data[4+titleLen:]), nil
}

package index

import (
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/quiverdb/quiver/pkg/errors"
)

var postingsBucket = []byte("postings")

// DiskSegment is the persistent half of the index: a bbolt file mapping
// encoded terms to encoded posting lists. MergePostingList is the only
// mutation path; writes are last-writer-wins per term.
type DiskSegment struct {
	db     *bolt.DB
	logger *slog.Logger
}

// OpenDiskSegment opens or creates the segment file at path.
func OpenDiskSegment(path string) (*DiskSegment, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening segment %s: %v", errors.ErrStorage, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(postingsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialising segment %s: %v", errors.ErrStorage, path, err)
	}
	return &DiskSegment{
		db:     db,
		logger: slog.Default().With("component", "disk-segment"),
	}, nil
}

// Has reports whether the segment holds a posting list for term.
func (d *DiskSegment) Has(term string) (bool, error) {
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(postingsBucket).Get([]byte(term)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: reading term %q: %v", errors.ErrStorage, term, err)
	}
	return found, nil
}

// Keys returns every term stored in the segment, in byte order.
func (d *DiskSegment) Keys() ([]string, error) {
	var terms []string
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(postingsBucket).ForEach(func(k, _ []byte) error {
			terms = append(terms, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating terms: %v", errors.ErrStorage, err)
	}
	return terms, nil
}

// Terms returns the number of terms stored in the segment.
func (d *DiskSegment) Terms() (int, error) {
	var n int
	err := d.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(postingsBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: reading segment stats: %v", errors.ErrStorage, err)
	}
	return n, nil
}

// readPostingList decodes the posting list for term inside a read
// transaction. A missing term yields an empty list.
func readPostingList(tx *bolt.Tx, term string) (PostingList, error) {
	raw := tx.Bucket(postingsBucket).Get([]byte(term))
	if raw == nil {
		return nil, nil
	}
	pl, err := DecodePostingList(raw)
	if err != nil {
		return nil, fmt.Errorf("term %q: %w", term, err)
	}
	return pl, nil
}

// OneWordQuery returns the ids of documents containing term, ascending.
func (d *DiskSegment) OneWordQuery(term string) ([]string, error) {
	var ids []string
	err := d.db.View(func(tx *bolt.Tx) error {
		pl, err := readPostingList(tx, term)
		if err != nil {
			return err
		}
		ids = pl.DocIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PhraseQuery decodes the posting list of each phrase term (missing terms
// yield empty lists) and intersects them into phrase matches.
func (d *DiskSegment) PhraseQuery(terms []string) ([]string, error) {
	var ids []string
	err := d.db.View(func(tx *bolt.Tx) error {
		lists := make([]PostingList, len(terms))
		for i, term := range terms {
			pl, err := readPostingList(tx, term)
			if err != nil {
				return err
			}
			lists[i] = pl
		}
		ids = FindPhrases(lists).DocIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MergePostingList merges pl into the stored posting list for term. If the
// term is absent the list is stored as-is. Re-running the same merge is
// idempotent, which makes a repeated flush after a partial failure safe.
func (d *DiskSegment) MergePostingList(term string, pl PostingList) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(postingsBucket)
		merged := pl
		if raw := bucket.Get([]byte(term)); raw != nil {
			existing, err := DecodePostingList(raw)
			if err != nil {
				return fmt.Errorf("term %q: %w", term, err)
			}
			merged = MergeLists(existing, pl)
		}
		if err := bucket.Put([]byte(term), EncodePostingList(merged)); err != nil {
			return fmt.Errorf("%w: writing term %q: %v", errors.ErrStorage, term, err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("posting list merge failed", "term", term, "error", err)
	}
	return err
}

// Close releases the underlying segment file.
func (d *DiskSegment) Close() error {
	return d.db.Close()
}

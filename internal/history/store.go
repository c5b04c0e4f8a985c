package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

const bucketLog = "log"

// ErrBusy is returned when another process holds the log open.
var ErrBusy = errors.New("operation log is in use by another process")

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("no such log entry")

// Store manages the operation log using BoltDB. Ids come from the
// bucket sequence, so they strictly increase even across truncation and
// program restarts within one log file generation.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the operation log at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		if errors.Is(err, berrors.ErrTimeout) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("open operation log: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketLog))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize operation log: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the log.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append assigns the next id to the entry and writes it.
func (s *Store) Append(entry *Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLog))
		if bucket == nil {
			return fmt.Errorf("log bucket not found")
		}

		id, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = id

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return bucket.Put(itob(id), data)
	})
}

// List returns the most recent entries, newest first. A non-positive
// limit returns everything.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLog))
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = cursor.Prev() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// Get retrieves a specific entry by id.
func (s *Store) Get(id uint64) (*Entry, error) {
	var entry *Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLog))
		if bucket == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}

		data := bucket.Get(itob(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}

		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})

	return entry, err
}

// Last returns the most recent entry, or nil for an empty log.
func (s *Store) Last() (*Entry, error) {
	var entry *Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLog))
		if bucket == nil {
			return nil
		}

		_, v := bucket.Cursor().Last()
		if v == nil {
			return nil
		}

		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		entry = &e
		return nil
	})

	return entry, err
}

// After returns every entry with an id strictly greater than id, newest
// first. This is the walk order of reverse.
func (s *Store) After(id uint64) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLog))
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && binary.BigEndian.Uint64(k) > id; k, v = cursor.Prev() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("malformed log entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// TruncateAfter deletes every entry with an id strictly greater than id.
// The sequence is not rewound, so ids are never reused.
func (s *Store) TruncateAfter(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLog))
		if bucket == nil {
			return nil
		}

		var toDelete [][]byte
		cursor := bucket.Cursor()
		for k, _ := cursor.Last(); k != nil && binary.BigEndian.Uint64(k) > id; k, _ = cursor.Prev() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of entries.
func (s *Store) Count() (int, error) {
	var count int

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLog))
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})

	return count, err
}

// itob encodes an id as its big-endian key so the cursor order is the id
// order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

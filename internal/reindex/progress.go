package reindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

// DB is the subset of a pebble database the checkpoint store uses.
type DB interface {
	// Get returns ErrNotFound if the DB does not contain the key. On success
	// the caller MUST close the returned closer.
	Get(key []byte) (value []byte, closer io.Closer, err error)
	NewIter(o *pebble.IterOptions) (Iterator, error)
	Set(key, value []byte, o *pebble.WriteOptions) error
	NewBatch() Batch
	Close() error
}

// Iterator walks keys of a DB in order.
type Iterator interface {
	First() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Next() bool
	Error() error
	Close() error
}

// Batch is a write-only batch applied atomically on commit.
type Batch interface {
	Delete(key []byte, opt *pebble.WriteOptions) error
	Commit(o *pebble.WriteOptions) error
	Close() error
}

// PebbleDB wraps a pebble.DB to implement the DB interface.
type PebbleDB struct {
	db *pebble.DB
}

func (p *PebbleDB) Get(key []byte) (value []byte, closer io.Closer, err error) {
	return p.db.Get(key)
}

func (p *PebbleDB) NewIter(o *pebble.IterOptions) (iter Iterator, err error) {
	return p.db.NewIter(o)
}

func (p *PebbleDB) Set(key, value []byte, o *pebble.WriteOptions) error {
	return p.db.Set(key, value, o)
}

func (p *PebbleDB) NewBatch() Batch {
	return p.db.NewBatch()
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// Key layout: progress/{table} → JSON checkpoint
const prefixProgress = "progress/"

func progressKey(table string) []byte {
	return []byte(prefixProgress + url.PathEscape(table))
}

// Checkpoint records how far the reindex of a table got. Rows up to and
// including LastID have been flushed to the search index.
type Checkpoint struct {
	Table     string    `json:"table"`
	LastID    int64     `json:"last_id"`
	Rows      int64     `json:"rows"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressStore persists reindex checkpoints so an interrupted reindex can
// resume where it stopped.
type ProgressStore struct {
	db DB
}

// OpenProgressStore opens or creates the checkpoint database at path.
func OpenProgressStore(path string, blockCacheSize int64) (*ProgressStore, error) {
	if path == "" {
		return nil, fmt.Errorf("progress path is required")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}

	cache := pebble.NewCache(blockCacheSize)
	defer cache.Unref()

	db, err := pebble.Open(path, &pebble.Options{
		Cache: cache,
		Levels: []pebble.LevelOptions{
			{FilterPolicy: bloom.FilterPolicy(10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return NewProgressStore(&PebbleDB{db: db}), nil
}

// NewProgressStore creates a checkpoint store on db.
func NewProgressStore(db DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Load returns the checkpoint of table. ok is false when there is none.
func (s *ProgressStore) Load(table string) (cp Checkpoint, ok bool, err error) {
	value, closer, err := s.db.Get(progressKey(table))
	if errors.Is(err, pebble.ErrNotFound) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	defer closer.Close()

	if err := json.Unmarshal(value, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("corrupt checkpoint for %s: %w", table, err)
	}
	return cp, true, nil
}

// Save writes cp durably.
func (s *ProgressStore) Save(cp Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	if err := s.db.Set(progressKey(cp.Table), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoints of tables.
func (s *ProgressStore) Clear(tables ...string) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, table := range tables {
		if err := batch.Delete(progressKey(table), nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}

// List returns every checkpoint ordered by table.
func (s *ProgressStore) List() ([]Checkpoint, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixProgress),
		UpperBound: []byte("progress0"), // '0' follows '/'
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Checkpoint
	for iter.First(); iter.Valid(); iter.Next() {
		var cp Checkpoint
		if err := json.Unmarshal(iter.Value(), &cp); err != nil {
			return nil, fmt.Errorf("corrupt checkpoint at %s: %w", iter.Key(), err)
		}
		out = append(out, cp)
	}
	return out, iter.Error()
}

// Close closes the checkpoint database.
func (s *ProgressStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close pebble database: %w", err)
	}
	return nil
}

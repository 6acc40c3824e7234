// Package memory provides in-process implementations of the repository
// interfaces, used by the "memory" database DSN and by service tests.
//
// Transactions are serialized: WithTx holds a store-wide lock for the
// duration of fn and restores a snapshot of all tables when fn fails.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Store holds every table of the in-memory database.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	t    *tables
	now  func() time.Time
}

type tables struct {
	seq     int64
	buckets map[int64]models.Bucket
	folders map[int64]models.Folder
	files   map[int64]models.File
	blocks  map[int64]models.DataBlock
	uploads map[int64]models.Upload
}

func newTables() *tables {
	return &tables{
		buckets: map[int64]models.Bucket{},
		folders: map[int64]models.Folder{},
		files:   map[int64]models.File{},
		blocks:  map[int64]models.DataBlock{},
		uploads: map[int64]models.Upload{},
	}
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	return &tables{
		seq:     t.seq,
		buckets: cloneMap(t.buckets),
		folders: cloneMap(t.folders),
		files:   cloneMap(t.files),
		blocks:  cloneMap(t.blocks),
		uploads: cloneMap(t.uploads),
	}
}

func (t *tables) nextID() int64 {
	t.seq++
	return t.seq
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{t: newTables(), now: time.Now}
}

var _ dbx.Database = (*Store)(nil)

// WithTx runs fn while holding the store's transaction lock. The DBTX handed
// to fn is nil; repositories vended for this store ignore it.
func (s *Store) WithTx(ctx context.Context, fn dbx.TxFunc) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := s.t.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, nil)
}

func (s *Store) restore(t *tables) {
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
}

func (s *Store) read(fn func(t *tables) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.t)
}

func (s *Store) write(fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.t)
}

var errNilRecord = errors.New("memory: nil record")

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

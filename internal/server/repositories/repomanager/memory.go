package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/datablocks"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/folders"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/uploads"
)

// InMemoryRepositoryManager vends repositories backed by a memory.Store.
// The DBTX arguments are ignored; transactions come from the store itself.
type InMemoryRepositoryManager struct {
	store *memory.Store
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Buckets(dbx.DBTX) buckets.Repository {
	return m.store.Buckets()
}

func (m *InMemoryRepositoryManager) Folders(dbx.DBTX) folders.Repository {
	return m.store.Folders()
}

func (m *InMemoryRepositoryManager) Files(dbx.DBTX) files.Repository {
	return m.store.Files()
}

func (m *InMemoryRepositoryManager) DataBlocks(dbx.DBTX) datablocks.Repository {
	return m.store.DataBlocks()
}

func (m *InMemoryRepositoryManager) Uploads(dbx.DBTX) uploads.Repository {
	return m.store.Uploads()
}

// NewInMemoryRepositoryManager returns a manager over store. Pair it with
// store as the dbx.Database.
func NewInMemoryRepositoryManager(store *memory.Store) RepositoryManager {
	return &InMemoryRepositoryManager{store: store}
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/datablocks"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/folders"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/uploads"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Buckets(db dbx.DBTX) buckets.Repository
	Folders(db dbx.DBTX) folders.Repository
	Files(db dbx.DBTX) files.Repository
	DataBlocks(db dbx.DBTX) datablocks.Repository
	Uploads(db dbx.DBTX) uploads.Repository
}

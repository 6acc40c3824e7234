package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

const columns = `id, bucket_id, folder_id, data_block_id, project_name, file_name, read_only, author, created_at, updated_at`

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	f := &models.File{}
	err := s.Scan(&f.ID, &f.BucketID, &f.FolderID, &f.DataBlockID, &f.ProjectName, &f.FileName, &f.ReadOnly, &f.Author, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Find looks a file up by its (bucket, folder, name) tuple.
func (r *PostgresRepository) Find(ctx context.Context, bucketID int64, folderID *int64, name string) (*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE bucket_id=$1 AND folder_id IS NOT DISTINCT FROM $2 AND file_name=$3`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, bucketID, folderID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// ListInFolder returns files directly under folderID ordered by name.
func (r *PostgresRepository) ListInFolder(ctx context.Context, bucketID int64, folderID *int64) ([]*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE bucket_id=$1 AND folder_id IS NOT DISTINCT FROM $2 ORDER BY file_name`

	rows, err := r.db.QueryContext(ctx, query, bucketID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert creates the file or rebinds an existing writable one to a new data
// block and author. Returns common.ErrFileReadOnly when the existing file is
// protected.
func (r *PostgresRepository) Upsert(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (bucket_id, folder_id, data_block_id, project_name, file_name, author)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bucket_id, COALESCE(folder_id, 0), file_name)
		DO UPDATE SET
			data_block_id = EXCLUDED.data_block_id,
			author = EXCLUDED.author,
			updated_at = now()
			WHERE files.read_only = false
		RETURNING id, read_only, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		file.BucketID, file.FolderID, file.DataBlockID, file.ProjectName, file.FileName, file.Author).
		Scan(&file.ID, &file.ReadOnly, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrFileReadOnly
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rename moves the file. A clash with an existing entry yields
// common.ErrAlreadyExists.
func (r *PostgresRepository) Rename(ctx context.Context, id int64, folderID *int64, name string) error {
	query := `UPDATE files SET folder_id=$2, file_name=$3, updated_at=now() WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, id, folderID, name)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

func (r *PostgresRepository) SetReadOnly(ctx context.Context, id int64, readOnly bool) error {
	query := `UPDATE files SET read_only=$2, updated_at=now() WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, id, readOnly)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

// Delete removes the tree entry only; the data block row is kept.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM files WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

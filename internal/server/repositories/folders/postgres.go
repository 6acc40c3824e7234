package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

const columns = `id, bucket_id, parent_id, project_name, folder_name, read_only, author, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(s scanner) (*models.Folder, error) {
	f := &models.Folder{}
	err := s.Scan(&f.ID, &f.BucketID, &f.ParentID, &f.ProjectName, &f.FolderName, &f.ReadOnly, &f.Author, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create inserts folder. A sibling with the same name yields common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := `
		INSERT INTO folders (bucket_id, parent_id, project_name, folder_name, read_only, author)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		folder.BucketID, folder.ParentID, folder.ProjectName, folder.FolderName, folder.ReadOnly, folder.Author).
		Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders WHERE id=$1`

	f, err := scanFolder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	return f, nil
}

// FindChild looks a folder up by its (bucket, parent, name) tuple.
func (r *PostgresRepository) FindChild(ctx context.Context, bucketID int64, parentID *int64, name string) (*models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders
		WHERE bucket_id=$1 AND parent_id IS NOT DISTINCT FROM $2 AND folder_name=$3`

	f, err := scanFolder(r.db.QueryRowContext(ctx, query, bucketID, parentID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) ListChildren(ctx context.Context, bucketID int64, parentID *int64) ([]*models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders
		WHERE bucket_id=$1 AND parent_id IS NOT DISTINCT FROM $2 ORDER BY folder_name`

	rows, err := r.db.QueryContext(ctx, query, bucketID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
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

func (r *PostgresRepository) SetReadOnly(ctx context.Context, id int64, readOnly bool) error {
	query := `UPDATE folders SET read_only=$2, updated_at=now() WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, id, readOnly)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

const columns = `id, project_name, bucket_id, file_name, uploader_id, author, file_size,
	current_byte_position, next_blob_size, next_blob_hash, created_at, updated_at`

// PostgresRepository implements upload session storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUpload(row *sql.Row) (*models.Upload, error) {
	u := &models.Upload{}
	err := row.Scan(&u.ID, &u.ProjectName, &u.BucketID, &u.FileName, &u.UploaderID, &u.Author, &u.FileSize,
		&u.CurrentBytePosition, &u.NextBlobSize, &u.NextBlobHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindOrCreate inserts upload or, when its key is taken, returns the
// existing session untouched apart from updated_at.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, upload *models.Upload) (*models.Upload, error) {
	query := `
		INSERT INTO uploads (project_name, bucket_id, file_name, uploader_id, author,
			file_size, current_byte_position, next_blob_size, next_blob_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_name, bucket_id, file_name, uploader_id)
		DO UPDATE SET updated_at = now()
		RETURNING ` + columns

	u, err := scanUpload(r.db.QueryRowContext(ctx, query,
		upload.ProjectName, upload.BucketID, upload.FileName, upload.UploaderID, upload.Author,
		upload.FileSize, upload.CurrentBytePosition, upload.NextBlobSize, upload.NextBlobHash))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) find(ctx context.Context, key models.UploadKey, suffix string) (*models.Upload, error) {
	query := `SELECT ` + columns + ` FROM uploads
		WHERE project_name=$1 AND bucket_id=$2 AND file_name=$3 AND uploader_id=$4` + suffix

	u, err := scanUpload(r.db.QueryRowContext(ctx, query, key.ProjectName, key.BucketID, key.FilePath, key.UploaderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select upload: %w", err)
	}
	return u, nil
}

// Find returns the session for key or common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, key models.UploadKey) (*models.Upload, error) {
	return r.find(ctx, key, "")
}

// FindForUpdate locks the session row; it must run inside a transaction.
func (r *PostgresRepository) FindForUpdate(ctx context.Context, key models.UploadKey) (*models.Upload, error) {
	return r.find(ctx, key, " FOR UPDATE")
}

// Update persists the mutable counters of upload.
func (r *PostgresRepository) Update(ctx context.Context, upload *models.Upload) error {
	query := `
		UPDATE uploads SET
			file_size=$2,
			current_byte_position=$3,
			next_blob_size=$4,
			next_blob_hash=$5,
			updated_at=now()
		WHERE id=$1
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		upload.ID, upload.FileSize, upload.CurrentBytePosition, upload.NextBlobSize, upload.NextBlobHash).
		Scan(&upload.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the session row.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM uploads WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
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

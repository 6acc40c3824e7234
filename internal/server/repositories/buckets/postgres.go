package buckets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// PostgresRepository implements bucket storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts bucket and fills its id and creation time.
// Returns common.ErrAlreadyExists if the project already has such a bucket.
func (r *PostgresRepository) Create(ctx context.Context, bucket *models.Bucket) error {
	query := `INSERT INTO buckets (project_name, name) VALUES ($1, $2) RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, bucket.ProjectName, bucket.Name).Scan(&bucket.ID, &bucket.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByName returns the bucket or common.ErrorNotFound.
func (r *PostgresRepository) FindByName(ctx context.Context, projectName, name string) (*models.Bucket, error) {
	query := `SELECT id, project_name, name, created_at FROM buckets WHERE project_name=$1 AND name=$2`

	b := &models.Bucket{}
	err := r.db.QueryRowContext(ctx, query, projectName, name).Scan(&b.ID, &b.ProjectName, &b.Name, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select bucket: %w", err)
	}
	return b, nil
}

// List returns the project's buckets ordered by name.
func (r *PostgresRepository) List(ctx context.Context, projectName string) ([]*models.Bucket, error) {
	query := `SELECT id, project_name, name, created_at FROM buckets WHERE project_name=$1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to select buckets: %w", err)
	}
	defer rows.Close()

	var result []*models.Bucket
	for rows.Next() {
		var b models.Bucket
		if err := rows.Scan(&b.ID, &b.ProjectName, &b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

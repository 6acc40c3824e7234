package datablocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

const columns = `id, md5_hash, size, location, archive_id, description, created_at, updated_at`

// PostgresRepository implements data block storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanBlock(row *sql.Row) (*models.DataBlock, error) {
	b := &models.DataBlock{}
	if err := row.Scan(&b.ID, &b.MD5Hash, &b.Size, &b.Location, &b.ArchiveID, &b.Description, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateOrGet upserts by md5_hash. On conflict only updated_at is touched,
// so the first writer's location and archive id win.
func (r *PostgresRepository) CreateOrGet(ctx context.Context, block *models.DataBlock) error {
	query := `
		INSERT INTO data_blocks (md5_hash, size, location, archive_id, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (md5_hash)
		DO UPDATE SET updated_at = now()
		RETURNING ` + columns

	stored, err := scanBlock(r.db.QueryRowContext(ctx, query,
		block.MD5Hash, block.Size, block.Location, block.ArchiveID, block.Description))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	*block = *stored
	return nil
}

// Get returns the block or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.DataBlock, error) {
	query := `SELECT ` + columns + ` FROM data_blocks WHERE id=$1`

	b, err := scanBlock(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select data block: %w", err)
	}
	return b, nil
}

// FindByHash returns the block with the given content hash or common.ErrorNotFound.
func (r *PostgresRepository) FindByHash(ctx context.Context, md5Hash string) (*models.DataBlock, error) {
	query := `SELECT ` + columns + ` FROM data_blocks WHERE md5_hash=$1`

	b, err := scanBlock(r.db.QueryRowContext(ctx, query, md5Hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select data block: %w", err)
	}
	return b, nil
}

// SetArchiveID records where the block was archived.
func (r *PostgresRepository) SetArchiveID(ctx context.Context, id int64, archiveID string) error {
	query := `UPDATE data_blocks SET archive_id=$2, updated_at=now() WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, id, archiveID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
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

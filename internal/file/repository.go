package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const recordColumns = `id, original_name, file_name, mime_type, file_type, size, path, url, storage_provider, uploaded_by, is_active, created_at, updated_at`

// Repository provides access to file records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new record and returns the stored row.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO file (id, original_name, file_name, mime_type, file_type, size, path, url, storage_provider, uploaded_by, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + recordColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.OriginalName,
		rec.FileName,
		rec.MimeType,
		rec.FileType,
		rec.Size,
		rec.Path,
		rec.URL,
		rec.StorageProvider,
		rec.UploadedBy,
		rec.IsActive,
	)

	stored, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordPersistence
		}
		return Record{}, fmt.Errorf("create file record: %w", err)
	}
	return stored, nil
}

// Get fetches a single record by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM file WHERE id = $1 LIMIT 1;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("get file record: %w", err)
	}
	return rec, nil
}

// Delete removes the record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM file WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// ListByUser returns active records uploaded by userID, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + recordColumns + `
FROM file
WHERE uploaded_by = $1 AND is_active
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.OriginalName,
		&rec.FileName,
		&rec.MimeType,
		&rec.FileType,
		&rec.Size,
		&rec.Path,
		&rec.URL,
		&rec.StorageProvider,
		&rec.UploadedBy,
		&rec.IsActive,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

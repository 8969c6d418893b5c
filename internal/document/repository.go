package document

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso à tabela documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create insere metadados do anexo.
func (r *Repository) Create(ctx context.Context, registrationID uuid.UUID, fileName, filePath string, fileType *string, uploadedBy uuid.UUID) (*Document, error) {
	const query = `
        INSERT INTO documents (registration_id, file_name, file_path, file_type, uploaded_by)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, registration_id, file_name, file_path, file_type, uploaded_by, created_at
    `

	row := r.pool.QueryRow(ctx, query, registrationID, strings.TrimSpace(fileName), filePath, fileType, uploadedBy)
	return scanDocument(row)
}

// ListByRegistration lista anexos de um registro, mais antigos primeiro.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]Document, error) {
	const query = `
        SELECT id, registration_id, file_name, file_path, file_type, uploaded_by, created_at
        FROM documents
        WHERE registration_id = $1
        ORDER BY created_at ASC
    `

	rows, err := r.pool.Query(ctx, query, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.RegistrationID, &d.FileName, &d.FilePath, &d.FileType, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// document.go — репозиторий метаданных документов анкеты.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
)

// DocumentRepository — интерфейс доступа к таблице documents.
type DocumentRepository interface {
	// Create сохраняет метаданные документа.
	Create(ctx context.Context, doc *model.Document) error
	// GetByID возвращает документ по UUID.
	GetByID(ctx context.Context, id string) (*model.Document, error)
	// ListByApplication возвращает документы анкеты.
	ListByApplication(ctx context.Context, applicationID string) ([]model.Document, error)
	// Delete удаляет метаданные документа.
	Delete(ctx context.Context, id string) error
}

type documentRepo struct {
	db DBTX
}

// NewDocumentRepository создаёт репозиторий документов.
func NewDocumentRepository(db DBTX) DocumentRepository {
	return &documentRepo{db: db}
}

const docColumns = `id, application_id, file_id, original_filename, content_type, size_bytes, uploaded_at`

func (r *documentRepo) Create(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO documents (id, application_id, file_id, original_filename, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`

	err := r.db.QueryRow(ctx, query,
		doc.ID, doc.ApplicationID, doc.FileID, doc.OriginalFilename, doc.ContentType, doc.SizeBytes,
	).Scan(&doc.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: документ с таким file_id уже привязан", ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения метаданных документа: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, docColumns)

	doc := &model.Document{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.ApplicationID, &doc.FileID, &doc.OriginalFilename,
		&doc.ContentType, &doc.SizeBytes, &doc.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа: %w", err)
	}
	return doc, nil
}

func (r *documentRepo) ListByApplication(ctx context.Context, applicationID string) ([]model.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE application_id = $1
		ORDER BY uploaded_at DESC`, docColumns)

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения документов анкеты: %w", err)
	}
	defer rows.Close()

	var result []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(
			&doc.ID, &doc.ApplicationID, &doc.FileID, &doc.OriginalFilename,
			&doc.ContentType, &doc.SizeBytes, &doc.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода документов: %w", err)
	}
	return result, nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления документа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

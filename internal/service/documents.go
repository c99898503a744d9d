// documents.go — сервис документов анкеты. Байты файлов живут во
// внешнем файловом хранилище; здесь привязка file_id к анкете
// и метаданные. Привязка сверяется с хранилищем, чтобы не держать
// в БД ссылки на несуществующие файлы.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
	"github.com/bigkaa/goanketa/admin-module/internal/domain/ownership"
	"github.com/bigkaa/goanketa/admin-module/internal/fsclient"
	"github.com/bigkaa/goanketa/admin-module/internal/repository"
)

// storageClient — операции файлового хранилища, нужные сервису.
// Реализуется fsclient.Client; в тестах подменяется фейком.
type storageClient interface {
	FileInfo(ctx context.Context, fileID string) (*fsclient.FileInfo, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// DocumentService — сервис документов анкеты.
type DocumentService struct {
	fsClient storageClient
	docs     repository.DocumentRepository
	apps     repository.ApplicationRepository
	logger   *slog.Logger
}

// NewDocumentService создаёт сервис документов.
func NewDocumentService(
	fsClient storageClient,
	docs repository.DocumentRepository,
	apps repository.ApplicationRepository,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		fsClient: fsClient,
		docs:     docs,
		apps:     apps,
		logger:   logger.With(slog.String("component", "document_service")),
	}
}

// Attach привязывает файл из хранилища к анкете.
// Метаданные (имя, тип, размер) берутся из хранилища, а не из payload.
func (s *DocumentService) Attach(ctx context.Context, caller *ownership.Caller, applicationID, fileID string) (*model.Document, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение анкеты для привязки документа: %w", err)
	}

	decision := ownership.Decide(caller, app.OwnerUserID, app.OwnerExternalID)
	if !decision.Allowed {
		return nil, ErrForbidden
	}

	info, err := s.fsClient.FileInfo(ctx, fileID)
	if err != nil {
		if errors.Is(err, fsclient.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: файл %s отсутствует в хранилище", ErrValidation, fileID)
		}
		return nil, fmt.Errorf("%w: %w", ErrFSUnavailable, err) //nolint:errorlint // намеренный двойной wrap
	}

	doc := &model.Document{
		ID:               uuid.NewString(),
		ApplicationID:    applicationID,
		FileID:           fileID,
		OriginalFilename: info.OriginalFilename,
		ContentType:      info.ContentType,
		SizeBytes:        info.Size,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: файл %s уже привязан", ErrConflict, fileID)
		}
		return nil, fmt.Errorf("сохранение метаданных документа: %w", err)
	}

	s.logger.Info("Документ привязан к анкете",
		slog.String("application_id", applicationID),
		slog.String("document_id", doc.ID),
		slog.String("file_id", fileID),
	)
	return doc, nil
}

// List возвращает документы анкеты.
func (s *DocumentService) List(ctx context.Context, applicationID string) ([]model.Document, error) {
	if _, err := s.apps.GetByID(ctx, applicationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение анкеты: %w", err)
	}

	docs, err := s.docs.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("получение документов анкеты: %w", err)
	}
	return docs, nil
}

// Delete отвязывает документ и удаляет файл из хранилища.
// Метаданные удаляются первыми: потерянный файл в хранилище лучше,
// чем запись БД, указывающая в пустоту. Ошибка удаления байтов — Warn.
func (s *DocumentService) Delete(ctx context.Context, caller *ownership.Caller, documentID string) error {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение документа: %w", err)
	}

	app, err := s.apps.GetByID(ctx, doc.ApplicationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("получение анкеты документа: %w", err)
	}
	if app != nil {
		decision := ownership.Decide(caller, app.OwnerUserID, app.OwnerExternalID)
		if !decision.Allowed {
			return ErrForbidden
		}
	}

	if err := s.docs.Delete(ctx, documentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление метаданных документа: %w", err)
	}

	if err := s.fsClient.DeleteFile(ctx, doc.FileID); err != nil && !errors.Is(err, fsclient.ErrFileNotFound) {
		s.logger.Warn("Не удалось удалить файл из хранилища",
			slog.String("document_id", documentID),
			slog.String("file_id", doc.FileID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Документ удалён",
		slog.String("document_id", documentID),
		slog.String("file_id", doc.FileID),
	)
	return nil
}

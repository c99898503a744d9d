// reference.go — сервис справочников. Только чтение: наполнение
// справочников идёт миграциями.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
	"github.com/bigkaa/goanketa/admin-module/internal/repository"
)

// ReferenceService — сервис справочных данных.
type ReferenceService struct {
	refs   repository.ReferenceRepository
	logger *slog.Logger
}

// NewReferenceService создаёт сервис справочников.
func NewReferenceService(refs repository.ReferenceRepository, logger *slog.Logger) *ReferenceService {
	return &ReferenceService{
		refs:   refs,
		logger: logger.With(slog.String("component", "reference_service")),
	}
}

// Departments возвращает список отделов.
func (s *ReferenceService) Departments(ctx context.Context) ([]model.Department, error) {
	deps, err := s.refs.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение отделов: %w", err)
	}
	return deps, nil
}

// MissionGroups возвращает список групп направлений.
func (s *ReferenceService) MissionGroups(ctx context.Context) ([]model.MissionGroup, error) {
	groups, err := s.refs.ListMissionGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение групп направлений: %w", err)
	}
	return groups, nil
}

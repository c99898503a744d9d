// reference.go — репозиторий справочников (отделы, группы направлений).
// Справочники заполняются миграциями и доступны только на чтение.
package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
)

// ReferenceRepository — интерфейс доступа к справочным таблицам.
type ReferenceRepository interface {
	// ListDepartments возвращает все отделы.
	ListDepartments(ctx context.Context) ([]model.Department, error)
	// ListMissionGroups возвращает все группы направлений.
	ListMissionGroups(ctx context.Context) ([]model.MissionGroup, error)
}

type referenceRepo struct {
	db DBTX
}

// NewReferenceRepository создаёт репозиторий справочников.
func NewReferenceRepository(db DBTX) ReferenceRepository {
	return &referenceRepo{db: db}
}

func (r *referenceRepo) ListDepartments(ctx context.Context) ([]model.Department, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, title, created_at FROM departments ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения отделов: %w", err)
	}
	defer rows.Close()

	var result []model.Department
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.Code, &d.Title, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования отдела: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода отделов: %w", err)
	}
	return result, nil
}

func (r *referenceRepo) ListMissionGroups(ctx context.Context) ([]model.MissionGroup, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, title, created_at FROM mission_groups ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения групп направлений: %w", err)
	}
	defer rows.Close()

	var result []model.MissionGroup
	for rows.Next() {
		var g model.MissionGroup
		if err := rows.Scan(&g.ID, &g.Code, &g.Title, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы направлений: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода групп направлений: %w", err)
	}
	return result, nil
}
